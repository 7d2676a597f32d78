package collaboration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for collaboration data access.
type Repository interface {
	// Session operations
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	ListWorkspaceSessions(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*Session, error)
	// DeactivateSession reports whether this call flipped the session to
	// inactive; concurrent deactivations have a single winner.
	DeactivateSession(ctx context.Context, id uuid.UUID) (bool, error)

	// Participant set operations. Both are idempotent: the bool reports
	// whether the set actually changed, which is what decides whether a
	// join/leave event gets logged.
	AddParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
	RemoveParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)

	// Event log operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)
	ListSessionEvents(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Event, error)

	// Comment operations
	CreateComment(ctx context.Context, comment *CodeComment) error
	GetComment(ctx context.Context, id uuid.UUID) (*CodeComment, error)
	ListFileComments(ctx context.Context, sessionID uuid.UUID, filePath string) ([]*CodeComment, error)
	ListSessionComments(ctx context.Context, sessionID uuid.UUID) ([]*CodeComment, error)
	SetCommentResolved(ctx context.Context, id uuid.UUID, resolved bool) error
}

// repository implements Repository using GORM.
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new collaboration repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// CreateSession creates a session with its creator as the only participant.
func (r *repository) CreateSession(ctx context.Context, session *Session) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		participant := &Participant{
			SessionID: session.ID,
			UserID:    session.CreatedBy,
			JoinedAt:  time.Now(),
		}
		if err := tx.Create(participant).Error; err != nil {
			return err
		}
		session.Participants = []uuid.UUID{session.CreatedBy}
		return nil
	})
}

// GetSession retrieves a session with its participant set.
func (r *repository) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var session Session
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if err := r.loadParticipants(ctx, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) loadParticipants(ctx context.Context, session *Session) error {
	var participants []Participant
	err := r.db.WithContext(ctx).
		Where("session_id = ?", session.ID).
		Order("joined_at ASC").
		Find(&participants).Error
	if err != nil {
		return err
	}

	session.Participants = make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		session.Participants = append(session.Participants, p.UserID)
	}
	return nil
}

// ListWorkspaceSessions lists sessions in a workspace, newest first.
func (r *repository) ListWorkspaceSessions(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*Session, error) {
	if limit <= 0 {
		limit = 20
	}

	var sessions []*Session
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	for _, s := range sessions {
		if err := r.loadParticipants(ctx, s); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

// DeactivateSession flips a session to inactive. The update is conditioned on
// the session still being active, so of N concurrent callers exactly one sees
// true; an already inactive or missing session reports false.
func (r *repository) DeactivateSession(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ? AND active = true", id).
		Updates(map[string]interface{}{"active": false, "updated_at": gorm.Expr("NOW()")})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AddParticipant inserts into the participant set. The composite primary key
// plus ON CONFLICT DO NOTHING makes concurrent duplicate joins single-winner:
// exactly one caller sees true.
func (r *repository) AddParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	participant := &Participant{
		SessionID: sessionID,
		UserID:    userID,
		JoinedAt:  time.Now(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(participant)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RemoveParticipant deletes from the participant set. Removing an absent
// member reports false with no error.
func (r *repository) RemoveParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Delete(&Participant{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AppendEvent appends an event, assigning its per-session sequence number.
// The increment happens with a row lock on the session inside the same
// transaction as the insert, so concurrent appenders can never observe or
// produce a duplicate sequence number.
func (r *repository) AppendEvent(ctx context.Context, event *Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq int64
		result := tx.Raw(
			`UPDATE collaboration_sessions SET last_seq = last_seq + 1, updated_at = NOW() WHERE id = ? RETURNING last_seq`,
			event.SessionID,
		).Scan(&seq)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSessionNotFound
		}

		event.Seq = seq
		return tx.Create(event).Error
	})
}

// GetEvent retrieves an event by ID.
func (r *repository) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

// ListSessionEvents returns the most recent events in chronological order.
// The limit applies to the newest events, so the query fetches in descending
// sequence order and the slice is reversed here; callers get chronological
// output without re-sorting.
func (r *repository) ListSessionEvents(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}

	var events []*Event
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// CreateComment creates a code comment.
func (r *repository) CreateComment(ctx context.Context, comment *CodeComment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// GetComment retrieves a code comment by ID.
func (r *repository) GetComment(ctx context.Context, id uuid.UUID) (*CodeComment, error) {
	var comment CodeComment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return &comment, nil
}

// ListFileComments lists comments for a file ordered by (line, column_start)
// so every client renders them in the same visual order.
func (r *repository) ListFileComments(ctx context.Context, sessionID uuid.UUID, filePath string) ([]*CodeComment, error) {
	var comments []*CodeComment
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND file_path = ?", sessionID, filePath).
		Order("line_number ASC, column_start ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// ListSessionComments lists all comments in a session.
func (r *repository) ListSessionComments(ctx context.Context, sessionID uuid.UUID) ([]*CodeComment, error) {
	var comments []*CodeComment
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// SetCommentResolved updates a comment's resolved flag.
func (r *repository) SetCommentResolved(ctx context.Context, id uuid.UUID, resolved bool) error {
	result := r.db.WithContext(ctx).
		Model(&CodeComment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"resolved": resolved, "updated_at": gorm.Expr("NOW()")})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCommentNotFound
	}
	return nil
}
