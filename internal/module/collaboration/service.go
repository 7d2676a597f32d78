package collaboration

import (
	"context"
	"strings"

	"github.com/codehive/collab-server/internal/module/presence"
	"github.com/codehive/collab-server/internal/shared/jsontype"
	"github.com/codehive/collab-server/internal/shared/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCursorColor = "#3B82F6"

// Service is the session coordinator. All session, event, comment and cursor
// mutations funnel through it: it validates session state, mutates the
// relevant store, and appends an event to the session log as the last step.
// A crash between the state mutation and the event append can leave a
// mutation without its audit event; participant changes avoid this by
// committing with their event in one database, cursor moves span Redis and
// Postgres and accept the gap.
type Service struct {
	repo      Repository
	cursors   presence.Store
	publisher Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewService creates a new collaboration service.
func NewService(repo Repository, cursors presence.Store, publisher Publisher, logger *zap.Logger, m *metrics.Metrics) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Service{
		repo:      repo,
		cursors:   cursors,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
	}
}

// ========== Session Lifecycle ==========

// CreateSession creates an active session with the creator as its only
// participant.
func (s *Service) CreateSession(ctx context.Context, creatorID uuid.UUID, req *CreateSessionRequest) (*Session, error) {
	settings := req.Settings
	if settings == nil {
		settings = map[string]any{}
	}

	session := &Session{
		ID:          uuid.New(),
		WorkspaceID: req.WorkspaceID,
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   creatorID,
		Active:      true,
		Settings:    settings,
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SessionsCreatedTotal.Inc()
		s.metrics.ActiveSessions.Inc()
	}

	s.logger.Info("collaboration session created",
		zap.String("session_id", session.ID.String()),
		zap.String("workspace_id", req.WorkspaceID.String()),
		zap.String("created_by", creatorID.String()),
	)

	return session, nil
}

// GetSession retrieves a session with its participant set.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.repo.GetSession(ctx, id)
}

// ListWorkspaceSessions lists sessions in a workspace, newest first.
func (s *Service) ListWorkspaceSessions(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*Session, error) {
	return s.repo.ListWorkspaceSessions(ctx, workspaceID, limit, offset)
}

// JoinSession adds the user to the participant set and logs a join event.
// Joining is idempotent; a duplicate join changes nothing and logs nothing.
// Joining a missing or inactive session fails with the matching sentinel,
// which callers treat as "cannot join", not a fault.
func (s *Service) JoinSession(ctx context.Context, sessionID, userID uuid.UUID) (*Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active {
		return nil, ErrSessionInactive
	}

	added, err := s.repo.AddParticipant(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if added {
		s.logEvent(ctx, sessionID, userID, EventJoin, jsontype.Map{"message": "User joined session"})
	}

	return s.repo.GetSession(ctx, sessionID)
}

// LeaveSession removes the user from the participant set and logs a leave
// event. Removing an absent member is a successful no-op. Leaving never
// deactivates the session, an empty-but-active session stays valid.
func (s *Service) LeaveSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return err
	}

	removed, err := s.repo.RemoveParticipant(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	if removed {
		s.logEvent(ctx, sessionID, userID, EventLeave, jsontype.Map{"message": "User left session"})
	}

	return nil
}

// DeactivateSession flips the session to inactive. The transition is
// terminal: there is no reactivation, a successor session must be created
// instead. Deactivating an already inactive session is a no-op.
func (s *Service) DeactivateSession(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return err
	}

	// The conditional update decides the winner; cursors and the gauge only
	// move on the call that actually flipped the flag.
	changed, err := s.repo.DeactivateSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	// Live cursors are meaningless for an inactive session; drop them now
	// rather than waiting for the sweep.
	if err := s.cursors.Clear(ctx, sessionID); err != nil {
		s.logger.Warn("clear cursors on deactivate failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err),
		)
	}

	if s.metrics != nil {
		s.metrics.ActiveSessions.Dec()
	}

	s.logger.Info("collaboration session deactivated",
		zap.String("session_id", sessionID.String()),
	)
	return nil
}

// ========== Event Log ==========

// RecordEvent logs an edit or file event for an active session. The payload
// is opaque to the log; in particular code_edit carries whatever diff format
// the client uses, the engine does not merge document content.
func (s *Service) RecordEvent(ctx context.Context, sessionID, userID uuid.UUID, eventType EventType, payload jsontype.Map) (*Event, error) {
	if !eventType.Valid() {
		return nil, ErrInvalidEventType
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active {
		return nil, ErrSessionInactive
	}

	return s.logEvent(ctx, sessionID, userID, eventType, payload)
}

// GetEvent retrieves an event by ID.
func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	return s.repo.GetEvent(ctx, id)
}

// GetSessionEvents returns the most recent limit events in chronological
// order. History stays readable after deactivation.
func (s *Service) GetSessionEvents(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Event, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListSessionEvents(ctx, sessionID, limit)
}

// logEvent appends to the session log and publishes the event. Publish
// failures are logged and swallowed: the log append is the source of truth,
// a missed push only delays clients until their next poll.
func (s *Service) logEvent(ctx context.Context, sessionID, userID uuid.UUID, eventType EventType, payload jsontype.Map) (*Event, error) {
	if payload == nil {
		payload = jsontype.Map{}
	}

	event := &Event{
		ID:        uuid.New(),
		SessionID: sessionID,
		UserID:    userID,
		Type:      eventType,
		Payload:   payload,
	}

	if err := s.repo.AppendEvent(ctx, event); err != nil {
		s.logger.Error("append event failed",
			zap.String("session_id", sessionID.String()),
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.EventsAppendedTotal.WithLabelValues(string(eventType)).Inc()
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err),
		)
	}

	return event, nil
}

// ========== Live Cursors ==========

// UpdateCursor stores the caller's cursor position and logs a cursor_move
// event. Exactly one cursor per (session, user) exists afterwards.
func (s *Service) UpdateCursor(ctx context.Context, userID uuid.UUID, userName string, req *UpdateCursorRequest) (*CursorResponse, error) {
	session, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active {
		return nil, ErrSessionInactive
	}

	color := req.Color
	if color == "" {
		color = defaultCursorColor
	}
	if userName == "" {
		userName = "Unknown User"
	}

	cursor := &presence.Cursor{
		SessionID: req.SessionID,
		UserID:    userID,
		FilePath:  req.FilePath,
		Line:      req.LineNumber,
		Column:    req.Column,
		Color:     color,
		UserName:  userName,
	}

	if err := s.cursors.Update(ctx, cursor); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CursorUpdatesTotal.Inc()
	}

	s.logEvent(ctx, req.SessionID, userID, EventCursorMove, jsontype.Map{
		"file_path": req.FilePath,
		"line":      req.LineNumber,
		"column":    req.Column,
	})

	all, err := s.cursors.Active(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	return &CursorResponse{Cursor: cursor, AllCursors: all}, nil
}

// ActiveCursors returns the session's live cursors, already filtered by age.
func (s *Service) ActiveCursors(ctx context.Context, sessionID uuid.UUID) ([]presence.Cursor, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.cursors.Active(ctx, sessionID)
}

// ========== Code Comments ==========

// AddComment anchors a comment to a (file, line, column range) and logs a
// comment event. A zero-width range is a point comment and is valid.
func (s *Service) AddComment(ctx context.Context, authorID uuid.UUID, req *AddCommentRequest) (*CodeComment, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyContent
	}
	if req.ColumnEnd < req.ColumnStart {
		return nil, ErrInvalidColumnRange
	}

	session, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active {
		return nil, ErrSessionInactive
	}

	comment := &CodeComment{
		ID:          uuid.New(),
		SessionID:   req.SessionID,
		FilePath:    req.FilePath,
		LineNumber:  req.LineNumber,
		ColumnStart: req.ColumnStart,
		ColumnEnd:   req.ColumnEnd,
		Content:     req.Content,
		AuthorID:    authorID,
	}

	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}

	s.logEvent(ctx, req.SessionID, authorID, EventComment, jsontype.Map{
		"comment_id": comment.ID.String(),
		"file_path":  req.FilePath,
		"line":       req.LineNumber,
	})

	return comment, nil
}

// GetComment retrieves a comment by ID.
func (s *Service) GetComment(ctx context.Context, id uuid.UUID) (*CodeComment, error) {
	return s.repo.GetComment(ctx, id)
}

// GetFileComments lists a file's comments ordered by (line, column_start).
func (s *Service) GetFileComments(ctx context.Context, sessionID uuid.UUID, filePath string) ([]*CodeComment, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListFileComments(ctx, sessionID, filePath)
}

// ListSessionComments lists all comments in a session.
func (s *Service) ListSessionComments(ctx context.Context, sessionID uuid.UUID) ([]*CodeComment, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListSessionComments(ctx, sessionID)
}

// ResolveComment marks a comment resolved.
func (s *Service) ResolveComment(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetCommentResolved(ctx, id, true)
}

// UnresolveComment marks a comment unresolved again.
func (s *Service) UnresolveComment(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetCommentResolved(ctx, id, false)
}
