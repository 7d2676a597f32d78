package collaboration

import (
	"time"

	"github.com/codehive/collab-server/internal/module/workspace"
	"github.com/codehive/collab-server/internal/shared/jsontype"
	"github.com/google/uuid"
)

// EventType represents a collaboration event type.
type EventType string

const (
	EventJoin       EventType = "join"
	EventLeave      EventType = "leave"
	EventCursorMove EventType = "cursor_move"
	EventCodeEdit   EventType = "code_edit"
	EventComment    EventType = "comment"
	EventFileOpen   EventType = "file_open"
	EventFileClose  EventType = "file_close"
)

// Valid reports whether the event type is one of the known types.
func (t EventType) Valid() bool {
	switch t {
	case EventJoin, EventLeave, EventCursorMove, EventCodeEdit,
		EventComment, EventFileOpen, EventFileClose:
		return true
	}
	return false
}

// Session represents a collaboration session. A session starts active and
// becomes inactive only through an explicit deactivation; an empty-but-active
// session is valid and stays queryable.
type Session struct {
	ID          uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WorkspaceID uuid.UUID    `json:"workspace_id" gorm:"type:uuid;not null;index"`
	Name        string       `json:"name" gorm:"not null"`
	Description string       `json:"description,omitempty"`
	CreatedBy   uuid.UUID    `json:"created_by" gorm:"type:uuid;not null"`
	Active      bool         `json:"active" gorm:"not null;default:true"`
	LastSeq     int64        `json:"-" gorm:"not null;default:0"`
	Settings    jsontype.Map `json:"settings" gorm:"type:jsonb"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	// Participants is loaded from the participant table; it is a set, not
	// a list: membership is idempotent.
	Participants []uuid.UUID `json:"participants" gorm:"-"`

	// Workspace deletion takes its sessions with it.
	Workspace *workspace.Workspace `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name.
func (Session) TableName() string {
	return "collaboration_sessions"
}

// Participant is one row of a session's participant set. The composite
// primary key is what makes joins idempotent at the database level.
type Participant struct {
	SessionID uuid.UUID `json:"session_id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	JoinedAt  time.Time `json:"joined_at"`

	Session *Session `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name.
func (Participant) TableName() string {
	return "collaboration_participants"
}

// Event is one append-only record in a session's history. Seq is the sole
// source of truth for ordering within a session; the timestamp is advisory.
type Event struct {
	ID        uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID uuid.UUID    `json:"session_id" gorm:"type:uuid;not null;uniqueIndex:idx_session_seq"`
	UserID    uuid.UUID    `json:"user_id" gorm:"type:uuid;not null"`
	Type      EventType    `json:"event_type" gorm:"column:event_type;not null"`
	Payload   jsontype.Map `json:"payload" gorm:"type:jsonb"`
	Seq       int64        `json:"seq" gorm:"not null;uniqueIndex:idx_session_seq"`
	CreatedAt time.Time    `json:"created_at"`

	Session *Session `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name.
func (Event) TableName() string {
	return "collaboration_events"
}

// CodeComment is a comment anchored to a (file, line, column range) within a
// session. Comments are never physically deleted while the session exists;
// only the resolved flag changes after creation.
type CodeComment struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID   uuid.UUID `json:"session_id" gorm:"type:uuid;not null;index:idx_session_file"`
	FilePath    string    `json:"file_path" gorm:"not null;index:idx_session_file"`
	LineNumber  int       `json:"line_number" gorm:"not null"`
	ColumnStart int       `json:"column_start" gorm:"not null"`
	ColumnEnd   int       `json:"column_end" gorm:"not null"`
	Content     string    `json:"content" gorm:"not null"`
	AuthorID    uuid.UUID `json:"author_id" gorm:"type:uuid;not null"`
	Resolved    bool      `json:"resolved" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Session *Session `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name.
func (CodeComment) TableName() string {
	return "code_comments"
}

// PointAnchor reports whether the comment anchors to a single position
// rather than a column range.
func (c *CodeComment) PointAnchor() bool {
	return c.ColumnStart == c.ColumnEnd
}
