package collaboration

import (
	"github.com/codehive/collab-server/internal/module/presence"
	"github.com/codehive/collab-server/internal/shared/jsontype"
	"github.com/google/uuid"
)

// CreateSessionRequest represents a request to create a session.
type CreateSessionRequest struct {
	WorkspaceID uuid.UUID    `json:"workspace_id" binding:"required"`
	Name        string       `json:"name" binding:"required,min=1,max=100"`
	Description string       `json:"description" binding:"max=500"`
	Settings    jsontype.Map `json:"settings"`
}

// RecordEventRequest represents a request to log an edit or file event.
// Join, leave, cursor and comment events are logged by their dedicated
// operations, not through this passthrough.
type RecordEventRequest struct {
	EventType EventType    `json:"event_type" binding:"required,oneof=code_edit file_open file_close"`
	Payload   jsontype.Map `json:"payload"`
}

// UpdateCursorRequest represents a live cursor position update.
type UpdateCursorRequest struct {
	SessionID  uuid.UUID `json:"session_id" binding:"required"`
	FilePath   string    `json:"file_path" binding:"required"`
	LineNumber int       `json:"line_number" binding:"min=0"`
	Column     int       `json:"column" binding:"min=0"`
	Color      string    `json:"color"`
}

// AddCommentRequest represents a request to add an anchored code comment.
type AddCommentRequest struct {
	SessionID   uuid.UUID `json:"session_id" binding:"required"`
	FilePath    string    `json:"file_path" binding:"required"`
	LineNumber  int       `json:"line_number" binding:"min=0"`
	ColumnStart int       `json:"column_start" binding:"min=0"`
	ColumnEnd   int       `json:"column_end" binding:"min=0"`
	Content     string    `json:"content" binding:"required"`
}

// CursorResponse carries the stored cursor and the session's current live
// cursors, so the caller can render peers without a second round trip.
type CursorResponse struct {
	Cursor     *presence.Cursor  `json:"cursor"`
	AllCursors []presence.Cursor `json:"all_cursors"`
}
