package presence

import (
	"time"

	"github.com/google/uuid"
)

// Cursor is a live cursor position for one participant in one session.
// It is ephemeral: there is at most one per (session, user) pair, and it is
// only meaningful while its age is below the store's TTL. Losing cursors on
// restart is acceptable, clients re-report their position.
type Cursor struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
	FilePath  string    `json:"file_path"`
	Line      int       `json:"line"`
	Column    int       `json:"column"`
	Color     string    `json:"color"`
	UserName  string    `json:"user_name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the cursor is older than ttl at the given instant.
func (c *Cursor) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.UpdatedAt) > ttl
}
