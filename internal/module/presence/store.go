package presence

import (
	"context"

	"github.com/google/uuid"
)

// Store holds live cursors. Implementations must guarantee replace semantics:
// an update for a (session, user) pair atomically replaces any previous entry
// for that pair, so exactly one entry per pair exists at any instant.
//
// Read correctness and bounded memory are enforced independently: Active
// filters by age on every read, Sweep removes stale entries on a period. A
// missed sweep cycle can only leave dead entries behind, never produce an
// incorrect read.
type Store interface {
	// Update stores the cursor, replacing any previous position for the
	// same (session, user) pair.
	Update(ctx context.Context, cursor *Cursor) error
	// Active returns the cursors for a session whose age is within the TTL.
	Active(ctx context.Context, sessionID uuid.UUID) ([]Cursor, error)
	// Sweep deletes entries older than the TTL across all sessions and
	// returns how many it removed. The staleness predicate is evaluated
	// per entry at sweep time, never as a blanket flush, so a sweep racing
	// a concurrent Update cannot delete the row the update just wrote.
	Sweep(ctx context.Context) (int, error)
	// Clear drops all cursors for a session.
	Clear(ctx context.Context, sessionID uuid.UUID) error
}
