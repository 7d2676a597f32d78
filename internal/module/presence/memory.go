package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-process Store. It is the fallback when
// Redis is not configured and the reference implementation for the Store
// contract in tests.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	cursors map[uuid.UUID]map[uuid.UUID]Cursor

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryStore creates an in-memory presence store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		cursors: make(map[uuid.UUID]map[uuid.UUID]Cursor),
		now:     time.Now,
	}
}

// Update stores the cursor, replacing any previous entry for the pair.
func (s *MemoryStore) Update(_ context.Context, cursor *Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor.UpdatedAt = s.now()
	session := s.cursors[cursor.SessionID]
	if session == nil {
		session = make(map[uuid.UUID]Cursor)
		s.cursors[cursor.SessionID] = session
	}
	session[cursor.UserID] = *cursor
	return nil
}

// Active returns non-expired cursors for the session.
func (s *MemoryStore) Active(_ context.Context, sessionID uuid.UUID) ([]Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cursors := make([]Cursor, 0, len(s.cursors[sessionID]))
	for _, c := range s.cursors[sessionID] {
		if !c.Expired(now, s.ttl) {
			cursors = append(cursors, c)
		}
	}
	return cursors, nil
}

// Sweep removes entries older than the TTL, evaluated at sweep time.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for sessionID, session := range s.cursors {
		for userID, c := range session {
			if c.Expired(now, s.ttl) {
				delete(session, userID)
				removed++
			}
		}
		if len(session) == 0 {
			delete(s.cursors, sessionID)
		}
	}
	return removed, nil
}

// Clear drops all cursors for a session.
func (s *MemoryStore) Clear(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, sessionID)
	return nil
}

// Compile-time check
var _ Store = (*MemoryStore)(nil)
