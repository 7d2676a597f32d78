package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedStore(ttl time.Duration) (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Now()}
	store := NewMemoryStore(ttl)
	store.now = clock.Now
	return store, clock
}

func TestMemoryStore_ReplaceNotAccumulate(t *testing.T) {
	store, _ := newClockedStore(5 * time.Second)
	sessionID := uuid.New()
	userID := uuid.New()

	for i := 0; i < 10; i++ {
		err := store.Update(context.Background(), &Cursor{
			SessionID: sessionID,
			UserID:    userID,
			FilePath:  "main.go",
			Line:      i,
			Column:    0,
		})
		require.NoError(t, err)
	}

	cursors, err := store.Active(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, cursors, 1)
	assert.Equal(t, 9, cursors[0].Line)
}

func TestMemoryStore_ConcurrentUpdatesOneRow(t *testing.T) {
	store, _ := newClockedStore(5 * time.Second)
	sessionID := uuid.New()
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(line int) {
			defer wg.Done()
			_ = store.Update(context.Background(), &Cursor{
				SessionID: sessionID,
				UserID:    userID,
				FilePath:  "main.go",
				Line:      line,
			})
		}(i)
	}
	wg.Wait()

	cursors, err := store.Active(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, cursors, 1)
}

func TestMemoryStore_ExpiryOnRead(t *testing.T) {
	store, clock := newClockedStore(5 * time.Second)
	sessionID := uuid.New()

	err := store.Update(context.Background(), &Cursor{
		SessionID: sessionID,
		UserID:    uuid.New(),
		FilePath:  "app.ts",
		Line:      10,
		Column:    4,
	})
	require.NoError(t, err)

	// Present at T+4s
	clock.Advance(4 * time.Second)
	cursors, err := store.Active(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, cursors, 1)

	// Absent at T+6s even though no sweep has run
	clock.Advance(2 * time.Second)
	cursors, err = store.Active(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Empty(t, cursors)
}

func TestMemoryStore_Sweep(t *testing.T) {
	store, clock := newClockedStore(5 * time.Second)
	sessionA := uuid.New()
	sessionB := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Update(context.Background(), &Cursor{
			SessionID: sessionA,
			UserID:    uuid.New(),
			FilePath:  fmt.Sprintf("f%d.go", i),
		}))
	}
	require.NoError(t, store.Update(context.Background(), &Cursor{
		SessionID: sessionB,
		UserID:    uuid.New(),
		FilePath:  "other.go",
	}))

	// Nothing stale yet
	removed, err := store.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)

	clock.Advance(6 * time.Second)

	// One fresh update in session B survives the sweep
	fresh := uuid.New()
	require.NoError(t, store.Update(context.Background(), &Cursor{
		SessionID: sessionB,
		UserID:    fresh,
		FilePath:  "fresh.go",
	}))

	removed, err = store.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	cursors, err := store.Active(context.Background(), sessionB)
	require.NoError(t, err)
	require.Len(t, cursors, 1)
	assert.Equal(t, fresh, cursors[0].UserID)
}

func TestMemoryStore_SweepIndependentOfReadCorrectness(t *testing.T) {
	store, clock := newClockedStore(5 * time.Second)
	sessionID := uuid.New()

	require.NoError(t, store.Update(context.Background(), &Cursor{
		SessionID: sessionID,
		UserID:    uuid.New(),
	}))

	// A delayed sweep never makes a read incorrect: the stale entry is
	// already invisible before any sweep runs.
	clock.Advance(10 * time.Second)
	cursors, err := store.Active(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Empty(t, cursors)

	removed, err := store.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestMemoryStore_Clear(t *testing.T) {
	store, _ := newClockedStore(5 * time.Second)
	sessionID := uuid.New()

	require.NoError(t, store.Update(context.Background(), &Cursor{
		SessionID: sessionID,
		UserID:    uuid.New(),
	}))
	require.NoError(t, store.Clear(context.Background(), sessionID))

	cursors, err := store.Active(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Empty(t, cursors)
}

func TestCursor_Expired(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		age      time.Duration
		expected bool
	}{
		{"fresh", 0, false},
		{"at boundary", 5 * time.Second, false},
		{"just past", 5*time.Second + time.Millisecond, true},
		{"long stale", time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Cursor{UpdatedAt: now.Add(-tt.age)}
			assert.Equal(t, tt.expected, c.Expired(now, 5*time.Second))
		})
	}
}
