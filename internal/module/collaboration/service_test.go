package collaboration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codehive/collab-server/internal/module/presence"
	"github.com/codehive/collab-server/internal/shared/jsontype"
	"github.com/codehive/collab-server/internal/shared/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRepo is an in-memory Repository for service tests. Sequence assignment
// mirrors the real repository: incremented under lock together with the
// append.
type fakeRepo struct {
	mu           sync.Mutex
	sessions     map[uuid.UUID]*Session
	participants map[uuid.UUID]map[uuid.UUID]time.Time
	events       map[uuid.UUID][]*Event
	comments     map[uuid.UUID]*CodeComment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions:     make(map[uuid.UUID]*Session),
		participants: make(map[uuid.UUID]map[uuid.UUID]time.Time),
		events:       make(map[uuid.UUID][]*Event),
		comments:     make(map[uuid.UUID]*CodeComment),
	}
}

func (f *fakeRepo) CreateSession(_ context.Context, session *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	f.sessions[session.ID] = session
	f.participants[session.ID] = map[uuid.UUID]time.Time{session.CreatedBy: time.Now()}
	session.Participants = []uuid.UUID{session.CreatedBy}
	return nil
}

func (f *fakeRepo) GetSession(_ context.Context, id uuid.UUID) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *session
	cp.Participants = nil
	for userID := range f.participants[id] {
		cp.Participants = append(cp.Participants, userID)
	}
	return &cp, nil
}

func (f *fakeRepo) ListWorkspaceSessions(_ context.Context, workspaceID uuid.UUID, limit, offset int) ([]*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Session
	for _, s := range f.sessions {
		if s.WorkspaceID == workspaceID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeactivateSession(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok || !session.Active {
		return false, nil
	}
	session.Active = false
	return true, nil
}

func (f *fakeRepo) AddParticipant(_ context.Context, sessionID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.participants[sessionID]
	if !ok {
		return false, ErrSessionNotFound
	}
	if _, exists := set[userID]; exists {
		return false, nil
	}
	set[userID] = time.Now()
	return true, nil
}

func (f *fakeRepo) RemoveParticipant(_ context.Context, sessionID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.participants[sessionID]
	if !ok {
		return false, ErrSessionNotFound
	}
	if _, exists := set[userID]; !exists {
		return false, nil
	}
	delete(set, userID)
	return true, nil
}

func (f *fakeRepo) AppendEvent(_ context.Context, event *Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[event.SessionID]
	if !ok {
		return ErrSessionNotFound
	}
	session.LastSeq++
	event.Seq = session.LastSeq
	event.CreatedAt = time.Now()
	f.events[event.SessionID] = append(f.events[event.SessionID], event)
	return nil
}

func (f *fakeRepo) GetEvent(_ context.Context, id uuid.UUID) (*Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, events := range f.events {
		for _, e := range events {
			if e.ID == id {
				cp := *e
				return &cp, nil
			}
		}
	}
	return nil, ErrEventNotFound
}

func (f *fakeRepo) ListSessionEvents(_ context.Context, sessionID uuid.UUID, limit int) ([]*Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	events := f.events[sessionID]
	start := len(events) - limit
	if start < 0 {
		start = 0
	}
	out := make([]*Event, 0, len(events)-start)
	for _, e := range events[start:] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeRepo) CreateComment(_ context.Context, comment *CodeComment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment.CreatedAt = time.Now()
	comment.UpdatedAt = comment.CreatedAt
	f.comments[comment.ID] = comment
	return nil
}

func (f *fakeRepo) GetComment(_ context.Context, id uuid.UUID) (*CodeComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment, ok := f.comments[id]
	if !ok {
		return nil, ErrCommentNotFound
	}
	cp := *comment
	return &cp, nil
}

func (f *fakeRepo) ListFileComments(_ context.Context, sessionID uuid.UUID, filePath string) ([]*CodeComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*CodeComment
	for _, c := range f.comments {
		if c.SessionID == sessionID && c.FilePath == filePath {
			cp := *c
			out = append(out, &cp)
		}
	}
	// Same ordering contract as the real repository
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].LineNumber < out[i].LineNumber ||
				(out[j].LineNumber == out[i].LineNumber && out[j].ColumnStart < out[i].ColumnStart) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ListSessionComments(_ context.Context, sessionID uuid.UUID) ([]*CodeComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*CodeComment
	for _, c := range f.comments {
		if c.SessionID == sessionID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) SetCommentResolved(_ context.Context, id uuid.UUID, resolved bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment, ok := f.comments[id]
	if !ok {
		return ErrCommentNotFound
	}
	comment.Resolved = resolved
	return nil
}

func newTestService(cursorTTL time.Duration) (*Service, *fakeRepo) {
	repo := newFakeRepo()
	store := presence.NewMemoryStore(cursorTTL)
	svc := NewService(repo, store, nil, zap.NewNop(), nil)
	return svc, repo
}

func createSession(t *testing.T, svc *Service, creator uuid.UUID) *Session {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), creator, &CreateSessionRequest{
		WorkspaceID: uuid.New(),
		Name:        "pairing",
	})
	require.NoError(t, err)
	return session
}

func TestService_CreateSession(t *testing.T) {
	svc, _ := newTestService(5 * time.Second)
	creator := uuid.New()

	session := createSession(t, svc, creator)
	assert.True(t, session.Active)
	assert.Equal(t, []uuid.UUID{creator}, session.Participants)
	assert.NotNil(t, session.Settings)

	// No events logged for creation itself
	events, err := svc.GetSessionEvents(context.Background(), session.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestService_JoinSession_Idempotent(t *testing.T) {
	svc, _ := newTestService(5 * time.Second)
	creator := uuid.New()
	bob := uuid.New()
	session := createSession(t, svc, creator)

	first, err := svc.JoinSession(context.Background(), session.ID, bob)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{creator, bob}, first.Participants)

	// Joining twice yields an identical participant set
	second, err := svc.JoinSession(context.Background(), session.ID, bob)
	require.NoError(t, err)
	assert.ElementsMatch(t, first.Participants, second.Participants)

	// And exactly one join event
	events, err := svc.GetSessionEvents(context.Background(), session.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventJoin, events[0].Type)
	assert.Equal(t, bob, events[0].UserID)
}

func TestService_JoinSession_ConcurrentSingleEvent(t *testing.T) {
	svc, _ := newTestService(5 * time.Second)
	creator := uuid.New()
	bob := uuid.New()
	session := createSession(t, svc, creator)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.JoinSession(context.Background(), session.ID, bob)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	events, err := svc.GetSessionEvents(context.Background(), session.ID, 100)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventJoin, events[0].Type)
}

func TestService_LeaveSession(t *testing.T) {
	svc, _ := newTestService(5 * time.Second)
	creator := uuid.New()
	bob := uuid.New()
	session := createSession(t, svc, creator)

	_, err := svc.JoinSession(context.Background(), session.ID, bob)
	require.NoError(t, err)

	t.Run("removes participant and logs event", func(t *testing.T) {
		require.NoError(t, svc.LeaveSession(context.Background(), session.ID, bob))

		got, err := svc.GetSession(context.Background(), session.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{creator}, got.Participants)

		events, err := svc.GetSessionEvents(context.Background(), session.ID, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, EventLeave, events[1].Type)
	})

	t.Run("leaving again is a successful no-op", func(t *testing.T) {
		require.NoError(t, svc.LeaveSession(context.Background(), session.ID, bob))

		events, err := svc.GetSessionEvents(context.Background(), session.ID, 10)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("emptied session stays active", func(t *testing.T) {
		require.NoError(t, svc.LeaveSession(context.Background(), session.ID, creator))

		got, err := svc.GetSession(context.Background(), session.ID)
		require.NoError(t, err)
		assert.True(t, got.Active)
		assert.Empty(t, got.Participants)
	})

	t.Run("unknown session fails", func(t *testing.T) {
		err := svc.LeaveSession(context.Background(), uuid.New(), bob)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestService_DeactivateSession(t *testing.T) {
	svc, _ := newTestService(5 * time.Second)
	creator := uuid.New()
	bob := uuid.New()
	session := createSession(t, svc, creator)

	_, err := svc.JoinSession(context.Background(), session.ID, bob)
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateSession(context.Background(), session.ID))

	t.Run("join is rejected and set unchanged", func(t *testing.T) {
		_, err := svc.JoinSession(context.Background(), session.ID, uuid.New())
		assert.ErrorIs(t, err, ErrSessionInactive)

		got, err := svc.GetSession(context.Background(), session.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{creator, bob}, got.Participants)
	})

	t.Run("cursor updates are rejected", func(t *testing.T) {
		_, err := svc.UpdateCursor(context.Background(), bob, "Bob", &UpdateCursorRequest{
			SessionID: session.ID,
			FilePath:  "file.ts",
		})
		assert.ErrorIs(t, err, ErrSessionInactive)
	})

	t.Run("comments are rejected", func(t *testing.T) {
		_, err := svc.AddComment(context.Background(), bob, &AddCommentRequest{
			SessionID: session.ID,
			FilePath:  "file.ts",
			Content:   "too late",
		})
		assert.ErrorIs(t, err, ErrSessionInactive)
	})

	t.Run("history stays readable", func(t *testing.T) {
		events, err := svc.GetSessionEvents(context.Background(), session.ID, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, EventJoin, events[0].Type)
	})

	t.Run("second deactivation is a no-op", func(t *testing.T) {
		assert.NoError(t, svc.DeactivateSession(context.Background(), session.ID))
	})
}

func TestService_DeactivateSession_ConcurrentSingleWinner(t *testing.T) {
	repo := newFakeRepo()
	m := metrics.New("collab_coordinator_test")
	svc := NewService(repo, presence.NewMemoryStore(5*time.Second), nil, zap.NewNop(), m)

	session := createSession(t, svc, uuid.New())
	require.Equal(t, float64(1), testutil.ToFloat64(m.ActiveSessions))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.DeactivateSession(context.Background(), session.ID))
		}()
	}
	wg.Wait()

	// Ten racing deactivations decrement the gauge exactly once
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveSessions))

	got, err := svc.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestService_EventOrdering_ConcurrentAppenders(t *testing.T) {
	svc, _ := newTestService(5 * time.Second)
	creator := uuid.New()
	session := createSession(t, svc, creator)

	const appenders = 8
	const perAppender = 25

	var wg sync.WaitGroup
	for i := 0; i < appenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perAppender; j++ {
				_, err := svc.RecordEvent(context.Background(), session.ID, creator, EventCodeEdit, jsontype.Map{"op": "insert"})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	events, err := svc.GetSessionEvents(context.Background(), session.ID, appenders*perAppender)
	require.NoError(t, err)
	require.Len(t, events, appenders*perAppender)

	seen := make(map[int64]bool)
	for i, e := range events {
		assert.False(t, seen[e.Seq], "duplicate seq %d", e.Seq)
		seen[e.Seq] = true
		if i > 0 {
			assert.Greater(t, e.Seq, events[i-1].Seq, "sequence must be strictly increasing")
		}
	}
}

func TestService_GetSessionEvents_LimitKeepsNewest(t *testing.T) {
	svc, _ := newTestService(5 * time.Second)
	creator := uuid.New()
	session := createSession(t, svc, creator)

	for i := 0; i < 10; i++ {
		_, err := svc.RecordEvent(context.Background(), session.ID, creator, EventFileOpen, jsontype.Map{"i": i})
		require.NoError(t, err)
	}

	events, err := svc.GetSessionEvents(context.Background(), session.ID, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// The newest three, still in chronological order
	assert.Equal(t, int64(8), events[0].Seq)
	assert.Equal(t, int64(9), events[1].Seq)
	assert.Equal(t, int64(10), events[2].Seq)
}

func TestService_RecordEvent_InvalidType(t *testing.T) {
	svc, _ := newTestService(5 * time.Second)
	creator := uuid.New()
	session := createSession(t, svc, creator)

	_, err := svc.RecordEvent(context.Background(), session.ID, creator, EventType("refactor"), nil)
	assert.ErrorIs(t, err, ErrInvalidEventType)
}

func TestService_UpdateCursor(t *testing.T) {
	svc, _ := newTestService(5 * time.Second)
	creator := uuid.New()
	session := createSession(t, svc, creator)

	resp, err := svc.UpdateCursor(context.Background(), creator, "Alice", &UpdateCursorRequest{
		SessionID:  session.ID,
		FilePath:   "main.go",
		LineNumber: 3,
		Column:     7,
	})
	require.NoError(t, err)
	assert.Equal(t, defaultCursorColor, resp.Cursor.Color)
	require.Len(t, resp.AllCursors, 1)

	// A cursor_move event lands in the log
	events, err := svc.GetSessionEvents(context.Background(), session.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventCursorMove, events[0].Type)
}

func TestService_UpdateCursor_ReplaceNotAccumulate(t *testing.T) {
	svc, _ := newTestService(5 * time.Second)
	creator := uuid.New()
	session := createSession(t, svc, creator)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(line int) {
			defer wg.Done()
			_, err := svc.UpdateCursor(context.Background(), creator, "Alice", &UpdateCursorRequest{
				SessionID:  session.ID,
				FilePath:   "main.go",
				LineNumber: line,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	cursors, err := svc.ActiveCursors(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, cursors, 1)
}

func TestService_AddComment_Validation(t *testing.T) {
	svc, _ := newTestService(5 * time.Second)
	creator := uuid.New()
	session := createSession(t, svc, creator)

	tests := []struct {
		name    string
		req     *AddCommentRequest
		wantErr error
	}{
		{
			"empty content",
			&AddCommentRequest{SessionID: session.ID, FilePath: "a.go", Content: "   "},
			ErrEmptyContent,
		},
		{
			"inverted column range",
			&AddCommentRequest{SessionID: session.ID, FilePath: "a.go", Content: "x", ColumnStart: 10, ColumnEnd: 4},
			ErrInvalidColumnRange,
		},
		{
			"unknown session",
			&AddCommentRequest{SessionID: uuid.New(), FilePath: "a.go", Content: "x"},
			ErrSessionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddComment(context.Background(), creator, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("zero-width point anchor is valid", func(t *testing.T) {
		comment, err := svc.AddComment(context.Background(), creator, &AddCommentRequest{
			SessionID:   session.ID,
			FilePath:    "a.go",
			LineNumber:  1,
			ColumnStart: 5,
			ColumnEnd:   5,
			Content:     "point",
		})
		require.NoError(t, err)
		assert.True(t, comment.PointAnchor())
	})
}

func TestService_GetFileComments_Ordering(t *testing.T) {
	svc, _ := newTestService(5 * time.Second)
	creator := uuid.New()
	session := createSession(t, svc, creator)

	add := func(line, col int) {
		_, err := svc.AddComment(context.Background(), creator, &AddCommentRequest{
			SessionID:   session.ID,
			FilePath:    "view.tsx",
			LineNumber:  line,
			ColumnStart: col,
			ColumnEnd:   col,
			Content:     "c",
		})
		require.NoError(t, err)
	}

	add(5, 0)
	add(3, 10)
	add(3, 2)

	comments, err := svc.GetFileComments(context.Background(), session.ID, "view.tsx")
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, [2]int{3, 2}, [2]int{comments[0].LineNumber, comments[0].ColumnStart})
	assert.Equal(t, [2]int{3, 10}, [2]int{comments[1].LineNumber, comments[1].ColumnStart})
	assert.Equal(t, [2]int{5, 0}, [2]int{comments[2].LineNumber, comments[2].ColumnStart})
}

func TestService_ResolveComment(t *testing.T) {
	svc, _ := newTestService(5 * time.Second)
	creator := uuid.New()
	session := createSession(t, svc, creator)

	comment, err := svc.AddComment(context.Background(), creator, &AddCommentRequest{
		SessionID: session.ID,
		FilePath:  "a.go",
		Content:   "fix this",
	})
	require.NoError(t, err)
	assert.False(t, comment.Resolved)

	require.NoError(t, svc.ResolveComment(context.Background(), comment.ID))
	got, err := svc.GetComment(context.Background(), comment.ID)
	require.NoError(t, err)
	assert.True(t, got.Resolved)

	require.NoError(t, svc.UnresolveComment(context.Background(), comment.ID))
	got, err = svc.GetComment(context.Background(), comment.ID)
	require.NoError(t, err)
	assert.False(t, got.Resolved)

	assert.ErrorIs(t, svc.ResolveComment(context.Background(), uuid.New()), ErrCommentNotFound)
}

// TestService_Scenario walks through one full collaboration round trip: Alice
// creates a session, Bob joins and moves his cursor, the cursor is visible
// until it expires, and the join event outlives the cursor.
func TestService_Scenario(t *testing.T) {
	const cursorTTL = 100 * time.Millisecond
	svc, _ := newTestService(cursorTTL)

	alice := uuid.New()
	bob := uuid.New()

	session := createSession(t, svc, alice)
	assert.Equal(t, []uuid.UUID{alice}, session.Participants)

	// Bob joins
	joined, err := svc.JoinSession(context.Background(), session.ID, bob)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, joined.Participants)

	// Bob moves his cursor
	_, err = svc.UpdateCursor(context.Background(), bob, "Bob", &UpdateCursorRequest{
		SessionID:  session.ID,
		FilePath:   "file.ts",
		LineNumber: 10,
		Column:     4,
	})
	require.NoError(t, err)

	// Alice sees exactly Bob's cursor
	cursors, err := svc.ActiveCursors(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, cursors, 1)
	assert.Equal(t, bob, cursors[0].UserID)
	assert.Equal(t, "file.ts", cursors[0].FilePath)
	assert.Equal(t, 10, cursors[0].Line)
	assert.Equal(t, 4, cursors[0].Column)

	// The TTL elapses with no further activity
	time.Sleep(cursorTTL + 50*time.Millisecond)

	cursors, err = svc.ActiveCursors(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, cursors)

	// The join event is still in the history
	events, err := svc.GetSessionEvents(context.Background(), session.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, EventJoin, events[0].Type)
	assert.Equal(t, bob, events[0].UserID)
}
