package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cursorKeyPrefix = "presence:cursor:"

// RedisStore keeps live cursors in one Redis hash per session, keyed by user
// id. HSET gives the replace-per-pair semantics; the hash key carries a
// rolling expiry as a backstop so an abandoned session's hash disappears even
// if the sweeper never gets to it.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed presence store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(sessionID uuid.UUID) string {
	return cursorKeyPrefix + sessionID.String()
}

// Update stores the cursor, replacing any previous entry for the pair.
func (s *RedisStore) Update(ctx context.Context, cursor *Cursor) error {
	cursor.UpdatedAt = time.Now()

	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	key := sessionKey(cursor.SessionID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, cursor.UserID.String(), data)
	// Backstop expiry well past the cursor TTL; the sweeper handles
	// per-entry staleness.
	pipe.Expire(ctx, key, s.ttl*12)
	_, err = pipe.Exec(ctx)
	return err
}

// Active returns non-expired cursors for the session.
func (s *RedisStore) Active(ctx context.Context, sessionID uuid.UUID) ([]Cursor, error) {
	entries, err := s.client.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cursors := make([]Cursor, 0, len(entries))
	for _, raw := range entries {
		var c Cursor
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			continue // skip undecodable entries, the sweeper will age them out
		}
		if !c.Expired(now, s.ttl) {
			cursors = append(cursors, c)
		}
	}
	return cursors, nil
}

// Sweep walks all session hashes and removes entries older than the TTL. The
// age check happens against the value read in this cycle, so an entry a
// concurrent Update just refreshed is left alone.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	removed := 0
	now := time.Now()

	iter := s.client.Scan(ctx, 0, cursorKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		entries, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return removed, err
		}

		var stale []string
		for field, raw := range entries {
			var c Cursor
			if err := json.Unmarshal([]byte(raw), &c); err != nil {
				stale = append(stale, field)
				continue
			}
			if c.Expired(now, s.ttl) {
				stale = append(stale, field)
			}
		}
		if len(stale) > 0 {
			n, err := s.client.HDel(ctx, key, stale...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Clear drops all cursors for a session.
func (s *RedisStore) Clear(ctx context.Context, sessionID uuid.UUID) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}

// Compile-time check
var _ Store = (*RedisStore)(nil)
