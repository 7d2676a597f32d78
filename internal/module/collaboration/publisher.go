package collaboration

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const sessionChannelPrefix = "collab:session:"

// Publisher pushes logged events to the transport layer that fans them out to
// connected clients. The transport itself (WebSocket, SSE, broker) lives
// outside the engine; the engine only produces the data to publish, keyed by
// session id.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// RedisPublisher publishes events on a per-session Redis Pub/Sub channel.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a Redis-backed event publisher.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends the event on the session's channel.
func (p *RedisPublisher) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	channel := sessionChannelPrefix + event.SessionID.String()
	return p.client.Publish(ctx, channel, data).Err()
}

// NopPublisher discards events. Used when no transport is wired.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, *Event) error { return nil }

// Compile-time checks
var (
	_ Publisher = (*RedisPublisher)(nil)
	_ Publisher = NopPublisher{}
)
