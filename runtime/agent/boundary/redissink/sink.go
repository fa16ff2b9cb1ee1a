// Package redissink is an illustrative stream.Sink that mirrors every
// published event onto a Redis pub/sub channel, for a consumer outside this
// process to observe a running execution. It is never used as shared
// execution state — the execreg.Registry remains the single source of
// truth — only as an additional delivery path alongside the in-process
// channel fan-out.
package redissink

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quillhq/planrunner/runtime/agent/stream"
)

// Sink publishes events to a channel named "planrunner:execution:<id>" per
// §6.7's STREAM_REDIS_ADDR.
type Sink struct {
	client *redis.Client
}

// New constructs a Sink against addr (host:port, no scheme).
func New(addr string) *Sink {
	return &Sink{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Send publishes event to executionID's channel. Publish failures are
// returned but never block the caller beyond the Redis client's own
// request/response round trip.
func (s *Sink) Send(ctx context.Context, executionID string, event stream.Event) error {
	payload, err := stream.Encode(executionID, event)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channelName(executionID), payload).Err()
}

// Close releases the underlying Redis connection pool.
func (s *Sink) Close(ctx context.Context) error {
	return s.client.Close()
}

func channelName(executionID string) string {
	return fmt.Sprintf("planrunner:execution:%s", executionID)
}
