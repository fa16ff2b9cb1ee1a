package stream

import (
	"context"
	"encoding/json"
)

// Sink delivers streaming events to subscribers over a transport (SSE,
// WebSocket, Redis pub/sub). Implementations must be thread-safe: the
// execution registry calls a mirror Sink's Send from a new goroutine for
// every event, so calls may run concurrently, even for the same execution,
// and are not guaranteed to arrive in publish order.
type Sink interface {
	// Send publishes one event. Send must not block on anything other than
	// its own transport; the execution registry never waits for Send to
	// return (§5).
	Send(ctx context.Context, executionID string, event Event) error

	// Close releases resources owned by the sink. Idempotent.
	Close(ctx context.Context) error
}

// Envelope is the wire-level shape every transport in this repository
// encodes an event as: a type discriminant plus the event's own payload
// fields, and the execution id for transports (Redis, a multiplexed
// websocket) that do not route by channel/topic alone.
type Envelope struct {
	ExecutionID string    `json:"execution_id"`
	Type        EventType `json:"type"`
	Payload     any       `json:"payload"`
}

// Encode marshals event into the standard envelope for executionID.
func Encode(executionID string, event Event) ([]byte, error) {
	return json.Marshal(Envelope{ExecutionID: executionID, Type: event.Type(), Payload: event.Payload()})
}
