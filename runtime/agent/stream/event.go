// Package stream defines the live streaming observer protocol: the closed
// set of lifecycle events an execution publishes (§6.3) and the Sink
// interface transports implement to deliver them to subscribers. The
// contract is transport-agnostic — server-sent events, a websocket, a long
// poll, or an in-process channel can all implement Sink.
package stream

import "time"

// EventType is the closed set of event type tags. Sinks encode events through
// Event.Payload and do not switch on the type, so a new type needs no Sink
// change; Terminal must be updated if the new type ends a stream.
type EventType string

const (
	EventExecutionStarted  EventType = "execution_started"
	EventStepStarted       EventType = "step_started"
	EventStepCompleted     EventType = "step_completed"
	EventExecutionCompleted EventType = "execution_completed"
	EventExecutionFailed   EventType = "execution_failed"
	EventExecutionStopped  EventType = "execution_stopped"
	EventHeartbeat         EventType = "heartbeat"
)

// Terminal reports whether t ends the event stream for its execution.
func (t EventType) Terminal() bool {
	switch t {
	case EventExecutionCompleted, EventExecutionFailed, EventExecutionStopped:
		return true
	default:
		return false
	}
}

// Event describes one streaming event delivered to subscribers. All concrete
// event types implement Event; Payload returns a JSON-serializable view so
// generic sinks (the Redis mirror, the SSE encoder) never need a type switch.
type Event interface {
	Type() EventType
	Payload() any
}

type (
	// ExecutionStarted is published once, immediately when the interpreter
	// begins running a plan.
	ExecutionStarted struct {
		StartedAt time.Time `json:"started_at"`
	}

	// StepStarted is published before a step's side effects (LLM call, tool
	// dispatch, condition evaluation) begin.
	StepStarted struct {
		StepID      string `json:"step_id"`
		StepType    string `json:"step_type"`
		Description string `json:"description,omitempty"`
	}

	// StepCompleted is published after a step finishes, successfully or not.
	StepCompleted struct {
		StepID  string `json:"step_id"`
		Success bool   `json:"success"`
		Result  string `json:"result,omitempty"`
		Error   string `json:"error,omitempty"`
	}

	// ExecutionCompleted is the terminal event for a successful run.
	ExecutionCompleted struct {
		Result     string    `json:"result"`
		FinishedAt time.Time `json:"finished_at"`
	}

	// ExecutionFailed is the terminal event for a run that ended in error.
	ExecutionFailed struct {
		Reason     string    `json:"reason"`
		FinishedAt time.Time `json:"finished_at"`
		Error      string    `json:"error"`
	}

	// ExecutionStopped is the terminal event for a run ended by cancellation.
	ExecutionStopped struct {
		FinishedAt time.Time `json:"finished_at"`
	}

	// Heartbeat is published at a fixed interval when no other event has
	// occurred, so long-lived idle connections are not mistaken for dead
	// ones by intermediaries.
	Heartbeat struct{}
)

func (ExecutionStarted) Type() EventType   { return EventExecutionStarted }
func (StepStarted) Type() EventType        { return EventStepStarted }
func (StepCompleted) Type() EventType      { return EventStepCompleted }
func (ExecutionCompleted) Type() EventType { return EventExecutionCompleted }
func (ExecutionFailed) Type() EventType    { return EventExecutionFailed }
func (ExecutionStopped) Type() EventType   { return EventExecutionStopped }
func (Heartbeat) Type() EventType          { return EventHeartbeat }

func (e ExecutionStarted) Payload() any   { return e }
func (e StepStarted) Payload() any        { return e }
func (e StepCompleted) Payload() any      { return e }
func (e ExecutionCompleted) Payload() any { return e }
func (e ExecutionFailed) Payload() any    { return e }
func (e ExecutionStopped) Payload() any   { return e }
func (e Heartbeat) Payload() any          { return e }
