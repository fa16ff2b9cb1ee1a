package execreg

import (
	"context"
	"sync"
	"time"

	"github.com/quillhq/planrunner/runtime/agent/env"
	"github.com/quillhq/planrunner/runtime/agent/plan"
	"github.com/quillhq/planrunner/runtime/agent/stream"
)

// Status is an execution's lifecycle state.
type Status string

const (
	StatusStarting  Status = "starting"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Terminal reports whether s ends an execution's lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

type subscriber struct {
	id  uint64
	ch  chan stream.Event
	// closed marks a subscriber already detached, so a racing publish does
	// not attempt to send on (or close) its channel twice.
	closed bool
}

// Record is the live state of one plan being run: plan, environment,
// append-only event log, subscriber set, and lifecycle status. A Record is
// created before its background interpreter task starts and transitions to
// a terminal status exactly once, under the owning Registry's mutex.
type Record struct {
	ID    string
	Plan  *plan.Plan
	Query string
	Env   *env.Environment

	mu          sync.Mutex
	status      Status
	startedAt   time.Time
	finishedAt  time.Time
	eventLog    []stream.Event
	subscribers map[uint64]*subscriber
	nextSubID   uint64
	stepCounter int
	currentStep string
	finalResult *string
	lastError   string

	cancel context.CancelFunc
	ctx    context.Context
}

// Status returns the record's current lifecycle status.
func (r *Record) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Snapshot captures the fields exposed by the §6.4 status query.
type Snapshot struct {
	ID          string
	Plan        *plan.Plan
	Query       string
	Status      Status
	StartedAt   time.Time
	FinishedAt  time.Time
	CurrentStep string
	FinalResult *string
	Error       string
	EventLog    []stream.Event
}

// Snapshot returns a point-in-time copy of the record's status-query fields.
func (r *Record) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		ID:          r.ID,
		Plan:        r.Plan,
		Query:       r.Query,
		Status:      r.status,
		StartedAt:   r.startedAt,
		FinishedAt:  r.finishedAt,
		CurrentStep: r.currentStep,
		FinalResult: r.finalResult,
		Error:       r.lastError,
		EventLog:    append([]stream.Event(nil), r.eventLog...),
	}
}

// Context returns the cancellation-bearing context the interpreter should
// run under; cancelling it is how Stop (exposed by the boundary adapter)
// asks the interpreter to stop at the next safe point.
func (r *Record) Context() context.Context {
	return r.ctx
}

// Stop requests cancellation of the execution. It is idempotent.
func (r *Record) Stop() {
	r.cancel()
}
