// Package execreg implements the execution registry (C8): the single
// process-wide mapping from execution id to live execution record. The
// registry's internal map and each record's subscriber set are protected by
// a mutex held only for O(1) work; the per-record event log is append-only,
// and new subscribers take a snapshot under the mutex before switching to a
// live channel so replay and live delivery never duplicate or drop events.
package execreg

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillhq/planrunner/runtime/agent/env"
	"github.com/quillhq/planrunner/runtime/agent/plan"
	"github.com/quillhq/planrunner/runtime/agent/stream"
	"github.com/quillhq/planrunner/runtime/agent/telemetry/promreg"
)

// Registry is the process-wide, in-memory table of execution records. The
// zero value is not usable; construct with New.
type Registry struct {
	mu         sync.Mutex
	records    map[string]*Record
	bufferSize int
	grace      time.Duration
	metrics    *promreg.Collectors
	mirror     stream.Sink
}

// Options configures a Registry.
type Options struct {
	// SubscriberBuffer is the per-subscriber bounded buffer size (§5 default 64).
	SubscriberBuffer int
	// Grace is how long a terminal record survives for late replay (§5 default 10m).
	Grace time.Duration
	// Metrics, when non-nil, receives registry occupancy and drop counters.
	Metrics *promreg.Collectors
	// Mirror, when non-nil, additionally receives every published event
	// (e.g. boundary/redissink), fire-and-forget, alongside the in-process
	// subscriber fan-out.
	Mirror stream.Sink
}

// New constructs an empty Registry.
func New(opts Options) *Registry {
	buf := opts.SubscriberBuffer
	if buf <= 0 {
		buf = 64
	}
	grace := opts.Grace
	if grace <= 0 {
		grace = 10 * time.Minute
	}
	return &Registry{
		records:    make(map[string]*Record),
		bufferSize: buf,
		grace:      grace,
		metrics:    opts.Metrics,
		mirror:     opts.Mirror,
	}
}

// publishMirror sends event to the configured mirror sink, if any, in its
// own goroutine so a slow or unreachable external sink never delays the
// interpreter the way a full subscriber buffer must not (§5).
func (r *Registry) publishMirror(id string, event stream.Event) {
	if r.mirror == nil {
		return
	}
	go func() {
		_ = r.mirror.Send(context.Background(), id, event)
	}()
}

// Create registers a new execution record for pl and query, seeded with
// environment, and returns it. The caller starts the interpreter's
// background task only after Create returns, satisfying the §5 requirement
// that a record exists before its task begins.
func (r *Registry) Create(pl *plan.Plan, query string, environment *env.Environment) *Record {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &Record{
		ID:          uuid.NewString(),
		Plan:        pl,
		Query:       query,
		Env:         environment,
		status:      StatusStarting,
		subscribers: make(map[uint64]*subscriber),
		ctx:         ctx,
		cancel:      cancel,
	}

	r.mu.Lock()
	r.records[rec.ID] = rec
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ExecutionsTotal.Inc()
		r.metrics.ExecutionsActive.Inc()
	}
	return rec
}

// Get returns the record for id, if present (including terminal records
// still within their grace period).
func (r *Registry) Get(id string) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}

// AttachSubscriber returns a replay of the event log so far plus a channel
// that continues with live events. The hand-off is atomic: both are
// computed under the same critical section as subscriber registration, so
// no event published after the snapshot is taken can be missed, and none
// already in the snapshot is re-delivered on the channel.
func (r *Registry) AttachSubscriber(id string) (replay []stream.Event, live <-chan stream.Event, detach func(), err error) {
	rec, ok := r.Get(id)
	if !ok {
		return nil, nil, nil, fmt.Errorf("execreg: unknown execution %q", id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	replay = append([]stream.Event(nil), rec.eventLog...)
	ch := make(chan stream.Event, r.bufferSize)
	if rec.status.Terminal() {
		// Nothing more will be published: the replay already ends with the
		// terminal event, so the live channel is closed straight away.
		close(ch)
		return replay, ch, func() {}, nil
	}
	sub := &subscriber{id: rec.nextSubID, ch: ch}
	rec.nextSubID++
	rec.subscribers[sub.id] = sub

	detach = func() {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		detachLocked(rec, sub)
	}
	return replay, ch, detach, nil
}

func detachLocked(rec *Record, sub *subscriber) {
	if sub.closed {
		return
	}
	sub.closed = true
	delete(rec.subscribers, sub.id)
	close(sub.ch)
}

// Publish appends event to id's log and fans it out to every attached
// subscriber. A subscriber whose buffer is full is detached immediately
// rather than awaited, so the interpreter is never throttled by a slow
// client (§5).
func (r *Registry) Publish(id string, event stream.Event) {
	rec, ok := r.Get(id)
	if !ok {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.eventLog = append(rec.eventLog, event)
	if event.Type() == stream.EventExecutionStarted {
		rec.startedAt = time.Now()
		rec.status = StatusRunning
	}
	if ss, ok := event.(stream.StepStarted); ok {
		rec.stepCounter++
		rec.currentStep = ss.StepID
	}

	for subID, sub := range rec.subscribers {
		select {
		case sub.ch <- event:
		default:
			detachLocked(rec, sub)
			delete(rec.subscribers, subID)
			if r.metrics != nil {
				r.metrics.SubscribersDropped.Inc()
			}
		}
	}
	r.publishMirror(id, event)
}

// Terminate publishes event (one of ExecutionCompleted/Failed/Stopped) and
// transitions the record to status, exactly once. A second call for an
// already-terminal record is a no-op, preserving the §5 invariant that a
// record transitions to a terminal status exactly once under the registry
// mutex.
func (r *Registry) Terminate(id string, status Status, event stream.Event, finalResult *string, errMsg string) {
	rec, ok := r.Get(id)
	if !ok {
		return
	}

	rec.mu.Lock()
	if rec.status.Terminal() {
		rec.mu.Unlock()
		return
	}
	rec.status = status
	rec.finishedAt = time.Now()
	rec.finalResult = finalResult
	rec.lastError = errMsg
	rec.eventLog = append(rec.eventLog, event)

	// The terminal event ends every stream: each subscriber is offered it and
	// then detached, which closes its live channel.
	for subID, sub := range rec.subscribers {
		select {
		case sub.ch <- event:
		default:
			if r.metrics != nil {
				r.metrics.SubscribersDropped.Inc()
			}
		}
		detachLocked(rec, sub)
		delete(rec.subscribers, subID)
	}
	rec.mu.Unlock()
	r.publishMirror(id, event)

	if r.metrics != nil {
		r.metrics.ExecutionsActive.Dec()
		r.metrics.ExecutionsTerminated.WithLabelValues(string(status)).Inc()
	}
}

// SweepExpired evicts terminal records whose grace period has elapsed as of
// now, detaching any subscribers still attached (a late subscriber outside
// the grace window simply finds the execution unknown). It returns the
// evicted execution ids, useful for logging.
func (r *Registry) SweepExpired(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for id, rec := range r.records {
		rec.mu.Lock()
		expired := rec.status.Terminal() && now.Sub(rec.finishedAt) > r.grace
		if expired {
			for _, sub := range rec.subscribers {
				detachLocked(rec, sub)
			}
		}
		rec.mu.Unlock()
		if expired {
			delete(r.records, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Shutdown cancels every non-terminal execution, asking its interpreter task
// to stop at the next safe point. It does not wait for tasks to exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if !rec.Status().Terminal() {
			rec.Stop()
		}
	}
}
