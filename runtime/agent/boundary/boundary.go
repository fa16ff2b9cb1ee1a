// Package boundary implements the boundary adapter (C9): the three
// operations exposed to the outside world — submit a query for a plan,
// start an execution from a plan, and subscribe to its event stream. This
// package defines the operations themselves; boundary/httpapi and
// boundary/wsapi are illustrative transports over it, and neither is part
// of the contract.
package boundary

import (
	"context"
	"fmt"
	"strings"

	"github.com/quillhq/planrunner/runtime/agent/env"
	"github.com/quillhq/planrunner/runtime/agent/execreg"
	"github.com/quillhq/planrunner/runtime/agent/interp"
	"github.com/quillhq/planrunner/runtime/agent/plan"
	"github.com/quillhq/planrunner/runtime/agent/planner"
	"github.com/quillhq/planrunner/runtime/agent/stream"
	"github.com/quillhq/planrunner/runtime/agent/tools"
	"github.com/quillhq/planrunner/runtime/agent/toolerrors"
)

// Adapter wires the planner, execution registry, and interpreter behind the
// three boundary operations. It owns no transport; callers decide how
// submit/start/subscribe are exposed (HTTP, websocket, CLI, or direct Go
// calls in-process).
type Adapter struct {
	planner   *planner.Planner
	interp    *interp.Interpreter
	reg       *execreg.Registry
	tools     *tools.Registry
	knownTool plan.ToolNamesFn
}

// New constructs an Adapter over an already-configured planner, execution
// registry, interpreter, and tool registry.
func New(pl *planner.Planner, ip *interp.Interpreter, reg *execreg.Registry, toolRegistry *tools.Registry) *Adapter {
	catalog := toolRegistry.Catalog()
	names := make(map[string]bool, len(catalog))
	for _, spec := range catalog {
		names[string(spec.Name)] = true
	}
	return &Adapter{
		planner:   pl,
		interp:    ip,
		reg:       reg,
		tools:     toolRegistry,
		knownTool: func(name string) bool { return names[name] },
	}
}

// Submit asks the planner to turn query into a validated Plan. It does not
// create an execution; the caller decides separately whether and when to
// Start it (§6.1/§6.2 are distinct operations).
func (a *Adapter) Submit(ctx context.Context, query string) (*plan.Plan, error) {
	return a.planner.Plan(ctx, query)
}

// Start validates pl defensively (an external caller may have constructed or
// edited it since Submit), creates an execution record seeded with query,
// launches the interpreter in the background, and returns immediately with
// the new execution's id.
func (a *Adapter) Start(pl *plan.Plan, query string) (string, error) {
	if errs := plan.Validate(pl, a.knownTool); !plan.Accepted(errs) {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return "", toolerrors.NewKind(toolerrors.KindSchemaViolation, strings.Join(msgs, "; "))
	}

	e := env.New()
	e.Seed("user_query", query)
	rec := a.reg.Create(pl, query, e)

	go a.interp.Run(rec)
	return rec.ID, nil
}

// Subscribe returns a replay of the execution's event log so far plus a
// channel that continues with live events until the execution reaches a
// terminal state and the channel is closed. detach releases the
// subscription and must be called once the caller is done, even if it never
// drains live to its close.
func (a *Adapter) Subscribe(executionID string) (replay []stream.Event, live <-chan stream.Event, detach func(), err error) {
	return a.reg.AttachSubscriber(executionID)
}

// Status returns the current point-in-time snapshot for an execution (§6.4).
func (a *Adapter) Status(executionID string) (execreg.Snapshot, error) {
	rec, ok := a.reg.Get(executionID)
	if !ok {
		return execreg.Snapshot{}, fmt.Errorf("boundary: unknown execution %q", executionID)
	}
	return rec.Snapshot(), nil
}

// Stop requests cancellation of a running execution (§5 Cancellation). It is
// a no-op if the execution is already terminal, and returns an error if the
// execution is unknown.
func (a *Adapter) Stop(executionID string) error {
	rec, ok := a.reg.Get(executionID)
	if !ok {
		return fmt.Errorf("boundary: unknown execution %q", executionID)
	}
	rec.Stop()
	return nil
}

// Catalog returns the ordered tool catalog (§6.5).
func (a *Adapter) Catalog() []tools.Spec {
	return a.tools.Catalog()
}
