package interp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quillhq/planrunner/runtime/agent/env"
	"github.com/quillhq/planrunner/runtime/agent/execreg"
	"github.com/quillhq/planrunner/runtime/agent/llm"
	"github.com/quillhq/planrunner/runtime/agent/plan"
	"github.com/quillhq/planrunner/runtime/agent/stream"
	"github.com/quillhq/planrunner/runtime/agent/tools"
	"github.com/quillhq/planrunner/runtime/agent/toolerrors"
)

// Interpreter runs a single validated Plan against an Environment, a tool
// registry, and an LLM client, publishing lifecycle events to an execution
// registry as it goes. One Interpreter value is shared across every
// concurrent execution; Run owns no state beyond its arguments, so nothing
// about a single run survives past its Run call except what it published.
type Interpreter struct {
	registry  *execreg.Registry
	tools     *tools.Registry
	llmClient llm.Client
	// globalIterationCeiling is the process-wide hard cap on steps executed
	// per run (§9 Open Question (b)); zero means no ceiling beyond the
	// plan's own declared max_iterations.
	globalIterationCeiling int
}

// New constructs an Interpreter. globalIterationCeiling of zero disables the
// process-wide ceiling, leaving each plan's own max_iterations as the only
// bound.
func New(registry *execreg.Registry, toolRegistry *tools.Registry, llmClient llm.Client, globalIterationCeiling int) *Interpreter {
	return &Interpreter{
		registry:                registry,
		tools:                   toolRegistry,
		llmClient:               llmClient,
		globalIterationCeiling:  globalIterationCeiling,
	}
}

// Run executes rec.Plan to completion, cancellation, or iteration-cap
// failure. It is meant to be launched as its own goroutine immediately
// after the execution registry creates rec; Run publishes every lifecycle
// event for rec's execution and always calls Terminate exactly once before
// returning.
func (ip *Interpreter) Run(rec *execreg.Record) {
	ctx := rec.Context()
	ip.registry.Publish(rec.ID, stream.ExecutionStarted{StartedAt: time.Now()})

	idx, err := plan.BuildIndex(rec.Plan)
	if err != nil {
		ip.fail(rec, toolerrors.WrapKind(toolerrors.KindSchemaViolation, "interp: cannot index plan", err))
		return
	}

	iterationCap := rec.Plan.MaxIterations
	if ip.globalIterationCeiling > 0 && ip.globalIterationCeiling < iterationCap {
		iterationCap = ip.globalIterationCeiling
	}

	pc := 0
	iterations := 0
	for {
		select {
		case <-ctx.Done():
			ip.stop(rec)
			return
		default:
		}

		if pc == len(rec.Plan.Steps) {
			// Running past the last step without an "end" is an implicit end.
			ip.complete(rec)
			return
		}
		if pc < 0 || pc >= len(rec.Plan.Steps) {
			ip.fail(rec, toolerrors.NewKind(toolerrors.KindDanglingGoto, fmt.Sprintf("interp: instruction pointer %d out of range", pc)))
			return
		}
		if iterations >= iterationCap {
			ip.fail(rec, toolerrors.NewKind(toolerrors.KindIterationCapExceeded, fmt.Sprintf("interp: exceeded %d step executions", iterationCap)))
			return
		}

		step := rec.Plan.Steps[pc]
		ip.registry.Publish(rec.ID, stream.StepStarted{StepID: step.ID, StepType: string(step.Type), Description: step.Description})

		next, done, err := ip.runStep(ctx, rec, idx, step)
		iterations++
		if err != nil {
			ip.registry.Publish(rec.ID, stream.StepCompleted{StepID: step.ID, Success: false, Error: err.Error()})
			ip.fail(rec, err)
			return
		}
		if done {
			ip.complete(rec)
			return
		}
		pc = next
	}
}

// runStep executes one step and returns the next instruction pointer. done
// is true only for a reached "end" step, at which point pc is meaningless.
func (ip *Interpreter) runStep(ctx context.Context, rec *execreg.Record, idx plan.Index, step plan.Step) (next int, done bool, err error) {
	switch step.Type {
	case plan.KindLLM:
		return ip.runLLM(ctx, rec, step)
	case plan.KindTool:
		return ip.runTool(ctx, rec, step)
	case plan.KindIf:
		return ip.runIf(rec, idx, step)
	case plan.KindGoto:
		target, ok := idx[step.GotoID]
		if !ok {
			return 0, false, toolerrors.NewKind(toolerrors.KindDanglingGoto, fmt.Sprintf("interp: goto_id %q does not resolve", step.GotoID))
		}
		ip.registry.Publish(rec.ID, stream.StepCompleted{StepID: step.ID, Success: true})
		return target, false, nil
	case plan.KindEnd:
		ip.registry.Publish(rec.ID, stream.StepCompleted{StepID: step.ID, Success: true})
		return 0, true, nil
	default:
		return 0, false, toolerrors.NewKind(toolerrors.KindSchemaViolation, fmt.Sprintf("interp: unknown step type %q", step.Type))
	}
}

func (ip *Interpreter) runLLM(ctx context.Context, rec *execreg.Record, step plan.Step) (int, bool, error) {
	// A missing template reference is a non-fatal warning: the prompt
	// proceeds with the empty string already substituted by Render.
	prompt, _, _ := rec.Env.Render(step.Prompt)

	result, err := ip.llmClient.Complete(ctx, prompt, llm.Options{})
	if err != nil {
		return 0, false, err
	}
	if err := rec.Env.Bind(step.OutputName, result); err != nil {
		return 0, false, err
	}
	ip.registry.Publish(rec.ID, stream.StepCompleted{StepID: step.ID, Success: true, Result: result})
	return stepIndexAfter(rec, step), false, nil
}

func (ip *Interpreter) runTool(ctx context.Context, rec *execreg.Record, step plan.Step) (int, bool, error) {
	// A missing template reference is a non-fatal warning: the arguments
	// proceed with the empty string already substituted per field.
	args, _, err := renderArgs(step.Arguments, rec.Env)
	if err != nil {
		return 0, false, err
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return 0, false, toolerrors.WrapKind(toolerrors.KindInvalidArguments, fmt.Sprintf("interp: tool step %s: cannot encode arguments", step.ID), err)
	}

	result, err := ip.tools.Dispatch(ctx, tools.Ident(step.ToolName), argsJSON)
	if err != nil {
		return 0, false, err
	}
	if err := rec.Env.Bind(step.OutputName, result); err != nil {
		return 0, false, err
	}
	ip.registry.Publish(rec.ID, stream.StepCompleted{StepID: step.ID, Success: true, Result: result})
	return stepIndexAfter(rec, step), false, nil
}

func (ip *Interpreter) runIf(rec *execreg.Record, idx plan.Index, step plan.Step) (int, bool, error) {
	truth, err := EvaluateCondition(step.Condition, rec.Env)
	if err != nil {
		return 0, false, err
	}
	branch := "branch-not-taken"
	if truth {
		branch = "branch-taken"
	}
	ip.registry.Publish(rec.ID, stream.StepCompleted{StepID: step.ID, Success: true, Result: branch})
	if truth {
		target, ok := idx[step.GotoID]
		if !ok {
			return 0, false, toolerrors.NewKind(toolerrors.KindDanglingGoto, fmt.Sprintf("interp: goto_id %q does not resolve", step.GotoID))
		}
		return target, false, nil
	}
	return stepIndexAfter(rec, step), false, nil
}

// stepIndexAfter returns the position immediately following step in the
// plan's step list, i.e. fall-through execution order.
func stepIndexAfter(rec *execreg.Record, step plan.Step) int {
	for i, s := range rec.Plan.Steps {
		if s.ID == step.ID {
			return i + 1
		}
	}
	return len(rec.Plan.Steps)
}

// renderArgs walks a tool step's argument object, interpolating {name}
// references in every string value (recursively through nested objects and
// arrays) against e. Non-string values (numbers, booleans, nil) pass
// through unchanged.
func renderArgs(args map[string]any, e *env.Environment) (map[string]any, []string, error) {
	out := make(map[string]any, len(args))
	var allMissing []string
	for k, v := range args {
		rendered, missing, err := renderValue(v, e)
		if err != nil {
			return nil, nil, err
		}
		out[k] = rendered
		allMissing = append(allMissing, missing...)
	}
	return out, allMissing, nil
}

func renderValue(v any, e *env.Environment) (any, []string, error) {
	switch val := v.(type) {
	case string:
		rendered, _, missing := e.Render(val)
		return rendered, missing, nil
	case map[string]any:
		return renderArgs(val, e)
	case []any:
		out := make([]any, len(val))
		var allMissing []string
		for i, item := range val {
			rendered, missing, err := renderValue(item, e)
			if err != nil {
				return nil, nil, err
			}
			out[i] = rendered
			allMissing = append(allMissing, missing...)
		}
		return out, allMissing, nil
	default:
		return v, nil, nil
	}
}

func (ip *Interpreter) complete(rec *execreg.Record) {
	result := lastBinding(rec.Env, rec.Plan)
	ip.registry.Terminate(rec.ID, execreg.StatusCompleted,
		stream.ExecutionCompleted{Result: result, FinishedAt: time.Now()}, &result, "")
}

func (ip *Interpreter) fail(rec *execreg.Record, err error) {
	reason := errorKind(err)
	if reason == "" {
		reason = "unknown"
	}
	ip.registry.Terminate(rec.ID, execreg.StatusFailed,
		stream.ExecutionFailed{Reason: reason, FinishedAt: time.Now(), Error: err.Error()}, nil, err.Error())
}

// errorKind walks err's ToolError chain (outermost first) for the first
// non-empty Kind, so execution_failed's reason reflects the error taxonomy
// (e.g. "iteration_cap_exceeded", "tool_runtime_error") rather than the id of
// the step that happened to fail.
func errorKind(err error) string {
	for te := toolerrors.FromError(err); te != nil; te = te.Cause {
		if te.Kind != "" {
			return te.Kind
		}
	}
	return ""
}

func (ip *Interpreter) stop(rec *execreg.Record) {
	ip.registry.Terminate(rec.ID, execreg.StatusStopped,
		stream.ExecutionStopped{FinishedAt: time.Now()}, nil, "")
}

// lastBinding returns the value of the most recently bound llm or tool step
// output, or the empty string if no step output was ever bound (§9 Open
// Question (a): the end result is the most recent binding, not a
// step-declared return value). Seeded variables such as user_query are not
// step outputs and never become the result.
func lastBinding(e *env.Environment, p *plan.Plan) string {
	outputs := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		if (s.Type == plan.KindLLM || s.Type == plan.KindTool) && s.OutputName != "" {
			outputs[s.OutputName] = true
		}
	}
	names := e.Names()
	for i := len(names) - 1; i >= 0; i-- {
		if outputs[names[i]] {
			v, _ := e.Lookup(names[i])
			return v
		}
	}
	return ""
}
