package interp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/planrunner/runtime/agent/env"
	"github.com/quillhq/planrunner/runtime/agent/execreg"
	"github.com/quillhq/planrunner/runtime/agent/llm"
	"github.com/quillhq/planrunner/runtime/agent/plan"
	"github.com/quillhq/planrunner/runtime/agent/stream"
	"github.com/quillhq/planrunner/runtime/agent/tools"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(context.Context, string, llm.Options) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.New()
	require.NoError(t, reg.Register(tools.Spec{
		Name:        "get_current_time",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
	}, func(context.Context, json.RawMessage) (string, error) {
		return "2026-07-29T00:00:00Z", nil
	}))
	return reg
}

func drain(t *testing.T, rec *execreg.Record, timeout time.Duration) execreg.Status {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if rec.Status().Terminal() {
			return rec.Status()
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("execution did not terminate in time")
	return ""
}

func TestRunToolThenEndCompletes(t *testing.T) {
	reg := execreg.New(execreg.Options{})
	p := &plan.Plan{
		MaxIterations: 5,
		Steps: []plan.Step{
			{ID: "T1", Type: plan.KindTool, ToolName: "get_current_time", OutputName: "now"},
			{ID: "END", Type: plan.KindEnd},
		},
	}
	rec := reg.Create(p, "what time is it", env.New())
	ip := New(reg, newTestRegistry(t), &fakeLLM{}, 0)

	ip.Run(rec)

	status := drain(t, rec, time.Second)
	assert.Equal(t, execreg.StatusCompleted, status)
	snap := rec.Snapshot()
	require.NotNil(t, snap.FinalResult)
	assert.Equal(t, "2026-07-29T00:00:00Z", *snap.FinalResult)
}

func TestRunLLMStepInterpolatesPriorOutput(t *testing.T) {
	reg := execreg.New(execreg.Options{})
	p := &plan.Plan{
		MaxIterations: 5,
		Steps: []plan.Step{
			{ID: "T1", Type: plan.KindTool, ToolName: "get_current_time", OutputName: "now"},
			{ID: "L1", Type: plan.KindLLM, Prompt: "the time is {now}", OutputName: "answer"},
			{ID: "END", Type: plan.KindEnd},
		},
	}
	e := env.New()
	rec := reg.Create(p, "what time is it", e)
	ip := New(reg, newTestRegistry(t), &fakeLLM{response: "It is currently 2026-07-29T00:00:00Z."}, 0)

	ip.Run(rec)

	status := drain(t, rec, time.Second)
	assert.Equal(t, execreg.StatusCompleted, status)
	snap := rec.Snapshot()
	assert.Equal(t, "It is currently 2026-07-29T00:00:00Z.", *snap.FinalResult)
}

func TestRunIfTakesTrueBranchToGotoTarget(t *testing.T) {
	reg := execreg.New(execreg.Options{})
	p := &plan.Plan{
		MaxIterations: 20,
		Steps: []plan.Step{
			{ID: "T1", Type: plan.KindTool, ToolName: "get_current_time", OutputName: "now"},
			{ID: "I1", Type: plan.KindIf, Condition: `now == "2026-07-29T00:00:00Z"`, GotoID: "END"},
			{ID: "G1", Type: plan.KindGoto, GotoID: "T1"},
			{ID: "END", Type: plan.KindEnd},
		},
	}
	rec := reg.Create(p, "check time once", env.New())
	ip := New(reg, newTestRegistry(t), &fakeLLM{}, 0)

	ip.Run(rec)

	status := drain(t, rec, time.Second)
	assert.Equal(t, execreg.StatusCompleted, status)
}

func TestRunIfFalseFallsThroughToNextStep(t *testing.T) {
	reg := execreg.New(execreg.Options{})
	p := &plan.Plan{
		MaxIterations: 20,
		Steps: []plan.Step{
			{ID: "T1", Type: plan.KindTool, ToolName: "get_current_time", OutputName: "now"},
			{ID: "I1", Type: plan.KindIf, Condition: `now == "never"`, GotoID: "LOOP"},
			{ID: "END", Type: plan.KindEnd},
			{ID: "LOOP", Type: plan.KindGoto, GotoID: "END"},
		},
	}
	rec := reg.Create(p, "check time once", env.New())
	ip := New(reg, newTestRegistry(t), &fakeLLM{}, 0)

	ip.Run(rec)

	status := drain(t, rec, time.Second)
	assert.Equal(t, execreg.StatusCompleted, status)
}

func TestRunProceedsOnUnboundReference(t *testing.T) {
	reg := execreg.New(execreg.Options{})
	p := &plan.Plan{
		MaxIterations: 5,
		Steps: []plan.Step{
			{ID: "L1", Type: plan.KindLLM, Prompt: "{nope}", OutputName: "answer"},
			{ID: "END", Type: plan.KindEnd},
		},
	}
	rec := reg.Create(p, "q", env.New())
	ip := New(reg, newTestRegistry(t), &fakeLLM{response: "x"}, 0)

	ip.Run(rec)

	status := drain(t, rec, time.Second)
	assert.Equal(t, execreg.StatusCompleted, status)
	snap := rec.Snapshot()
	require.NotNil(t, snap.FinalResult)
	assert.Equal(t, "x", *snap.FinalResult)
}

func TestRunExceedsIterationCeiling(t *testing.T) {
	reg := execreg.New(execreg.Options{})
	p := &plan.Plan{
		MaxIterations: 100,
		Steps: []plan.Step{
			{ID: "G1", Type: plan.KindGoto, GotoID: "G1"},
		},
	}
	rec := reg.Create(p, "infinite loop", env.New())
	ip := New(reg, newTestRegistry(t), &fakeLLM{}, 3)

	ip.Run(rec)

	status := drain(t, rec, time.Second)
	assert.Equal(t, execreg.StatusFailed, status)
	assert.Contains(t, rec.Snapshot().Error, "exceeded")
}

func TestRunStopsOnCancellation(t *testing.T) {
	reg := execreg.New(execreg.Options{})
	p := &plan.Plan{
		MaxIterations: 1000000,
		Steps: []plan.Step{
			{ID: "G1", Type: plan.KindGoto, GotoID: "G1"},
		},
	}
	rec := reg.Create(p, "infinite loop", env.New())
	rec.Stop()
	ip := New(reg, newTestRegistry(t), &fakeLLM{}, 0)

	ip.Run(rec)

	status := drain(t, rec, time.Second)
	assert.Equal(t, execreg.StatusStopped, status)
}

func TestRunPublishesStepEventsInOrder(t *testing.T) {
	reg := execreg.New(execreg.Options{})
	p := &plan.Plan{
		MaxIterations: 5,
		Steps: []plan.Step{
			{ID: "T1", Type: plan.KindTool, ToolName: "get_current_time", OutputName: "now"},
			{ID: "END", Type: plan.KindEnd},
		},
	}
	rec := reg.Create(p, "what time is it", env.New())
	ip := New(reg, newTestRegistry(t), &fakeLLM{}, 0)

	ip.Run(rec)
	drain(t, rec, time.Second)

	snap := rec.Snapshot()
	var types []stream.EventType
	for _, ev := range snap.EventLog {
		types = append(types, ev.Type())
	}
	assert.Equal(t, []stream.EventType{
		stream.EventExecutionStarted,
		stream.EventStepStarted,
		stream.EventStepCompleted,
		stream.EventStepStarted,
		stream.EventStepCompleted,
		stream.EventExecutionCompleted,
	}, types)
}
