package boundary

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/planrunner/runtime/agent/execreg"
	"github.com/quillhq/planrunner/runtime/agent/interp"
	"github.com/quillhq/planrunner/runtime/agent/llm"
	"github.com/quillhq/planrunner/runtime/agent/plan"
	"github.com/quillhq/planrunner/runtime/agent/planner"
	"github.com/quillhq/planrunner/runtime/agent/stream"
	"github.com/quillhq/planrunner/runtime/agent/tools"
)

type fakeClient struct {
	response string
}

func (f *fakeClient) Complete(context.Context, string, llm.Options) (string, error) {
	return f.response, nil
}

const wellFormedPlan = `{
  "max_iterations": 5,
  "steps": [
    {"id": "T1", "type": "tool", "tool_name": "get_current_time", "arguments": {}, "output_name": "current_time"},
    {"id": "END", "type": "end"}
  ]
}`

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	toolRegistry := tools.New()
	require.NoError(t, toolRegistry.Register(tools.Spec{
		Name:        "get_current_time",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
	}, func(context.Context, json.RawMessage) (string, error) {
		return "2026-07-30T00:00:00Z", nil
	}))

	client := &fakeClient{response: wellFormedPlan}
	pl := planner.New(client, toolRegistry, 10)
	reg := execreg.New(execreg.Options{})
	ip := interp.New(reg, toolRegistry, client, 10)

	return New(pl, ip, reg, toolRegistry)
}

func TestSubmitThenStartThenSubscribeCompletes(t *testing.T) {
	a := newTestAdapter(t)

	pl, err := a.Submit(context.Background(), "what time is it")
	require.NoError(t, err)

	id, err := a.Start(pl, "what time is it")
	require.NoError(t, err)

	replay, live, detach, err := a.Subscribe(id)
	require.NoError(t, err)
	defer detach()

	var types []stream.EventType
	for _, ev := range replay {
		types = append(types, ev.Type())
	}
	deadline := time.After(time.Second)
loop:
	for {
		select {
		case ev, ok := <-live:
			if !ok {
				break loop
			}
			types = append(types, ev.Type())
			if ev.Type().Terminal() {
				break loop
			}
		case <-deadline:
			t.Fatal("execution did not terminate in time")
		}
	}

	assert.Contains(t, types, stream.EventExecutionCompleted)

	snap, err := a.Status(id)
	require.NoError(t, err)
	assert.Equal(t, execreg.StatusCompleted, snap.Status)
}

func TestStartRejectsInvalidPlan(t *testing.T) {
	a := newTestAdapter(t)

	invalid := &plan.Plan{
		MaxIterations: 5,
		Steps: []plan.Step{
			{ID: "T1", Type: plan.KindTool, ToolName: "nonexistent_tool", OutputName: "x"},
			{ID: "END", Type: plan.KindEnd},
		},
	}
	_, err := a.Start(invalid, "q")
	assert.Error(t, err)
}

func TestStopUnknownExecutionErrors(t *testing.T) {
	a := newTestAdapter(t)
	assert.Error(t, a.Stop("does-not-exist"))
}

func TestCatalogReturnsRegisteredTools(t *testing.T) {
	a := newTestAdapter(t)
	catalog := a.Catalog()
	require.Len(t, catalog, 1)
	assert.Equal(t, tools.Ident("get_current_time"), catalog[0].Name)
}
