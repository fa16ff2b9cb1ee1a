package planner

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/planrunner/runtime/agent/llm"
	"github.com/quillhq/planrunner/runtime/agent/tools"
)

type fakeClient struct {
	responses []string
	calls     int
	prompts   []string
}

func (f *fakeClient) Complete(_ context.Context, prompt string, _ llm.Options) (string, error) {
	f.prompts = append(f.prompts, prompt)
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func registryWithTimeTool(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.New()
	require.NoError(t, reg.Register(tools.Spec{
		Name:        "get_current_time",
		Description: "returns the current time",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
	}, func(context.Context, json.RawMessage) (string, error) {
		return "2026-07-29T00:00:00Z", nil
	}))
	return reg
}

const wellFormedPlan = `{
  "reasoning": "answer a time query directly",
  "max_iterations": 5,
  "steps": [
    {"id": "T1", "type": "tool", "tool_name": "get_current_time", "arguments": {}, "output_name": "current_time"},
    {"id": "END", "type": "end"}
  ]
}`

func TestPlanAcceptsWellFormedFirstResponse(t *testing.T) {
	client := &fakeClient{responses: []string{wellFormedPlan}}
	p := New(client, registryWithTimeTool(t), 25)

	pl, err := p.Plan(context.Background(), "what time is it")
	require.NoError(t, err)
	assert.Len(t, pl.Steps, 2)
	assert.Equal(t, 1, client.calls)
}

func TestPlanRepairsOnceAfterMalformedJSON(t *testing.T) {
	client := &fakeClient{responses: []string{"not json at all", wellFormedPlan}}
	p := New(client, registryWithTimeTool(t), 25)

	pl, err := p.Plan(context.Background(), "what time is it")
	require.NoError(t, err)
	assert.Len(t, pl.Steps, 2)
	assert.Equal(t, 2, client.calls)
}

func TestPlanRepairsOnceAfterUnknownTool(t *testing.T) {
	badPlan := `{"max_iterations": 5, "steps": [
		{"id": "T1", "type": "tool", "tool_name": "nonexistent_tool", "output_name": "x"},
		{"id": "END", "type": "end"}
	]}`
	client := &fakeClient{responses: []string{badPlan, wellFormedPlan}}
	p := New(client, registryWithTimeTool(t), 25)

	pl, err := p.Plan(context.Background(), "what time is it")
	require.NoError(t, err)
	assert.Len(t, pl.Steps, 2)
	assert.Equal(t, 2, client.calls)
	assert.Contains(t, client.prompts[1], "unknown_tool")
}

func TestPlanFailsUnrecoverableAfterSecondMalformedResponse(t *testing.T) {
	client := &fakeClient{responses: []string{"garbage one", "garbage two"}}
	p := New(client, registryWithTimeTool(t), 25)

	_, err := p.Plan(context.Background(), "what time is it")
	require.Error(t, err)
	assert.Equal(t, 2, client.calls)
}
