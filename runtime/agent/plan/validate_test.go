package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func timeQueryPlan() *Plan {
	return &Plan{
		MaxIterations: 10,
		Steps: []Step{
			{ID: "T1", Type: KindTool, ToolName: "get_current_time", OutputName: "current_time"},
			{ID: "END", Type: KindEnd},
		},
	}
}

func TestValidateAcceptsWellFormedPlan(t *testing.T) {
	errs := Validate(timeQueryPlan(), func(string) bool { return true })
	assert.Empty(t, errs)
}

func TestValidateDuplicateID(t *testing.T) {
	p := timeQueryPlan()
	p.Steps[1].ID = "T1"
	errs := Validate(p, nil)
	assert.Contains(t, kinds(errs), "duplicate_id")
}

func TestValidateDanglingGoto(t *testing.T) {
	p := &Plan{MaxIterations: 5, Steps: []Step{
		{ID: "A", Type: KindGoto, GotoID: "nowhere"},
	}}
	errs := Validate(p, nil)
	assert.Contains(t, kinds(errs), "dangling_goto")
}

func TestValidateUnknownStepType(t *testing.T) {
	p := &Plan{MaxIterations: 5, Steps: []Step{{ID: "A", Type: "frobnicate"}}}
	errs := Validate(p, nil)
	assert.Contains(t, kinds(errs), "unknown_step_type")
}

func TestValidateDuplicateOutputName(t *testing.T) {
	p := &Plan{MaxIterations: 5, Steps: []Step{
		{ID: "L1", Type: KindLLM, Prompt: "a", OutputName: "x"},
		{ID: "L2", Type: KindLLM, Prompt: "b", OutputName: "x"},
		{ID: "END", Type: KindEnd},
	}}
	errs := Validate(p, nil)
	assert.Contains(t, kinds(errs), "duplicate_output_name")
}

func TestValidateInvalidIterationCap(t *testing.T) {
	p := &Plan{MaxIterations: 0, Steps: []Step{{ID: "END", Type: KindEnd}}}
	errs := Validate(p, nil)
	assert.Contains(t, kinds(errs), "invalid_iteration_cap")
}

func TestValidateUnknownTool(t *testing.T) {
	p := timeQueryPlan()
	errs := Validate(p, func(string) bool { return false })
	assert.Contains(t, kinds(errs), "unknown_tool")
}

func TestBuildIndex(t *testing.T) {
	idx, err := BuildIndex(timeQueryPlan())
	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal(0, idx["T1"])
	assert.Equal(1, idx["END"])
}

func kinds(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Kind
	}
	return out
}
