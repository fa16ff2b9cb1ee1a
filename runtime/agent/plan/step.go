// Package plan defines the typed plan/step schema (C4): a tagged-variant Step
// type with exhaustive dispatch, a Plan envelope, and a validator that
// enumerates every structural error in one pass rather than stopping at the
// first so a planner repair prompt can address all of them at once.
package plan

import (
	"encoding/json"
	"fmt"

	"github.com/quillhq/planrunner/runtime/agent/toolerrors"
)

// Kind identifies a step's variant. The set is closed: the interpreter must
// reject any value outside it rather than silently no-op.
type Kind string

const (
	KindLLM  Kind = "llm"
	KindTool Kind = "tool"
	KindIf   Kind = "if"
	KindGoto Kind = "goto"
	KindEnd  Kind = "end"
)

func (k Kind) valid() bool {
	switch k {
	case KindLLM, KindTool, KindIf, KindGoto, KindEnd:
		return true
	default:
		return false
	}
}

// Step is a single plan instruction. Only the fields relevant to Type are
// read; Validate checks that each step carries the fields its kind requires,
// but does not reject fields that belong to a different kind — the
// interpreter's dispatch in package interp simply ignores them.
type Step struct {
	ID          string         `json:"id"`
	Type        Kind           `json:"type"`
	Description string         `json:"description,omitempty"`
	Prompt      string         `json:"prompt,omitempty"`       // llm
	ToolName    string         `json:"tool_name,omitempty"`    // tool
	Arguments   map[string]any `json:"arguments,omitempty"`    // tool
	InputRefs   []string       `json:"input_refs,omitempty"`   // llm, tool
	OutputName  string         `json:"output_name,omitempty"`  // llm, tool
	Condition   string         `json:"condition,omitempty"`    // if
	GotoID      string         `json:"goto_id,omitempty"`      // if, goto
}

// Plan is an ordered sequence of steps plus the planner's declared iteration
// cap and free-text reasoning.
type Plan struct {
	Steps         []Step `json:"steps"`
	MaxIterations int    `json:"max_iterations"`
	Reasoning     string `json:"reasoning,omitempty"`
}

// FromMap decodes a generic JSON object (as produced by package jsonx) into a
// Plan. It does not validate §3's structural invariants; call Validate
// afterwards.
func FromMap(obj map[string]any) (*Plan, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, toolerrors.WrapKind(toolerrors.KindSchemaViolation, "plan: cannot re-marshal extracted object", err)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, toolerrors.WrapKind(toolerrors.KindSchemaViolation, fmt.Sprintf("plan: cannot decode plan: %s", err), err)
	}
	return &p, nil
}
