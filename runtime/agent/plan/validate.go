package plan

import (
	"fmt"
	"regexp"

	"github.com/quillhq/planrunner/runtime/agent/toolerrors"
)

// identPattern mirrors env.ValidIdent; duplicated here (rather than
// depending on package env) to keep plan free of a dependency on the
// execution-time environment package.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError is one structural defect found by Validate. Kind is drawn
// from the §7 taxonomy (duplicate_id, dangling_goto, unknown_step_type,
// duplicate_output_name, missing_required_field, invalid_iteration_cap,
// unknown_tool).
type ValidationError struct {
	Kind    string
	StepID  string
	Message string
}

func (v ValidationError) Error() string {
	if v.StepID != "" {
		return fmt.Sprintf("%s (step %s): %s", v.Kind, v.StepID, v.Message)
	}
	return fmt.Sprintf("%s: %s", v.Kind, v.Message)
}

// ToolNamesFn resolves whether a tool name is registered, letting the
// validator reject a tool step naming a tool outside the catalog (§4.5).
// Validate accepts nil to skip this check (e.g. before a registry exists).
type ToolNamesFn func(name string) bool

// Validate walks p, collecting every structural violation of §3 rather than
// returning on the first. knownTools, when non-nil, additionally rejects a
// tool step whose tool_name is not registered.
func Validate(p *Plan, knownTools ToolNamesFn) []ValidationError {
	var errs []ValidationError

	if p.MaxIterations <= 0 {
		errs = append(errs, ValidationError{Kind: toolerrors.KindInvalidIterationCap,
			Message: fmt.Sprintf("max_iterations must be positive, got %d", p.MaxIterations)})
	}

	ids := make(map[string]bool, len(p.Steps))
	outputNames := make(map[string]bool)

	for _, s := range p.Steps {
		if s.ID == "" {
			errs = append(errs, ValidationError{Kind: "missing_required_field", Message: "step id is required"})
			continue
		}
		if ids[s.ID] {
			errs = append(errs, ValidationError{Kind: "duplicate_id", StepID: s.ID, Message: "duplicate step id"})
		}
		ids[s.ID] = true
	}

	for _, s := range p.Steps {
		switch {
		case !s.Type.valid():
			errs = append(errs, ValidationError{Kind: "unknown_step_type", StepID: s.ID, Message: fmt.Sprintf("unknown step type %q", s.Type)})
			continue
		case s.Type == KindLLM:
			if s.Prompt == "" {
				errs = append(errs, ValidationError{Kind: "missing_required_field", StepID: s.ID, Message: "llm step requires prompt"})
			}
			if s.OutputName == "" {
				errs = append(errs, ValidationError{Kind: "missing_required_field", StepID: s.ID, Message: "llm step requires output_name"})
			} else if !identPattern.MatchString(s.OutputName) {
				errs = append(errs, ValidationError{Kind: "missing_required_field", StepID: s.ID, Message: fmt.Sprintf("output_name %q is not a valid identifier", s.OutputName)})
			} else if outputNames[s.OutputName] {
				errs = append(errs, ValidationError{Kind: "duplicate_output_name", StepID: s.ID, Message: fmt.Sprintf("output_name %q reused across steps", s.OutputName)})
			}
			errs = append(errs, checkRefs(s)...)
		case s.Type == KindTool:
			if s.ToolName == "" {
				errs = append(errs, ValidationError{Kind: "missing_required_field", StepID: s.ID, Message: "tool step requires tool_name"})
			} else if knownTools != nil && !knownTools(s.ToolName) {
				errs = append(errs, ValidationError{Kind: toolerrors.KindUnknownTool, StepID: s.ID, Message: fmt.Sprintf("tool %q is not in the registered catalog", s.ToolName)})
			}
			if s.OutputName == "" {
				errs = append(errs, ValidationError{Kind: "missing_required_field", StepID: s.ID, Message: "tool step requires output_name"})
			} else if !identPattern.MatchString(s.OutputName) {
				errs = append(errs, ValidationError{Kind: "missing_required_field", StepID: s.ID, Message: fmt.Sprintf("output_name %q is not a valid identifier", s.OutputName)})
			} else if outputNames[s.OutputName] {
				errs = append(errs, ValidationError{Kind: "duplicate_output_name", StepID: s.ID, Message: fmt.Sprintf("output_name %q reused across steps", s.OutputName)})
			}
			errs = append(errs, checkRefs(s)...)
		case s.Type == KindIf:
			if s.Condition == "" {
				errs = append(errs, ValidationError{Kind: "missing_required_field", StepID: s.ID, Message: "if step requires condition"})
			}
			if s.GotoID == "" {
				errs = append(errs, ValidationError{Kind: "missing_required_field", StepID: s.ID, Message: "if step requires goto_id"})
			} else if !ids[s.GotoID] {
				errs = append(errs, ValidationError{Kind: toolerrors.KindDanglingGoto, StepID: s.ID, Message: fmt.Sprintf("goto_id %q does not resolve", s.GotoID)})
			}
		case s.Type == KindGoto:
			if s.GotoID == "" {
				errs = append(errs, ValidationError{Kind: "missing_required_field", StepID: s.ID, Message: "goto step requires goto_id"})
			} else if !ids[s.GotoID] {
				errs = append(errs, ValidationError{Kind: toolerrors.KindDanglingGoto, StepID: s.ID, Message: fmt.Sprintf("goto_id %q does not resolve", s.GotoID)})
			}
		case s.Type == KindEnd:
			// no extra fields
		}

		if s.OutputName != "" {
			outputNames[s.OutputName] = true
		}
	}

	return errs
}

// checkRefs validates that every input_refs identifier is syntactically
// valid. It does not hard-fail on a reference unresolved by static order
// (§3 invariant 4 is best-effort): the interpreter tolerates an unresolved
// reference at runtime with a missing_ref warning instead.
func checkRefs(s Step) []ValidationError {
	var errs []ValidationError
	for _, ref := range s.InputRefs {
		if !identPattern.MatchString(ref) {
			errs = append(errs, ValidationError{Kind: "missing_required_field", StepID: s.ID,
				Message: fmt.Sprintf("input_refs entry %q is not a valid identifier", ref)})
		}
	}
	return errs
}

// Accepted reports whether errs represents a plan Validate would accept.
func Accepted(errs []ValidationError) bool {
	return len(errs) == 0
}
