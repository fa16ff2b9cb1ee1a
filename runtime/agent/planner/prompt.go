package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quillhq/planrunner/runtime/agent/tools"
)

const systemPromptTemplate = `You are a planning engine. Given a user query, produce a JSON execution plan for a small interpreter. The interpreter has no reasoning of its own: it only executes the steps you give it in order, so the plan must be fully explicit.

Respond with a single JSON object shaped exactly like this:

{
  "reasoning": "short note on your approach",
  "max_iterations": <integer, 1 to %d>,
  "steps": [
    {"id": "S1", "type": "tool", "tool_name": "<one of the available tools>", "arguments": {...}, "output_name": "result1", "description": "..."},
    {"id": "S2", "type": "llm", "prompt": "... use {result1} to refer to a prior output ...", "output_name": "answer", "description": "..."},
    {"id": "S3", "type": "if", "condition": "<comparison expression>", "goto_id": "S1"},
    {"id": "S4", "type": "goto", "goto_id": "S2"},
    {"id": "END", "type": "end"}
  ]
}

Step kinds:
- "tool": invoke a registered tool. Requires tool_name, output_name, and arguments matching the tool's input schema.
- "llm": ask a language model a question. Requires prompt and output_name. The prompt may reference {name} for any output produced by an earlier step.
- "if": evaluate condition; when true, continue at the step named by goto_id, otherwise fall through to the next step. condition is a small boolean expression over comparisons (==, !=, <, <=, >, >=), &&, ||, !, and {name} references.
- "goto": unconditionally continue at the step named by goto_id.
- "end": terminates the plan. The most recently bound output becomes the plan's result.

Every plan must end with exactly one reachable "end" step. Every output_name must be unique. Output step ids in the order you want them executed; ids are referenced by goto_id and must match exactly.

Available tools:
%s

Respond with the JSON object and nothing else: no prose, no markdown code fences.`

// BuildSystemPrompt renders the planner's system prompt from the tool
// catalog and the configured iteration ceiling.
func BuildSystemPrompt(catalog []tools.Spec, maxIterations int) string {
	return fmt.Sprintf(systemPromptTemplate, maxIterations, renderCatalog(catalog))
}

func renderCatalog(catalog []tools.Spec) string {
	if len(catalog) == 0 {
		return "(none registered)"
	}
	var b strings.Builder
	for _, spec := range catalog {
		fmt.Fprintf(&b, "- %s: %s\n  input_schema: %s\n", spec.Name, spec.Description, compactSchema(spec.InputSchema))
	}
	return b.String()
}

func compactSchema(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	compact, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(compact)
}

// BuildRepairPrompt renders the one-round repair prompt: the original query,
// the malformed response, and the validation failures the planner must fix.
func BuildRepairPrompt(query, priorResponse string, issues []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The user's query was: %s\n\n", query)
	fmt.Fprintf(&b, "Your previous response was:\n%s\n\n", priorResponse)
	b.WriteString("That response is invalid for the following reasons:\n")
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	b.WriteString("\nRespond again with a single corrected JSON plan object, addressing every issue above. No prose, no markdown code fences.")
	return b.String()
}
