// Package planner implements the planning component (C5): it turns a
// natural-language query into a validated Plan by prompting an LLM, then
// parsing, schema-checking, and (if necessary) repairing its JSON response
// exactly once before giving up.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/quillhq/planrunner/runtime/agent/jsonx"
	"github.com/quillhq/planrunner/runtime/agent/llm"
	"github.com/quillhq/planrunner/runtime/agent/plan"
	"github.com/quillhq/planrunner/runtime/agent/tools"
	"github.com/quillhq/planrunner/runtime/agent/toolerrors"
)

// Planner turns a query into a validated Plan. A Planner is safe for
// concurrent use: it holds no per-call state beyond its configuration.
type Planner struct {
	client        llm.Client
	systemPrompt  string
	knownTool     plan.ToolNamesFn
	maxIterations int
	model         string
}

// New constructs a Planner. catalog is rendered into the system prompt so
// the model only ever proposes tools the registry can actually dispatch;
// maxIterations is the global hard ceiling (§9 Open Question (b)) advertised
// to the model as the largest max_iterations value it may propose.
func New(client llm.Client, registry *tools.Registry, maxIterations int) *Planner {
	catalog := registry.Catalog()
	names := make(map[string]bool, len(catalog))
	for _, spec := range catalog {
		names[string(spec.Name)] = true
	}
	return &Planner{
		client:        client,
		systemPrompt:  BuildSystemPrompt(catalog, maxIterations),
		knownTool:     func(name string) bool { return names[name] },
		maxIterations: maxIterations,
	}
}

// WithModel overrides the model identifier passed to the underlying LLM
// client for every Plan call; the zero value uses the client's own default.
func (p *Planner) WithModel(model string) *Planner {
	p.model = model
	return p
}

// Plan produces a validated Plan for query. It makes at most two LLM calls:
// the initial attempt, and — only if extraction or validation fails — one
// repair round that shows the model its own broken output and the specific
// problems with it. A second failure is unrecoverable.
func (p *Planner) Plan(ctx context.Context, query string) (*plan.Plan, error) {
	opts := llm.Options{Model: p.model, SystemPrompt: p.systemPrompt, Temperature: 0}

	raw, err := p.client.Complete(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	pl, issues := p.parseAndValidate(raw)
	if pl != nil {
		return pl, nil
	}

	repairPrompt := BuildRepairPrompt(query, raw, issues)
	raw2, err := p.client.Complete(ctx, repairPrompt, opts)
	if err != nil {
		return nil, err
	}

	pl, issues = p.parseAndValidate(raw2)
	if pl != nil {
		return pl, nil
	}

	return nil, toolerrors.NewKind(
		toolerrors.KindPlannerUnrecoverable,
		fmt.Sprintf("planner could not produce a valid plan after one repair round: %s", strings.Join(issues, "; ")),
	)
}

// parseAndValidate extracts a JSON object from raw, converts it to a Plan,
// and runs the validator. On success it returns the Plan and a nil issue
// list; on failure it returns a nil Plan and a human-readable issue list
// suitable for both the repair prompt and the final unrecoverable error.
func (p *Planner) parseAndValidate(raw string) (*plan.Plan, []string) {
	obj, err := jsonx.Extract(raw)
	if err != nil {
		return nil, []string{err.Error()}
	}

	pl, err := plan.FromMap(obj)
	if err != nil {
		return nil, []string{err.Error()}
	}

	errs := plan.Validate(pl, p.knownTool)
	if plan.Accepted(errs) {
		return pl, nil
	}

	issues := make([]string, len(errs))
	for i, e := range errs {
		issues[i] = e.Error()
	}
	return nil, issues
}
