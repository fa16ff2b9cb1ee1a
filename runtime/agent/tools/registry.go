// Package tools implements the tool registry (C1): a mapping from tool name
// to handler plus a JSON-Schema input contract, with schema-validated
// dispatch. Registered handlers must not be allowed to crash the
// interpreter, so Dispatch recovers from handler panics and reports them the
// same way it reports ordinary handler errors.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/quillhq/planrunner/runtime/agent/toolerrors"
)

type (
	// Spec describes one tool's metadata and input contract for the planner
	// prompt and the §6.5 catalog query.
	Spec struct {
		Name        Ident
		Description string
		// InputSchema is a JSON-Schema subset: object type, named properties
		// with types string|integer|number|boolean|array|object, a required
		// list, and enum.
		InputSchema json.RawMessage
	}

	// Handler executes a tool call. args is the raw JSON arguments object
	// (already schema-validated by Dispatch). Handlers return a string
	// (commonly JSON-encoded); the registry does not interpret it.
	Handler func(ctx context.Context, args json.RawMessage) (string, error)

	entry struct {
		spec     Spec
		schema   *jsonschema.Schema
		handler  Handler
	}

	// Registry holds registered tools and dispatches validated calls to
	// their handlers. The zero value is not usable; construct with New.
	Registry struct {
		mu      sync.RWMutex
		entries map[Ident]*entry
		order   []Ident
	}
)

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[Ident]*entry)}
}

// Register compiles spec.InputSchema and adds handler under spec.Name.
// Registering the same name twice replaces the previous registration but
// keeps its catalog position, matching how the teacher's codegen re-declares
// tools idempotently across regeneration.
func (r *Registry) Register(spec Spec, handler Handler) error {
	if spec.Name == "" {
		return toolerrors.NewKind(toolerrors.KindInvalidArguments, "tools: name is required")
	}
	if handler == nil {
		return toolerrors.NewKind(toolerrors.KindInvalidArguments, fmt.Sprintf("tools: handler is required for %q", spec.Name))
	}
	schema, err := compileSchema(spec.Name, spec.InputSchema)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[spec.Name]; !exists {
		r.order = append(r.order, spec.Name)
	}
	r.entries[spec.Name] = &entry{spec: spec, schema: schema, handler: handler}
	return nil
}

// Catalog returns an ordered {name, description, input_schema} list for
// every registered tool, in registration order (§6.5).
func (r *Registry) Catalog() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].spec)
	}
	return out
}

// Dispatch validates args against the registered tool's input schema and
// invokes its handler. Errors are *toolerrors.ToolError with Kind one of
// unknown_tool, invalid_arguments, or tool_runtime_error.
func (r *Registry) Dispatch(ctx context.Context, name Ident, args json.RawMessage) (result string, err error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return "", toolerrors.NewKind(toolerrors.KindUnknownTool, fmt.Sprintf("tools: unknown tool %q", name))
	}

	if e.schema != nil {
		var v any
		if len(args) == 0 {
			v = map[string]any{}
		} else if jerr := json.Unmarshal(args, &v); jerr != nil {
			return "", toolerrors.WrapKind(toolerrors.KindInvalidArguments, fmt.Sprintf("tools: %s: arguments are not valid JSON", name), jerr)
		}
		if verr := e.schema.Validate(v); verr != nil {
			return "", toolerrors.WrapKind(toolerrors.KindInvalidArguments, fmt.Sprintf("tools: %s: arguments do not satisfy input schema: %s", name, verr), verr)
		}
	}

	defer func() {
		if p := recover(); p != nil {
			err = toolerrors.NewKind(toolerrors.KindToolRuntimeError, fmt.Sprintf("tools: %s: handler panicked: %v", name, p))
		}
	}()
	result, err = e.handler(ctx, args)
	if err != nil {
		return "", toolerrors.WrapKind(toolerrors.KindToolRuntimeError, err.Error(), err)
	}
	return result, nil
}

func compileSchema(name Ident, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, toolerrors.WrapKind(toolerrors.KindInvalidArguments, fmt.Sprintf("tools: %s: input schema is not valid JSON", name), err)
	}
	resource := fmt.Sprintf("tool:%s.schema.json", name)
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resource, doc); err != nil {
		return nil, toolerrors.WrapKind(toolerrors.KindInvalidArguments, fmt.Sprintf("tools: %s: invalid input schema: %s", name, err), err)
	}
	schema, err := c.Compile(resource)
	if err != nil {
		return nil, toolerrors.WrapKind(toolerrors.KindInvalidArguments, fmt.Sprintf("tools: %s: cannot compile input schema: %s", name, err), err)
	}
	return schema, nil
}
