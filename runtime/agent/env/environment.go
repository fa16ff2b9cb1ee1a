// Package env implements the variable environment (C6): a name→string store
// with write-once bindings and template interpolation. An Environment is
// owned by a single interpreter task and is never shared across goroutines;
// cross-task access to its effects happens only through published events,
// never through the Environment value itself.
package env

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/quillhq/planrunner/runtime/agent/toolerrors"
)

// identPattern is the identifier grammar shared by variable names and
// template references: [A-Za-z_][A-Za-z0-9_]*.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether s is a syntactically valid variable identifier.
func ValidIdent(s string) bool {
	return identPattern.MatchString(s)
}

// Environment is an ordered name→value store. The zero value is ready to use.
type Environment struct {
	order  []string
	values map[string]string
}

// New constructs an empty Environment.
func New() *Environment {
	return &Environment{values: make(map[string]string)}
}

// Seed sets name to value without enforcing write-once. Used by the
// execution starter to install system-provided variables such as
// user_query before the interpreter begins.
func (e *Environment) Seed(name, value string) {
	e.ensure()
	if _, ok := e.values[name]; !ok {
		e.order = append(e.order, name)
	}
	e.values[name] = value
}

// Bind sets name to value, failing with KindDuplicateBinding if name is
// already present. This enforces the write-once invariant for step outputs.
func (e *Environment) Bind(name, value string) error {
	e.ensure()
	if _, ok := e.values[name]; ok {
		return toolerrors.NewKind(toolerrors.KindDuplicateBinding, fmt.Sprintf("env: %q is already bound", name))
	}
	e.order = append(e.order, name)
	e.values[name] = value
	return nil
}

// Lookup returns the value bound to name and whether it was found.
func (e *Environment) Lookup(name string) (string, bool) {
	if e.values == nil {
		return "", false
	}
	v, ok := e.values[name]
	return v, ok
}

// Names returns bound variable names in binding order. Used for snapshots
// and diagnostics; callers must not mutate the returned slice.
func (e *Environment) Names() []string {
	return e.order
}

func (e *Environment) ensure() {
	if e.values == nil {
		e.values = make(map[string]string)
	}
}

// braceRef matches a single `{identifier}` occurrence that is not part of a
// doubled-brace literal. Doubled braces are handled by a pre/post pass below
// rather than the regex, since Go's RE2 cannot express "not preceded by {".
var braceRef = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

const (
	openPlaceholder  = "\x00PLANRUNNER_OPEN\x00"
	closePlaceholder = "\x00PLANRUNNER_CLOSE\x00"
)

// Render resolves `{name}` occurrences in template against the environment.
// Doubled braces `{{` / `}}` are literal single braces. A reference whose
// value itself contains brace characters is substituted verbatim: Render
// never recursively expands a substituted value. Unmatched `{name}`
// references yield the empty string and are reported in refsMissing.
func (e *Environment) Render(template string) (text string, refsUsed []string, refsMissing []string) {
	// Protect doubled braces from the reference regex by swapping them for
	// placeholders that contain no brace characters, then restoring a single
	// literal brace at the end.
	escaped := strings.ReplaceAll(template, "{{", openPlaceholder)
	escaped = strings.ReplaceAll(escaped, "}}", closePlaceholder)

	seenUsed := make(map[string]bool)
	seenMissing := make(map[string]bool)

	out := braceRef.ReplaceAllStringFunc(escaped, func(match string) string {
		name := braceRef.FindStringSubmatch(match)[1]
		if v, ok := e.Lookup(name); ok {
			if !seenUsed[name] {
				seenUsed[name] = true
				refsUsed = append(refsUsed, name)
			}
			return v
		}
		if !seenMissing[name] {
			seenMissing[name] = true
			refsMissing = append(refsMissing, name)
		}
		return ""
	})

	out = strings.ReplaceAll(out, openPlaceholder, "{")
	out = strings.ReplaceAll(out, closePlaceholder, "}")
	return out, refsUsed, refsMissing
}
