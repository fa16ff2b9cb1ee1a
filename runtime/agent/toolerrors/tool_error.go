// Package toolerrors provides structured error types for tool, planner, and
// interpreter failures. ToolError preserves error chains and supports
// errors.Is/As while carrying a stable Kind string drawn from the engine's
// error taxonomy, so boundary adapters can map failures to a client-facing
// {error, kind} pair without a second lookup table.
package toolerrors

import (
	"errors"
	"fmt"
)

// Error kinds. These are the stable taxonomy surfaced to external callers;
// do not rename without updating every boundary adapter mapping.
const (
	KindPlannerUnrecoverable = "planner_unrecoverable"
	KindMalformedJSON        = "malformed_json"
	KindSchemaViolation      = "schema_violation"
	KindUnknownTool          = "unknown_tool"
	KindInvalidArguments     = "invalid_arguments"
	KindToolRuntimeError     = "tool_runtime_error"
	KindLLMNetwork           = "llm_network"
	KindLLMRateLimited       = "llm_rate_limited"
	KindLLMInvalidResponse   = "llm_invalid_response"
	KindLLMCancelled         = "llm_cancelled"
	KindDuplicateBinding     = "duplicate_binding"
	KindMissingRef           = "missing_ref"
	KindIterationCapExceeded = "iteration_cap_exceeded"
	KindDanglingGoto         = "dangling_goto"
	KindInvalidIterationCap  = "invalid_iteration_cap"
)

// ToolError represents a structured failure that preserves message, kind, and
// causal context while still implementing the standard error interface.
// Errors may be nested via Cause to retain diagnostics across repair rounds.
type ToolError struct {
	// Kind is one of the Kind* constants above. Empty when the error predates
	// kind tagging (e.g. wrapped third-party errors via FromError).
	Kind string
	// Message is the human-readable summary of the failure.
	Message string
	// Cause links to the underlying error, enabling error chains with errors.Is/As.
	Cause *ToolError
}

// New constructs a ToolError with the provided message and no kind.
func New(message string) *ToolError {
	if message == "" {
		message = "tool error"
	}
	return &ToolError{Message: message}
}

// NewKind constructs a ToolError tagged with kind.
func NewKind(kind, message string) *ToolError {
	e := New(message)
	e.Kind = kind
	return e
}

// NewWithCause constructs a ToolError that wraps an underlying error. The cause
// is converted into a ToolError chain so metadata survives serialization while
// still supporting errors.Is/As through Unwrap.
func NewWithCause(message string, cause error) *ToolError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &ToolError{
		Message: message,
		Cause:   FromError(cause),
	}
}

// WrapKind constructs a ToolError tagged with kind that wraps cause.
func WrapKind(kind, message string, cause error) *ToolError {
	e := NewWithCause(message, cause)
	e.Kind = kind
	return e
}

// FromError converts an arbitrary error into a ToolError chain.
func FromError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{
		Message: err.Error(),
		Cause:   FromError(errors.Unwrap(err)),
	}
}

// Errorf formats according to a format specifier and returns the string as a
// ToolError with no kind.
func Errorf(format string, args ...any) *ToolError {
	return New(fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap returns the underlying error to support errors.Is/As.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether e (or any cause in its chain) carries the given kind.
func (e *ToolError) Is(kind string) bool {
	for c := e; c != nil; c = c.Cause {
		if c.Kind == kind {
			return true
		}
	}
	return false
}
