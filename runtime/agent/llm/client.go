// Package llm defines the provider-agnostic abstraction over chat completion
// APIs (Anthropic, OpenAI, Bedrock) used by the planner. Concrete clients
// translate Options/Complete into provider-specific request shapes; callers
// never see a provider SDK type.
package llm

import (
	"context"
	"errors"

	"github.com/quillhq/planrunner/runtime/agent/toolerrors"
)

// Client sends a single-turn completion request to a model provider. A
// planner call is always a single request/response pair: this package makes
// no allowance for multi-turn tool calling or streaming completions,
// conversation state and tool dispatch are both the interpreter's job, not
// the model client's.
type Client interface {
	// Complete sends prompt (with an optional system prompt) to the model and
	// returns its text response. Implementations translate provider errors
	// into a *toolerrors.ToolError drawn from the llm_* kinds so callers can
	// distinguish a retryable network hiccup from a cancelled request without
	// inspecting provider-specific error types.
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// Options configures a single completion request. A zero Options uses the
// client's configured defaults for every field.
type Options struct {
	// Model selects the provider's model identifier. Empty uses the client's
	// default model.
	Model string

	// SystemPrompt is sent as the system/instructions turn when non-empty.
	SystemPrompt string

	// MaxTokens caps the generated completion length. Zero uses the client's
	// default.
	MaxTokens int

	// Temperature controls sampling randomness. Zero uses the client's
	// default temperature.
	Temperature float64
}

// WrapNetwork wraps a transport-level provider error as a KindLLMNetwork
// *toolerrors.ToolError. Provider clients call this for any error their SDK
// returns that is not a recognized rate-limit or cancellation signal.
func WrapNetwork(cause error) error {
	return toolerrors.WrapKind(toolerrors.KindLLMNetwork, "llm request failed", cause)
}

// WrapRateLimited wraps a provider rate-limit error as a KindLLMRateLimited
// *toolerrors.ToolError. Callers distinguish it from other failures with
// err.(*toolerrors.ToolError).Is(toolerrors.KindLLMRateLimited), not a
// sentinel value, since the cause is always a provider-specific SDK error.
func WrapRateLimited(cause error) error {
	return toolerrors.WrapKind(toolerrors.KindLLMRateLimited, "llm rate limit exceeded", cause)
}

// InvalidResponse builds a KindLLMInvalidResponse *toolerrors.ToolError for a
// provider response that cannot be translated (no text block, empty body).
func InvalidResponse(message string) error {
	return toolerrors.NewKind(toolerrors.KindLLMInvalidResponse, message)
}

func cancelledError(cause error) error {
	return toolerrors.WrapKind(toolerrors.KindLLMCancelled, "llm request cancelled", cause)
}

// ClassifyContextError maps a context package error to the matching
// KindLLMCancelled *toolerrors.ToolError, or returns nil if err is not a
// context error. Provider clients call this first in their error-mapping
// chain since context cancellation looks like a network error to most SDKs.
func ClassifyContextError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return cancelledError(err)
	}
	return nil
}
