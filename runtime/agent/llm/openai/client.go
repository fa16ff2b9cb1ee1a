// Package openai provides an llm.Client backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/quillhq/planrunner/runtime/agent/llm"
)

// CompletionsClient mirrors the subset of the OpenAI SDK used by this
// package, matching client.Chat.Completions so callers can pass either the
// real client or a test double.
type CompletionsClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client implements llm.Client on top of OpenAI Chat Completions.
type Client struct {
	completions  CompletionsClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// Options configures default request parameters.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// New builds a Client from an OpenAI completions client and defaults.
func New(completions CompletionsClient, opts Options) (*Client, error) {
	if completions == nil {
		return nil, errors.New("openai: completions client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{
		completions:  completions,
		defaultModel: opts.DefaultModel,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the SDK's default HTTP transport,
// authenticated with apiKey.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	oc := openai.NewClient(option.WithAPIKey(apiKey))
	return New(oc.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Complete issues a single chat completion request and returns the first
// choice's message content.
func (c *Client) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if cancelled := llm.ClassifyContextError(ctx.Err()); cancelled != nil {
		return "", cancelled
	}

	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(opts.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}
	temp := opts.Temperature
	if temp == 0 {
		temp = c.temperature
	}
	if temp > 0 {
		params.Temperature = openai.Float(temp)
	}

	resp, err := c.completions.New(ctx, params)
	if err != nil {
		if cancelled := llm.ClassifyContextError(err); cancelled != nil {
			return "", cancelled
		}
		if isRateLimited(err) {
			return "", llm.WrapRateLimited(err)
		}
		return "", llm.WrapNetwork(err)
	}
	return extractText(resp)
}

func isRateLimited(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

func extractText(resp *openai.ChatCompletion) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", llm.InvalidResponse("openai: response contained no choices")
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		return "", llm.InvalidResponse("openai: first choice had empty content")
	}
	return text, nil
}
