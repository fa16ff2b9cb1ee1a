// Package anthropic provides an llm.Client backed by the Anthropic Claude
// Messages API, translating single-turn prompts into sdk.MessageNewParams
// calls and returning the concatenated text blocks of the response.
package anthropic

import (
	"context"
	"errors"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/quillhq/planrunner/runtime/agent/llm"
)

// MessagesClient captures the subset of the Anthropic SDK client this
// package uses, so callers can pass either a real client or a test double.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Client implements llm.Client on top of Anthropic Claude Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// Options configures default request parameters used when a call's
// llm.Options leaves the corresponding field empty.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// New builds a Client from an Anthropic Messages client and defaults.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Client{
		msg:          msg,
		defaultModel: opts.DefaultModel,
		maxTokens:    maxTokens,
		temperature:  opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the SDK's default HTTP transport,
// authenticated with apiKey.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{DefaultModel: defaultModel})
}

// Complete issues a single Messages.New request and returns the concatenated
// text of the response's text blocks.
func (c *Client) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if cancelled := llm.ClassifyContextError(ctx.Err()); cancelled != nil {
		return "", cancelled
	}

	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	}
	if opts.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: opts.SystemPrompt}}
	}
	temp := opts.Temperature
	if temp == 0 {
		temp = c.temperature
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		if cancelled := llm.ClassifyContextError(err); cancelled != nil {
			return "", cancelled
		}
		if isRateLimited(err) {
			return "", llm.WrapRateLimited(err)
		}
		return "", llm.WrapNetwork(err)
	}
	return extractText(msg)
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

func extractText(msg *sdk.Message) (string, error) {
	if msg == nil {
		return "", llm.InvalidResponse("anthropic: nil response message")
	}
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			text += block.Text
		}
	}
	if text == "" {
		return "", llm.InvalidResponse("anthropic: response contained no text block")
	}
	return text, nil
}
