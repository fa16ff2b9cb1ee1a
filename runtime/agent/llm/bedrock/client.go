// Package bedrock provides an llm.Client backed by the AWS Bedrock Converse
// API, mirroring the request/response shape used for single-turn text
// completions without the tool-calling or streaming surface Converse also
// exposes.
package bedrock

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/quillhq/planrunner/runtime/agent/llm"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client this
// package uses, matching *bedrockruntime.Client so callers can pass either
// the real client or a test double.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements llm.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	maxTokens    int
	temperature  float32
}

// Options configures default request parameters.
type Options struct {
	Runtime      RuntimeClient
	DefaultModel string
	MaxTokens    int
	Temperature  float32
}

// New builds a Client from a Bedrock runtime client and defaults.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model is required")
	}
	return &Client{
		runtime:      opts.Runtime,
		defaultModel: opts.DefaultModel,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
	}, nil
}

// Complete issues a single Converse request and returns the concatenated
// text content blocks of the assistant's reply.
func (c *Client) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if cancelled := llm.ClassifyContextError(ctx.Err()); cancelled != nil {
		return "", cancelled
	}

	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: &model,
		Messages: []brtypes.Message{
			{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: prompt}},
			},
		},
		InferenceConfig: c.inferenceConfig(opts),
	}
	if opts.SystemPrompt != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: opts.SystemPrompt}}
	}

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		if cancelled := llm.ClassifyContextError(err); cancelled != nil {
			return "", cancelled
		}
		if isThrottled(err) {
			return "", llm.WrapRateLimited(err)
		}
		return "", llm.WrapNetwork(err)
	}
	return extractText(out)
}

func (c *Client) inferenceConfig(opts llm.Options) *brtypes.InferenceConfiguration {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	temp := opts.Temperature
	if temp == 0 {
		temp = float64(c.temperature)
	}
	var cfg brtypes.InferenceConfiguration
	if maxTokens > 0 {
		mt := int32(maxTokens)
		cfg.MaxTokens = &mt
	}
	if temp > 0 {
		t := float32(temp)
		cfg.Temperature = &t
	}
	return &cfg
}

func isThrottled(err error) bool {
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode() == 429
	}
	return strings.Contains(err.Error(), "ThrottlingException")
}

func extractText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil || out.Output == nil {
		return "", llm.InvalidResponse("bedrock: empty converse output")
	}
	msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", llm.InvalidResponse("bedrock: converse output was not a message")
	}
	var text string
	for _, block := range msgOutput.Value.Content {
		if tb, ok := block.(*brtypes.ContentBlockMemberText); ok {
			text += tb.Value
		}
	}
	if text == "" {
		return "", llm.InvalidResponse("bedrock: response contained no text block")
	}
	return text, nil
}
