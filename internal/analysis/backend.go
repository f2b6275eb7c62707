package analysis

import (
	"context"

	"github.com/sells-group/credit-predictor/pkg/anthropic"
	"github.com/sells-group/credit-predictor/pkg/chatmodel"
)

// Completion is one prompt sent to a generative backend.
type Completion struct {
	System    string
	Prompt    string
	MaxTokens int64
}

// CompletionResult is the raw backend reply.
type CompletionResult struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Backend is a generative-AI completion service. Implementations make a
// single attempt per call.
type Backend interface {
	Complete(ctx context.Context, c Completion) (*CompletionResult, error)
}

// AnthropicBackend completes prompts with the Anthropic Messages API.
type AnthropicBackend struct {
	client anthropic.Client
	model  string
}

// NewAnthropicBackend returns a Backend that uses model on client.
func NewAnthropicBackend(client anthropic.Client, model string) *AnthropicBackend {
	return &AnthropicBackend{client: client, model: model}
}

// Complete implements Backend.
func (b *AnthropicBackend) Complete(ctx context.Context, c Completion) (*CompletionResult, error) {
	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     b.model,
		MaxTokens: c.MaxTokens,
		System:    c.System,
		Messages:  []anthropic.Message{{Role: "user", Content: c.Prompt}},
	})
	if err != nil {
		return nil, err
	}
	model := resp.Model
	if model == "" {
		model = b.model
	}
	return &CompletionResult{
		Text:         resp.Text(),
		Model:        model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// ChatModelBackend completes prompts with an eino chat model.
type ChatModelBackend struct {
	client *chatmodel.Client
}

// NewChatModelBackend wraps client.
func NewChatModelBackend(client *chatmodel.Client) *ChatModelBackend {
	return &ChatModelBackend{client: client}
}

// Complete implements Backend.
func (b *ChatModelBackend) Complete(ctx context.Context, c Completion) (*CompletionResult, error) {
	resp, err := b.client.Complete(ctx, chatmodel.Request{
		System:    c.System,
		Prompt:    c.Prompt,
		MaxTokens: c.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	return &CompletionResult{
		Text:         resp.Text,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}
