// Package chatmodel adapts an eino chat model (any OpenAI-compatible
// endpoint) to single-shot completions.
package chatmodel

import (
	"context"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-predictor/internal/resilience"
)

// Config holds the endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Request is one system+user exchange.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int64
}

// Response is the assistant's reply with token usage when reported.
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Client issues completions through an eino BaseChatModel.
type Client struct {
	cm    model.BaseChatModel
	model string
}

// New builds a Client over eino's OpenAI chat model.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, eris.Wrap(err, "chatmodel: init")
	}
	return &Client{cm: cm, model: cfg.Model}, nil
}

// NewWithModel wraps an existing chat model.
func NewWithModel(cm model.BaseChatModel, name string) *Client {
	return &Client{cm: cm, model: name}
}

// Complete sends one request. There is no retry.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	msgs := make([]*schema.Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, &schema.Message{Role: schema.System, Content: req.System})
	}
	msgs = append(msgs, &schema.Message{Role: schema.User, Content: req.Prompt})

	var opts []model.Option
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(int(req.MaxTokens)))
	}

	msg, err := c.cm.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, eris.Wrap(classify(err), "chatmodel: generate")
	}
	if msg == nil {
		return nil, eris.New("chatmodel: generate: nil message")
	}

	resp := &Response{Text: msg.Content, Model: c.model}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		resp.InputTokens = int64(msg.ResponseMeta.Usage.PromptTokens)
		resp.OutputTokens = int64(msg.ResponseMeta.Usage.CompletionTokens)
	}
	return resp, nil
}

func classify(err error) error {
	return resilience.FromStatus(err, resilience.StatusFromMessage(err.Error()))
}
