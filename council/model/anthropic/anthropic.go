// Package anthropic adapts the Anthropic Messages API to the council model
// boundary.
package anthropic

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/council-go/council/model"
)

// defaultMaxTokens bounds the response length; the Messages API requires an
// explicit cap.
const defaultMaxTokens = 4096

// Client implements model.Client over the Anthropic Messages API.
//
// Safe for concurrent use after creation.
//
// Example usage:
//
//	c := anthropic.New(os.Getenv("ANTHROPIC_API_KEY"))
//	resp, err := c.Generate(ctx, model.Request{
//	    Model:  "claude-sonnet-4-20250514",
//	    Prompt: "Summarize the CAP theorem.",
//	})
type Client struct {
	client    anthropic.Client
	maxTokens int64
}

// Option configures the adapter.
type Option func(*Client)

// WithMaxTokens overrides the response token cap.
func WithMaxTokens(n int64) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// New creates an adapter authenticated with the given API key.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate implements model.Client.
func (c *Client) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	if err := ctx.Err(); err != nil {
		return model.Response{}, model.Classify(err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return model.Response{}, mapError(err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := sb.String()
	if content == "" {
		return model.Response{}, model.Errorf(model.KindMalformed, "no text content in message for model %s", req.Model)
	}

	return model.Response{
		Content: content,
		Usage: model.Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
		Latency: time.Since(start),
	}, nil
}

// mapError classifies SDK failures by message pattern, provider-specific
// cases first, then the general fallback.
func mapError(err error) *model.Error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not_found_error") || (strings.Contains(msg, "model") && strings.Contains(msg, "not found")):
		return model.Wrap(model.KindModelNotFound, err, "model not available")
	case strings.Contains(msg, "overloaded_error") || strings.Contains(msg, "529"):
		return model.Wrap(model.KindConnection, err, "service overloaded")
	default:
		return model.Classify(err)
	}
}
