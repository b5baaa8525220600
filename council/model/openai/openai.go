// Package openai adapts OpenAI-compatible chat APIs to the council model
// boundary.
//
// The adapter works against the official OpenAI endpoint by default and
// against any OpenAI-compatible endpoint (Groq, Together, local inference
// gateways) via WithBaseURL, so one adapter covers every member served over
// that wire protocol.
package openai

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/council-go/council/model"
)

// Client implements model.Client over the OpenAI chat completions API.
//
// Safe for concurrent use; the underlying SDK client handles concurrent
// requests internally.
//
// Example usage:
//
//	c := openai.New(os.Getenv("OPENAI_API_KEY"))
//	resp, err := c.Generate(ctx, model.Request{
//	    Model:  "gpt-4o",
//	    Prompt: "What is the capital of France?",
//	})
//
// For an OpenAI-compatible endpoint:
//
//	c := openai.New(os.Getenv("GROQ_API_KEY"),
//	    openai.WithBaseURL("https://api.groq.com/openai/v1"))
type Client struct {
	client openai.Client
}

// Option configures the adapter.
type Option func(*options)

type options struct {
	baseURL    string
	httpClient []option.RequestOption
}

// WithBaseURL points the adapter at an OpenAI-compatible endpoint instead
// of the official one.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// New creates an adapter authenticated with the given API key.
func New(apiKey string, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	reqOpts = append(reqOpts, o.httpClient...)

	return &Client{client: openai.NewClient(reqOpts...)}
}

// Generate implements model.Client.
func (c *Client) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	if err := ctx.Err(); err != nil {
		return model.Response{}, model.Classify(err)
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: messages,
	})
	if err != nil {
		return model.Response{}, mapError(err)
	}

	if len(completion.Choices) == 0 {
		return model.Response{}, model.Errorf(model.KindMalformed, "no choices in completion for model %s", req.Model)
	}
	content := completion.Choices[0].Message.Content
	if content == "" {
		return model.Response{}, model.Errorf(model.KindMalformed, "empty completion content for model %s", req.Model)
	}

	return model.Response{
		Content: content,
		Usage: model.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
		Latency: time.Since(start),
	}, nil
}

// mapError classifies SDK failures. The SDK surfaces HTTP status codes in
// error text, so classification is by pattern, same as the general
// model.Classify fallback but with provider-specific cases first.
func mapError(err error) *model.Error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "model_not_found") || strings.Contains(msg, "does not exist"):
		return model.Wrap(model.KindModelNotFound, err, "model not available")
	default:
		return model.Classify(err)
	}
}
