// Package google adapts the Gemini API to the council model boundary.
package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/council-go/council/model"
)

// Client implements model.Client over the Gemini API.
//
// Unlike the OpenAI and Anthropic adapters, the genai client holds network
// resources; call Close when the adapter is no longer needed.
//
// Example usage:
//
//	c, err := google.New(ctx, os.Getenv("GOOGLE_API_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	resp, err := c.Generate(ctx, model.Request{
//	    Model:  "gemini-1.5-flash",
//	    Prompt: "Summarize the CAP theorem.",
//	})
type Client struct {
	client *genai.Client
}

// New creates an adapter authenticated with the given API key.
func New(ctx context.Context, apiKey string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{client: client}, nil
}

// Close releases the underlying client's resources.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Generate implements model.Client.
func (c *Client) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	if err := ctx.Err(); err != nil {
		return model.Response{}, model.Classify(err)
	}

	gm := c.client.GenerativeModel(req.Model)
	if req.System != "" {
		gm.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	start := time.Now()
	resp, err := gm.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return model.Response{}, mapError(err)
	}

	content := extractText(resp)
	if content == "" {
		return model.Response{}, model.Errorf(model.KindMalformed, "no text content in response for model %s", req.Model)
	}

	out := model.Response{
		Content: content,
		Latency: time.Since(start),
	}
	if resp.UsageMetadata != nil {
		out.Usage = model.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

// mapError classifies Gemini failures by message pattern, provider-specific
// cases first, then the general fallback.
func mapError(err error) *model.Error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not_found") || (strings.Contains(msg, "model") && strings.Contains(msg, "not found")):
		return model.Wrap(model.KindModelNotFound, err, "model not available")
	case strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "unavailable"):
		return model.Wrap(model.KindConnection, err, "service unavailable")
	default:
		return model.Classify(err)
	}
}
