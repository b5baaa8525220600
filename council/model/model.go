// Package model defines the inference-client boundary for council members.
//
// The engine never talks to a provider SDK directly. Everything it needs from
// a model is expressed through the Client interface: hand a prompt to a named
// model, get generated text plus usage metadata back, or a classified error.
//
// Provider adapters live in the subpackages (openai, anthropic, google) and
// translate SDK-specific failures into *Error values so the engine can apply
// a uniform retry and recording policy.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Client is the inference boundary consumed by the council engine.
//
// Implementations should:
//   - Be safe for concurrent use; the engine fans out one call per council
//     member simultaneously.
//   - Respect context cancellation and deadlines. The engine bounds every
//     call with a per-call timeout context.
//   - Return *Error values (or errors wrapping them) so failures can be
//     classified rather than collapsed into opaque strings.
//
// Example usage:
//
//	client := openai.NewClient(apiKey, openai.WithBaseURL(groqURL))
//	resp, err := client.Generate(ctx, model.Request{
//	    Model:  "llama-3.3-70b-versatile",
//	    Prompt: "What is 2+2?",
//	})
type Client interface {
	// Generate sends a single prompt to the named model and returns the
	// generated text with usage and latency metadata.
	//
	// The model name is provider-scoped; the same Client may serve many
	// council members. Errors should be *Error values carrying a Kind so
	// callers can distinguish timeouts from missing models from transport
	// failures.
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request describes one generation call.
type Request struct {
	// Model is the provider-side identifier of the model to invoke.
	Model string

	// System is an optional system prompt. Providers that take system
	// text out-of-band (Anthropic, Gemini) extract it; OpenAI-compatible
	// providers prepend it as a system message.
	System string

	// Prompt is the user-role prompt text.
	Prompt string
}

// Response is the successful result of a generation call.
type Response struct {
	// Content is the generated text.
	Content string

	// Usage reports token consumption when the provider supplies it.
	Usage Usage

	// Latency is the wall-clock duration of the call as measured by the
	// adapter, not the provider.
	Latency time.Duration
}

// Usage reports token consumption for one call. Zero values mean the
// provider did not report usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Kind classifies a generation failure. The engine records the kind inside
// the turn's result maps and uses it to decide retry eligibility: only
// KindConnection is transient.
type Kind string

const (
	// KindTimeout means the per-call deadline elapsed before the provider
	// responded. The call for that model alone is abandoned.
	KindTimeout Kind = "timeout"

	// KindModelNotFound means the provider does not serve the requested
	// model identifier. Never retried.
	KindModelNotFound Kind = "model_not_found"

	// KindConnection covers transport-level failures: refused connections,
	// resets, DNS errors, 5xx responses. Eligible for bounded retry.
	KindConnection Kind = "connection_failure"

	// KindMalformed means the provider answered but the response could not
	// be interpreted (empty choices, truncated body, schema mismatch).
	KindMalformed Kind = "malformed_response"
)

// Error is a classified generation failure.
type Error struct {
	// Kind is the failure classification.
	Kind Kind

	// Message is the human-readable description, safe to persist in a turn
	// record.
	Message string

	// Err is the underlying provider or transport error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient. Only connection-level
// failures qualify; a missing model will not appear on retry and a timeout
// already consumed the caller's per-call budget.
func (e *Error) Retryable() bool { return e.Kind == KindConnection }

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a classified error around an underlying cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Classify maps an arbitrary error from a Client into a *Error.
//
// Already-classified errors pass through unchanged. Context deadline
// expiry becomes KindTimeout. Everything else is pattern-matched the way the
// provider adapters do internally, defaulting to KindConnection so that
// unknown transport noise stays retryable.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var me *Error
	if errors.As(err, &me) {
		return me
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "call exceeded deadline", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindConnection, Message: "call canceled", Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "model") && (strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")):
		return &Error{Kind: KindModelNotFound, Message: err.Error(), Err: err}
	case strings.Contains(msg, "404"):
		return &Error{Kind: KindModelNotFound, Message: err.Error(), Err: err}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return &Error{Kind: KindTimeout, Message: err.Error(), Err: err}
	case strings.Contains(msg, "unmarshal") || strings.Contains(msg, "decode") || strings.Contains(msg, "unexpected end"):
		return &Error{Kind: KindMalformed, Message: err.Error(), Err: err}
	default:
		return &Error{Kind: KindConnection, Message: err.Error(), Err: err}
	}
}
