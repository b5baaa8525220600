package model

import (
	"context"
	"sync"
	"time"
)

// MockClient is a test implementation of Client.
//
// Use MockClient in tests to drive the council pipeline without real API
// calls. It provides:
//   - Per-model scripted responses and errors
//   - Artificial per-model delay for fan-out timing tests
//   - Call history tracking
//   - Thread-safe operation
//
// Example usage:
//
//	mock := &MockClient{
//	    Responses: map[string]Response{
//	        "alpha": {Content: "4"},
//	        "beta":  {Content: "The answer is 4"},
//	    },
//	    Errors: map[string]error{
//	        "gamma": Errorf(KindTimeout, "deadline exceeded"),
//	    },
//	}
type MockClient struct {
	// Responses maps model name to the response to return.
	Responses map[string]Response

	// Errors maps model name to an error returned instead of a response.
	// Takes precedence over Responses for the same model.
	Errors map[string]error

	// Delays maps model name to an artificial latency applied before
	// answering. The delay respects context cancellation, so a per-call
	// timeout shorter than the delay yields context.DeadlineExceeded.
	Delays map[string]time.Duration

	// Default is returned for models with no Responses entry. Leave zero
	// to have unknown models fail with KindModelNotFound.
	Default *Response

	mu    sync.Mutex
	calls []Request
}

// Generate implements the Client interface.
//
// The call is recorded before any delay or error handling, so Calls reflects
// every invocation including ones that time out.
func (m *MockClient) Generate(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	delay := m.Delays[req.Model]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.Errors[req.Model]; ok {
		return Response{}, err
	}
	if resp, ok := m.Responses[req.Model]; ok {
		resp.Latency = delay
		return resp, nil
	}
	if m.Default != nil {
		return *m.Default, nil
	}
	return Response{}, Errorf(KindModelNotFound, "mock has no script for model %q", req.Model)
}

// Calls returns a copy of the recorded requests in invocation order.
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor returns the recorded requests issued to a single model.
func (m *MockClient) CallsFor(name string) []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Request
	for _, c := range m.calls {
		if c.Model == name {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the call history.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
