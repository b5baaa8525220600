package model

import (
	"context"
	"sync"
)

// Router is a Client that directs each model name to the Client serving it,
// so one council can mix providers. Unrouted names fall through to an
// optional default Client; with no default they fail as model_not_found,
// which the engine records without retrying.
//
// Example usage:
//
//	r := model.NewRouter()
//	r.Route("claude-sonnet-4-20250514", anthropicClient)
//	r.Route("gemini-1.5-flash", googleClient)
//	r.SetDefault(openaiClient)
//
// Routes are expected to be configured before the router is handed to the
// engine; Generate only reads them.
type Router struct {
	mu       sync.RWMutex
	routes   map[string]Client
	fallback Client
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[string]Client)}
}

// Route directs a model name to a Client, replacing any previous route.
func (r *Router) Route(modelName string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[modelName] = client
}

// SetDefault sets the Client for model names with no explicit route.
func (r *Router) SetDefault(client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = client
}

// Generate implements Client by delegating to the routed Client.
func (r *Router) Generate(ctx context.Context, req Request) (Response, error) {
	r.mu.RLock()
	client, ok := r.routes[req.Model]
	if !ok {
		client = r.fallback
	}
	r.mu.RUnlock()

	if client == nil {
		return Response{}, Errorf(KindModelNotFound, "no provider routes model %q", req.Model)
	}
	return client.Generate(ctx, req)
}
