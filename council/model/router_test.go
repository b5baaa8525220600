package model

import (
	"context"
	"errors"
	"testing"
)

func TestRouterRoutesByModelName(t *testing.T) {
	a := &MockClient{Responses: map[string]Response{"m1": {Content: "from a"}}}
	b := &MockClient{Responses: map[string]Response{"m2": {Content: "from b"}}}

	r := NewRouter()
	r.Route("m1", a)
	r.Route("m2", b)

	ctx := context.Background()
	resp, err := r.Generate(ctx, Request{Model: "m1", Prompt: "hi"})
	if err != nil || resp.Content != "from a" {
		t.Errorf("m1 -> (%q, %v), want from a", resp.Content, err)
	}
	resp, err = r.Generate(ctx, Request{Model: "m2", Prompt: "hi"})
	if err != nil || resp.Content != "from b" {
		t.Errorf("m2 -> (%q, %v), want from b", resp.Content, err)
	}
	if len(a.Calls()) != 1 || len(b.Calls()) != 1 {
		t.Error("each client should see exactly its own call")
	}
}

func TestRouterDefault(t *testing.T) {
	fallback := &MockClient{Default: &Response{Content: "fallback"}}

	r := NewRouter()
	r.SetDefault(fallback)

	resp, err := r.Generate(context.Background(), Request{Model: "anything", Prompt: "hi"})
	if err != nil || resp.Content != "fallback" {
		t.Errorf("got (%q, %v), want fallback", resp.Content, err)
	}
}

func TestRouterUnroutedModel(t *testing.T) {
	r := NewRouter()

	_, err := r.Generate(context.Background(), Request{Model: "ghost", Prompt: "hi"})
	var me *Error
	if !errors.As(err, &me) || me.Kind != KindModelNotFound {
		t.Errorf("err = %v, want model_not_found", err)
	}
}
