package council

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dshills/council-go/council/emit"
	"github.com/dshills/council-go/council/model"
)

// flakyClient fails a configurable number of times per model before
// succeeding.
type flakyClient struct {
	mu       sync.Mutex
	failures map[string]int
	failWith *model.Error
	attempts map[string]int
}

func (f *flakyClient) Generate(_ context.Context, req model.Request) (model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[req.Model]++

	if f.failures[req.Model] > 0 {
		f.failures[req.Model]--
		return model.Response{}, f.failWith
	}
	return model.Response{Content: "ok"}, nil
}

func (f *flakyClient) attemptsFor(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[name]
}

func newTestDispatcher(client model.Client, timeout time.Duration, retry RetryPolicy) *dispatcher {
	return &dispatcher{
		client:  client,
		timeout: timeout,
		retry:   retry,
		emitter: emit.NewNullEmitter(),
	}
}

func reqFor(member string) model.Request {
	return model.Request{Model: member, Prompt: "hello"}
}

func TestDispatchOneEntryPerTarget(t *testing.T) {
	client := &model.MockClient{
		Responses: map[string]model.Response{"a": {Content: "x"}},
		Errors:    map[string]error{"b": model.Errorf(model.KindMalformed, "bad")},
	}
	d := newTestDispatcher(client, time.Second, defaultRetryPolicy(0))

	out := d.dispatch(context.Background(), "c", "stage1", []string{"a", "b", "c"}, reqFor)
	if len(out) != 3 {
		t.Fatalf("entries = %d, want 3", len(out))
	}
	if !out["a"].OK() {
		t.Errorf("a should succeed: %v", out["a"].Error)
	}
	if out["b"].OK() || out["b"].Error.Kind != model.KindMalformed {
		t.Errorf("b should fail malformed, got %+v", out["b"].Error)
	}
	// c has no script; the mock classifies it as model_not_found.
	if out["c"].OK() || out["c"].Error.Kind != model.KindModelNotFound {
		t.Errorf("c should fail model_not_found, got %+v", out["c"].Error)
	}
}

func TestDispatchRetriesConnectionFailures(t *testing.T) {
	client := &flakyClient{
		failures: map[string]int{"a": 2},
		failWith: model.Errorf(model.KindConnection, "refused"),
	}
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	d := newTestDispatcher(client, time.Second, policy)

	out := d.dispatch(context.Background(), "c", "stage1", []string{"a"}, reqFor)
	if !out["a"].OK() {
		t.Fatalf("expected success after retries, got %+v", out["a"].Error)
	}
	if n := client.attemptsFor("a"); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestDispatchRetriesExhausted(t *testing.T) {
	client := &flakyClient{
		failures: map[string]int{"a": 10},
		failWith: model.Errorf(model.KindConnection, "refused"),
	}
	policy := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	d := newTestDispatcher(client, time.Second, policy)

	out := d.dispatch(context.Background(), "c", "stage1", []string{"a"}, reqFor)
	if out["a"].OK() {
		t.Fatal("expected failure after exhausting retries")
	}
	if out["a"].Error.Kind != model.KindConnection {
		t.Errorf("kind = %s, want %s", out["a"].Error.Kind, model.KindConnection)
	}
	if n := client.attemptsFor("a"); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestDispatchDoesNotRetryPermanentFailures(t *testing.T) {
	kinds := []model.Kind{model.KindTimeout, model.KindModelNotFound, model.KindMalformed}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			client := &flakyClient{
				failures: map[string]int{"a": 10},
				failWith: model.Errorf(kind, "permanent"),
			}
			policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
			d := newTestDispatcher(client, time.Second, policy)

			out := d.dispatch(context.Background(), "c", "stage1", []string{"a"}, reqFor)
			if out["a"].OK() {
				t.Fatal("expected failure")
			}
			if n := client.attemptsFor("a"); n != 1 {
				t.Errorf("attempts = %d, want 1 (no retry for %s)", n, kind)
			}
		})
	}
}

func TestDispatchTimeoutOverridesClassification(t *testing.T) {
	client := &model.MockClient{
		Responses: map[string]model.Response{"a": {Content: "slow"}},
		Delays:    map[string]time.Duration{"a": 200 * time.Millisecond},
	}
	d := newTestDispatcher(client, 20*time.Millisecond, defaultRetryPolicy(0))

	out := d.dispatch(context.Background(), "c", "stage1", []string{"a"}, reqFor)
	if out["a"].OK() {
		t.Fatal("expected timeout failure")
	}
	if out["a"].Error.Kind != model.KindTimeout {
		t.Errorf("kind = %s, want %s", out["a"].Error.Kind, model.KindTimeout)
	}
}

func TestDispatchSlowTargetDoesNotBlockOthers(t *testing.T) {
	client := &model.MockClient{
		Responses: map[string]model.Response{
			"fast": {Content: "quick"},
			"slow": {Content: "late"},
		},
		Delays: map[string]time.Duration{"slow": 100 * time.Millisecond},
	}
	d := newTestDispatcher(client, time.Second, defaultRetryPolicy(0))

	start := time.Now()
	out := d.dispatch(context.Background(), "c", "stage1", []string{"fast", "slow"}, reqFor)
	elapsed := time.Since(start)

	if !out["fast"].OK() || !out["slow"].OK() {
		t.Fatalf("both targets should succeed: %+v", out)
	}
	// Wall time tracks the slowest call, not the sum.
	if elapsed > 180*time.Millisecond {
		t.Errorf("dispatch took %v, want about 100ms", elapsed)
	}
}

func TestDispatchEmitsCallEvents(t *testing.T) {
	buffered := emit.NewBufferedEmitter()
	client := &model.MockClient{
		Responses: map[string]model.Response{"a": {Content: "x", Usage: model.Usage{TotalTokens: 7}}},
	}
	d := &dispatcher{
		client:  client,
		timeout: time.Second,
		retry:   defaultRetryPolicy(0),
		emitter: buffered,
	}

	d.dispatch(context.Background(), "c-1", "stage1", []string{"a"}, reqFor)

	starts := buffered.HistoryWithFilter("c-1", emit.HistoryFilter{Msg: "model_call_start"})
	ends := buffered.HistoryWithFilter("c-1", emit.HistoryFilter{Msg: "model_call_end"})
	if len(starts) != 1 || len(ends) != 1 {
		t.Fatalf("starts=%d ends=%d, want 1 each", len(starts), len(ends))
	}
	if ends[0].Meta["tokens"] != 7 {
		t.Errorf("tokens meta = %v, want 7", ends[0].Meta["tokens"])
	}
}
