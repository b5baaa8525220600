package council

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/council-go/council/emit"
	"github.com/dshills/council-go/council/model"
)

// dispatcher is the generic fan-out/fan-in primitive behind stages 1 and 2.
//
// One goroutine is launched per target; each call is independently bounded
// by the per-call timeout and independently retried on transient connection
// failures. dispatch returns only after every target has settled, so callers
// never observe a partial result map.
type dispatcher struct {
	client  model.Client
	timeout time.Duration
	retry   RetryPolicy
	emitter emit.Emitter
	metrics *Metrics
}

// dispatch issues one call per target concurrently and collects the settled
// results. The returned map has exactly one entry per target: content on
// success, a classified error on failure. A slow or failing target never
// affects the others; the stage's wall time is bounded by its slowest call.
func (d *dispatcher) dispatch(ctx context.Context, conversationID, stage string, targets []string, reqFor func(member string) model.Request) map[string]ModelResult {
	type settled struct {
		member string
		result ModelResult
	}

	results := make(chan settled, len(targets))
	var wg sync.WaitGroup

	for _, member := range targets {
		wg.Add(1)
		go func(member string) {
			defer wg.Done()
			results <- settled{member: member, result: d.call(ctx, conversationID, stage, member, reqFor(member))}
		}(member)
	}

	wg.Wait()
	close(results)

	out := make(map[string]ModelResult, len(targets))
	for s := range results {
		out[s.member] = s.result
	}
	return out
}

// call runs the bounded attempt loop for a single member.
func (d *dispatcher) call(ctx context.Context, conversationID, stage, member string, req model.Request) ModelResult {
	d.emitter.Emit(emit.Event{
		ConversationID: conversationID,
		Stage:          stage,
		Model:          member,
		Msg:            "model_call_start",
	})
	d.metrics.callStarted()
	defer d.metrics.callFinished()

	var lastErr *model.Error
	start := time.Now()

	for attempt := 0; attempt < d.retry.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		callStart := time.Now()
		resp, err := d.client.Generate(callCtx, req)
		deadlineHit := callCtx.Err() == context.DeadlineExceeded
		cancel()

		if err == nil {
			latency := resp.Latency
			if latency == 0 {
				latency = time.Since(callStart)
			}
			d.metrics.observeCall(member, stage, "success", latency)
			d.emitter.Emit(emit.Event{
				ConversationID: conversationID,
				Stage:          stage,
				Model:          member,
				Msg:            "model_call_end",
				Meta: map[string]interface{}{
					"duration_ms": latency.Milliseconds(),
					"tokens":      resp.Usage.TotalTokens,
				},
			})
			return ModelResult{
				Content:        resp.Content,
				Usage:          resp.Usage,
				LatencySeconds: latency.Seconds(),
			}
		}

		lastErr = model.Classify(err)
		if deadlineHit {
			// The per-call deadline elapsed; the classification of the
			// provider's surface error is irrelevant.
			lastErr = &model.Error{Kind: model.KindTimeout, Message: "model call exceeded timeout", Err: err}
		}

		if !lastErr.Retryable() || attempt >= d.retry.MaxAttempts-1 {
			break
		}

		d.metrics.retried(member, string(lastErr.Kind))
		d.emitter.Emit(emit.Event{
			ConversationID: conversationID,
			Stage:          stage,
			Model:          member,
			Msg:            "model_call_retry",
			Meta: map[string]interface{}{
				"attempt":    attempt + 1,
				"error_kind": string(lastErr.Kind),
			},
		})

		select {
		case <-time.After(d.retry.backoff(attempt, nil)):
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			// Caller abandoned the turn; settle with what we have.
			break
		}
	}

	elapsed := time.Since(start)
	d.metrics.observeCall(member, stage, string(lastErr.Kind), elapsed)
	d.emitter.Emit(emit.Event{
		ConversationID: conversationID,
		Stage:          stage,
		Model:          member,
		Msg:            "model_call_end",
		Meta: map[string]interface{}{
			"duration_ms": elapsed.Milliseconds(),
			"error":       lastErr.Message,
			"error_kind":  string(lastErr.Kind),
		},
	})
	return ModelResult{
		LatencySeconds: elapsed.Seconds(),
		Error:          resultError(lastErr),
	}
}
