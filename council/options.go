package council

import (
	"math/rand"

	"github.com/dshills/council-go/council/emit"
)

// Option is a functional option for configuring an Engine.
//
// Options are chainable and self-documenting:
//
//	eng, err := council.New(
//	    cfg, client, store,
//	    council.WithEmitter(emit.NewLogEmitter(os.Stderr, false)),
//	    council.WithMetrics(council.NewMetrics(registry)),
//	)
type Option func(*engineOptions) error

// engineOptions collects optional engine dependencies before construction.
type engineOptions struct {
	emitter emit.Emitter
	metrics *Metrics
	rng     *rand.Rand
	retry   *RetryPolicy
}

// WithEmitter sets the observability emitter for turn, stage, and model-call
// events.
//
// Default: emit.NullEmitter (no observability output).
//
// Example:
//
//	council.WithEmitter(emit.NewLogEmitter(os.Stderr, true)) // JSONL to stderr
func WithEmitter(e emit.Emitter) Option {
	return func(o *engineOptions) error {
		o.emitter = e
		return nil
	}
}

// WithMetrics attaches a Prometheus metrics collector to the engine.
//
// Default: nil (no metrics collection).
func WithMetrics(m *Metrics) Option {
	return func(o *engineOptions) error {
		o.metrics = m
		return nil
	}
}

// WithRand sets the random source used for anonymization label shuffling and
// retry jitter. Supplying a seeded source makes label assignment
// deterministic, which tests rely on.
//
// Default: a source seeded from the current time.
func WithRand(rng *rand.Rand) Option {
	return func(o *engineOptions) error {
		o.rng = rng
		return nil
	}
}

// WithRetryPolicy overrides the retry policy derived from Config.MaxRetries.
// Use it to tune backoff delays beyond the attempt count.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *engineOptions) error {
		o.retry = &p
		return nil
	}
}
