package council

import (
	"math/rand"
	"time"
)

// RetryPolicy defines bounded retry behavior for transient model-call
// failures inside the stage dispatcher.
//
// When a call fails with a retryable error, the policy determines how long
// to wait before the next attempt. Exponential backoff with jitter avoids
// synchronized retry storms when several members hit the same flaky
// endpoint.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Must be >= 1; 1 means no retries.
	MaxAttempts int

	// BaseDelay is the base delay for exponential backoff.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
}

// defaultRetryPolicy translates the council config's retry count into a
// policy. Delays are short relative to the per-call timeout so retries stay
// inside the caller's patience budget.
func defaultRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxRetries + 1,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// backoff computes the delay before retry attempt n (zero-based):
//
//	delay = min(base * 2^attempt, maxDelay) + jitter(0, base)
//
// The jitter term randomizes retry timing across concurrently failing
// members.
func (p RetryPolicy) backoff(attempt int, rng *rand.Rand) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}

	delay := p.BaseDelay * (1 << attempt)
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(p.BaseDelay)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(p.BaseDelay))) // #nosec G404 -- retry jitter, not security
	}

	return delay + jitter
}
