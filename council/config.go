package council

import (
	"fmt"
	"time"
)

// Default configuration values applied by Config.withDefaults.
const (
	// DefaultCallTimeout bounds each individual model call. A stage's wall
	// time is bounded by its slowest surviving call, never by the sum.
	DefaultCallTimeout = 5 * time.Minute

	// DefaultPriorTurns is the window of prior turns included in the
	// chairman prompt for conversational continuity.
	DefaultPriorTurns = 5
)

// Config describes a council: its members, chairman, and call policy.
//
// The value is immutable for the engine's lifetime; it is validated and
// copied at construction, never mutated afterwards. Tests can build
// alternate councils per case without touching shared state.
type Config struct {
	// Members is the ordered set of participating model identifiers.
	// Must be non-empty and free of duplicates.
	Members []string

	// Chairman is the model that performs stage-3 synthesis.
	// Must be one of Members.
	Chairman string

	// CallTimeout bounds each individual model call in every stage.
	// Zero means DefaultCallTimeout.
	CallTimeout time.Duration

	// MaxRetries is the number of additional attempts made per model for
	// transient connection failures. Zero disables retries. Retries never
	// apply to timeouts, unknown models, or malformed responses.
	MaxRetries int

	// PriorTurns caps how many prior turns of the conversation are shown
	// to the chairman. Zero means DefaultPriorTurns; negative disables
	// continuation context entirely.
	PriorTurns int

	// ExcludeFailedReviewers switches stage 2 to strict symmetry: members
	// whose own stage-1 call failed do not review. By default a failed
	// member still critiques the others, which yields more review signal.
	ExcludeFailedReviewers bool
}

// Validate checks the structural invariants of the council.
func (c Config) Validate() error {
	if len(c.Members) == 0 {
		return fmt.Errorf("council has no members")
	}

	seen := make(map[string]bool, len(c.Members))
	for _, m := range c.Members {
		if m == "" {
			return fmt.Errorf("council member name is empty")
		}
		if seen[m] {
			return fmt.Errorf("duplicate council member %q", m)
		}
		seen[m] = true
	}

	if c.Chairman == "" {
		return fmt.Errorf("chairman is not set")
	}
	if !seen[c.Chairman] {
		return fmt.Errorf("chairman %q is not a council member", c.Chairman)
	}

	if c.CallTimeout < 0 {
		return fmt.Errorf("call timeout is negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries is negative")
	}
	return nil
}

// withDefaults returns a defensive copy with zero values resolved. The copy
// keeps the engine insulated from later mutation of the caller's slice.
func (c Config) withDefaults() Config {
	out := c
	out.Members = make([]string, len(c.Members))
	copy(out.Members, c.Members)

	if out.CallTimeout == 0 {
		out.CallTimeout = DefaultCallTimeout
	}
	if out.PriorTurns == 0 {
		out.PriorTurns = DefaultPriorTurns
	}
	return out
}
