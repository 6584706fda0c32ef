package fetch

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Policy defines retry behavior for one call site. Policies are values and
// safe to share.
type Policy struct {
	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration

	// MaxAttempts bounds the total number of attempts (>= 1).
	MaxAttempts int

	// MaxDelay caps a single wait. Zero means uncapped.
	MaxDelay time.Duration

	// Multiplier grows the delay between attempts (default 2).
	Multiplier float64

	// Jitter adds up to Jitter*delay of random extra wait (0..1).
	Jitter float64
}

// DefaultPolicy mirrors the external API call sites: 500ms, 3 attempts.
var DefaultPolicy = Policy{
	InitialDelay: 500 * time.Millisecond,
	MaxAttempts:  3,
	MaxDelay:     30 * time.Second,
	Multiplier:   2.0,
}

// ErrInvalidPolicy is returned for a policy that cannot be executed.
var ErrInvalidPolicy = errors.New("invalid retry policy")

// Validate checks the policy constraints.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be >= 1, got %d", ErrInvalidPolicy, p.MaxAttempts)
	}
	if p.InitialDelay < 0 {
		return fmt.Errorf("%w: initial delay must be >= 0, got %s", ErrInvalidPolicy, p.InitialDelay)
	}
	if p.MaxDelay < 0 {
		return fmt.Errorf("%w: max delay must be >= 0, got %s", ErrInvalidPolicy, p.MaxDelay)
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return fmt.Errorf("%w: multiplier must be >= 1, got %g", ErrInvalidPolicy, p.Multiplier)
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("%w: jitter must be within [0, 1], got %g", ErrInvalidPolicy, p.Jitter)
	}
	return nil
}

// Backoff returns the wait after the given failed attempt (1-based):
// InitialDelay * Multiplier^(attempt-1), capped by MaxDelay, plus jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	mult := p.Multiplier
	if mult == 0 {
		mult = 2
	}

	delay := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		delay += delay * p.Jitter * rand.Float64()
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// Schedule lists the waits a call failing transiently on every attempt
// would sleep, ignoring jitter.
func (p Policy) Schedule() []time.Duration {
	q := p
	q.Jitter = 0
	out := make([]time.Duration, 0, max(p.MaxAttempts-1, 0))
	for attempt := 1; attempt < p.MaxAttempts; attempt++ {
		out = append(out, q.Backoff(attempt))
	}
	return out
}
