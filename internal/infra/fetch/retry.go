package fetch

import (
	"context"
	"errors"
	"time"
)

// Attempt describes one failed attempt handed to an observer.
type Attempt struct {
	Number      int // 1-based attempt that failed
	DelayBefore time.Duration
	Err         error
}

// RetryOption customizes a Retry call.
type RetryOption func(*retryConfig)

type retryConfig struct {
	sleep   func(ctx context.Context, d time.Duration) error
	onRetry func(Attempt)
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(c *retryConfig) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithOnRetry is called before each wait with the failed attempt and the
// delay about to be slept.
func WithOnRetry(fn func(Attempt)) RetryOption {
	return func(c *retryConfig) {
		c.onRetry = fn
	}
}

// Retry runs op with exponential backoff until it succeeds, fails with a
// non-transient error, or policy.MaxAttempts is reached. Each call has its
// own attempt counter. Cancelling ctx aborts the in-flight attempt and any
// remaining wait. Every failure is returned as *Error.
func Retry[T any](
	ctx context.Context,
	policy Policy,
	op func(ctx context.Context, attempt int) (T, error),
	opts ...RetryOption,
) (T, error) {
	var zero T

	cfg := retryConfig{sleep: sleepContext}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := policy.Validate(); err != nil {
		return zero, &Error{Kind: KindPermanent, Err: err}
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			delay := nextDelay(policy, attempt-1, lastErr)
			if cfg.onRetry != nil {
				cfg.onRetry(Attempt{Number: attempt - 1, DelayBefore: delay, Err: lastErr})
			}
			if err := cfg.sleep(ctx, delay); err != nil {
				return zero, terminal(KindTransient, attempt-1, errors.Join(err, lastErr))
			}
		}

		result, err := op(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, terminal(Classify(err), attempt, errors.Join(ctxErr, err))
		}

		kind := Classify(err)
		if kind != KindTransient {
			return zero, terminal(kind, attempt, err)
		}
		if attempt >= policy.MaxAttempts {
			return zero, terminal(KindTransient, attempt, err)
		}
	}
}

// nextDelay is the policy backoff, raised to any server hint but never past
// MaxDelay.
func nextDelay(policy Policy, failed int, err error) time.Duration {
	delay := policy.Backoff(failed)
	if hint := RetryHint(err); hint > delay {
		delay = hint
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return delay
}

func terminal(kind Kind, attempts int, err error) *Error {
	if fe, ok := err.(*Error); ok && fe.Attempts == 0 {
		return &Error{
			Kind:       fe.Kind,
			StatusCode: fe.StatusCode,
			Attempts:   attempts,
			Detail:     fe.Detail,
			Err:        fe.Err,
		}
	}
	return &Error{
		Kind:       kind,
		StatusCode: statusCodeOf(err),
		Attempts:   attempts,
		Err:        err,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
