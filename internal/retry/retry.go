package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy bounds how an Executor retries.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt; it doubles after each failure.
	BaseDelay time.Duration

	// MaxDelay caps any single wait. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
		if d <= 0 {
			// overflow
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// backoff builds a fresh go-retry backoff for one call.
func (p Policy) backoff() goretry.Backoff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var b goretry.Backoff
	if p.BaseDelay > 0 {
		b = goretry.NewExponential(p.BaseDelay)
		if p.MaxDelay > 0 {
			b = goretry.WithCappedDuration(p.MaxDelay, b)
		}
	} else {
		b = goretry.BackoffFunc(func() (time.Duration, bool) {
			return 0, false
		})
	}
	return goretry.WithMaxRetries(uint64(attempts-1), b)
}

// Executor runs operations under a retry policy.
type Executor struct {
	policy Policy
	logger *slog.Logger
}

// NewExecutor creates an Executor that classifies errors with IsRetriable.
func NewExecutor(policy Policy, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts < 1 {
		logger.Warn("invalid max attempts value, using 1",
			"max_attempts", policy.MaxAttempts)
		policy.MaxAttempts = 1
	}
	return &Executor{
		policy: policy,
		logger: logger,
	}
}

// Do invokes op until it succeeds, fails fatally, or the attempt budget runs
// out, and returns the last error. If ctx ends during a backoff wait, the
// context error is returned wrapping the last operation error.
func (e *Executor) Do(ctx context.Context, action string, op func(ctx context.Context) error) error {
	attempt := 0
	var lastErr error

	err := goretry.Do(ctx, e.policy.backoff(), func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				e.logger.DebugContext(ctx, "call succeeded after retry",
					"action", action,
					"attempt", attempt)
			}
			return nil
		}
		lastErr = err

		if !IsRetriable(err) {
			e.logger.DebugContext(ctx, "call failed with non-retriable error",
				"action", action,
				"attempt", attempt,
				"error", err)
			return err
		}

		if attempt >= e.policy.MaxAttempts {
			e.logger.DebugContext(ctx, "call failed, retry budget exhausted",
				"action", action,
				"attempt", attempt,
				"max_attempts", e.policy.MaxAttempts,
				"error", err)
			return err
		}

		e.logger.DebugContext(ctx, "call failed, retrying",
			"action", action,
			"attempt", attempt,
			"delay", e.policy.Delay(attempt),
			"error", err)
		return goretry.RetryableError(err)
	})

	if err != nil && lastErr != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) && !errors.Is(lastErr, ctx.Err()) {
		return fmt.Errorf("%s: %w (last error: %v)", action, err, lastErr)
	}
	return err
}

// Run is Do for operations that produce a value.
func Run[T any](ctx context.Context, e *Executor, action string, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Do(ctx, action, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
