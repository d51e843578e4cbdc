// Package retry runs an operation under a bounded attempt budget with
// doubling backoff. Only transient failures are retried; server supplied
// Retry-After hints replace the computed delay.
package retry

import (
	"context"
	"errors"
	"time"

	"hackreview/internal/config"
	"hackreview/internal/services"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = 2 * time.Second
	defaultMaxDelay  = 30 * time.Second
)

// Policy bounds a retry loop. Zero values fall back to the package defaults.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Sleep waits between attempts; tests inject a recorder here.
	Sleep func(ctx context.Context, d time.Duration) error
	// Retryable decides whether an error earns another attempt. Defaults to services.IsTransient.
	Retryable func(error) bool
	// OnRetry observes each scheduled retry.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// FromConfig builds a policy from the [retry] section.
func FromConfig(cfg config.Retry) Policy {
	return Policy{
		Attempts:  cfg.Attempts,
		BaseDelay: seconds(cfg.BaseDelaySeconds),
		MaxDelay:  seconds(cfg.MaxDelaySeconds),
	}
}

func seconds(value float64) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value * float64(time.Second))
}

// Result reports how many attempts an operation consumed.
type Result struct {
	Attempts int
}

// Do invokes op until it succeeds, fails with a non-retryable error, the
// budget is exhausted, or ctx ends. The last error is returned unchanged so
// its category survives.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context, attempt int) error) (Result, error) {
	attempts := policy.attempts()
	retryable := policy.Retryable
	if retryable == nil {
		retryable = services.IsTransient
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return Result{Attempts: attempt - 1}, lastErr
			}
			return Result{Attempts: attempt - 1}, err
		}
		err := op(ctx, attempt)
		if err == nil {
			return Result{Attempts: attempt}, nil
		}
		lastErr = err
		if attempt >= attempts || !retryable(err) || ctx.Err() != nil {
			return Result{Attempts: attempt}, err
		}
		delay := policy.Delay(attempt, err)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, err)
		}
		if err := policy.sleep(ctx, delay); err != nil {
			return Result{Attempts: attempt}, lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("retry: no attempts made")
	}
	return Result{Attempts: attempts}, lastErr
}

// Delay returns the wait before the attempt following attempt (1-based):
// base, base*2, base*4, ... capped at MaxDelay. A Retry-After hint on err
// replaces the computed value but is still capped.
func (p Policy) Delay(attempt int, err error) time.Duration {
	if hint, ok := services.RetryAfter(err); ok {
		return p.capDelay(hint)
	}
	base := p.BaseDelay
	if base == 0 {
		base = defaultBaseDelay
	}
	if base < 0 {
		return 0
	}
	maxDelay := p.maxDelay()
	if attempt <= 0 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return defaultAttempts
	}
	return p.Attempts
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return defaultMaxDelay
}

func (p Policy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if maxDelay := p.maxDelay(); delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
	}
	return Sleep(ctx, delay)
}

// Sleep waits for delay or until ctx ends.
func Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
