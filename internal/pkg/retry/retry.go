// Package retry runs an operation with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retried operation.
type Policy struct {
	// Attempts is the total number of calls, including the first. Values below 1 mean 1.
	Attempts  int
	BaseDelay time.Duration
	// MaxDelay caps the doubled delay. Zero means uncapped.
	MaxDelay time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries everything.
	Retryable func(err error) bool
	// Name labels retry log lines.
	Name string
}

func (p Policy) backOff(ctx context.Context, attempts int) backoff.BackOff {
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Duration(math.MaxInt64)
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxDelay,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done. Waits between attempts are cancellable.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		last      error
		attempt   int
		permanent bool
	)
	op := func() error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			permanent = true
			if last != nil {
				return backoff.Permanent(fmt.Errorf("%w (last error: %v)", ctxErr, last))
			}
			return backoff.Permanent(ctxErr)
		}
		attempt++
		last = fn(ctx)
		if last != nil && p.Retryable != nil && !p.Retryable(last) {
			permanent = true
			return backoff.Permanent(last)
		}
		return last
	}
	notify := func(err error, delay time.Duration) {
		slog.Warn("retrying after failure", "op", p.Name, "attempt", attempt, "max_attempts", attempts, "delay", delay, "err", err)
	}

	err := backoff.RetryNotify(op, p.backOff(ctx, attempts), notify)
	switch {
	case err == nil:
		return nil
	case permanent || attempts == 1:
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w (last error: %v)", err, last)
	default:
		return fmt.Errorf("max retry attempts reached: %w", err)
	}
}
