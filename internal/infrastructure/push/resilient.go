package push

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/school-notify-api/internal/domain"
	"github.com/school-notify-api/internal/metrics"
	"github.com/school-notify-api/internal/pkg/retry"
	gobreaker "github.com/sony/gobreaker/v2"
)

type ResilientOptions struct {
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
}

// Resilient wraps a Provider with a per-attempt timeout, bounded retries and a
// circuit breaker. Invalid-address errors are neither retried nor counted as
// breaker failures: they describe the token, not the provider's health.
type Resilient struct {
	next    Provider
	cb      *gobreaker.CircuitBreaker[struct{}]
	policy  retry.Policy
	timeout time.Duration
}

func NewResilient(next Provider, opts ResilientOptions) *Resilient {
	name := "push-" + next.Name()
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     opts.BreakerTimeout,
		// Opens at a 60% failure rate over at least 10 requests.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidAddress)
		},
	})

	return &Resilient{
		next: next,
		cb:   cb,
		policy: retry.Policy{
			Name:      name,
			Attempts:  opts.MaxAttempts,
			BaseDelay: opts.RetryDelay,
			MaxDelay:  5 * time.Second,
			Retryable: func(err error) bool {
				return !errors.Is(err, ErrInvalidAddress) &&
					!errors.Is(err, gobreaker.ErrOpenState) &&
					!errors.Is(err, gobreaker.ErrTooManyRequests)
			},
		},
		timeout: opts.Timeout,
	}
}

func (r *Resilient) Name() string { return r.next.Name() }

func (r *Resilient) Send(ctx context.Context, msg domain.PushMessage) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		_, err := r.cb.Execute(func() (struct{}, error) {
			attemptCtx := ctx
			if r.timeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, r.timeout)
				defer cancel()
			}
			return struct{}{}, r.next.Send(attemptCtx, msg)
		})
		return err
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
