package resilience

import (
	"context"
	"errors"
	"time"
)

// GuardConfig bundles the policies applied to one outbound dependency.
type GuardConfig struct {
	RateWindow time.Duration
	RateLimit  int
	Retry      RetryOptions
}

// Guard composes retry, circuit breaker and rate limiter for outbound calls:
// every attempt waits for the limiter, then passes through the breaker.
type Guard struct {
	limiter *RateLimiter
	breaker *CircuitBreaker
	cfg     GuardConfig
}

func NewGuard(limiter *RateLimiter, breaker *CircuitBreaker, cfg GuardConfig) *Guard {
	return &Guard{limiter: limiter, breaker: breaker, cfg: cfg}
}

// Do runs fn under the guard for key. A circuit open error is never retried.
func (g *Guard) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	opts := g.cfg.Retry
	shouldRetry := opts.ShouldRetry
	opts.ShouldRetry = func(err error) bool {
		if errors.Is(err, ErrCircuitOpen) {
			return false
		}
		if shouldRetry == nil {
			return true
		}
		return shouldRetry(err)
	}

	return Retry(ctx, opts, func(ctx context.Context) error {
		if g.limiter != nil && g.cfg.RateLimit > 0 {
			if err := g.limiter.Wait(ctx, key, g.cfg.RateWindow, g.cfg.RateLimit); err != nil {
				return err
			}
		}
		if g.breaker == nil {
			return fn(ctx)
		}
		return g.breaker.Execute(ctx, key, fn)
	})
}
