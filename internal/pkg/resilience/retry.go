package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RetryOptions configures Retry. MaxRetries is the number of extra attempts,
// zero disables retrying. Zero delays fall back to the defaults below.
type RetryOptions struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	ShouldRetry func(error) bool
	// Jitter returns the random extra delay added to the computed backoff.
	Jitter func(backoff time.Duration) time.Duration
}

const (
	DefaultBaseDelay = 500 * time.Millisecond
	DefaultMaxDelay  = 10 * time.Second
)

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = func(error) bool { return true }
	}
	if o.Jitter == nil {
		o.Jitter = defaultJitter
	}
	return o
}

// Backoff returns min(maxDelay, base * 2^attempt) without jitter.
func Backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxDelay || d <= 0 {
			return maxDelay
		}
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}

func defaultJitter(backoff time.Duration) time.Duration {
	half := int64(backoff / 2)
	if half <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(half))
}

// Retry calls fn until it succeeds, ShouldRetry rejects the error, or
// MaxRetries extra attempts are used up. The last error from fn is returned
// unmodified, also when ctx ends while waiting between attempts.
func Retry(ctx context.Context, opts RetryOptions, fn func(ctx context.Context) error) error {
	opts = opts.withDefaults()

	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= opts.MaxRetries || !opts.ShouldRetry(err) {
			return err
		}

		backoff := Backoff(attempt, opts.BaseDelay, opts.MaxDelay)
		timer := time.NewTimer(backoff + opts.Jitter(backoff))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// RetryValue is Retry for functions that produce a value.
func RetryValue[T any](ctx context.Context, opts RetryOptions, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Retry(ctx, opts, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
