package resilience

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// RateLimiter is a fixed-window counter per key. A window is reset lazily by
// the first check after it expired; there is no background sweep.
type RateLimiter struct {
	store StateStore
	now   func() time.Time
}

func NewRateLimiter(store StateStore) *RateLimiter {
	return &RateLimiter{store: store, now: time.Now}
}

// Check counts one call for key and reports whether it fits into the window.
func (l *RateLimiter) Check(ctx context.Context, key string, window time.Duration, limit int) (Decision, error) {
	now := l.now()
	var d Decision
	_, err := l.store.UpdateBucket(ctx, key, func(b *RateLimitBucket) {
		d = consume(b, now, window, limit)
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit state for %s: %w", key, err)
	}
	return d, nil
}

// Wait blocks until a call for key is allowed or ctx ends.
func (l *RateLimiter) Wait(ctx context.Context, key string, window time.Duration, limit int) error {
	for {
		d, err := l.Check(ctx, key, window, limit)
		if err != nil {
			return err
		}
		if d.Allowed {
			return nil
		}
		timer := time.NewTimer(d.ResetIn)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func consume(b *RateLimitBucket, now time.Time, window time.Duration, limit int) Decision {
	if b.WindowStart.IsZero() || !now.Before(b.WindowStart.Add(window)) {
		b.WindowStart = now
		b.Count = 0
	}
	resetIn := b.WindowStart.Add(window).Sub(now)
	if b.Count >= limit {
		return Decision{Allowed: false, Remaining: 0, ResetIn: resetIn}
	}
	b.Count++
	return Decision{Allowed: true, Remaining: limit - b.Count, ResetIn: resetIn}
}
