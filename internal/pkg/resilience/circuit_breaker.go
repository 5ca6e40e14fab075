package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// ErrCircuitOpen is returned without calling the wrapped function while a
// breaker is open.
var ErrCircuitOpen = errors.New("circuit open")

// CircuitOpenError carries the key and the time until the next trial call.
type CircuitOpenError struct {
	Key     string
	RetryIn time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s (retry in %s)", e.Key, e.RetryIn.Round(time.Millisecond))
}

func (e *CircuitOpenError) Is(target error) bool { return target == ErrCircuitOpen }

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	HalfOpenRequests int
	// IsFailure decides whether an error counts against the breaker. Defaults
	// to every non-nil error.
	IsFailure func(error) bool
	// OnStateChange is called after a transition was stored.
	OnStateChange func(key string, from, to CircuitStateName)
}

const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 30 * time.Second
	DefaultHalfOpenRequests = 2
)

// CircuitBreaker guards calls to external dependencies, keyed per dependency.
type CircuitBreaker struct {
	store StateStore
	cfg   BreakerConfig
	now   func() time.Time
}

func NewCircuitBreaker(store StateStore, cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = DefaultHalfOpenRequests
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{store: store, cfg: cfg, now: time.Now}
}

// State returns the stored state for key.
func (b *CircuitBreaker) State(ctx context.Context, key string) (CircuitState, error) {
	return b.store.GetCircuit(ctx, key)
}

// Execute runs fn unless the breaker for key is open.
func (b *CircuitBreaker) Execute(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := b.acquire(ctx, key); err != nil {
		return err
	}

	callErr := fn(ctx)
	if callErr != nil && b.cfg.IsFailure(callErr) {
		b.record(ctx, key, false)
	} else {
		b.record(ctx, key, true)
	}
	return callErr
}

func (b *CircuitBreaker) acquire(ctx context.Context, key string) error {
	var (
		from    CircuitStateName
		retryIn time.Duration
		allowed bool
	)
	now := b.now()
	st, err := b.store.UpdateCircuit(ctx, key, func(s *CircuitState) {
		from = s.State
		allowed = admit(s, now, b.cfg)
		if !allowed {
			retryIn = s.LastFailureAt.Add(b.cfg.ResetTimeout).Sub(now)
		}
	})
	if err != nil {
		return fmt.Errorf("circuit state for %s: %w", key, err)
	}
	b.notify(key, from, st.State)
	if !allowed {
		return &CircuitOpenError{Key: key, RetryIn: retryIn}
	}
	return nil
}

func (b *CircuitBreaker) record(ctx context.Context, key string, success bool) {
	var from CircuitStateName
	now := b.now()
	st, err := b.store.UpdateCircuit(ctx, key, func(s *CircuitState) {
		from = s.State
		if success {
			onSuccess(s, b.cfg)
		} else {
			onFailure(s, now, b.cfg)
		}
	})
	if err != nil {
		log.Errorf("[Circuit] Failed to store state for %s: %v", key, err)
		return
	}
	b.notify(key, from, st.State)
}

func (b *CircuitBreaker) notify(key string, from, to CircuitStateName) {
	if from == to || from == "" {
		return
	}
	log.Infof("[Circuit] %s: %s -> %s", key, from, to)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(key, from, to)
	}
}

// admit moves an expired OPEN breaker to HALF_OPEN and reports whether a call
// may proceed.
func admit(s *CircuitState, now time.Time, cfg BreakerConfig) bool {
	if s.State == "" {
		s.State = StateClosed
	}
	if s.State != StateOpen {
		return true
	}
	if now.Sub(s.LastFailureAt) >= cfg.ResetTimeout {
		s.State = StateHalfOpen
		s.HalfOpenSuccesses = 0
		return true
	}
	return false
}

func onSuccess(s *CircuitState, cfg BreakerConfig) {
	switch s.State {
	case StateHalfOpen:
		s.HalfOpenSuccesses++
		if s.HalfOpenSuccesses >= cfg.HalfOpenRequests {
			s.State = StateClosed
			s.Failures = 0
			s.HalfOpenSuccesses = 0
		}
	case StateOpen:
		// late result of a call admitted before the breaker opened
	default:
		s.State = StateClosed
		s.Failures = 0
	}
}

func onFailure(s *CircuitState, now time.Time, cfg BreakerConfig) {
	s.LastFailureAt = now
	switch s.State {
	case StateHalfOpen:
		s.State = StateOpen
		s.HalfOpenSuccesses = 0
	case StateOpen:
	default:
		s.State = StateClosed
		s.Failures++
		if s.Failures >= cfg.FailureThreshold {
			s.State = StateOpen
		}
	}
}
