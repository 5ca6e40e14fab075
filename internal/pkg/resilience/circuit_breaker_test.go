package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(clock *fakeClock, cfg BreakerConfig) *CircuitBreaker {
	b := NewCircuitBreaker(NewMemoryStore(), cfg)
	b.now = clock.Now
	return b
}

var errDown = errors.New("dependency down")

func fail(ctx context.Context) error { return errDown }
func ok(ctx context.Context) error   { return nil }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock, BreakerConfig{FailureThreshold: 5, ResetTimeout: time.Minute})

	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, b.Execute(ctx, "api", fail), errDown)
		st, _ := b.State(ctx, "api")
		assert.Equal(t, StateClosed, st.State)
	}

	assert.ErrorIs(t, b.Execute(ctx, "api", fail), errDown)
	st, err := b.State(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, st.State)

	called := false
	err = b.Execute(ctx, "api", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "api", openErr.Key)
	assert.Equal(t, time.Minute, openErr.RetryIn)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock, BreakerConfig{FailureThreshold: 3})

	_ = b.Execute(ctx, "api", fail)
	_ = b.Execute(ctx, "api", fail)
	require.NoError(t, b.Execute(ctx, "api", ok))
	_ = b.Execute(ctx, "api", fail)
	_ = b.Execute(ctx, "api", fail)

	st, _ := b.State(ctx, "api")
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, 2, st.Failures)
}

func TestBreakerHalfOpenClosesAfterTrials(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	var transitions []string
	b := newTestBreaker(clock, BreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		HalfOpenRequests: 2,
		OnStateChange: func(key string, from, to CircuitStateName) {
			transitions = append(transitions, string(from)+">"+string(to))
		},
	})

	_ = b.Execute(ctx, "api", fail)
	clock.Advance(59 * time.Second)
	assert.ErrorIs(t, b.Execute(ctx, "api", ok), ErrCircuitOpen)

	clock.Advance(time.Second)
	require.NoError(t, b.Execute(ctx, "api", ok))
	st, _ := b.State(ctx, "api")
	assert.Equal(t, StateHalfOpen, st.State)

	require.NoError(t, b.Execute(ctx, "api", ok))
	st, _ = b.State(ctx, "api")
	assert.Equal(t, StateClosed, st.State)

	assert.Equal(t, []string{"CLOSED>OPEN", "OPEN>HALF_OPEN", "HALF_OPEN>CLOSED"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock, BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute, HalfOpenRequests: 2})

	_ = b.Execute(ctx, "api", fail)
	clock.Advance(time.Minute)
	require.NoError(t, b.Execute(ctx, "api", ok))
	assert.ErrorIs(t, b.Execute(ctx, "api", fail), errDown)

	st, _ := b.State(ctx, "api")
	assert.Equal(t, StateOpen, st.State)
	assert.Equal(t, clock.Now(), st.LastFailureAt)

	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, b.Execute(ctx, "api", ok), ErrCircuitOpen)
}

func TestBreakerNeverJumpsFromClosedToHalfOpen(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock, BreakerConfig{FailureThreshold: 5, ResetTimeout: time.Second})

	_ = b.Execute(ctx, "api", fail)
	clock.Advance(time.Hour)
	require.NoError(t, b.Execute(ctx, "api", ok))

	st, _ := b.State(ctx, "api")
	assert.Equal(t, StateClosed, st.State)
}

func TestBreakerIgnoresNonFailures(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	permanent := errors.New("bad request")
	b := newTestBreaker(clock, BreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, permanent) },
	})

	assert.ErrorIs(t, b.Execute(ctx, "api", func(ctx context.Context) error { return permanent }), permanent)
	st, _ := b.State(ctx, "api")
	assert.Equal(t, StateClosed, st.State)
}

func TestBreakerKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock, BreakerConfig{FailureThreshold: 1})

	_ = b.Execute(ctx, "google", fail)
	assert.ErrorIs(t, b.Execute(ctx, "google", ok), ErrCircuitOpen)
	assert.NoError(t, b.Execute(ctx, "meta", ok))
}
