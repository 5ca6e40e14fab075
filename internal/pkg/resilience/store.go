package resilience

import (
	"context"
	"sync"
	"time"
)

// CircuitStateName is one of the three breaker states.
type CircuitStateName string

const (
	StateClosed   CircuitStateName = "CLOSED"
	StateOpen     CircuitStateName = "OPEN"
	StateHalfOpen CircuitStateName = "HALF_OPEN"
)

// CircuitState is the persisted breaker state for one dependency key.
type CircuitState struct {
	State             CircuitStateName `json:"state"`
	Failures          int              `json:"failures"`
	LastFailureAt     time.Time        `json:"last_failure_at"`
	HalfOpenSuccesses int              `json:"half_open_successes"`
}

// RateLimitBucket is a fixed-window counter for one key.
type RateLimitBucket struct {
	WindowStart time.Time `json:"window_start"`
	Count       int       `json:"count"`
}

// StateStore holds breaker and limiter state keyed by dependency. Update
// functions run atomically with respect to other updates of the same key, so
// the transition logic never races on read-modify-write.
type StateStore interface {
	UpdateCircuit(ctx context.Context, key string, fn func(*CircuitState)) (CircuitState, error)
	GetCircuit(ctx context.Context, key string) (CircuitState, error)
	UpdateBucket(ctx context.Context, key string, fn func(*RateLimitBucket)) (RateLimitBucket, error)
}

// MemoryStore is a process-local StateStore. It is only correct for a single
// instance deployment.
type MemoryStore struct {
	mu       sync.Mutex
	circuits map[string]CircuitState
	buckets  map[string]RateLimitBucket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		circuits: make(map[string]CircuitState),
		buckets:  make(map[string]RateLimitBucket),
	}
}

func (m *MemoryStore) UpdateCircuit(_ context.Context, key string, fn func(*CircuitState)) (CircuitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.circuits[key]
	if !ok {
		st = CircuitState{State: StateClosed}
	}
	fn(&st)
	m.circuits[key] = st
	return st, nil
}

func (m *MemoryStore) GetCircuit(_ context.Context, key string) (CircuitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.circuits[key]
	if !ok {
		return CircuitState{State: StateClosed}, nil
	}
	return st, nil
}

func (m *MemoryStore) UpdateBucket(_ context.Context, key string, fn func(*RateLimitBucket)) (RateLimitBucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.buckets[key]
	fn(&b)
	m.buckets[key] = b
	return b, nil
}
