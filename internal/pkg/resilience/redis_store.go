package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisCircuitPrefix = "resilience:circuit:"
	redisBucketPrefix  = "resilience:ratelimit:"
	redisMaxTxRetries  = 50
)

// RedisStore shares breaker and limiter state between instances. Updates use
// WATCH/MULTI so concurrent writers retry instead of overwriting each other.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store whose keys expire after ttl of inactivity.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) UpdateCircuit(ctx context.Context, key string, fn func(*CircuitState)) (CircuitState, error) {
	var out CircuitState
	err := r.update(ctx, redisCircuitPrefix+key, func(raw []byte) ([]byte, error) {
		st := CircuitState{State: StateClosed}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &st); err != nil {
				return nil, err
			}
		}
		fn(&st)
		out = st
		return json.Marshal(st)
	})
	return out, err
}

func (r *RedisStore) GetCircuit(ctx context.Context, key string) (CircuitState, error) {
	st := CircuitState{State: StateClosed}
	raw, err := r.client.Get(ctx, redisCircuitPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(raw, &st)
	return st, err
}

func (r *RedisStore) UpdateBucket(ctx context.Context, key string, fn func(*RateLimitBucket)) (RateLimitBucket, error) {
	var out RateLimitBucket
	err := r.update(ctx, redisBucketPrefix+key, func(raw []byte) ([]byte, error) {
		var b RateLimitBucket
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, err
			}
		}
		fn(&b)
		out = b
		return json.Marshal(b)
	})
	return out, err
}

func (r *RedisStore) update(ctx context.Context, key string, mutate func([]byte) ([]byte, error)) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next, err := mutate(raw)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < redisMaxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("resilience: too much contention on %s", key)
}
