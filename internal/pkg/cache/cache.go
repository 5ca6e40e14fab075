package cache

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/TrackFox/internal/pkg/config"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the Redis client. An unreachable server is logged,
// callers fall back to in-process state where they can.
func SetupCache(cfg config.Cache) *redis.Client {
	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warnf("[Cache] Could not connect to Redis at %s: %v", cfg.Addr(), err)
	} else {
		log.Infof("[Cache] Connected to Redis at %s", cfg.Addr())
	}
	return client
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache(config.Cache{Host: "localhost", Port: "6379"})
	}
	return client
}

// SetClient replaces the shared client, used by tests.
func SetClient(c *redis.Client) {
	client = c
}

// Available reports whether Redis answers a ping.
func Available(c context.Context) bool {
	pingCtx, cancel := context.WithTimeout(c, time.Second)
	defer cancel()
	return GetClient().Ping(pingCtx).Err() == nil
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// SetNX stores a value only if key does not exist yet
func SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	return GetClient().SetNX(ctx, key, value, expiration).Result()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// Delete removes a value from the cache by key
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}
