package router

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/TrackFox/internal/pkg/config"
)

// limiterDatabase keeps limiter keys apart from the cache and job queue.
const limiterDatabase = 1

// NewLimiterStorage returns a Redis backed storage for the /api limiter so
// every instance counts against the same window.
func NewLimiterStorage(cfg config.Cache) fiber.Storage {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		port = 6379
	}
	db := cfg.DB + limiterDatabase
	if db > 15 {
		db = limiterDatabase
	}
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: db,
		Reset:    false,
	})
}
