package controllers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TrackFox/internal/pkg/adsync"
)

// SyncRunner executes sync runs
type SyncRunner interface {
	SyncConnection(ctx context.Context, id uint) adsync.Result
	SyncDue(ctx context.Context, limit int) ([]adsync.Result, error)
}

// SyncController exposes the scheduler trigger endpoints.
type SyncController struct {
	runner  SyncRunner
	timeout time.Duration
}

func NewSyncController(runner SyncRunner, timeout time.Duration) *SyncController {
	return &SyncController{runner: runner, timeout: timeout}
}

func (sc *SyncController) context(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if sc.timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), sc.timeout)
}

// HandleRunDue processes POST /api/v1/sync/run?limit=N
func (sc *SyncController) HandleRunDue(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 100 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "limit must be between 0 and 100"})
		}
		limit = n
	}

	ctx, cancel := sc.context(c)
	defer cancel()

	results, err := sc.runner.SyncDue(ctx, limit)
	if err != nil {
		log.Errorf("[Sync] Due run failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to select due connections"})
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"processed": len(results),
		"failed":    failed,
		"results":   results,
	})
}

// HandleRunConnection processes POST /api/v1/sync/connections/:id
func (sc *SyncController) HandleRunConnection(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid connection id"})
	}

	ctx, cancel := sc.context(c)
	defer cancel()

	res := sc.runner.SyncConnection(ctx, uint(id))
	if res.NotFound {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": res.Error})
	}
	if res.Skipped {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": res.Error})
	}
	return c.Status(fiber.StatusOK).JSON(res)
}
