package controllers

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// readinessTimeout bounds all dependency checks of one readiness request.
const readinessTimeout = 3 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HandleHealth reports liveness for load balancers.
func HandleHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// HandleReady returns a handler that runs every check and answers 503 when
// one of them fails.
func HandleReady(checks map[string]HealthCheck) fiber.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
		defer cancel()

		results := make(map[string]string, len(names))
		healthy := true
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				log.Warnf("[Health] %s check failed: %v", name, err)
				results[name] = "unavailable"
				healthy = false
				continue
			}
			results[name] = "ok"
		}

		if !healthy {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "checks": results})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok", "checks": results})
	}
}
