package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TrackFox/internal/pkg/metrics"
	"github.com/ManuelReschke/TrackFox/internal/pkg/resilience"
)

// WebhookThrottle limits deliveries per webhook endpoint with a fixed window.
// A non-positive limit disables it. Limiter failures let the request through.
func WebhookThrottle(limiter *resilience.RateLimiter, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil || limit <= 0 {
			return c.Next()
		}

		key := "webhook:" + c.Params("workspaceId") + ":" + c.Params("webhookId")
		d, err := limiter.Check(c.UserContext(), key, window, limit)
		if err != nil {
			log.Errorf("[Webhook] Rate limiter unavailable: %v", err)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Set("X-RateLimit-Reset", strconv.Itoa(int(math.Ceil(d.ResetIn.Seconds()))))
		if !d.Allowed {
			metrics.ObserveRateLimited("webhook")
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(d.ResetIn.Seconds()))))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too_many_requests", "message": "Rate limit exceeded"})
		}
		return c.Next()
	}
}
