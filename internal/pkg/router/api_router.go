package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	apiv1 "github.com/ManuelReschke/TrackFox/internal/api/v1"
	"github.com/ManuelReschke/TrackFox/internal/pkg/constants"
	"github.com/ManuelReschke/TrackFox/internal/pkg/metrics"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	handlers := []fiber.Handler{}
	if h.deps.APIRateLimit > 0 {
		handlers = append(handlers, limiter.New(limiter.Config{
			Max:        h.deps.APIRateLimit,
			Expiration: time.Minute,
			Storage:    h.deps.LimiterStorage,
			LimitReached: func(c *fiber.Ctx) error {
				metrics.ObserveRateLimited("api")
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too_many_requests", "message": "Rate limit exceeded"})
			},
		}))
	}
	api := app.Group(constants.APIPrefix, handlers...)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group(constants.APIV1Prefix)
	apiServer := apiv1.NewAPIServer(h.deps.Webhooks, h.deps.Sync)
	if len(h.deps.ReadyChecks) > 0 {
		apiServer.WithReadiness(h.deps.ReadyChecks)
	}
	apiv1.RegisterHandlers(v1, apiServer, apiv1.RouteOptions{
		TriggerToken:    h.deps.TriggerToken,
		WebhookThrottle: h.deps.WebhookThrottle,
	})
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
