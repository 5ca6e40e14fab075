package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TrackFox/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the wired handlers and settings the routers mount.
type Dependencies struct {
	Webhooks        *controllers.WebhookController
	Sync            *controllers.SyncController
	ReadyChecks     map[string]controllers.HealthCheck
	TriggerToken    string
	WebhookThrottle fiber.Handler
	// APIRateLimit is requests per minute per IP on /api. Zero disables it.
	APIRateLimit int
	// LimiterStorage shares limiter counters across instances. Nil keeps them in memory.
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewHttpRouter(), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
