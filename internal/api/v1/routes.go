package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TrackFox/internal/pkg/constants"
	"github.com/ManuelReschke/TrackFox/internal/pkg/middleware"
)

// RouteOptions carries the per-route middleware settings
type RouteOptions struct {
	TriggerToken    string
	WebhookThrottle fiber.Handler
}

// RegisterHandlers mounts the v1 routes on router
func RegisterHandlers(router fiber.Router, s *APIServer, opts RouteOptions) {
	router.Get(constants.HealthRoute, s.GetHealth)
	router.Get(constants.ReadyRoute, s.GetReady)

	webhookHandlers := []fiber.Handler{}
	if opts.WebhookThrottle != nil {
		webhookHandlers = append(webhookHandlers, opts.WebhookThrottle)
	}
	webhookHandlers = append(webhookHandlers, s.PostWebhook)
	router.Post(constants.WebhookRoute, webhookHandlers...)

	schedulerAuth := middleware.SchedulerTokenAuth(opts.TriggerToken)
	router.Post(constants.SyncRunRoute, schedulerAuth, s.PostSyncRun)
	router.Post(constants.SyncConnRoute, schedulerAuth, s.PostSyncConnection)
}
