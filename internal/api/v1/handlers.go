package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/ManuelReschke/TrackFox/app/controllers"
)

// APIServer implements the /api/v1 surface
type APIServer struct {
	webhooks *controllers.WebhookController
	sync     *controllers.SyncController
	ready    fiber.Handler
}

// NewAPIServer creates a new API server instance
func NewAPIServer(webhooks *controllers.WebhookController, sync *controllers.SyncController) *APIServer {
	return &APIServer{webhooks: webhooks, sync: sync}
}

// WithReadiness enables dependency checks on the readiness endpoint.
func (s *APIServer) WithReadiness(checks map[string]controllers.HealthCheck) *APIServer {
	s.ready = controllers.HandleReady(checks)
	return s
}

// GetHealth handles the liveness endpoint
func (s *APIServer) GetHealth(c *fiber.Ctx) error {
	return controllers.HandleHealth(c)
}

// GetReady reports whether the database and cache answer. Without configured
// checks it behaves like GetHealth.
func (s *APIServer) GetReady(c *fiber.Ctx) error {
	if s.ready == nil {
		return controllers.HandleHealth(c)
	}
	return s.ready(c)
}

// PostWebhook ingests a platform delivery. Authentication is the endpoint's
// signature secret, not an API key.
func (s *APIServer) PostWebhook(c *fiber.Ctx) error {
	return s.webhooks.HandleReceive(c)
}

// PostSyncRun syncs the due batch. Security is enforced via the scheduler
// token middleware attached in RegisterHandlers.
func (s *APIServer) PostSyncRun(c *fiber.Ctx) error {
	if s.sync == nil {
		return notConfigured(c)
	}
	return s.sync.HandleRunDue(c)
}

// PostSyncConnection syncs one connection
func (s *APIServer) PostSyncConnection(c *fiber.Ctx) error {
	if s.sync == nil {
		return notConfigured(c)
	}
	return s.sync.HandleRunConnection(c)
}

func notConfigured(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":   "service_unavailable",
		"message": "Sync is not configured on this instance",
	})
}
