package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TrackFox/app/models"
	"github.com/ManuelReschke/TrackFox/app/repository"
	"github.com/ManuelReschke/TrackFox/internal/pkg/metrics"
	"github.com/ManuelReschke/TrackFox/internal/pkg/webhook"
)

// Delivery outcomes reported to metrics.
const (
	outcomeAccepted     = "accepted"
	outcomeDegraded     = "degraded"
	outcomeDuplicate    = "duplicate"
	outcomeNotFound     = "not_found"
	outcomeInactive     = "inactive"
	outcomeBadRequest   = "bad_request"
	outcomeUnauthorized = "unauthorized"
	outcomeError        = "error"
)

// WebhookOptions tunes the ingestion pipeline.
type WebhookOptions struct {
	// RequireSignature rejects deliveries without a signature header when the
	// endpoint has a secret.
	RequireSignature bool
}

// WebhookController ingests payment platform deliveries.
type WebhookController struct {
	endpoints repository.WebhookEndpointRepository
	sales     repository.SaleRepository
	registry  *webhook.Registry
	opts      WebhookOptions
	archive   func(sale *models.Sale) error
	now       func() time.Time
}

func NewWebhookController(repos *repository.Repositories, registry *webhook.Registry, opts WebhookOptions) *WebhookController {
	if registry == nil {
		registry = webhook.DefaultRegistry()
	}
	return &WebhookController{
		endpoints: repos.WebhookEndpoint,
		sales:     repos.Sale,
		registry:  registry,
		opts:      opts,
		now:       time.Now,
	}
}

// WithArchive sets the hook called for every newly stored sale. Errors are
// logged and never change the response.
func (wc *WebhookController) WithArchive(fn func(sale *models.Sale) error) *WebhookController {
	wc.archive = fn
	return wc
}

// HandleReceive processes POST /api/v1/webhooks/:workspaceId/:webhookId
func (wc *WebhookController) HandleReceive(c *fiber.Ctx) error {
	workspaceID := c.Params("workspaceId")
	webhookID := c.Params("webhookId")

	endpoint, err := wc.endpoints.FindByWorkspaceAndUUID(workspaceID, webhookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.ObserveWebhook("unknown", outcomeNotFound)
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Webhook not found"})
		}
		log.Errorf("[Webhook] Endpoint lookup failed for %s/%s: %v", workspaceID, webhookID, err)
		metrics.ObserveWebhook("unknown", outcomeError)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load webhook"})
	}
	platform := string(endpoint.Platform)

	if !endpoint.IsActive {
		metrics.ObserveWebhook(platform, outcomeInactive)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Webhook is inactive"})
	}

	body := c.Body()
	if !isJSONObject(body) {
		metrics.ObserveWebhook(platform, outcomeBadRequest)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Body must be a JSON object"})
	}

	if endpoint.HasSecret() && !wc.authenticate(c, endpoint, body) {
		log.Warnf("[Webhook] Signature rejected for endpoint %d (%s)", endpoint.ID, platform)
		metrics.ObserveWebhook(platform, outcomeUnauthorized)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid signature"})
	}

	normalized := wc.registry.Normalize(endpoint.Platform, body)
	sale := normalized.ToModel(endpoint, body)

	created, err := wc.sales.CreateIfNotExists(sale)
	if err != nil {
		// Not acknowledged, so the platform redelivers. Redeliveries are deduplicated.
		log.Errorf("[Webhook] Failed to store sale for endpoint %d: %v", endpoint.ID, err)
		metrics.ObserveWebhook(platform, outcomeError)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store sale"})
	}

	if err := wc.endpoints.IncrementDeliveryCounters(endpoint.ID, wc.now().UTC()); err != nil {
		log.Warnf("[Webhook] Delivery counters not updated for endpoint %d: %v", endpoint.ID, err)
	}

	if !created {
		log.Infof("[Webhook] Duplicate delivery %s (%s) for endpoint %d", sale.TransactionID, sale.Status, endpoint.ID)
		metrics.ObserveWebhook(platform, outcomeDuplicate)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "duplicate": true})
	}

	if normalized.Degraded {
		log.Warnf("[Webhook] Stored degraded sale %d for endpoint %d", sale.ID, endpoint.ID)
		metrics.ObserveWebhook(platform, outcomeDegraded)
	} else {
		log.Infof("[Webhook] Stored sale %d (%s %s) for endpoint %d", sale.ID, sale.Status, platform, endpoint.ID)
		metrics.ObserveWebhook(platform, outcomeAccepted)
	}

	if wc.archive != nil {
		if err := wc.archive(sale); err != nil {
			log.Warnf("[Webhook] Archive of sale %d not queued: %v", sale.ID, err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// authenticate applies the endpoint's signature check. A delivery without a
// signature header passes unless strict mode is on; platforms that carry the
// token in the body are always checked.
func (wc *WebhookController) authenticate(c *fiber.Ctx, endpoint *models.WebhookEndpoint, body []byte) bool {
	signature := firstHeaderValue(c, webhook.SignatureHeaders)
	if signature == "" && webhook.SchemeFor(endpoint.Platform) != webhook.SchemeEmbeddedToken {
		if wc.opts.RequireSignature {
			return false
		}
		log.Debugf("[Webhook] No signature header for endpoint %d, verification skipped", endpoint.ID)
		return true
	}
	return webhook.Verify(endpoint.Platform, endpoint.SecretKey, signature, body)
}

func firstHeaderValue(c *fiber.Ctx, headers []string) string {
	for _, h := range headers {
		if v := strings.TrimSpace(c.Get(h)); v != "" {
			return v
		}
	}
	return ""
}

func isJSONObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}
