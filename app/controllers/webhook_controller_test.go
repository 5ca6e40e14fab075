package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TrackFox/app/models"
	"github.com/ManuelReschke/TrackFox/app/repository"
	"github.com/ManuelReschke/TrackFox/internal/pkg/testutil"
	"github.com/ManuelReschke/TrackFox/internal/pkg/webhook"
)

const kiwifyPaid = `{
	"order_id": "kw-1",
	"order_status": "paid",
	"created_at": "2024-03-01 09:00:00",
	"Product": {"product_id": "p-1", "product_name": "Course"},
	"Customer": {"email": "buyer@example.com"},
	"Commissions": {"charge_amount": 19700, "currency": "BRL"},
	"TrackingParameters": {"utm_source": "facebook", "utm_campaign": "launch"}
}`

type webhookFixture struct {
	db    *gorm.DB
	repos *repository.Repositories
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	db := testutil.NewTestDB(t)
	return &webhookFixture{db: db, repos: repository.NewRepositories(db)}
}

func (f *webhookFixture) endpoint(t *testing.T, platform models.WebhookPlatform, secret string) *models.WebhookEndpoint {
	t.Helper()
	ep := &models.WebhookEndpoint{WorkspaceID: "ws-1", Name: "test", Platform: platform, SecretKey: secret}
	require.NoError(t, f.repos.WebhookEndpoint.Create(ep))
	return ep
}

func (f *webhookFixture) app(wc *WebhookController) *fiber.App {
	app := fiber.New()
	app.Post("/api/v1/webhooks/:workspaceId/:webhookId", wc.HandleReceive)
	return app
}

func (f *webhookFixture) sales(t *testing.T, endpointID uint) []models.Sale {
	t.Helper()
	var sales []models.Sale
	require.NoError(t, f.db.Where("webhook_endpoint_id = ?", endpointID).Order("id").Find(&sales).Error)
	return sales
}

func deliver(t *testing.T, app *fiber.App, ep *models.WebhookEndpoint, body string, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	return deliverTo(t, app, "/api/v1/webhooks/"+ep.WorkspaceID+"/"+ep.UUID, body, headers)
}

func deliverTo(t *testing.T, app *fiber.App, path, body string, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestWebhookSignedDeliveryIsStored(t *testing.T) {
	f := newWebhookFixture(t)
	ep := f.endpoint(t, models.WebhookPlatformKiwify, "kiwi-secret")
	app := f.app(NewWebhookController(f.repos, nil, WebhookOptions{}))

	status, body := deliver(t, app, ep, kiwifyPaid, map[string]string{
		"X-Kiwify-Signature": webhook.SignPayload([]byte(kiwifyPaid), "kiwi-secret"),
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Nil(t, body["duplicate"])

	sales := f.sales(t, ep.ID)
	require.Len(t, sales, 1)
	sale := sales[0]
	assert.Equal(t, "kw-1", sale.TransactionID)
	assert.Equal(t, models.SaleStatusApproved, sale.Status)
	assert.True(t, decimal.RequireFromString("197.00").Equal(sale.Amount), sale.Amount.String())
	assert.Equal(t, "BRL", sale.Currency)
	assert.Equal(t, "ws-1", sale.WorkspaceID)
	assert.Equal(t, "facebook", sale.UTMSource)
	assert.Len(t, sale.CustomerEmailHash, 64)
	assert.NotContains(t, sale.CustomerEmailHash, "buyer")
	assert.JSONEq(t, kiwifyPaid, string(sale.RawPayload))

	stored, err := f.repos.WebhookEndpoint.GetByID(ep.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.TotalReceived)
	assert.NotNil(t, stored.LastReceivedAt)
}

func TestWebhookRejections(t *testing.T) {
	f := newWebhookFixture(t)
	ep := f.endpoint(t, models.WebhookPlatformKiwify, "kiwi-secret")
	inactive := f.endpoint(t, models.WebhookPlatformCustom, "")
	require.NoError(t, f.db.Model(&models.WebhookEndpoint{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)
	app := f.app(NewWebhookController(f.repos, nil, WebhookOptions{}))

	status, body := deliverTo(t, app, "/api/v1/webhooks/ws-1/does-not-exist", kiwifyPaid, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", body["error"])

	// Right id, wrong workspace
	status, _ = deliverTo(t, app, "/api/v1/webhooks/ws-2/"+ep.UUID, kiwifyPaid, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = deliver(t, app, inactive, `{"id":"1"}`, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["error"])

	for _, malformed := range []string{`not json`, `[1,2]`, ``, `{"truncated":`} {
		status, body = deliver(t, app, ep, malformed, nil)
		assert.Equal(t, fiber.StatusBadRequest, status, malformed)
		assert.Equal(t, "bad_request", body["error"])
	}

	status, body = deliver(t, app, ep, kiwifyPaid, map[string]string{
		"X-Kiwify-Signature": webhook.SignPayload([]byte(kiwifyPaid), "other-secret"),
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body["error"])

	assert.Empty(t, f.sales(t, ep.ID))
	stored, err := f.repos.WebhookEndpoint.GetByID(ep.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.TotalReceived)
}

func TestWebhookMissingSignature(t *testing.T) {
	f := newWebhookFixture(t)
	ep := f.endpoint(t, models.WebhookPlatformKiwify, "kiwi-secret")

	lenient := f.app(NewWebhookController(f.repos, nil, WebhookOptions{}))
	status, _ := deliver(t, lenient, ep, kiwifyPaid, nil)
	assert.Equal(t, fiber.StatusOK, status)

	strict := f.app(NewWebhookController(f.repos, nil, WebhookOptions{RequireSignature: true}))
	refund := strings.Replace(kiwifyPaid, `"paid"`, `"refunded"`, 1)
	status, _ = deliver(t, strict, ep, refund, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	assert.Len(t, f.sales(t, ep.ID), 1)
}

func TestWebhookGenericSignatureHeaderWins(t *testing.T) {
	f := newWebhookFixture(t)
	ep := f.endpoint(t, models.WebhookPlatformKiwify, "kiwi-secret")
	app := f.app(NewWebhookController(f.repos, nil, WebhookOptions{}))

	status, _ := deliver(t, app, ep, kiwifyPaid, map[string]string{
		"X-Webhook-Signature": "deadbeef",
		"X-Kiwify-Signature":  webhook.SignPayload([]byte(kiwifyPaid), "kiwi-secret"),
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestWebhookStripeCompositeSignature(t *testing.T) {
	f := newWebhookFixture(t)
	ep := f.endpoint(t, models.WebhookPlatformStripe, "whsec")
	app := f.app(NewWebhookController(f.repos, nil, WebhookOptions{}))

	payload := `{"id":"evt_1","type":"charge.succeeded","data":{"object":{"id":"ch_1","object":"charge","amount":2599,"currency":"usd","status":"succeeded","metadata":{"utm_source":"newsletter"}}}}`
	status, _ := deliver(t, app, ep, payload, map[string]string{
		"Stripe-Signature": "t=1700000000,v1=" + webhook.SignPayload([]byte(payload), "whsec"),
	})
	assert.Equal(t, fiber.StatusOK, status)

	sales := f.sales(t, ep.ID)
	require.Len(t, sales, 1)
	assert.True(t, decimal.RequireFromString("25.99").Equal(sales[0].Amount), sales[0].Amount.String())
	assert.Equal(t, "USD", sales[0].Currency)
}

func TestWebhookHotmartEmbeddedToken(t *testing.T) {
	f := newWebhookFixture(t)
	ep := f.endpoint(t, models.WebhookPlatformHotmart, "hot-token")
	app := f.app(NewWebhookController(f.repos, nil, WebhookOptions{}))

	valid := `{"hottok":"hot-token","event":"PURCHASE_APPROVED","data":{"purchase":{"transaction":"HP-1","status":"APPROVED","price":{"value":49.9,"currency_value":"BRL"}}}}`
	status, _ := deliver(t, app, ep, valid, nil)
	assert.Equal(t, fiber.StatusOK, status)

	// The token travels in the body, so a missing header does not skip the check
	noToken := `{"event":"PURCHASE_APPROVED","data":{"purchase":{"transaction":"HP-2"}}}`
	status, _ = deliver(t, app, ep, noToken, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = deliver(t, app, ep, noToken, map[string]string{"X-Hotmart-Hottok": "hot-token"})
	assert.Equal(t, fiber.StatusOK, status)

	wrong := strings.Replace(valid, `"hot-token"`, `"guess"`, 1)
	status, _ = deliver(t, app, ep, wrong, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	sales := f.sales(t, ep.ID)
	require.Len(t, sales, 2)
	assert.Equal(t, models.SaleStatusApproved, sales[0].Status)
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	f := newWebhookFixture(t)
	ep := f.endpoint(t, models.WebhookPlatformKiwify, "")

	var archived []uint
	wc := NewWebhookController(f.repos, nil, WebhookOptions{}).WithArchive(func(s *models.Sale) error {
		archived = append(archived, s.ID)
		return nil
	})
	app := f.app(wc)

	status, body := deliver(t, app, ep, kiwifyPaid, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, body["duplicate"])

	status, body = deliver(t, app, ep, kiwifyPaid, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])

	// A lifecycle transition is a new row
	refund := strings.Replace(kiwifyPaid, `"paid"`, `"refunded"`, 1)
	status, body = deliver(t, app, ep, refund, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, body["duplicate"])

	sales := f.sales(t, ep.ID)
	require.Len(t, sales, 2)
	assert.Equal(t, models.SaleStatusRefunded, sales[1].Status)
	assert.Equal(t, []uint{sales[0].ID, sales[1].ID}, archived)

	stored, err := f.repos.WebhookEndpoint.GetByID(ep.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.TotalReceived)
}

func TestWebhookDegradedPayloadIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)
	ep := f.endpoint(t, models.WebhookPlatformEduzz, "")
	app := f.app(NewWebhookController(f.repos, nil, WebhookOptions{}))

	status, body := deliver(t, app, ep, `{"trans_value":{"weird":true},"trans_status":[1]}`, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])

	sales := f.sales(t, ep.ID)
	require.Len(t, sales, 1)
	assert.True(t, sales[0].Amount.Sign() >= 0)
	assert.True(t, sales[0].Status.IsValid())
	assert.NotEmpty(t, sales[0].TransactionID)
}

type failingCounters struct {
	repository.WebhookEndpointRepository
}

func (failingCounters) IncrementDeliveryCounters(uint, time.Time) error {
	return errors.New("lock wait timeout")
}

type failingSales struct {
	repository.SaleRepository
}

func (failingSales) CreateIfNotExists(*models.Sale) (bool, error) {
	return false, errors.New("connection refused")
}

func TestWebhookCounterFailureStillAcknowledges(t *testing.T) {
	f := newWebhookFixture(t)
	ep := f.endpoint(t, models.WebhookPlatformCustom, "")
	repos := *f.repos
	repos.WebhookEndpoint = failingCounters{f.repos.WebhookEndpoint}
	app := f.app(NewWebhookController(&repos, nil, WebhookOptions{}))

	status, _ := deliver(t, app, ep, `{"transaction_id":"c-1","status":"approved","amount":"10.00","currency":"EUR"}`, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, f.sales(t, ep.ID), 1)
}

func TestWebhookStoreFailureIsNotAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)
	ep := f.endpoint(t, models.WebhookPlatformCustom, "")
	repos := *f.repos
	repos.Sale = failingSales{f.repos.Sale}

	archiveCalled := false
	wc := NewWebhookController(&repos, nil, WebhookOptions{}).WithArchive(func(*models.Sale) error {
		archiveCalled = true
		return nil
	})
	app := f.app(wc)

	status, body := deliver(t, app, ep, `{"transaction_id":"c-1"}`, nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "internal_server_error", body["error"])
	assert.False(t, archiveCalled)
}

func TestWebhookArchiveFailureDoesNotChangeResponse(t *testing.T) {
	f := newWebhookFixture(t)
	ep := f.endpoint(t, models.WebhookPlatformCustom, "")
	wc := NewWebhookController(f.repos, nil, WebhookOptions{}).WithArchive(func(*models.Sale) error {
		return errors.New("redis down")
	})
	app := f.app(wc)

	status, body := deliver(t, app, ep, `{"transaction_id":"c-9"}`, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
}

func TestIsJSONObject(t *testing.T) {
	assert.True(t, isJSONObject([]byte(` {"a":1} `)))
	assert.True(t, isJSONObject([]byte(`{}`)))
	assert.False(t, isJSONObject([]byte(`[]`)))
	assert.False(t, isJSONObject([]byte(`"x"`)))
	assert.False(t, isJSONObject([]byte(`{`)))
	assert.False(t, isJSONObject(nil))
}
