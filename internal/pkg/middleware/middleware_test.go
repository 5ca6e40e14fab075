package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/TrackFox/internal/pkg/resilience"
)

func newTokenApp(token string) *fiber.App {
	app := fiber.New()
	app.Post("/run", SchedulerTokenAuth(token), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestSchedulerTokenAuth(t *testing.T) {
	app := newTokenApp("s3cret")

	tests := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{"api key header", "X-API-Key", "s3cret", fiber.StatusOK},
		{"bearer", "Authorization", "Bearer s3cret", fiber.StatusOK},
		{"bearer lowercase", "Authorization", "bearer s3cret", fiber.StatusOK},
		{"wrong token", "X-API-Key", "nope", fiber.StatusUnauthorized},
		{"prefix of token", "X-API-Key", "s3cre", fiber.StatusUnauthorized},
		{"missing", "", "", fiber.StatusUnauthorized},
		{"basic auth", "Authorization", "Basic s3cret", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodPost, "/run", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestSchedulerTokenAuthDisabledWithoutToken(t *testing.T) {
	app := newTokenApp("  ")

	req := httptest.NewRequest(fiber.MethodPost, "/run", nil)
	req.Header.Set("X-API-Key", "")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func newThrottleApp(limiter *resilience.RateLimiter, limit int) *fiber.App {
	app := fiber.New()
	app.Post("/hooks/:workspaceId/:webhookId", WebhookThrottle(limiter, limit, time.Minute), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func post(t *testing.T, app *fiber.App, path string) (int, string, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, path, nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, resp.Header.Get("X-RateLimit-Remaining"), string(body)
}

func TestWebhookThrottle(t *testing.T) {
	app := newThrottleApp(resilience.NewRateLimiter(resilience.NewMemoryStore()), 2)

	status, remaining, _ := post(t, app, "/hooks/ws/a")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "1", remaining)

	status, remaining, _ = post(t, app, "/hooks/ws/a")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "0", remaining)

	status, remaining, body := post(t, app, "/hooks/ws/a")
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "0", remaining)
	assert.Contains(t, body, "too_many_requests")

	// Another endpoint has its own window
	status, _, _ = post(t, app, "/hooks/ws/b")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestWebhookThrottleDisabled(t *testing.T) {
	app := newThrottleApp(resilience.NewRateLimiter(resilience.NewMemoryStore()), 0)

	for i := 0; i < 5; i++ {
		status, remaining, _ := post(t, app, "/hooks/ws/a")
		assert.Equal(t, fiber.StatusOK, status)
		assert.Empty(t, remaining)
	}

	status, _, _ := post(t, newThrottleApp(nil, 3), "/hooks/ws/a")
	assert.Equal(t, fiber.StatusOK, status)
}
