package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookPlatform(t *testing.T) {
	tests := []struct {
		in   string
		want WebhookPlatform
		ok   bool
	}{
		{in: "hotmart", want: WebhookPlatformHotmart, ok: true},
		{in: " Stripe ", want: WebhookPlatformStripe, ok: true},
		{in: "CUSTOM", want: WebhookPlatformCustom, ok: true},
		{in: "paypal", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseWebhookPlatform(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSaleStatusIsValid(t *testing.T) {
	for _, s := range []SaleStatus{SaleStatusPending, SaleStatusApproved, SaleStatusRefunded, SaleStatusChargeback, SaleStatusCancelled} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, SaleStatus("paid").IsValid())
	assert.False(t, SaleStatus("").IsValid())
}

func TestWebhookEndpointValidate(t *testing.T) {
	ep := &WebhookEndpoint{WorkspaceID: "ws_1", Platform: WebhookPlatformKiwify}
	require.NoError(t, ep.Validate())
	assert.False(t, ep.HasSecret())

	ep.SecretKey = "  "
	assert.False(t, ep.HasSecret())
	ep.SecretKey = "s3cret"
	assert.True(t, ep.HasSecret())

	bad := &WebhookEndpoint{WorkspaceID: "ws_1", Platform: "PAYPAL"}
	assert.Error(t, bad.Validate())
}

func TestAdAccountConnectionSyncInterval(t *testing.T) {
	c := &AdAccountConnection{SyncFrequency: SyncFrequencyHourly}
	assert.Equal(t, time.Hour, c.SyncInterval())

	c.SyncFrequency = ""
	assert.Equal(t, 24*time.Hour, c.SyncInterval())
}

func TestAdAccountConnectionTokenExpiresWithin(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &AdAccountConnection{}
	assert.False(t, c.TokenExpiresWithin(now, time.Hour))

	soon := now.Add(30 * time.Minute)
	c.TokenExpiresAt = &soon
	assert.True(t, c.TokenExpiresWithin(now, time.Hour))
	assert.False(t, c.TokenExpiresWithin(now, 10*time.Minute))
}

func TestAdAccountConnectionValidate(t *testing.T) {
	c := &AdAccountConnection{WorkspaceID: "ws", Platform: AdPlatformMetaAds, ExternalAccountID: "act_1"}
	require.NoError(t, c.Validate())

	c.Platform = "TIKTOK"
	assert.Error(t, c.Validate())
}

func TestTruncateSyncError(t *testing.T) {
	assert.Equal(t, "boom", TruncateSyncError("  boom "))

	long := strings.Repeat("x", MaxSyncErrorLength+50)
	got := TruncateSyncError(long)
	assert.Len(t, []rune(got), MaxSyncErrorLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}
