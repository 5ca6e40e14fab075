package constants

// Route constants of the public surface
const (
	APIPrefix     = "/api"
	APIV1Prefix   = "/v1"
	MetricsRoute  = "/metrics"
	DocsBasePath  = "/docs/api/"
	HealthRoute   = "/health"
	ReadyRoute    = "/health/ready"
	WebhookRoute  = "/webhooks/:workspaceId/:webhookId"
	SyncRunRoute  = "/sync/run"
	SyncConnRoute = "/sync/connections/:id"
)
