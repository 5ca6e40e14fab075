// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trackfox"

var (
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Inbound webhook deliveries by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)

	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Ad account sync runs by platform and final status",
		},
		[]string{"platform", "status"},
	)

	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of ad account sync runs",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"platform"},
	)

	CircuitTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_transitions_total",
			Help:      "Circuit breaker state transitions by dependency",
		},
		[]string{"key", "from", "to"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)
)

var registerOnce sync.Once

// Register adds all collectors to the default registry. Safe to call twice.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(WebhookDeliveries, SyncRuns, SyncDuration, CircuitTransitions, RateLimited)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

func ObserveWebhook(platform, outcome string) {
	WebhookDeliveries.WithLabelValues(platform, outcome).Inc()
}

func ObserveSync(platform, status string, took time.Duration) {
	SyncRuns.WithLabelValues(platform, status).Inc()
	SyncDuration.WithLabelValues(platform).Observe(took.Seconds())
}

func ObserveCircuitTransition(key, from, to string) {
	CircuitTransitions.WithLabelValues(key, from, to).Inc()
}

func ObserveRateLimited(scope string) {
	RateLimited.WithLabelValues(scope).Inc()
}
