package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all gateway collectors. A dedicated registry keeps the
// admin endpoint free of default Go runtime noise duplication when the
// gateway is embedded.
var Registry = prometheus.NewRegistry()

var (
	// FirewallDecisions counts allow-check outcomes by tier.
	// outcome: "granted" | "denied"; tier: "unrestricted", "static",
	// "dynamic", "temporary", "none".
	FirewallDecisions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "secure_rpc_firewall_decisions_total",
			Help: "Firewall allow-check outcomes by tier.",
		},
		[]string{"outcome", "tier"},
	)

	// RequestsTotal counts firewall-denied and HTTP-forwarded requests by
	// method and response status.
	RequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "secure_rpc_requests_total",
			Help: "HTTP requests handled by the gateway.",
		},
		[]string{"method", "status"},
	)

	// RequestDuration observes the full request-to-response cycle in seconds.
	RequestDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "secure_rpc_request_duration_seconds",
			Help:    "Duration of proxied HTTP requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
	)

	// WSSessionsActive tracks currently bridged WebSocket sessions.
	WSSessionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "secure_rpc_websocket_sessions_active",
			Help: "WebSocket sessions currently bridged to the backend.",
		},
	)

	// WebhookDeliveries counts webhook POST attempts.
	// outcome: "ok" | "status_error" | "transport_error".
	WebhookDeliveries = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "secure_rpc_webhook_deliveries_total",
			Help: "Webhook event delivery attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// TemporaryGrantsSwept counts temporary access records removed by the
	// periodic sweep.
	TemporaryGrantsSwept = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "secure_rpc_temporary_grants_swept_total",
			Help: "Expired temporary access records removed by the cleanup task.",
		},
	)
)

// Handler returns the HTTP handler exposing the gateway registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
