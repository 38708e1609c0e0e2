package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Refresh pipeline
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brainapi_refresh_total",
			Help: "Refresh attempts by result",
		},
		[]string{"result"}, // "success", "network_error", "parse_error", "error"
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "brainapi_refresh_duration_seconds",
			Help:    "Duration of refresh runs including the upstream fetch",
			Buckets: prometheus.DefBuckets,
		},
	)

	DatasetRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brainapi_dataset_rows",
			Help: "Rows in the currently published dataset",
		},
	)

	// Upstream circuit breaker
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brainapi_upstream_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP surface
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brainapi_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brainapi_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordRefresh counts one refresh outcome and its duration.
func RecordRefresh(result string, d time.Duration) {
	RefreshTotal.WithLabelValues(result).Inc()
	RefreshDuration.Observe(d.Seconds())
}

// RecordAPIRequest records one served request.
func RecordAPIRequest(method, route, status string, d time.Duration) {
	APIRequests.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
