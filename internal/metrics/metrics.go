package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Bridge HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidesk_http_requests_total",
			Help: "Total bridge HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aidesk_http_request_duration_seconds",
			Help:    "Bridge HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Outbound API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidesk_api_requests_total",
			Help: "Total requests sent to the dashboard API",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aidesk_api_request_duration_seconds",
			Help:    "Dashboard API request latency",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aidesk_auth_failures_total",
			Help: "Requests rejected with 401 or skipped for lack of a token",
		},
	)

	// Realtime metrics
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidesk_realtime_events_total",
			Help: "Realtime events received",
		},
		[]string{"type"},
	)

	RealtimeDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidesk_realtime_dropped_total",
			Help: "Realtime payloads dropped",
		},
		[]string{"reason"}, // "malformed", "unknown_type"
	)

	RealtimeReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aidesk_realtime_reconnects_total",
			Help: "Realtime connection attempts after the first",
		},
	)

	// Sync metrics
	StatsFetchesThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aidesk_stats_fetches_throttled_total",
			Help: "Stats fetches dropped by the throttle window",
		},
	)

	StaleResultsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidesk_stale_results_discarded_total",
			Help: "Async results discarded because newer state superseded them",
		},
		[]string{"operation"},
	)
)
