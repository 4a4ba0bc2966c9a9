package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Fan-out and notification metrics
	NotificationsCreated  *prometheus.CounterVec
	FanoutRecipients      *prometheus.HistogramVec
	FanoutFailures        *prometheus.CounterVec
	FollowRequestsTotal   *prometheus.CounterVec
	PermissionDenialTotal *prometheus.CounterVec

	// Push delivery metrics
	PushDeliveriesTotal *prometheus.CounterVec
	PushDuration        prometheus.Histogram
	PushQueueDropped    prometheus.Counter
	PushQueueDepth      prometheus.Gauge

	// Live channel
	WebSocketConnections prometheus.Gauge

	// Error metrics
	ErrorsTotal            *prometheus.CounterVec
	RateLimitExceededTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of in-flight HTTP requests",
				},
				[]string{"method"},
			),

			NotificationsCreated: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notifications_created_total",
					Help: "Notification rows persisted, by type",
				},
				[]string{"type"},
			),
			FanoutRecipients: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "fanout_recipients",
					Help:    "Recipients resolved per dispatched event",
					Buckets: []float64{0, 1, 2, 5, 10, 50, 100, 500, 1000, 5000},
				},
				[]string{"action"},
			),
			FanoutFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fanout_recipient_failures_total",
					Help: "Recipients whose notification could not be persisted",
				},
				[]string{"action"},
			),
			FollowRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "follow_request_transitions_total",
					Help: "Follow request state changes",
				},
				[]string{"state"},
			),
			PermissionDenialTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "permission_denials_total",
					Help: "Actions refused by the owner's tier settings",
				},
				[]string{"action"},
			),

			PushDeliveriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "push_deliveries_total",
					Help: "Web Push delivery attempts by outcome",
				},
				[]string{"outcome"},
			),
			PushDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "push_delivery_duration_seconds",
					Help:    "Time spent talking to the push service",
					Buckets: prometheus.DefBuckets,
				},
			),
			PushQueueDropped: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "push_queue_dropped_total",
					Help: "Deliveries dropped because the push queue was full",
				},
			),
			PushQueueDepth: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "push_queue_depth",
					Help: "Deliveries waiting for a push worker",
				},
			),

			WebSocketConnections: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "websocket_connections",
					Help: "Open live-channel connections",
				},
			),

			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Requests rejected by a rate limiter",
				},
				[]string{"endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Initialize()
}
