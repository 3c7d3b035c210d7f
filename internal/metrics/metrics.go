// Package metrics exposes the order lifecycle core's prometheus
// collectors: HTTP request metrics and the background scheduler's job
// run counters.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordercore_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ordercore_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ordercore_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed.",
		},
	)

	// SchedulerJobRuns counts each scheduled sweep's outcome, labeled by
	// job name and "ok"/"error".
	SchedulerJobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordercore_scheduler_job_runs_total",
			Help: "Total scheduled background job runs, by job and outcome.",
		},
		[]string{"job", "outcome"},
	)

	// SchedulerJobDuration observes how long each sweep took.
	SchedulerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ordercore_scheduler_job_duration_seconds",
			Help:    "Scheduled background job duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// PaymentWebhooksTotal counts inbound gateway webhook deliveries, by
	// outcome (accepted/read_error/invalid_signature/amount_mismatch/error).
	PaymentWebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordercore_payment_webhooks_total",
			Help: "Total inbound payment gateway webhook deliveries, by outcome.",
		},
		[]string{"outcome"},
	)
)

// EchoMiddleware records request count/duration/in-flight for every
// request except the metrics endpoint itself.
func EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}

			start := time.Now()
			HTTPRequestsInFlight.Inc()
			defer HTTPRequestsInFlight.Dec()

			err := next(c)

			endpoint := c.Path()
			if endpoint == "" {
				endpoint = c.Request().URL.Path
			}
			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method

			HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
			HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
