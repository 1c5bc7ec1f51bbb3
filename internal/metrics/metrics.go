// Package metrics collects Prometheus metrics for the auth service and
// exposes them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/authcore/internal/apperror"
)

// outcomeSuccess labels an authentication attempt that succeeded.
const outcomeSuccess = "success"

// Collector records authentication outcomes and HTTP traffic.
//
// It satisfies service.OutcomeRecorder, so the manager reports every login,
// session check and OAuth attempt without depending on this package.
type Collector struct {
	authOutcomes *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
	httpLatency  prometheus.Histogram
	rateLimited  *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_auth_outcomes_total",
			Help: "Authentication attempts by operation and outcome code.",
		}, []string{"operation", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authcore_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_rate_limited_total",
			Help: "Requests rejected by a rate limiter.",
		}, []string{"limiter"}),
	}

	reg.MustRegister(c.authOutcomes, c.httpStatus, c.httpLatency, c.rateLimited)

	// Pre-create the success series so dashboards show zeros instead of
	// missing series.
	for _, op := range []string{"register", "login", "check_session", "oauth_login"} {
		c.authOutcomes.WithLabelValues(op, outcomeSuccess)
	}

	return c
}

// RecordOutcome counts one authentication attempt. An empty code is a success.
func (c *Collector) RecordOutcome(operation string, code apperror.Code) {
	outcome := outcomeSuccess
	if code != "" {
		outcome = string(code)
	}
	c.authOutcomes.WithLabelValues(operation, outcome).Inc()
}

// RecordHTTP counts a finished HTTP request.
func (c *Collector) RecordHTTP(statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordRateLimited counts a request rejected by the named limiter.
func (c *Collector) RecordRateLimited(limiter string) {
	c.rateLimited.WithLabelValues(limiter).Inc()
}

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
