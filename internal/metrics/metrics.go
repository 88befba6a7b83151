// Package metrics exposes prometheus instrumentation for the capture
// service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors recorded by the HTTP layer.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	submissionsTotal *prometheus.CounterVec
	notifierFailures *prometheus.CounterVec
	inFlight         prometheus.Gauge
}

// New registers the service collectors on the given registerer. Pass
// prometheus.DefaultRegisterer in the binary.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_http_requests_total",
			Help: "HTTP requests processed, by method, action and status.",
		}, []string{"method", "action", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "capture_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "action"}),
		submissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_submissions_total",
			Help: "Submission outcomes, by capture and result.",
		}, []string{"capture", "result"}),
		notifierFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_notifier_failures_total",
			Help: "External notifier failures after persistence.",
		}, []string{"capture"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "capture_http_requests_in_flight",
			Help: "Requests currently being served.",
		}),
	}
}

// RecordRequest counts one finished HTTP request.
func (m *Metrics) RecordRequest(method, action, status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, action, status).Inc()
	m.requestDuration.WithLabelValues(method, action).Observe(duration.Seconds())
}

// RecordSubmission counts one submission outcome: accepted, rejected or
// failed.
func (m *Metrics) RecordSubmission(capture, result string) {
	m.submissionsTotal.WithLabelValues(capture, result).Inc()
}

// RecordNotifierFailure counts a failed external notification.
func (m *Metrics) RecordNotifierFailure(capture string) {
	m.notifierFailures.WithLabelValues(capture).Inc()
}

// IncrementInFlight marks a request as started.
func (m *Metrics) IncrementInFlight() { m.inFlight.Inc() }

// DecrementInFlight marks a request as finished.
func (m *Metrics) DecrementInFlight() { m.inFlight.Dec() }
