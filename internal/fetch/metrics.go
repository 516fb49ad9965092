package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors updated by a Client.
//
// Available metrics:
//   - citius_requests_total{step, status} (Counter): exchanges by step and HTTP status
//   - citius_request_duration_seconds{step} (Histogram): exchange duration by step
//   - citius_retries_total{error_class} (Counter): retry attempts by error class
//   - citius_retry_backoff_seconds{error_class} (Histogram): backoff waited before a retry
//   - citius_retry_exhausted_total{error_class} (Counter): requests that ran out of attempts
//   - citius_session_expired_total (Counter): session-expired responses
type Metrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	retries        *prometheus.CounterVec
	backoff        *prometheus.HistogramVec
	retryExhausted *prometheus.CounterVec
	sessionExpired prometheus.Counter
}

// NewMetrics registers the fetch collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "citius_requests_total",
			Help: "Total number of portal requests by step and HTTP status",
		}, []string{"step", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "citius_request_duration_seconds",
			Help:    "Portal request duration by step",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"step"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "citius_retries_total",
			Help: "Total number of retry attempts by error class",
		}, []string{"error_class"}),
		backoff: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "citius_retry_backoff_seconds",
			Help:    "Backoff duration before a retry by error class",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30},
		}, []string{"error_class"}),
		retryExhausted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "citius_retry_exhausted_total",
			Help: "Total number of requests that exhausted their retry attempts",
		}, []string{"error_class"}),
		sessionExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "citius_session_expired_total",
			Help: "Total number of session-expired responses",
		}),
	}
}
