package retry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for retried operations.
type Metrics struct {
	attemptsTotal   *prometheus.CounterVec
	outcomesTotal   *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	backoffDuration *prometheus.HistogramVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton retry metrics.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

func newMetrics() *Metrics {
	return &Metrics{
		attemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ordcatalog",
				Subsystem: "retry",
				Name:      "attempts_total",
				Help:      "Total number of retry attempts",
			},
			[]string{"operation"},
		),
		outcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ordcatalog",
				Subsystem: "retry",
				Name:      "outcomes_total",
				Help:      "Total number of retried operations by final result",
			},
			[]string{"operation", "result"},
		),
		duration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ordcatalog",
				Subsystem: "retry",
				Name:      "duration_seconds",
				Help:      "Total duration of retried operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		),
		backoffDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ordcatalog",
				Subsystem: "retry",
				Name:      "backoff_duration_seconds",
				Help:      "Duration of backoff waits",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
	}
}

// MustRegister registers the collectors with a custom registry so they
// are served next to the HTTP metrics.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.attemptsTotal,
		m.outcomesTotal,
		m.duration,
		m.backoffDuration,
	)
}

// RecordAttempt records a retry and the backoff that precedes it.
func (m *Metrics) RecordAttempt(operation string, backoff time.Duration) {
	m.attemptsTotal.WithLabelValues(operation).Inc()
	m.backoffDuration.WithLabelValues(operation).Observe(backoff.Seconds())
}

// RecordOutcome records the final result of a retried operation.
func (m *Metrics) RecordOutcome(operation string, success bool, d time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.outcomesTotal.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation, result).Observe(d.Seconds())
}
