package health

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HealthMetrics holds Prometheus metrics for health checks.
type HealthMetrics struct {
	checksTotal   *prometheus.CounterVec
	checkStatus   *prometheus.GaugeVec
	checkDuration *prometheus.HistogramVec
}

var (
	healthMetricsInstance *HealthMetrics
	healthMetricsOnce     sync.Once
)

// GetHealthMetrics returns the singleton health metrics instance.
func GetHealthMetrics() *HealthMetrics {
	healthMetricsOnce.Do(func() {
		healthMetricsInstance = newHealthMetrics(promauto.With(prometheus.DefaultRegisterer))
	})
	return healthMetricsInstance
}

// NewHealthMetrics creates metrics registered on reg only.
func NewHealthMetrics(reg prometheus.Registerer) *HealthMetrics {
	return newHealthMetrics(promauto.With(reg))
}

func newHealthMetrics(f promauto.Factory) *HealthMetrics {
	return &HealthMetrics{
		checksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ordcatalog",
				Subsystem: "health",
				Name:      "checks_total",
				Help:      "Total number of health checks performed",
			},
			[]string{"check", "result"},
		),
		checkStatus: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ordcatalog",
				Subsystem: "health",
				Name:      "check_status",
				Help:      "Current health check status (1=healthy, 0=unhealthy)",
			},
			[]string{"check"},
		),
		checkDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ordcatalog",
				Subsystem: "health",
				Name:      "check_duration_seconds",
				Help:      "Duration of health checks",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"check"},
		),
	}
}

// MustRegister registers the collectors with the registry that backs the
// metrics endpoint. promauto only registers them globally.
func (m *HealthMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.checksTotal,
		m.checkStatus,
		m.checkDuration,
	)
}

// RecordCheck records the outcome of one check run.
func (m *HealthMetrics) RecordCheck(check string, healthy bool, duration time.Duration) {
	result, status := "success", 1.0
	if !healthy {
		result, status = "failure", 0
	}
	m.checksTotal.WithLabelValues(check, result).Inc()
	m.checkStatus.WithLabelValues(check).Set(status)
	m.checkDuration.WithLabelValues(check).Observe(duration.Seconds())
}
