package middleware

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons a request is answered by the middleware chain instead of the
// catalog handler.
const (
	reasonRateLimited = "rate_limited"
	reasonCircuitOpen = "circuit_open"
	reasonTimeout     = "timeout"
)

// MiddlewareMetrics counts what the middleware chain does to requests.
type MiddlewareMetrics struct {
	rejections  *prometheus.CounterVec
	panics      prometheus.Counter
	transitions *prometheus.CounterVec
	compact     *prometheus.CounterVec
}

var (
	middlewareMetrics     *MiddlewareMetrics
	middlewareMetricsOnce sync.Once
)

// GetMiddlewareMetrics returns the process wide middleware metrics.
func GetMiddlewareMetrics() *MiddlewareMetrics {
	middlewareMetricsOnce.Do(func() {
		const ns, sub = "ordcatalog", "middleware"
		middlewareMetrics = &MiddlewareMetrics{
			rejections: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: ns, Subsystem: sub,
				Name: "rejections_total",
				Help: "Requests answered without reaching the catalog, by reason",
			}, []string{"reason"}),
			panics: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: ns, Subsystem: sub,
				Name: "panics_recovered_total",
				Help: "Handler panics turned into 500 responses",
			}),
			transitions: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: ns, Subsystem: sub,
				Name: "circuit_breaker_transitions_total",
				Help: "Circuit breaker state changes",
			}, []string{"name", "from", "to"}),
			compact: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: ns, Subsystem: sub,
				Name: "compact_requests_total",
				Help: "Responses seen by the compact interceptor, by outcome",
			}, []string{"outcome"}),
		}
	})
	return middlewareMetrics
}

// MustRegister adds the collectors to registry.
func (m *MiddlewareMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(m.rejections, m.panics, m.transitions, m.compact)
}

// Init exports the rejection and compact series before the first request.
func (m *MiddlewareMetrics) Init() {
	for _, reason := range []string{reasonRateLimited, reasonCircuitOpen, reasonTimeout} {
		m.rejections.WithLabelValues(reason)
	}
	for _, outcome := range []string{compactOutcomeCompacted, compactOutcomePassthrough, compactOutcomeError} {
		m.compact.WithLabelValues(outcome)
	}
}

func (m *MiddlewareMetrics) rejected(reason string) {
	m.rejections.WithLabelValues(reason).Inc()
}
