package cache

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"
)

var cacheOps = []string{"get", "set", "delete"}

// Metrics describes the response cache. Every series carries the backend
// label so memory and redis deployments share dashboards.
type Metrics struct {
	lookups   *prometheus.CounterVec
	evictions *prometheus.CounterVec
	entries   *prometheus.GaugeVec
	latency   *prometheus.HistogramVec
	failures  *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// GetMetrics returns the process wide cache metrics.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		opts := func(name, help string) prometheus.Opts {
			return prometheus.Opts{Namespace: "ordcatalog", Subsystem: "cache", Name: name, Help: help}
		}
		metrics = &Metrics{
			lookups: promauto.NewCounterVec(prometheus.CounterOpts(opts(
				"lookups_total", "Cache reads by result (hit, miss, error)")),
				[]string{"backend", "result"}),
			evictions: promauto.NewCounterVec(prometheus.CounterOpts(opts(
				"evictions_total", "Entries dropped to stay within maxEntries")),
				[]string{"backend"}),
			entries: promauto.NewGaugeVec(prometheus.GaugeOpts(opts(
				"entries", "Entries held by the cache, where the backend knows it")),
				[]string{"backend"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ordcatalog",
				Subsystem: "cache",
				Name:      "operation_duration_seconds",
				Help:      "Latency of cache operations",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
			}, []string{"backend", "operation"}),
			failures: promauto.NewCounterVec(prometheus.CounterOpts(opts(
				"failures_total", "Cache operations that returned an error other than a miss")),
				[]string{"backend", "operation"}),
		}
	})
	return metrics
}

// MustRegister adds the collectors to registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(m.lookups, m.evictions, m.entries, m.latency, m.failures)
}

// Init exports every series before the first cache operation.
func (m *Metrics) Init() {
	for _, backend := range []string{backendMemory, backendRedis} {
		for _, result := range []string{resultHit, resultMiss, resultError} {
			m.lookups.WithLabelValues(backend, result)
		}
		m.evictions.WithLabelValues(backend)
		m.entries.WithLabelValues(backend)
		for _, op := range cacheOps {
			m.latency.WithLabelValues(backend, op)
			m.failures.WithLabelValues(backend, op)
		}
	}
}

func (m *Metrics) lookup(backend, result string) {
	m.lookups.WithLabelValues(backend, result).Inc()
}

func (m *Metrics) evicted(backend string) {
	m.evictions.WithLabelValues(backend).Inc()
}

func (m *Metrics) setEntries(backend string, n int) {
	m.entries.WithLabelValues(backend).Set(float64(n))
}

func (m *Metrics) failed(backend, op string) {
	m.failures.WithLabelValues(backend, op).Inc()
}

// timed records the latency of op once the returned func is called.
func (m *Metrics) timed(backend, op string) func() {
	start := time.Now()
	return func() {
		m.latency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	}
}
