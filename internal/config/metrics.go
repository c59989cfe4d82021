package config

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reload results.
const (
	reloadSuccess   = "success"
	reloadFailure   = "failure"
	reloadUnchanged = "unchanged"
)

// Metrics describes configuration reloads.
type Metrics struct {
	reloadsTotal *prometheus.CounterVec
	lastSuccess  prometheus.Gauge
}

// GetMetrics returns the process wide reload metrics.
var GetMetrics = sync.OnceValue(func() *Metrics {
	return &Metrics{
		reloadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordcatalog",
			Subsystem: "config",
			Name:      "reloads_total",
			Help:      "Configuration file reloads by result",
		}, []string{"result"}),
		lastSuccess: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "ordcatalog",
			Subsystem: "config",
			Name:      "last_reload_success_timestamp_seconds",
			Help:      "Unix time of the last configuration reload that was applied",
		}),
	}
})

// MustRegister adds the collectors to registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(m.reloadsTotal, m.lastSuccess)
}

// Init exports every result series before the first reload.
func (m *Metrics) Init() {
	for _, result := range []string{reloadSuccess, reloadFailure, reloadUnchanged} {
		m.reloadsTotal.WithLabelValues(result)
	}
}

func (m *Metrics) recordReload(result string) {
	m.reloadsTotal.WithLabelValues(result).Inc()
	if result == reloadSuccess {
		m.lastSuccess.Set(float64(time.Now().Unix()))
	}
}
