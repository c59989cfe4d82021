package transform

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	compactSuccess   = "success"
	compactMalformed = "malformed"
)

// Metrics describes response compaction.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
	saved    prometheus.Counter
}

// GetMetrics returns the process wide compaction metrics.
var GetMetrics = sync.OnceValue(func() *Metrics {
	return &Metrics{
		runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordcatalog",
			Subsystem: "transform",
			Name:      "compactions_total",
			Help:      "Compacted response bodies by result (success, malformed)",
		}, []string{"result"}),
		duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ordcatalog",
			Subsystem: "transform",
			Name:      "compaction_duration_seconds",
			Help:      "Time spent compacting one response body",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		}),
		saved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "ordcatalog",
			Subsystem: "transform",
			Name:      "bytes_saved_total",
			Help:      "Response bytes removed by compaction",
		}),
	}
})

// MustRegister adds the collectors to registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(m.runs, m.duration, m.saved)
}

// Init exports both result series before the first compaction.
func (m *Metrics) Init() {
	m.runs.WithLabelValues(compactSuccess)
	m.runs.WithLabelValues(compactMalformed)
}

// observe records one compaction. in and out are body sizes; a failed run
// only counts the result.
func (m *Metrics) observe(start time.Time, in, out int, err error) {
	if err != nil {
		m.runs.WithLabelValues(compactMalformed).Inc()
		return
	}
	m.runs.WithLabelValues(compactSuccess).Inc()
	m.duration.Observe(time.Since(start).Seconds())
	if in > out {
		m.saved.Add(float64(in - out))
	}
}
