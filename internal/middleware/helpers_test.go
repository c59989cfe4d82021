package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// observedLogger returns a logger whose entries can be inspected.
func observedLogger(level zapcore.Level) (observability.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return observability.NewLoggerFromZap(zap.New(core)), logs
}

// counterValue reads a counter from reg by name and one label pair.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
