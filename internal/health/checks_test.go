package health

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDependencyCheck(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewHealthMetrics(reg)

	db := DatabaseCheck("database", healthy(), WithCheckMetrics(m))
	assert.Equal(t, "database", db.Name())
	assert.Equal(t, DependencyTypeDatabase, db.Type())
	assert.True(t, db.IsCritical())
	require.NoError(t, db.Check(context.Background()))

	c := CacheCheck("cache", failing("timeout"), WithCritical(false), WithCheckMetrics(m))
	assert.Equal(t, DependencyTypeCache, c.Type())
	assert.False(t, c.IsCritical())
	err := c.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache ping failed: timeout")

	assert.InDelta(t, 1, testutil.ToFloat64(m.checksTotal.WithLabelValues("database", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.checksTotal.WithLabelValues("cache", "failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.checkStatus.WithLabelValues("database")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.checkStatus.WithLabelValues("cache")), 0)
}

func TestCustomCheckIsCritical(t *testing.T) {
	t.Parallel()

	custom := NewDependencyCheck("seed", DependencyTypeCustom, func(context.Context) error { return nil })
	assert.True(t, isCritical(custom))
	assert.Same(t, GetHealthMetrics(), custom.metrics)
}

func TestHealthMetrics_MustRegister(t *testing.T) {
	t.Parallel()

	m := NewHealthMetrics(prometheus.NewRegistry())
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { m.MustRegister(reg) })

	m.RecordCheck("database", true, 0)
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 3)
}

func TestHealthMetrics_RecordCheckDuration(t *testing.T) {
	t.Parallel()

	m := NewHealthMetrics(prometheus.NewRegistry())
	m.RecordCheck("database", true, 20*time.Millisecond)
	m.RecordCheck("database", false, 40*time.Millisecond)

	observer, err := m.checkDuration.GetMetricWithLabelValues("database")
	require.NoError(t, err)
	metric, ok := observer.(prometheus.Metric)
	require.True(t, ok)

	var out dto.Metric
	require.NoError(t, metric.Write(&out))
	require.NotNil(t, out.Histogram)
	assert.Equal(t, uint64(2), out.Histogram.GetSampleCount())
	assert.InDelta(t, 0.06, out.Histogram.GetSampleSum(), 1e-9)
}
