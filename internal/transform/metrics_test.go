package transform

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMetrics_Singleton(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m)
	assert.Same(t, m, GetMetrics())
}

// Not parallel: reads process wide counters.
func TestCompactJSON_RecordsMetrics(t *testing.T) {
	m := GetMetrics()
	c := NewCompactor(nil)

	success := testutil.ToFloat64(m.runs.WithLabelValues(compactSuccess))
	malformed := testutil.ToFloat64(m.runs.WithLabelValues(compactMalformed))
	saved := testutil.ToFloat64(m.saved)

	in := []byte(`{"value": [ {"a": 1} ]}`)
	out, err := c.CompactJSON(context.Background(), in)
	require.NoError(t, err)
	_, err = c.CompactJSON(context.Background(), []byte(`{"value":`))
	require.Error(t, err)

	assert.Equal(t, success+1, testutil.ToFloat64(m.runs.WithLabelValues(compactSuccess)))
	assert.Equal(t, malformed+1, testutil.ToFloat64(m.runs.WithLabelValues(compactMalformed)))
	assert.Equal(t, saved+float64(len(in)-len(out)), testutil.ToFloat64(m.saved))
}

func TestMetrics_ObserveGrowthSavesNothing(t *testing.T) {
	m := GetMetrics()
	before := testutil.ToFloat64(m.saved)

	m.observe(time.Now(), 10, 12, nil)

	assert.Equal(t, before, testutil.ToFloat64(m.saved))
}

func TestMetrics_MustRegisterAndInit(t *testing.T) {
	m := GetMetrics()
	registry := prometheus.NewRegistry()
	m.MustRegister(registry)
	m.Init()
	m.Init()

	assert.Equal(t, 2, testutil.CollectAndCount(m.runs))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "ordcatalog_transform_compactions_total")
	assert.Contains(t, names, "ordcatalog_transform_bytes_saved_total")
}
