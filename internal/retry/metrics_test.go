package retry

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
	t.Parallel()

	assert.Same(t, GetMetrics(), GetMetrics())
}

func TestDo_RecordsOperationMetrics(t *testing.T) {
	t.Parallel()

	m := GetMetrics()
	calls := 0
	err := Do(context.Background(), "test.flaky", fast, func(context.Context) error {
		calls++
		if calls < 3 {
			return errUnavailable
		}
		return nil
	})
	require.NoError(t, err)

	assert.InDelta(t, 2, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("test.flaky")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.outcomesTotal.WithLabelValues("test.flaky", "success")), 0)
}

func TestDo_RecordsFailureAfterExhaustion(t *testing.T) {
	t.Parallel()

	m := GetMetrics()
	err := Do(context.Background(), "test.down", Policy{Attempts: 2, InitialBackoff: time.Millisecond},
		func(context.Context) error { return errUnavailable })
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("test.down")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.outcomesTotal.WithLabelValues("test.down", "failure")), 0)
}

func TestDo_SingleAttemptIsNotCounted(t *testing.T) {
	t.Parallel()

	m := GetMetrics()
	require.NoError(t, Do(context.Background(), "test.instant", fast, func(context.Context) error { return nil }))
	require.Error(t, Do(context.Background(), "test.permanent", fast, func(context.Context) error {
		return Permanent(errUnavailable)
	}))

	assert.InDelta(t, 0, testutil.ToFloat64(m.outcomesTotal.WithLabelValues("test.instant", "success")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.outcomesTotal.WithLabelValues("test.permanent", "failure")), 0)
}

func TestMetrics_MustRegister(t *testing.T) {
	t.Parallel()

	m := GetMetrics()
	m.RecordAttempt("test.register", 10*time.Millisecond)
	m.RecordOutcome("test.register", true, 20*time.Millisecond)

	registry := prometheus.NewRegistry()
	m.MustRegister(registry)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["ordcatalog_retry_attempts_total"])
	assert.True(t, names["ordcatalog_retry_outcomes_total"])
	assert.True(t, names["ordcatalog_retry_duration_seconds"])
	assert.True(t, names["ordcatalog_retry_backoff_duration_seconds"])
}
