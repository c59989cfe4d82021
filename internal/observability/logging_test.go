package observability

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewLoggerFromZap(zap.New(core)), logs
}

// readLogLines syncs logger and returns the JSON lines written to path.
func readLogLines(t *testing.T, logger Logger, path string) []string {
	t.Helper()

	require.NoError(t, logger.Sync())
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name    string
		config  LogConfig
		wantErr string
	}{
		{name: "defaults", config: DefaultLogConfig()},
		{name: "zero value", config: LogConfig{}},
		{name: "console to stderr", config: LogConfig{Level: "debug", Format: "console", Output: "stderr"}},
		{name: "file", config: LogConfig{Level: "warn", Output: filepath.Join(dir, "catalog.log")}},
		{name: "unknown format", config: LogConfig{Format: "xml"}, wantErr: `unsupported log format "xml"`},
		{name: "unknown level", config: LogConfig{Level: "loud"}, wantErr: "loud"},
		{name: "unwritable output", config: LogConfig{Output: filepath.Join(dir, "missing", "catalog.log")}, wantErr: "open log output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNewLogger_JSONLayout(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.log")
	logger, err := NewLogger(LogConfig{Level: "info", Output: path})
	require.NoError(t, err)

	logger.Info("catalog seeded", Int("packages", 3))
	logger.Debug("suppressed")

	lines := readLogLines(t, logger, path)
	require.Len(t, lines, 1)
	entry := gjson.Parse(lines[0])
	assert.Equal(t, "info", entry.Get("level").String())
	assert.Equal(t, "catalog seeded", entry.Get("message").String())
	assert.Equal(t, int64(3), entry.Get("packages").Int())
	assert.True(t, entry.Get("timestamp").Exists())
	assert.True(t, entry.Get("caller").Exists())
}

func TestSetLogLevel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.log")
	logger, err := NewLogger(LogConfig{Level: "warn", Output: path})
	require.NoError(t, err)
	child := logger.With(String("component", "store"))

	child.Info("before")
	require.NoError(t, SetLogLevel(logger, "debug"))
	child.Debug("after")

	lines := readLogLines(t, logger, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "after", gjson.Get(lines[0], "message").String())
	assert.Equal(t, "store", gjson.Get(lines[0], "component").String())

	assert.Error(t, SetLogLevel(logger, "loud"))
}

func TestSetLogLevel_Fixed(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, SetLogLevel(NopLogger(), "debug"), ErrLevelFixed)

	logger, _ := newObservedLogger()
	assert.ErrorIs(t, SetLogLevel(logger, "debug"), ErrLevelFixed)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	} {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseLevel("verbose")
	assert.Error(t, err)
}

func TestRequestScope(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, TenantFromContext(ctx))

	withID := ContextWithRequestID(ctx, "req-1")
	withBoth := ContextWithTenant(withID, "tenant-a")

	assert.Equal(t, "req-1", RequestIDFromContext(withBoth))
	assert.Equal(t, "tenant-a", TenantFromContext(withBoth))
	assert.Empty(t, TenantFromContext(withID), "parent context unchanged")

	replaced := ContextWithRequestID(withBoth, "req-2")
	assert.Equal(t, "req-2", RequestIDFromContext(replaced))
	assert.Equal(t, "tenant-a", TenantFromContext(replaced))
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	tests := []struct {
		name string
		ctx  context.Context
		want map[string]interface{}
	}{
		{
			name: "empty",
			ctx:  context.Background(),
			want: map[string]interface{}{"entity_set": "apis"},
		},
		{
			name: "request scope",
			ctx:  ContextWithTenant(ContextWithRequestID(context.Background(), "req-1"), "tenant-a"),
			want: map[string]interface{}{"entity_set": "apis", "request_id": "req-1", "tenant": "tenant-a"},
		},
		{
			name: "empty values skipped",
			ctx:  ContextWithTenant(ContextWithRequestID(context.Background(), ""), ""),
			want: map[string]interface{}{"entity_set": "apis"},
		},
		{
			name: "active span",
			ctx:  trace.ContextWithSpanContext(context.Background(), spanCtx),
			want: map[string]interface{}{
				"entity_set": "apis",
				"trace_id":   "4bf92f3577b34da6a3ce929d0e0e4736",
				"span_id":    "00f067aa0ba902b7",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, logs := newObservedLogger()
			logger.WithContext(tt.ctx).Info("catalog request served", String("entity_set", "apis"))

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.want, entries[0].ContextMap())
		})
	}
}

func TestWithContext_ReturnsSameLoggerWithoutFields(t *testing.T) {
	t.Parallel()

	logger, _ := newObservedLogger()
	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	logger := NopLogger()
	assert.NotPanics(t, func() {
		logger.Debug("debug")
		logger.With(String("k", "v")).Info("info")
		logger.WithContext(ContextWithRequestID(context.Background(), "req-1")).Warn("warn")
		logger.Error("error", Error(assert.AnError))
	})
	assert.NoError(t, logger.Sync())
}

func TestNewLoggerFromZap_Nil(t *testing.T) {
	t.Parallel()

	logger := NewLoggerFromZap(nil)
	require.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.Info("discarded") })
}

func TestGlobalLogger(t *testing.T) {
	// Not parallel: modifies the global logger.
	t.Cleanup(func() { SetGlobalLogger(nil) })

	SetGlobalLogger(nil)
	fallback := GetGlobalLogger()
	require.NotNil(t, fallback)

	var wg sync.WaitGroup
	got := make([]Logger, 20)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = GetGlobalLogger()
		}()
	}
	wg.Wait()
	for _, l := range got {
		assert.Same(t, fallback, l)
	}

	logger, _ := newObservedLogger()
	SetGlobalLogger(logger)
	assert.Same(t, logger, GetGlobalLogger())

	SetGlobalLogger(nil)
	assert.Same(t, fallback, GetGlobalLogger())
}
