package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

func TestLogging_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{name: "success", status: http.StatusOK, level: zapcore.InfoLevel},
		{name: "client error", status: http.StatusNotFound, level: zapcore.WarnLevel},
		{name: "server error", status: http.StatusInternalServerError, level: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, logs := observedLogger(zapcore.DebugLevel)
			handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("hello"))
			}))

			req := httptest.NewRequest(http.MethodGet, "/packages?$top=1", nil)
			req.Header.Set("User-Agent", "test-agent")
			handler.ServeHTTP(httptest.NewRecorder(), req)

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, "http request", entry.Message)

			fields := entry.ContextMap()
			assert.Equal(t, "GET", fields["method"])
			assert.Equal(t, "/packages", fields["path"])
			assert.Equal(t, "$top=1", fields["query"])
			assert.Equal(t, int64(tt.status), fields["status"])
			assert.Equal(t, int64(5), fields["size"])
			assert.Equal(t, "test-agent", fields["user_agent"])
			assert.Equal(t, "192.0.2.1", fields["client_ip"])
		})
	}
}

func TestLogging_ContextFields(t *testing.T) {
	t.Parallel()

	logger, logs := observedLogger(zapcore.InfoLevel)
	handler := RequestIDWithGenerator(func() string { return "req-1" })(
		Tenant("X-Tenant-ID")(
			Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				observability.SetRoute(r.Context(), "packages")
			})),
		),
	)

	req := httptest.NewRequest(http.MethodGet, "/packages", nil)
	req = req.WithContext(observability.ContextWithRouteHolder(req.Context()))
	req.Header.Set("X-Tenant-ID", "tenant-a")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "tenant-a", fields["tenant"])
	assert.Equal(t, "packages", fields["route"])
}

func TestAccessWriter(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	aw := &accessWriter{ResponseWriter: rec, status: http.StatusOK}

	n, err := aw.Write([]byte("abc"))
	require.NoError(t, err)
	aw.WriteHeader(http.StatusTeapot)
	require.NoError(t, http.NewResponseController(aw).Flush())

	assert.Equal(t, 3, n)
	assert.Equal(t, 3, aw.size)
	assert.Equal(t, http.StatusOK, aw.status, "status is fixed by the first write")
	assert.True(t, rec.Flushed)
}
