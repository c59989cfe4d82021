package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		incoming   string
		expectSame bool
	}{
		{name: "generates id", incoming: ""},
		{name: "reuses incoming id", incoming: "req-123", expectSame: true},
		{name: "replaces id with spaces", incoming: "req 123"},
		{name: "replaces overlong id", incoming: strings.Repeat("a", maxRequestIDLen+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = observability.RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/packages", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderXRequestID, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(HeaderXRequestID))
			if tt.expectSame {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.NotEqual(t, tt.incoming, seen)
			}
		})
	}
}

func TestRequestIDWithGenerator(t *testing.T) {
	t.Parallel()

	handler := RequestIDWithGenerator(func() string { return "fixed" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "fixed", rec.Header().Get(HeaderXRequestID))
}

func TestValidRequestID(t *testing.T) {
	t.Parallel()

	assert.True(t, validRequestID("4bf92f35-77b3-4da6"))
	assert.True(t, validRequestID(strings.Repeat("x", maxRequestIDLen)))
	assert.False(t, validRequestID(""))
	assert.False(t, validRequestID("tab\there"))
	assert.False(t, validRequestID("caf\u00e9"))
}

func TestTenant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{name: "present", header: "tenant-a", expected: "tenant-a"},
		{name: "trimmed", header: "  tenant-b ", expected: "tenant-b"},
		{name: "missing", header: "", expected: ""},
		{name: "blank", header: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			called := false
			var seen string
			handler := Tenant("X-Tenant-ID")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				seen = observability.TenantFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/packages", nil)
			if tt.header != "" {
				req.Header.Set("X-Tenant-ID", tt.header)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.True(t, called)
			assert.Equal(t, tt.expected, seen)
		})
	}
}
