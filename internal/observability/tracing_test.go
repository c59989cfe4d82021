package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// newRecordingTracer returns a tracer that keeps spans in memory without
// touching the global provider.
func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return &Tracer{provider: provider, tracer: provider.Tracer("test")}, exporter
}

func spanAttr(span tracetest.SpanStub, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(TracerConfig{ServiceName: "ordcatalog-test"})
	require.NoError(t, err)
	assert.Nil(t, tracer.provider)

	_, span := tracer.StartSpan(context.Background(), "noop")
	span.End()
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestSamplerFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 3, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: -0.5, want: "AlwaysOffSampler"},
		{rate: 0.25, want: "TraceIDRatioBased"},
	}

	for _, tt := range tests {
		assert.Contains(t, samplerFor(tt.rate).Description(), tt.want, "rate %v", tt.rate)
	}
}

func TestExporterOptions(t *testing.T) {
	t.Parallel()

	assert.Len(t, exporterOptions(TracerConfig{OTLPEndpoint: "collector:4317"}), 4)
	assert.Len(t, exporterOptions(TracerConfig{OTLPEndpoint: "collector:4317", Insecure: true}), 5)
}

func TestNewResource(t *testing.T) {
	t.Parallel()

	res, err := newResource(TracerConfig{ServiceName: "ordcatalog", ServiceVersion: "1.2.3"})
	require.NoError(t, err)

	got := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		got[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "ordcatalog", got["service.name"])
	assert.Equal(t, "1.2.3", got["service.version"])
	assert.Equal(t, "go", got["telemetry.sdk.language"])
	assert.Equal(t, resource.Default().SchemaURL(), res.SchemaURL())
}

func TestNewResource_WithoutVersion(t *testing.T) {
	t.Parallel()

	res, err := newResource(TracerConfig{ServiceName: "ordcatalog"})
	require.NoError(t, err)

	name, ok := res.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "ordcatalog", name.AsString())
	_, ok = res.Set().Value("service.version")
	assert.False(t, ok)
}

func TestTracingMiddleware_NamesSpanAfterRoute(t *testing.T) {
	t.Parallel()

	tracer, exporter := newRecordingTracer(t)

	var inner trace.SpanContext
	handler := TracingMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = trace.SpanContextFromContext(r.Context())
		SetRoute(r.Context(), "packages")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/open-resource-discovery/v1/packages?$top=1", nil)
	ctx := ContextWithTenant(ContextWithRequestID(req.Context(), "req-1"), "tenant-a")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET packages", span.Name)
	assert.Equal(t, trace.SpanKindServer, span.SpanKind)
	assert.Equal(t, span.SpanContext.TraceID(), inner.TraceID())
	assert.NotEqual(t, codes.Error, span.Status.Code)

	tenant, ok := spanAttr(span, AttrTenant)
	require.True(t, ok)
	assert.Equal(t, "tenant-a", tenant.AsString())
	id, ok := spanAttr(span, AttrRequestID)
	require.True(t, ok)
	assert.Equal(t, "req-1", id.AsString())
	route, ok := spanAttr(span, "http.route")
	require.True(t, ok)
	assert.Equal(t, "packages", route.AsString())

	assert.Contains(t, rec.Header().Get("traceparent"), span.SpanContext.TraceID().String())
}

func TestTracingMiddleware_ContinuesRemoteTrace(t *testing.T) {
	t.Parallel()

	tracer, exporter := newRecordingTracer(t)
	handler := TracingMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/open-resource-discovery/v1/apis", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext.TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent.SpanID().String())
}

func TestTracingMiddleware_Status(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   codes.Code
	}{
		{status: http.StatusBadRequest, want: codes.Unset},
		{status: http.StatusNotFound, want: codes.Unset},
		{status: http.StatusServiceUnavailable, want: codes.Error},
	}

	for _, tt := range tests {
		tracer, exporter := newRecordingTracer(t)
		handler := TracingMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/open-resource-discovery/v1/apis", nil))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "GET /open-resource-discovery/v1/apis", spans[0].Name)
		assert.Equal(t, tt.want, spans[0].Status.Code, "status %d", tt.status)

		status, ok := spanAttr(spans[0], "http.response.status_code")
		require.True(t, ok)
		assert.Equal(t, int64(tt.status), status.AsInt64())
	}
}
