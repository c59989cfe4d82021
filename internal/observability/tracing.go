package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// OTLP exporter settings.
const (
	otlpTimeout          = 10 * time.Second
	otlpReconnectPeriod  = 10 * time.Second
	otlpRetryInitial     = time.Second
	otlpRetryMaxInterval = 30 * time.Second
	otlpRetryMaxElapsed  = time.Minute
)

// Span attributes specific to the catalog.
const (
	AttrTenant    = attribute.Key("ord.tenant")
	AttrRequestID = attribute.Key("ord.request_id")
)

// TracerConfig configures NewTracer.
type TracerConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint is a host:port of an OTLP gRPC collector. Spans are
	// sampled but not exported when it is empty.
	OTLPEndpoint string
	Insecure     bool
	SamplingRate float64

	// Logger receives SDK diagnostics; nil uses the global logger.
	Logger Logger
}

// Tracer starts spans for catalog requests.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer installs an SDK tracer provider and the W3C propagators. A
// disabled tracer uses whatever global provider is in place, a no-op one
// by default.
func NewTracer(cfg TracerConfig) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{tracer: otel.Tracer(cfg.ServiceName)}, nil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = GetGlobalLogger()
	}
	otel.SetLogger(NewLogr(logger.With(String("component", "otel"))))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Error("opentelemetry error", Error(err))
	}))

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRate)),
	}
	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracegrpc.New(context.Background(), exporterOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}, nil
}

func newResource(cfg TracerConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	// Schemaless so the merge keeps the SDK default schema whatever
	// semconv version the attribute helpers come from.
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

func samplerFor(rate float64) sdktrace.Sampler {
	if rate >= 1 {
		return sdktrace.AlwaysSample()
	}
	if rate <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

func exporterOptions(cfg TracerConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithTimeout(otlpTimeout),
		otlptracegrpc.WithReconnectionPeriod(otlpReconnectPeriod),
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled:         true,
			InitialInterval: otlpRetryInitial,
			MaxInterval:     otlpRetryMaxInterval,
			MaxElapsedTime:  otlpRetryMaxElapsed,
		}),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts
}

// Shutdown flushes pending spans.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// StartSpan starts a span as a child of the span in ctx.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// TracingMiddleware starts a server span per request and continues any
// trace the caller propagated. The span context is echoed in the
// traceparent response header. Once a handler has called SetRoute the
// span is renamed to "<method> <route>".
func TracingMiddleware(tracer *Tracer) func(http.Handler) http.Handler {
	incoming := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	outgoing := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := incoming.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx = ContextWithRouteHolder(ctx)

			attrs := []attribute.KeyValue{
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("url.query", r.URL.RawQuery),
			}
			if tenant := TenantFromContext(ctx); tenant != "" {
				attrs = append(attrs, AttrTenant.String(tenant))
			}
			if id := RequestIDFromContext(ctx); id != "" {
				attrs = append(attrs, AttrRequestID.String(id))
			}

			ctx, span := tracer.StartSpan(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			outgoing.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			if route := RouteFromContext(ctx); route != "" {
				span.SetName(r.Method + " " + route)
				span.SetAttributes(attribute.String("http.route", route))
			}
			span.SetAttributes(attribute.Int("http.response.status_code", sw.status))
			if sw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.status))
			}
		})
	}
}
