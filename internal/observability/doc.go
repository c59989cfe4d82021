// Package observability provides structured logging, Prometheus metrics
// and OpenTelemetry tracing for the catalog service.
//
// # Logging
//
// The Logger interface wraps zap:
//
//	logger, err := observability.NewLogger(observability.DefaultLogConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("catalog request served",
//	    observability.String("entity_set", "packages"),
//	    observability.Int("status", 200),
//	)
//
// The request ID and tenant travel in the context and are attached by
// Logger.WithContext together with the trace and span of the active span.
// SetLogLevel changes the level of a running logger.
//
// # Metrics
//
// HTTP metrics live on a dedicated registry exposed by Metrics.Handler.
// Handlers label requests with the route they served through SetRoute so
// the route label stays bounded.
//
// # Tracing
//
// NewTracer installs an SDK tracer provider, optionally exporting spans to
// an OTLP gRPC collector. TracingMiddleware starts one server span per
// request.
package observability
