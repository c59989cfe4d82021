package transform

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/ordcatalog/internal/jsontree"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// transformTracer is the OTEL tracer used for compact operations.
var transformTracer = otel.Tracer("ordcatalog/transform")

// Compactor turns serialized response documents into their compact form.
type Compactor struct {
	logger  observability.Logger
	metrics *Metrics
}

// CompactorOption is a functional option for configuring the compactor.
type CompactorOption func(*Compactor)

// WithCompactorMetrics sets the metrics the compactor records into.
func WithCompactorMetrics(m *Metrics) CompactorOption {
	return func(c *Compactor) {
		c.metrics = m
	}
}

// NewCompactor creates a new Compactor.
func NewCompactor(logger observability.Logger, opts ...CompactorOption) *Compactor {
	if logger == nil {
		logger = observability.NopLogger()
	}

	c := &Compactor{
		logger:  logger,
		metrics: GetMetrics(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CompactJSON parses body, aggregates the tree and returns the re-encoded
// document. A body that is not well-formed JSON yields an error wrapping
// both ErrCompactFailed and jsontree.ErrMalformedJSON.
func (c *Compactor) CompactJSON(ctx context.Context, body []byte) ([]byte, error) {
	_, span := transformTracer.Start(ctx, "transform.compact",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("transform.input_bytes", len(body)),
		),
	)
	defer span.End()

	start := time.Now()

	tree, err := jsontree.Parse(body)
	if err != nil {
		c.metrics.observe(start, len(body), 0, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed response body")
		return nil, fmt.Errorf("%w: %w", ErrCompactFailed, err)
	}

	Aggregate(tree)
	out := tree.Marshal()

	c.metrics.observe(start, len(body), len(out), nil)

	span.SetAttributes(attribute.Int("transform.output_bytes", len(out)))

	c.logger.Debug("response compacted",
		observability.Int("input_bytes", len(body)),
		observability.Int("output_bytes", len(out)),
		observability.Duration("duration", time.Since(start)),
	)

	return out, nil
}
