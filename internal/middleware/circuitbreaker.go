package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// DefaultCircuitBreakerName names the breaker in front of the catalog.
const DefaultCircuitBreakerName = "catalog"

// tripRatio is the share of failed requests that opens the breaker.
const tripRatio = 0.5

// errServerError marks a 5xx response as a failure for the breaker.
var errServerError = errors.New("server error")

// CircuitBreakerStateFunc is called when the breaker changes state;
// state is 0 closed, 1 half-open, 2 open.
type CircuitBreakerStateFunc func(name string, state int)

// CircuitBreaker sheds load while the catalog keeps answering with 5xx.
type CircuitBreaker struct {
	cb      *gobreaker.CircuitBreaker
	name    string
	timeout time.Duration
	logger  observability.Logger
	onState CircuitBreakerStateFunc
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithCircuitBreakerLogger sets the breaker logger.
func WithCircuitBreakerLogger(logger observability.Logger) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.logger = logger }
}

// WithCircuitBreakerStateCallback reports state changes to fn.
func WithCircuitBreakerStateCallback(fn CircuitBreakerStateFunc) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.onState = fn }
}

// NewCircuitBreaker creates a breaker that opens once at least threshold
// requests were seen in the current interval and half of them failed. It
// stays open for timeout, then lets up to threshold probe requests through.
func NewCircuitBreaker(name string, threshold int, timeout time.Duration, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:    name,
		timeout: timeout,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(cb)
	}

	limit := clampUint32(threshold)
	cb.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:          name,
		MaxRequests:   limit,
		Interval:      timeout,
		Timeout:       timeout,
		ReadyToTrip:   tripAfter(limit),
		OnStateChange: cb.stateChanged,
	})
	return cb
}

func tripAfter(limit uint32) func(gobreaker.Counts) bool {
	return func(c gobreaker.Counts) bool {
		if c.Requests == 0 || c.Requests < limit {
			return false
		}
		return float64(c.TotalFailures)/float64(c.Requests) >= tripRatio
	}
}

func clampUint32(n int) uint32 {
	switch {
	case n < 0:
		return 0
	case uint64(n) > uint64(^uint32(0)):
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // range checked above
}

func (cb *CircuitBreaker) stateChanged(name string, from, to gobreaker.State) {
	cb.logger.Info("circuit breaker state change",
		observability.String("name", name),
		observability.String("from", from.String()),
		observability.String("to", to.String()),
	)
	GetMiddlewareMetrics().transitions.WithLabelValues(name, from.String(), to.String()).Inc()

	_, span := otel.Tracer("ordcatalog/circuitbreaker").Start(context.Background(), "circuitbreaker.state_change",
		trace.WithAttributes(
			attribute.String("circuitbreaker.name", name),
			attribute.String("circuitbreaker.from", from.String()),
			attribute.String("circuitbreaker.to", to.String()),
		),
	)
	span.End()

	if cb.onState != nil {
		cb.onState(name, int(to))
	}
}

// Execute runs fn under breaker protection.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.cb.Execute(fn)
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.cb.State()
}

// retryAfter is the Retry-After value sent while the breaker is open.
func (cb *CircuitBreaker) retryAfter() string {
	secs := int(cb.timeout.Round(time.Second) / time.Second)
	return strconv.Itoa(max(secs, 1))
}

// breakerWriter remembers the first status written through it.
type breakerWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *breakerWriter) WriteHeader(code int) {
	if w.written {
		return
	}
	w.status, w.written = code, true
	w.ResponseWriter.WriteHeader(code)
}

func (w *breakerWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *breakerWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// CircuitBreakerMiddleware counts 5xx responses as failures and answers
// 503 with Retry-After while the breaker is open.
func CircuitBreakerMiddleware(cb *CircuitBreaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bw := &breakerWriter{ResponseWriter: w}

			_, err := cb.Execute(func() (interface{}, error) {
				next.ServeHTTP(bw, r)
				if bw.status >= http.StatusInternalServerError {
					return nil, fmt.Errorf("%w: status %d", errServerError, bw.status)
				}
				return nil, nil
			})
			if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
				return
			}

			GetMiddlewareMetrics().rejected(reasonCircuitOpen)
			cb.logger.WithContext(r.Context()).Warn("circuit breaker rejected request",
				observability.String("path", r.URL.Path),
				observability.String("state", cb.State().String()),
			)
			w.Header().Set(HeaderRetryAfter, cb.retryAfter())
			WriteError(w, http.StatusServiceUnavailable, MsgServiceUnavailable)
		})
	}
}

// CircuitBreakerFromConfig creates the circuit breaker middleware, or a
// pass-through when cfg is nil or disabled.
func CircuitBreakerFromConfig(
	cfg *config.CircuitBreakerConfig,
	logger observability.Logger,
	opts ...CircuitBreakerOption,
) func(http.Handler) http.Handler {
	if cfg == nil || !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}

	opts = append([]CircuitBreakerOption{WithCircuitBreakerLogger(logger)}, opts...)
	return CircuitBreakerMiddleware(NewCircuitBreaker(
		DefaultCircuitBreakerName,
		cfg.Threshold,
		cfg.Timeout.Duration(),
		opts...,
	))
}
