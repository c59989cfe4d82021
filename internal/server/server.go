// Package server assembles the catalog HTTP service: the gin engine with
// the catalog, probe and metrics routes wrapped in the middleware chain.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vyrodovalexey/ordcatalog/internal/cache"
	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/health"
	"github.com/vyrodovalexey/ordcatalog/internal/middleware"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
	"github.com/vyrodovalexey/ordcatalog/internal/odata"
	"github.com/vyrodovalexey/ordcatalog/internal/retry"
	"github.com/vyrodovalexey/ordcatalog/internal/transform"
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// Store is the catalog store as used by the server.
type Store interface {
	odata.Catalog
	health.Pinger
}

// Server is the catalog HTTP server.
type Server struct {
	cfg         *config.CatalogConfig
	engine      *gin.Engine
	handler     http.Handler
	httpServer  *http.Server
	listener    net.Listener
	health      *health.Handler
	rateLimiter *middleware.RateLimiter
	logger      observability.Logger

	mu      sync.Mutex
	running bool
	done    chan error
}

// Option configures a Server.
type Option func(*options)

type options struct {
	logger  observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	cache   cache.Cache
}

// WithLogger sets the server logger.
func WithLogger(logger observability.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the metrics served on the metrics path.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer sets the tracer for the tracing middleware.
func WithTracer(t *observability.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithCache sets the response cache.
func WithCache(c cache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// New builds the server for cfg reading from store.
func New(cfg *config.CatalogConfig, store Store, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: configuration is nil")
	}
	if store == nil {
		return nil, errors.New("server: store is nil")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = observability.NopLogger()
	}
	if o.metrics == nil {
		o.metrics = observability.NewMetrics(config.DefaultServiceName)
	}
	if o.tracer == nil {
		tracer, err := observability.NewTracer(observability.TracerConfig{ServiceName: config.DefaultServiceName})
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		o.tracer = tracer
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	spec := &cfg.Spec
	middleware.SetGlobalIPExtractor(middleware.NewClientIPExtractor(spec.Server.TrustedProxies))

	s := &Server{
		cfg:    cfg,
		engine: gin.New(),
		health: health.NewHandler(o.logger),
		logger: o.logger,
	}

	s.health.AddCheck(health.DatabaseCheck("database", store))
	if cache.IsEnabled(o.cache) {
		s.health.AddCheck(health.CacheCheck("cache", o.cache, health.WithCritical(false)))
	}

	registerMetrics(o.metrics)
	s.routes(store, o.metrics)
	s.handler = s.chain(o)

	return s, nil
}

// registerMetrics bridges the package metric singletons onto the
// registry behind the metrics endpoint.
func registerMetrics(m *observability.Metrics) {
	reg := m.Registry()
	for _, c := range []interface{ MustRegister(*prometheus.Registry) }{
		transform.GetMetrics(),
		cache.GetMetrics(),
		retry.GetMetrics(),
		middleware.GetMiddlewareMetrics(),
		health.GetHealthMetrics(),
		config.GetMetrics(),
	} {
		c.MustRegister(reg)
	}
	transform.GetMetrics().Init()
	cache.GetMetrics().Init()
	middleware.GetMiddlewareMetrics().Init()
	config.GetMetrics().Init()
	m.Init()
}

func (s *Server) routes(store Store, metrics *observability.Metrics) {
	spec := &s.cfg.Spec

	s.engine.NoRoute(func(c *gin.Context) {
		middleware.WriteError(c.Writer, http.StatusNotFound,
			"The requested resource does not exist. "+odata.DebugHint)
	})

	s.health.RegisterRoutes(s.engine)
	if spec.Observability.Metrics.Enabled {
		s.engine.GET(spec.Observability.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	catalogRoutes := s.engine.Group(spec.Server.BasePath)
	odata.NewHandler(store,
		odata.WithTenantHeader(spec.Server.TenantHeader),
		odata.WithHandlerLogger(s.logger),
	).Register(catalogRoutes)
}

// chain wraps the engine, outermost first: Recovery, RequestID, Tenant,
// Tracing, Metrics, Logging, RateLimit, CircuitBreaker, Timeout, Compact,
// Cache.
func (s *Server) chain(o *options) http.Handler {
	spec := &s.cfg.Spec

	var h http.Handler = s.engine
	h = middleware.CacheFromConfig(o.cache, &spec.Cache, s.logger,
		middleware.WithCacheMetrics(o.metrics),
		middleware.WithCacheIgnoredParams(spec.Compact.QueryParam),
	)(h)
	h = middleware.CompactFromConfig(&spec.Compact, s.logger)(h)
	h = middleware.Timeout(spec.Server.RequestTimeout.Duration(), s.logger)(h)
	h = middleware.CircuitBreakerFromConfig(&spec.CircuitBreaker, s.logger,
		middleware.WithCircuitBreakerStateCallback(o.metrics.SetCircuitBreakerState),
	)(h)

	rateLimit, rl := middleware.RateLimitFromConfig(&spec.RateLimit, s.logger,
		middleware.WithRateLimiterMetrics(o.metrics),
	)
	s.rateLimiter = rl
	h = rateLimit(h)

	h = middleware.Logging(s.logger)(h)
	h = observability.MetricsMiddleware(o.metrics)(h)
	h = observability.TracingMiddleware(o.tracer)(h)
	h = middleware.Tenant(spec.Server.TenantHeader)(h)
	h = middleware.RequestID()(h)
	h = middleware.Recovery(s.logger)(h)
	return h
}

// Handler returns the complete handler including the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// RateLimiter returns the live rate limiter so configuration reloads can
// adjust it.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Health returns the probe handler.
func (s *Server) Health() *health.Handler {
	return s.health
}

// Start binds the listener and serves in the background. Bind errors are
// returned directly; serve errors are reported by Wait.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server already running")
	}

	spec := &s.cfg.Spec.Server
	ln, err := net.Listen("tcp", spec.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", spec.Address, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  spec.ReadTimeout.Duration(),
		WriteTimeout: spec.WriteTimeout.Duration(),
		IdleTimeout:  spec.IdleTimeout.Duration(),
	}
	s.done = make(chan error, 1)
	s.running = true

	s.logger.Info("starting HTTP server",
		observability.String("address", ln.Addr().String()),
		observability.String("base_path", s.cfg.Spec.Server.BasePath),
	)

	go func(srv *http.Server, done chan<- error) {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}(s.httpServer, s.done)

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Wait blocks until the server stops serving and returns the serve error.
func (s *Server) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	return <-done
}

// Shutdown marks the service as draining, stops accepting connections
// and waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetDraining(true)
	defer s.rateLimiter.Stop()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
