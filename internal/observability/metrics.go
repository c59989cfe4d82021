package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every series when NewMetrics gets "".
const DefaultNamespace = "ordcatalog"

// unmatchedRoute labels requests that no catalog handler claimed.
const unmatchedRoute = "unmatched"

var (
	latencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	queryBuckets   = []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1}
	httpLabels     = []string{"method", "route", "status"}
)

// Metrics holds the HTTP and catalog series of one service instance. Each
// instance owns its registry, which also exposes the Go and process
// collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	activeRequests  *prometheus.GaugeVec
	circuitBreaker  *prometheus.GaugeVec
	rateLimitHits   *prometheus.CounterVec
	responseCache   *prometheus.CounterVec
	storeQueries    *prometheus.HistogramVec
	buildInfo       *prometheus.GaugeVec
	startTime       prometheus.Gauge
}

// NewMetrics creates the metrics and a registry holding them.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Name: name, Help: help}
	}
	histogram := func(name, help string, buckets []float64) prometheus.HistogramOpts {
		return prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"requests_total", "HTTP requests served")), httpLabels),
		requestDuration: prometheus.NewHistogramVec(histogram(
			"request_duration_seconds", "HTTP request latency", latencyBuckets), httpLabels),
		responseSize: prometheus.NewHistogramVec(histogram(
			"response_size_bytes", "HTTP response body size", prometheus.ExponentialBuckets(100, 10, 8)), httpLabels),
		activeRequests: prometheus.NewGaugeVec(prometheus.GaugeOpts(opts(
			"active_requests", "HTTP requests in flight")), []string{"method"}),
		circuitBreaker: prometheus.NewGaugeVec(prometheus.GaugeOpts(opts(
			"circuit_breaker_state", "Circuit breaker state (0=closed, 1=half-open, 2=open)")), []string{"name"}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"rate_limit_hits_total", "Requests rejected by the rate limiter")), []string{"scope"}),
		responseCache: prometheus.NewCounterVec(prometheus.CounterOpts(opts(
			"response_cache_lookups_total", "Response cache middleware lookups by result (hit, miss, error)")), []string{"result"}),
		storeQueries: prometheus.NewHistogramVec(histogram(
			"store_query_duration_seconds", "Catalog store query latency", queryBuckets), []string{"entity_set", "result"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts(opts(
			"build_info", "Version of the running catalog service")), []string{"version", "commit", "build_time"}),
		startTime: prometheus.NewGauge(prometheus.GaugeOpts(opts(
			"start_time_seconds", "Unix time the service started"))),
	}

	m.registry.MustRegister(
		m.requestsTotal, m.requestDuration, m.responseSize, m.activeRequests,
		m.circuitBreaker, m.rateLimitHits, m.responseCache, m.storeQueries,
		m.buildInfo, m.startTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.startTime.SetToCurrentTime()
	return m
}

// Init exports the labelled series that exist before any traffic.
func (m *Metrics) Init() {
	m.circuitBreaker.WithLabelValues("catalog")
	m.rateLimitHits.WithLabelValues("global")
	m.rateLimitHits.WithLabelValues("client")
	for _, result := range []string{"hit", "miss", "error"} {
		m.responseCache.WithLabelValues(result)
	}
}

// RecordRequest records a served request. route is a bounded label such as
// an entity set, never a raw path.
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration, size int64) {
	code := strconv.Itoa(status)
	m.requestsTotal.WithLabelValues(method, route, code).Inc()
	m.requestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.responseSize.WithLabelValues(method, route, code).Observe(float64(size))
}

// SetCircuitBreakerState matches CircuitBreakerStateFunc of the middleware
// package.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.circuitBreaker.WithLabelValues(name).Set(float64(state))
}

// RecordRateLimitHit counts a rejection; scope is "global" or "client".
func (m *Metrics) RecordRateLimitHit(scope string) {
	m.rateLimitHits.WithLabelValues(scope).Inc()
}

// RecordCacheLookup counts a response cache lookup.
func (m *Metrics) RecordCacheLookup(result string) {
	m.responseCache.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordStoreQuery(entitySet string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.storeQueries.WithLabelValues(entitySet, result).Observe(duration.Seconds())
}

func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Handler serves the registry in the OpenMetrics format when asked for it.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the registry behind Handler. Other packages register
// their collectors here.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsMiddleware records request count, latency and size per route. The
// route label is whatever the handler passed to SetRoute.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			active := metrics.activeRequests.WithLabelValues(r.Method)
			active.Inc()
			defer active.Dec()

			ctx := ContextWithRouteHolder(r.Context())
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			route := RouteFromContext(ctx)
			if route == "" {
				route = unmatchedRoute
			}
			metrics.RecordRequest(r.Method, route, sw.status, time.Since(start), int64(sw.size))
		})
	}
}
