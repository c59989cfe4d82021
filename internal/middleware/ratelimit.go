package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// Rate limiter defaults.
const (
	// DefaultClientTTL is how long an idle per-client bucket is kept.
	DefaultClientTTL = 10 * time.Minute

	MinCleanupInterval = 10 * time.Second
	MaxCleanupInterval = time.Minute
)

// Rate limit scopes used as metric labels.
const (
	scopeGlobal = "global"
	scopeClient = "client"
)

// limits is the live configuration of a RateLimiter.
type limits struct {
	enabled   bool
	rps       int
	burst     int
	perClient bool
}

func (l limits) scope() string {
	if l.perClient {
		return scopeClient
	}
	return scopeGlobal
}

func (l limits) newBucket() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(l.rps), l.burst)
}

type bucket struct {
	*rate.Limiter
	seen time.Time
}

// RateLimiter is a token bucket limiter, either shared by all callers or
// kept per client address. Apply changes its settings while serving.
type RateLimiter struct {
	mu      sync.Mutex
	limits  limits
	shared  *rate.Limiter
	clients map[string]*bucket
	idleTTL time.Duration

	logger  observability.Logger
	metrics *observability.Metrics

	sweeping bool
	stopped  bool
	stop     chan struct{}
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterLogger sets the logger for rejections and reconfiguration.
func WithRateLimiterLogger(logger observability.Logger) RateLimiterOption {
	return func(rl *RateLimiter) { rl.logger = logger }
}

// WithRateLimiterMetrics records rejections on m.
func WithRateLimiterMetrics(m *observability.Metrics) RateLimiterOption {
	return func(rl *RateLimiter) { rl.metrics = m }
}

// WithClientTTL sets how long idle per-client buckets are kept.
func WithClientTTL(ttl time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) { rl.idleTTL = ttl }
}

// NewRateLimiter creates an enabled rate limiter.
func NewRateLimiter(rps, burst int, perClient bool, opts ...RateLimiterOption) *RateLimiter {
	l := limits{enabled: true, rps: rps, burst: burst, perClient: perClient}
	rl := &RateLimiter{
		limits:  l,
		shared:  l.newBucket(),
		clients: make(map[string]*bucket),
		idleTTL: DefaultClientTTL,
		logger:  observability.NopLogger(),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// bucketFor returns the bucket charged for clientIP, or nil while the
// limiter is disabled.
func (rl *RateLimiter) bucketFor(clientIP string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.limits.enabled {
		return nil
	}
	if !rl.limits.perClient {
		return rl.shared
	}
	b, ok := rl.clients[clientIP]
	if !ok {
		b = &bucket{Limiter: rl.limits.newBucket()}
		rl.clients[clientIP] = b
	}
	b.seen = time.Now()
	return b.Limiter
}

// Allow reports whether a request from clientIP may proceed.
func (rl *RateLimiter) Allow(clientIP string) bool {
	_, ok := rl.take(clientIP)
	return ok
}

// take consumes a token for clientIP. When none is available it reports
// how long until one would be.
func (rl *RateLimiter) take(clientIP string) (time.Duration, bool) {
	b := rl.bucketFor(clientIP)
	if b == nil {
		return 0, true
	}

	now := time.Now()
	res := b.ReserveN(now, 1)
	if !res.OK() {
		return time.Second, false
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return wait, false
	}
	return 0, true
}

// Update changes the rate, burst and mode. Existing buckets keep their
// tokens but adopt the new limits; leaving per-client mode drops them.
func (rl *RateLimiter) Update(rps, burst int, perClient bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.limits.perClient && !perClient {
		clear(rl.clients)
	}
	rl.limits.rps, rl.limits.burst, rl.limits.perClient = rps, burst, perClient

	retune := func(b *rate.Limiter) {
		b.SetLimit(rate.Limit(rps))
		b.SetBurst(burst)
	}
	retune(rl.shared)
	for _, b := range rl.clients {
		retune(b.Limiter)
	}
}

// Apply brings the limiter in line with cfg. A nil or disabled
// configuration lets every request through.
func (rl *RateLimiter) Apply(cfg *config.RateLimitConfig) {
	if cfg == nil || !cfg.Enabled {
		rl.setEnabled(false)
		return
	}
	rl.Update(cfg.RequestsPerSecond, cfg.Burst, cfg.PerClient)
	rl.setEnabled(true)
	if cfg.PerClient {
		rl.StartAutoCleanup()
	}
	rl.logger.Info("rate limiter configured",
		observability.Int("rps", cfg.RequestsPerSecond),
		observability.Int("burst", cfg.Burst),
		observability.Bool("per_client", cfg.PerClient),
	)
}

func (rl *RateLimiter) setEnabled(enabled bool) {
	rl.mu.Lock()
	rl.limits.enabled = enabled
	rl.mu.Unlock()
}

func (rl *RateLimiter) current() limits {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.limits
}

// Enabled reports whether requests are being limited.
func (rl *RateLimiter) Enabled() bool {
	return rl.current().enabled
}

// RateLimit returns a middleware that rejects requests over the limit
// with 429. Retry-After is the wait for the next token in whole seconds.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)
			wait, ok := rl.take(clientIP)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			rl.reject(r, clientIP)
			w.Header().Set(HeaderRetryAfter, retryAfterSeconds(wait))
			WriteError(w, http.StatusTooManyRequests, MsgRateLimitExceeded)
		})
	}
}

func retryAfterSeconds(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	return strconv.Itoa(max(secs, 1))
}

func (rl *RateLimiter) reject(r *http.Request, clientIP string) {
	scope := rl.current().scope()
	rl.logger.WithContext(r.Context()).Warn("rate limit exceeded",
		observability.String("client_ip", clientIP),
		observability.String("path", r.URL.Path),
		observability.String("scope", scope),
	)
	GetMiddlewareMetrics().rejected(reasonRateLimited)
	if rl.metrics != nil {
		rl.metrics.RecordRateLimitHit(scope)
	}
}

// RateLimitFromConfig creates the rate limit middleware. The limiter is
// always returned, disabled when cfg is, so a configuration reload can
// switch it on later through Apply. Stop it during shutdown.
func RateLimitFromConfig(
	cfg *config.RateLimitConfig,
	logger observability.Logger,
	opts ...RateLimiterOption,
) (func(http.Handler) http.Handler, *RateLimiter) {
	rps, burst := config.DefaultRateLimitRPS, config.DefaultRateLimitBurst
	if cfg != nil && cfg.Enabled {
		rps, burst = cfg.RequestsPerSecond, cfg.Burst
	}

	opts = append([]RateLimiterOption{WithRateLimiterLogger(logger)}, opts...)
	rl := NewRateLimiter(rps, burst, cfg != nil && cfg.PerClient, opts...)
	rl.Apply(cfg)

	return RateLimit(rl), rl
}

// CleanupOldClients drops per-client buckets idle for longer than maxAge.
func (rl *RateLimiter) CleanupOldClients(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	before := len(rl.clients)
	for ip, b := range rl.clients {
		if b.seen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
	if removed := before - len(rl.clients); removed > 0 {
		rl.logger.Debug("idle rate limit buckets dropped",
			observability.Int("removed", removed),
			observability.Int("remaining", len(rl.clients)),
		)
	}
}

// StartAutoCleanup starts the background sweep of idle client buckets.
// It is a no-op while a sweep runs or after Stop.
func (rl *RateLimiter) StartAutoCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.stopped || rl.sweeping {
		return
	}
	rl.sweeping = true

	ttl := rl.idleTTL
	interval := min(max(ttl/2, MinCleanupInterval), MaxCleanupInterval)
	go rl.sweep(interval, ttl)
}

func (rl *RateLimiter) sweep(interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.CleanupOldClients(ttl)
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if !rl.stopped {
		rl.stopped = true
		close(rl.stop)
	}
}

func (rl *RateLimiter) clientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
