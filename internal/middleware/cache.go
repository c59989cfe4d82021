package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vyrodovalexey/ordcatalog/internal/cache"
	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// X-Cache header values.
const (
	cacheHit  = "HIT"
	cacheMiss = "MISS"
)

// cachedResponse is the stored form of a response.
type cachedResponse struct {
	StatusCode int                 `json:"statusCode"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

type cacheMiddleware struct {
	cache   cache.Cache
	logger  observability.Logger
	metrics *observability.Metrics
	ttl     time.Duration
	ignore  []string
}

// CacheOption configures the response cache middleware.
type CacheOption func(*cacheMiddleware)

// WithCacheMetrics records lookups on m.
func WithCacheMetrics(m *observability.Metrics) CacheOption {
	return func(cm *cacheMiddleware) {
		cm.metrics = m
	}
}

// WithCacheIgnoredParams leaves the named query parameters out of the
// cache key.
func WithCacheIgnoredParams(params ...string) CacheOption {
	return func(cm *cacheMiddleware) {
		cm.ignore = append(cm.ignore, params...)
	}
}

// CacheFromConfig returns a middleware serving repeated tenant reads from
// c. Only GET requests that carry a tenant are considered, only 200
// responses are stored, and Cache-Control no-store or no-cache on the
// request bypasses the cache. A nil cache or disabled configuration
// yields a pass-through.
func CacheFromConfig(
	c cache.Cache,
	cfg *config.CacheConfig,
	logger observability.Logger,
	opts ...CacheOption,
) func(http.Handler) http.Handler {
	if !cache.IsEnabled(c) || cfg == nil || !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	cm := &cacheMiddleware{cache: c, logger: logger, ttl: cfg.TTL.Duration()}
	for _, opt := range opts {
		opt(cm)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := observability.TenantFromContext(r.Context())
			if tenant == "" || !isCacheable(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := cache.BuildKey(r, tenant, cm.ignore...)
			if cm.serveCached(w, r, key) {
				return
			}

			w.Header().Set(HeaderXCache, cacheMiss)
			rec := &cacheRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode == http.StatusOK {
				cm.store(r, key, rec)
			}
		})
	}
}

// perResponse reports whether header k belongs to one response only and
// must not be stored or replayed. Header maps hold canonical keys.
func perResponse(k string) bool {
	switch http.CanonicalHeaderKey(k) {
	case http.CanonicalHeaderKey(HeaderXCache), http.CanonicalHeaderKey(HeaderXRequestID):
		return true
	}
	return false
}

func isCacheable(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	cc := r.Header.Get(HeaderCacheControl)
	return !strings.Contains(cc, "no-store") && !strings.Contains(cc, "no-cache")
}

func (cm *cacheMiddleware) record(result string) {
	if cm.metrics != nil {
		cm.metrics.RecordCacheLookup(result)
	}
}

func (cm *cacheMiddleware) serveCached(w http.ResponseWriter, r *http.Request, key string) bool {
	data, err := cm.cache.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			cm.record("miss")
		} else {
			cm.record("error")
			cm.logger.WithContext(r.Context()).Warn("cache lookup failed",
				observability.String("key", key),
				observability.Error(err))
		}
		return false
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		cm.record("error")
		cm.logger.Debug("cached entry is unreadable, treating as miss",
			observability.String("key", key))
		return false
	}

	cm.record("hit")
	h := w.Header()
	for k, vals := range cached.Headers {
		if !perResponse(k) {
			h[k] = append([]string(nil), vals...)
		}
	}
	h.Set(HeaderXCache, cacheHit)
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
	return true
}

func (cm *cacheMiddleware) store(r *http.Request, key string, rec *cacheRecorder) {
	headers := make(map[string][]string, len(rec.Header()))
	for k, vals := range rec.Header() {
		if perResponse(k) {
			continue
		}
		headers[k] = append([]string(nil), vals...)
	}

	data, err := json.Marshal(cachedResponse{
		StatusCode: rec.statusCode,
		Headers:    headers,
		Body:       rec.body.Bytes(),
	})
	if err != nil {
		return
	}

	if err := cm.cache.Set(r.Context(), key, data, cm.ttl); err != nil {
		cm.logger.WithContext(r.Context()).Warn("failed to store response in cache",
			observability.String("key", key),
			observability.Error(err))
	}
}

// cacheRecorder copies the response while writing it through.
type cacheRecorder struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
	body          bytes.Buffer
}

func (r *cacheRecorder) WriteHeader(code int) {
	if !r.headerWritten {
		r.statusCode = code
		r.headerWritten = true
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *cacheRecorder) Write(b []byte) (int, error) {
	if !r.headerWritten {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *cacheRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
