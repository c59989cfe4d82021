package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

const tracerName = "ordcatalog/cache"

// Backend label values.
const (
	backendMemory = "memory"
	backendRedis  = "redis"
)

var (
	// ErrCacheMiss indicates that the key was not found in the cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheDisabled is returned by every operation of a disabled cache.
	ErrCacheDisabled = errors.New("cache disabled")

	// ErrInvalidConfig indicates that the cache configuration is invalid.
	ErrInvalidConfig = errors.New("invalid cache configuration")

	// ErrConnectionFailed indicates that the cache backend is unreachable.
	ErrConnectionFailed = errors.New("cache connection failed")
)

// Cache stores opaque values by key.
type Cache interface {
	// Get returns ErrCacheMiss if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A zero ttl uses the configured default and a
	// negative one never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Stats reports what a backend has served since it was created.
type Stats struct {
	Hits   int64
	Misses int64
	// Size is the number of entries, or 0 when the backend cannot tell.
	Size int64
}

// HitRate is the share of reads served from the cache, in percent.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return 100 * float64(s.Hits) / float64(s.Hits+s.Misses)
}

// counters backs Stats for both backends.
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) hit(backend string) {
	c.hits.Add(1)
	GetMetrics().lookup(backend, resultHit)
}

func (c *counters) miss(backend string) {
	c.misses.Add(1)
	GetMetrics().lookup(backend, resultMiss)
}

func (c *counters) snapshot(size int64) Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: size}
}

// startSpan opens a span named cache.<op> for key.
func startSpan(ctx context.Context, backend, op, key string, kind trace.SpanKind) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "cache."+op,
		trace.WithSpanKind(kind),
		trace.WithAttributes(
			attribute.String("cache.backend", backend),
			attribute.String("cache.key", key),
		),
	)
}

// New creates the cache selected by cfg. A disabled configuration yields
// a cache whose operations all return ErrCacheDisabled.
func New(cfg *config.CacheConfig, logger observability.Logger) (Cache, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if !cfg.Enabled {
		return disabledCache{}, nil
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Type {
	case config.CacheTypeMemory, "":
		return newMemoryCache(cfg, logger), nil
	case config.CacheTypeRedis:
		return newRedisCache(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown cache type %q", ErrInvalidConfig, cfg.Type)
	}
}

type disabledCache struct{}

func (disabledCache) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheDisabled
}

func (disabledCache) Set(context.Context, string, []byte, time.Duration) error {
	return ErrCacheDisabled
}

func (disabledCache) Delete(context.Context, string) error {
	return ErrCacheDisabled
}

func (disabledCache) Ping(context.Context) error {
	return nil
}

func (disabledCache) Close() error {
	return nil
}

// IsEnabled reports whether c stores anything.
func IsEnabled(c Cache) bool {
	if c == nil {
		return false
	}
	_, disabled := c.(disabledCache)
	return !disabled
}
