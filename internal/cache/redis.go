package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
	"github.com/vyrodovalexey/ordcatalog/internal/retry"
)

// connectTimeout bounds the initial ping.
const connectTimeout = 5 * time.Second

// isRetryableRedisError reports whether err is worth another attempt.
// Misses and caller cancellation are not.
func isRetryableRedisError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, redis.Nil) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// redisCache stores entries in redis under a common key prefix so that
// several catalog replicas share one cache.
type redisCache struct {
	counters

	logger     observability.Logger
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
}

func newRedisCache(cfg *config.CacheConfig, logger observability.Logger) (*redisCache, error) {
	if cfg.Redis == nil || cfg.Redis.URL == "" {
		return nil, fmt.Errorf("%w: redis url is required", ErrInvalidConfig)
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis url: %w", ErrInvalidConfig, err)
	}
	if cfg.Redis.PoolSize > 0 {
		opts.PoolSize = cfg.Redis.PoolSize
	}
	if timeout := cfg.Redis.Timeout.Duration(); timeout > 0 {
		opts.DialTimeout = timeout
		opts.ReadTimeout = timeout
		opts.WriteTimeout = timeout
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	err = retry.Do(ctx, "redis.connect", retry.RedisConnect, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, retry.WithRetryIf(isRetryableRedisError))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	prefix := cfg.Redis.KeyPrefix
	if prefix == "" {
		prefix = config.DefaultCacheKeyPrefix
	}

	c := &redisCache{
		logger:     logger,
		client:     client,
		keyPrefix:  prefix,
		defaultTTL: cfg.TTL.Duration(),
	}

	logger.Info("redis cache initialized",
		observability.String("addr", opts.Addr),
		observability.String("keyPrefix", prefix),
		observability.Duration("defaultTTL", c.defaultTTL))

	return c, nil
}

// do runs one redis command under the command retry policy, inside a
// client span, and records its latency.
func (c *redisCache) do(ctx context.Context, op, key string, fn func(ctx context.Context, rkey string) error) (trace.Span, error) {
	ctx, span := startSpan(ctx, backendRedis, op, key, trace.SpanKindClient)
	done := GetMetrics().timed(backendRedis, op)
	defer done()

	rkey := c.keyPrefix + key
	err := retry.Do(ctx, "redis."+op, retry.RedisCommand, func(ctx context.Context) error {
		return fn(ctx, rkey)
	}, retry.WithRetryIf(isRetryableRedisError))
	return span, err
}

func (c *redisCache) fail(span trace.Span, op, key string, err error) {
	GetMetrics().failed(backendRedis, op)
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
	c.logger.Error("redis "+op+" failed",
		observability.String("key", key),
		observability.Error(err))
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	span, err := c.do(ctx, "get", key, func(ctx context.Context, rkey string) error {
		var getErr error
		value, getErr = c.client.Get(ctx, rkey).Bytes()
		return getErr
	})
	defer span.End()

	switch {
	case err == nil:
		c.hit(backendRedis)
		span.SetAttributes(attribute.Bool("cache.hit", true), attribute.Int("cache.value_size", len(value)))
		return value, nil
	case errors.Is(err, redis.Nil):
		c.miss(backendRedis)
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	default:
		GetMetrics().lookup(backendRedis, resultError)
		c.fail(span, "get", key, err)
		return nil, err
	}
}

// Set stores value under key. A zero ttl uses the configured default and
// a negative one keeps the entry until it is deleted.
func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if ttl < 0 {
		ttl = 0
	}
	span, err := c.do(ctx, "set", key, func(ctx context.Context, rkey string) error {
		return c.client.Set(ctx, rkey, value, ttl).Err()
	})
	defer span.End()
	if err != nil {
		c.fail(span, "set", key, err)
	}
	return err
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	span, err := c.do(ctx, "delete", key, func(ctx context.Context, rkey string) error {
		return c.client.Del(ctx, rkey).Err()
	})
	defer span.End()
	if err != nil {
		c.fail(span, "delete", key, err)
	}
	return err
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Close() error {
	c.logger.Info("redis cache closing")
	return c.client.Close()
}

// Stats reports hits and misses of this replica. Redis does not report a
// size for the prefix.
func (c *redisCache) Stats() Stats {
	return c.snapshot(0)
}
