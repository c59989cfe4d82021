package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// sweepInterval is how often expired entries are dropped.
const sweepInterval = time.Minute

// memoryCache keeps responses in process. Entries are ordered by last use
// and the least recently used ones are evicted beyond maxEntries.
type memoryCache struct {
	counters

	logger     observability.Logger
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time

	mu    sync.Mutex
	index map[string]*list.Element
	lru   *list.List // front is most recently used

	stop     chan struct{}
	stopOnce sync.Once
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero never expires
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func newMemoryCache(cfg *config.CacheConfig, logger observability.Logger) *memoryCache {
	c := &memoryCache{
		logger:     logger,
		maxEntries: cfg.MaxEntries,
		defaultTTL: cfg.TTL.Duration(),
		now:        time.Now,
		index:      make(map[string]*list.Element),
		lru:        list.New(),
		stop:       make(chan struct{}),
	}
	if c.maxEntries <= 0 {
		c.maxEntries = config.DefaultCacheMaxEntries
	}

	go c.sweepLoop()

	logger.Info("memory cache initialized",
		observability.Int("maxEntries", c.maxEntries),
		observability.Duration("defaultTTL", c.defaultTTL))
	return c
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	_, span := startSpan(ctx, backendMemory, "Get", key, trace.SpanKindInternal)
	defer span.End()
	defer GetMetrics().timed(backendMemory, "get")()

	value, ok := c.lookup(key)
	span.SetAttributes(attribute.Bool("cache.hit", ok))
	if !ok {
		c.miss(backendMemory)
		return nil, ErrCacheMiss
	}
	c.hit(backendMemory)
	span.SetAttributes(attribute.Int("cache.value_size", len(value)))
	return value, nil
}

// lookup returns the live value for key and marks it as recently used.
func (c *memoryCache) lookup(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*memoryEntry)
	if entry.expired(c.now()) {
		c.unlink(elem)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return entry.value, true
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, span := startSpan(ctx, backendMemory, "Set", key, trace.SpanKindInternal)
	defer span.End()
	defer GetMetrics().timed(backendMemory, "set")()

	entry := &memoryEntry{key: key, value: value}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		elem.Value = entry
		c.lru.MoveToFront(elem)
		return nil
	}
	c.index[key] = c.lru.PushFront(entry)
	for c.lru.Len() > c.maxEntries {
		c.unlink(c.lru.Back())
		GetMetrics().evicted(backendMemory)
	}
	GetMetrics().setEntries(backendMemory, c.lru.Len())
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	_, span := startSpan(ctx, backendMemory, "Delete", key, trace.SpanKindInternal)
	defer span.End()
	defer GetMetrics().timed(backendMemory, "delete")()

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.index[key]; ok {
		c.unlink(elem)
	}
	return nil
}

func (c *memoryCache) Ping(context.Context) error { return nil }

// Close stops the sweeper and drops every entry.
func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	clear(c.index)
	c.lru.Init()
	c.mu.Unlock()

	c.logger.Info("memory cache closed")
	return nil
}

func (c *memoryCache) Stats() Stats {
	c.mu.Lock()
	size := c.lru.Len()
	c.mu.Unlock()
	return c.snapshot(int64(size))
}

// unlink requires mu.
func (c *memoryCache) unlink(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.index, elem.Value.(*memoryEntry).key)
}

func (c *memoryCache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup drops expired entries, oldest first.
func (c *memoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).expired(now) {
			c.unlink(elem)
			removed++
		}
		elem = prev
	}
	if removed == 0 {
		return
	}
	GetMetrics().setEntries(backendMemory, c.lru.Len())
	c.logger.Debug("expired cache entries removed", observability.Int("removed", removed))
}
