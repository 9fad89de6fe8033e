package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"inventory-service/internal/redisclient"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// DefaultExpiration is how long a cached collection stays fresh
const DefaultExpiration = 30 * time.Minute

// ErrMiss is returned by a KV when the key is absent
var ErrMiss = redisclient.ErrMiss

// KV is the string key/value storage backing the cache
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Cache stores JSON values with a freshness window. Every failure is
// logged and swallowed; callers only ever see a miss.
type Cache struct {
	kv         KV
	expiration time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewCache creates a cache over kv. A nil kv disables caching.
func NewCache(kv KV, expiration time.Duration) *Cache {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &Cache{
		kv:         kv,
		expiration: expiration,
		now:        time.Now,
		logger:     util.GetLogger(),
	}
}

// SetClock replaces the clock used for freshness checks
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// CollectionKey is the cache key for a collection listing
func CollectionKey(collection string) string {
	return "cached_" + collection
}

// Get decodes a fresh entry into dst. Stale entries are evicted.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil || c.kv == nil {
		return false
	}

	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.fail("read", key, err)
		}
		util.CacheMissesTotal.WithLabelValues(key).Inc()
		return false
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		c.fail("decode", key, err)
		util.CacheMissesTotal.WithLabelValues(key).Inc()
		return false
	}

	age := c.now().Sub(time.UnixMilli(env.Timestamp))
	if age > c.expiration {
		c.Clear(ctx, key)
		util.CacheMissesTotal.WithLabelValues(key).Inc()
		return false
	}

	if err := json.Unmarshal(env.Data, dst); err != nil {
		c.fail("decode", key, err)
		util.CacheMissesTotal.WithLabelValues(key).Inc()
		return false
	}

	util.CacheHitsTotal.WithLabelValues(key).Inc()
	return true
}

// Set stores data under key
func (c *Cache) Set(ctx context.Context, key string, data any) {
	if c == nil || c.kv == nil {
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		c.fail("encode", key, err)
		return
	}
	raw, err := json.Marshal(envelope{Data: payload, Timestamp: c.now().UnixMilli()})
	if err != nil {
		c.fail("encode", key, err)
		return
	}
	if err := c.kv.Set(ctx, key, string(raw), c.expiration); err != nil {
		c.fail("write", key, err)
	}
}

// Clear removes key
func (c *Cache) Clear(ctx context.Context, key string) {
	if c == nil || c.kv == nil {
		return
	}
	if err := c.kv.Del(ctx, key); err != nil {
		c.fail("clear", key, err)
	}
}

func (c *Cache) fail(op, key string, err error) {
	util.CacheErrorsTotal.Inc()
	c.logger.Warn("Cache "+op+" failed",
		zap.String("key", key),
		zap.Error(err),
	)
}

// MemoryKV is an in-process KV. It ignores TTLs; freshness is enforced by Cache.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Has reports whether key is stored, fresh or not
func (m *MemoryKV) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}

var _ KV = (*MemoryKV)(nil)
var _ KV = (*redisclient.Client)(nil)
