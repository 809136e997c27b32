package verify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// MXRecord is a cached MX lookup outcome for one domain. Negative outcomes
// (domain resolves but has no mail records) are cached as HasMX=false so
// repeat lookups against dead mail domains cost nothing.
type MXRecord struct {
	Hosts    []string  `json:"hosts,omitempty"`
	HasMX    bool      `json:"has_mx"`
	CachedAt time.Time `json:"cached_at"`
}

// Cache stores MX lookup results per domain with a TTL. Keys are domains, not
// job- or item-specific, so one cache is safely shared across jobs.
type Cache interface {
	Get(ctx context.Context, domain string) (*MXRecord, bool, error)
	Set(ctx context.Context, domain string, rec MXRecord, ttl time.Duration) error
}

// MemoryCache is a process-lifetime in-memory Cache with TTL expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	rec       MXRecord
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, domain string) (*MXRecord, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[domain]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	rec := e.rec
	return &rec, true, nil
}

func (c *MemoryCache) Set(_ context.Context, domain string, rec MXRecord, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[domain] = memoryEntry{rec: rec, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// RedisCache keeps MX results in Redis so the cache stays warm across worker
// restarts. Redis handles TTL expiry natively.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed cache against the given address.
func NewRedisCache(addr string) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "prospector:mx:",
	}
}

func (c *RedisCache) Get(ctx context.Context, domain string) (*MXRecord, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+domain).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "verify: redis get")
	}
	var rec MXRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, false, eris.Wrap(err, "verify: unmarshal cache entry")
	}
	return &rec, true, nil
}

func (c *RedisCache) Set(ctx context.Context, domain string, rec MXRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "verify: marshal cache entry")
	}
	if err := c.client.Set(ctx, c.prefix+domain, data, ttl).Err(); err != nil {
		return eris.Wrap(err, "verify: redis set")
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
