package postgres

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dealsourcer/orgsearch/pkg/observability"
)

// CacheClass groups cached values by how long they may go stale.
type CacheClass string

const (
	CacheClassOrganization CacheClass = "organization"
	CacheClassStats        CacheClass = "stats"
)

var defaultTTLs = map[CacheClass]time.Duration{
	CacheClassOrganization: 15 * time.Minute,
	CacheClassStats:        5 * time.Minute,
}

// Cache is a two-tier cache: an in-process LRU in front of Redis. The
// local tier absorbs hot-key traffic; Redis keeps entries shared across
// instances. Both tiers are best effort and never surface errors to
// callers, a miss is always safe because the database remains the source
// of truth.
type Cache struct {
	local   *lru.Cache[string, localEntry]
	redis   *RedisClient
	ttl     map[CacheClass]time.Duration
	metrics *observability.Metrics
}

type localEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewCache creates a two-tier cache. redisClient may be nil, in which
// case only the local tier is used.
func NewCache(localSize int, redisClient *RedisClient) (*Cache, error) {
	if localSize <= 0 {
		localSize = 1024
	}
	local, err := lru.New[string, localEntry](localSize)
	if err != nil {
		return nil, err
	}

	ttl := make(map[CacheClass]time.Duration, len(defaultTTLs))
	for class, d := range defaultTTLs {
		ttl[class] = d
	}

	return &Cache{
		local: local,
		redis: redisClient,
		ttl:   ttl,
	}, nil
}

// SetTTL overrides the TTL for a cache class.
func (c *Cache) SetTTL(class CacheClass, ttl time.Duration) {
	c.ttl[class] = ttl
}

// SetMetrics enables hit/miss counters. A nil value is allowed.
func (c *Cache) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// Get returns the cached value for key, or nil on a miss. A Redis hit
// is promoted into the local tier.
func (c *Cache) Get(ctx context.Context, key string, class CacheClass) []byte {
	if entry, ok := c.local.Get(key); ok {
		if time.Now().Before(entry.expiresAt) {
			c.metrics.CacheHit(string(class))
			return entry.data
		}
		c.local.Remove(key)
	}

	if c.redis == nil {
		c.metrics.CacheMiss(string(class))
		return nil
	}

	data, err := c.redis.Get(ctx, key)
	if err != nil || data == nil {
		c.metrics.CacheMiss(string(class))
		return nil
	}
	c.metrics.CacheHit(string(class))

	// The local tier cannot see the remaining Redis TTL, so it keeps the
	// entry briefly and lets Redis bound overall staleness.
	c.local.Add(key, localEntry{data: data, expiresAt: time.Now().Add(time.Minute)})
	return data
}

// Set stores a value in both tiers with the class TTL.
func (c *Cache) Set(ctx context.Context, key string, data []byte, class CacheClass) {
	ttl, ok := c.ttl[class]
	if !ok {
		ttl = 5 * time.Minute
	}

	c.local.Add(key, localEntry{data: data, expiresAt: time.Now().Add(ttl)})
	if c.redis != nil {
		c.redis.Set(ctx, key, data, ttl)
	}
}

// Invalidate removes keys from both tiers.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.local.Remove(key)
	}
	if c.redis != nil {
		c.redis.Delete(ctx, keys...)
	}
}

// Purge drops the full local tier. Redis entries are left to expire.
func (c *Cache) Purge() {
	c.local.Purge()
}
