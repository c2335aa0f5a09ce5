package videosource

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Cache stores listing results keyed by (channel, page, size). Implementations
// decide freshness; a stale or missing key reports a miss. The capability is
// always injected, never a package-level global.
type Cache interface {
	Get(key string) ([]Video, bool)
	Set(key string, videos []Video)
}

// CacheKey builds the cache key for one listing request.
func CacheKey(channelID string, page, size int) string {
	return fmt.Sprintf("%s|%d|%d", channelID, page, size)
}

type cacheEntry struct {
	videos   []Video
	storedAt time.Time
}

// MemoryCache is a mutex-guarded in-memory TTL cache.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   func() time.Time
	entries map[string]cacheEntry
}

// NewMemoryCache builds a MemoryCache with the given freshness window. A nil
// clock defaults to time.Now.
func NewMemoryCache(ttl time.Duration, clock func() time.Time) *MemoryCache {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached listing if it is still fresh.
func (c *MemoryCache) Get(key string) ([]Video, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.videos, true
}

// Set stores a listing with the current timestamp.
func (c *MemoryCache) Set(key string, videos []Video) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{videos: videos, storedAt: c.clock()}
}

// NopCache never hits and drops every write. Useful in tests.
type NopCache struct{}

// Get always reports a miss.
func (NopCache) Get(string) ([]Video, bool) { return nil, false }

// Set discards the listing.
func (NopCache) Set(string, []Video) {}

// CachedSource decorates a Source with read-through caching. Errors from the
// underlying source are never cached.
type CachedSource struct {
	source Source
	cache  Cache
}

// NewCachedSource wraps a source with the injected cache capability.
func NewCachedSource(source Source, cache Cache) *CachedSource {
	return &CachedSource{source: source, cache: cache}
}

// ListRecent serves from cache when fresh and falls through otherwise.
func (s *CachedSource) ListRecent(ctx context.Context, channelID string, page, size int) ([]Video, error) {
	key := CacheKey(channelID, page, size)
	if videos, ok := s.cache.Get(key); ok {
		return videos, nil
	}
	videos, err := s.source.ListRecent(ctx, channelID, page, size)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, videos)
	return videos, nil
}
