package websearch

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value     *Response
	createdAt time.Time
	expiresAt time.Time
}

// resultCache is a TTL'd exact-match cache for search responses. It sits in
// front of the live provider so repeated queries within a session are free.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
}

func newResultCache(maxSize int, ttl time.Duration) *resultCache {
	return &resultCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func (c *resultCache) get(key string) (*Response, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (c *resultCache) set(key string, value *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	now := time.Now()
	c.entries[key] = &cacheEntry{value: value, createdAt: now, expiresAt: now.Add(c.ttl)}
}

func (c *resultCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
