package retrieval

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 256

type cachedText struct {
	text   string
	stored time.Time
}

// ResourceCache holds recently read resource text for a short time.
// Entries older than the TTL are misses and are dropped when next touched,
// so the cache runs no background goroutine. A ttl <= 0 never expires.
// Safe for concurrent use.
type ResourceCache struct {
	lru *lru.Cache[string, cachedText]
	ttl time.Duration
	now func() time.Time
}

// NewResourceCache creates a cache bounded by size entries and ttl age.
func NewResourceCache(size int, ttl time.Duration) *ResourceCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	c, _ := lru.New[string, cachedText](size)
	return &ResourceCache{lru: c, ttl: ttl, now: time.Now}
}

func (c *ResourceCache) expired(e cachedText) bool {
	return c.ttl > 0 && c.now().Sub(e.stored) >= c.ttl
}

// Get returns the cached text for id.
func (c *ResourceCache) Get(id string) (string, bool) {
	e, ok := c.lru.Get(id)
	if !ok {
		return "", false
	}
	if c.expired(e) {
		c.lru.Remove(id)
		return "", false
	}
	return e.text, true
}

// Put stores text for id, refreshing its age.
func (c *ResourceCache) Put(id, text string) {
	c.lru.Add(id, cachedText{text: text, stored: c.now()})
}

// Invalidate drops id from the cache.
func (c *ResourceCache) Invalidate(id string) {
	c.lru.Remove(id)
}

// Purge empties the cache.
func (c *ResourceCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of live entries, dropping expired ones.
func (c *ResourceCache) Len() int {
	for _, id := range c.lru.Keys() {
		if e, ok := c.lru.Peek(id); ok && c.expired(e) {
			c.lru.Remove(id)
		}
	}
	return c.lru.Len()
}
