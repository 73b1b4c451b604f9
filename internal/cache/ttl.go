// Package cache provides the TTL caches used as advisory, never-authoritative
// short-circuits: the backings for the identifier's retry cache (spec §4.B).
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTLCache is a small wrapper around patrickmn/go-cache giving us a named
// type to back identity.LocalRetryCache without leaking the
// underlying library through every call site.
type TTLCache struct {
	inner *gocache.Cache
}

// NewTTLCache builds an in-process TTL cache with the given default
// expiration and cleanup interval.
func NewTTLCache(defaultTTL time.Duration) *TTLCache {
	return &TTLCache{inner: gocache.New(defaultTTL, defaultTTL/2)}
}

// Seen records key as observed, advisory only.
func (c *TTLCache) Seen(key string) {
	c.inner.SetDefault(key, struct{}{})
}

// WasSeen reports whether key was recently recorded.
func (c *TTLCache) WasSeen(key string) bool {
	_, found := c.inner.Get(key)
	return found
}

// ItemCount reports the number of live entries, useful for metrics/tests.
func (c *TTLCache) ItemCount() int {
	return c.inner.ItemCount()
}
