// Package cache caches object headers so repeated stat calls against the
// same path skip the backend round trip. Streams keep their own memoized
// header; this cache serves the path-level API (Stat, Exists) where no
// stream is open.
package cache

import (
	"time"

	"github.com/goburrow/cache"

	"github.com/objstream/objstream-go/internal/stream"
)

const (
	// DefaultTTL bounds header staleness. Writes through this process
	// invalidate eagerly; writes from elsewhere surface after at most
	// this long.
	DefaultTTL = 5 * time.Second

	// DefaultMaxEntries caps the number of cached paths.
	DefaultMaxEntries = 10000
)

// HeadCache is a TTL-bounded header cache keyed by full object path.
// It is safe for concurrent use.
type HeadCache struct {
	c cache.Cache
}

// New returns a header cache with the given TTL and entry cap. Zero or
// negative values select the defaults.
func New(ttl time.Duration, maxEntries int) *HeadCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &HeadCache{
		c: cache.New(
			cache.WithExpireAfterWrite(ttl),
			cache.WithMaximumSize(maxEntries),
		),
	}
}

// Get returns the cached header for path.
func (hc *HeadCache) Get(path string) (stream.Header, bool) {
	v, ok := hc.c.GetIfPresent(path)
	if !ok {
		return stream.Header{}, false
	}
	return v.(stream.Header), true
}

// Put stores the header for path.
func (hc *HeadCache) Put(path string, h stream.Header) {
	hc.c.Put(path, h)
}

// Invalidate drops the entry for path. Called after any write or delete
// through this process.
func (hc *HeadCache) Invalidate(path string) {
	hc.c.Invalidate(path)
}

// Reset drops every entry.
func (hc *HeadCache) Reset() {
	hc.c.InvalidateAll()
}

// Close releases the cache's internal resources.
func (hc *HeadCache) Close() error {
	return hc.c.Close()
}
