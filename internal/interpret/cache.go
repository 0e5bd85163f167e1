package interpret

import (
	"sort"
	"sync"
	"time"

	"github.com/mispesos/engine/internal/record"
)

const (
	defaultCacheTTL        = time.Hour
	defaultCacheMaxEntries = 1000

	// cacheKeepRatio: entries retained after a size-cap prune, newest
	// first by insertion time.
	cacheKeepRatio = 0.8

	// defaultCacheMinConfidence gates writes; weak results never pollute
	// the cache.
	defaultCacheMinConfidence = 0.6
)

type cacheEntry struct {
	rec        record.Record
	insertedAt time.Time
}

// ResponseCache is a bounded, TTL-based store mapping message
// fingerprints to previously accepted records. Safe for concurrent use;
// entries are visible atomically per key.
type ResponseCache struct {
	mu            sync.Mutex
	entries       map[string]cacheEntry
	ttl           time.Duration
	maxEntries    int
	minConfidence float64
	now           func() time.Time
}

// CacheOption configures a ResponseCache.
type CacheOption func(*ResponseCache)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *ResponseCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithMaxEntries(n int) CacheOption {
	return func(c *ResponseCache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithMinConfidence sets the write gate; records at or below it are not
// cached. Keep it aligned with the retry layer's acceptance threshold.
func WithMinConfidence(c float64) CacheOption {
	return func(rc *ResponseCache) {
		if c > 0 {
			rc.minConfidence = c
		}
	}
}

func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *ResponseCache) {
		if now != nil {
			c.now = now
		}
	}
}

func NewResponseCache(opts ...CacheOption) *ResponseCache {
	c := &ResponseCache{
		entries:       make(map[string]cacheEntry),
		ttl:           defaultCacheTTL,
		maxEntries:    defaultCacheMaxEntries,
		minConfidence: defaultCacheMinConfidence,
		now:           time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the cached record for a fingerprint. An entry older than
// the TTL counts as a miss and is evicted on the spot.
func (c *ResponseCache) Get(fingerprint string) (record.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return record.Record{}, false
	}
	if c.now().Sub(e.insertedAt) >= c.ttl {
		delete(c.entries, fingerprint)
		return record.Record{}, false
	}
	return e.rec, true
}

// Put stores an accepted record. Only successful records with confidence
// above the gate are admitted. Expired entries are pruned on every write,
// and once the store exceeds its cap only the newest entries (by
// insertion time) survive.
func (c *ResponseCache) Put(fingerprint string, rec record.Record) {
	if !rec.Successful() || rec.Confidence <= c.minConfidence {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[fingerprint] = cacheEntry{rec: rec, insertedAt: now}

	for k, e := range c.entries {
		if now.Sub(e.insertedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}

	if len(c.entries) > c.maxEntries {
		c.pruneLocked()
	}
}

// Len reports the current entry count.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// pruneLocked retains the newest keepRatio×cap entries by insertion time.
func (c *ResponseCache) pruneLocked() {
	keep := int(float64(c.maxEntries) * cacheKeepRatio)

	type kv struct {
		key string
		at  time.Time
	}
	all := make([]kv, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, kv{key: k, at: e.insertedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.After(all[j].at) })

	for _, item := range all[keep:] {
		delete(c.entries, item.key)
	}
}
