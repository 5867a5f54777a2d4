package asset

import (
	"sort"
	"sync"
	"time"

	"github.com/trainsim/soundsource/internal/backend"
)

// DefaultExternalSuffix distinguishes cache keys of external (mono) loads.
const DefaultExternalSuffix = ".x"

// CacheStats holds cache counters.
type CacheStats struct {
	Assets   int   // live assets, invalid ones included
	Invalid  int   // assets whose decode failed
	Retired  int   // invalidated assets still referenced by a source
	Bytes    int64 // PCM bytes held by live assets
	Hits     int64
	Misses   int64
	Failures int64 // decode failures

	LastLoad time.Time
}

// Cache shares decoded assets between sources. Lookups insert-if-absent
// under a single lock; loads are rare so they run while holding it.
type Cache struct {
	backend     backend.Backend
	decoder     Decoder
	checkFactor int
	suffix      string

	mu      sync.Mutex
	assets  map[string]*Asset
	retired []*Asset
	stats   CacheStats
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCheckFactor sets the checkpoint window used by loaded assets.
func WithCheckFactor(f int) CacheOption {
	return func(c *Cache) { c.checkFactor = f }
}

// WithExternalSuffix sets the key suffix for external loads.
func WithExternalSuffix(s string) CacheOption {
	return func(c *Cache) { c.suffix = s }
}

// NewCache creates an empty cache uploading into b and decoding with dec.
func NewCache(b backend.Backend, dec Decoder, opts ...CacheOption) *Cache {
	c := &Cache{
		backend:     b,
		decoder:     dec,
		checkFactor: DefaultCheckFactor,
		suffix:      DefaultExternalSuffix,
		assets:      make(map[string]*Asset),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the cache key for a load.
func (c *Cache) Key(name string, external bool) string {
	if external {
		return name + c.suffix
	}
	return name
}

// Get returns the cached asset for name, loading it on first use. The error
// is only reported by the call that attempted the failed load; the returned
// asset is never nil and is invalid in that case.
func (c *Cache) Get(name string, external bool) (*Asset, error) {
	key := c.Key(name, external)

	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.assets[key]; ok {
		c.stats.Hits++
		return a, nil
	}
	c.stats.Misses++

	a, err := Load(c.backend, c.decoder, name, external, c.checkFactor)
	c.assets[key] = a
	c.stats.LastLoad = time.Now()
	if err != nil {
		c.stats.Failures++
		logger.Debug("sound load failed", "name", name, "external", external, "err", err)
		return a, err
	}
	logger.Debug("loaded sound", "name", name, "single", a.Single(), "bytes", a.Length())
	return a, nil
}

// Contains reports whether a load for name is cached.
func (c *Cache) Contains(name string, external bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.assets[c.Key(name, external)]
	return ok
}

// Invalidate drops both the internal and external entries for name so the
// next Get reloads it. Sources still holding the old asset keep using it
// until DisposeRetired or DisposeAll frees it.
func (c *Cache) Invalidate(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, key := range []string{name, name + c.suffix} {
		if a, ok := c.assets[key]; ok {
			c.retired = append(c.retired, a)
			delete(c.assets, key)
			n++
		}
	}
	if n > 0 {
		logger.Debug("invalidated sound", "name", name, "entries", n)
	}
	return n
}

// InvalidateFunc invalidates every entry whose asset name satisfies match.
func (c *Cache) InvalidateFunc(match func(name string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, a := range c.assets {
		if match(a.Name()) {
			c.retired = append(c.retired, a)
			delete(c.assets, key)
			n++
		}
	}
	return n
}

// DisposeRetired frees the buffers of invalidated assets for which inUse
// reports false and returns how many were freed. inUse is called without the
// cache lock held. Retired assets are unreachable through Get, so an asset
// found unused cannot be picked up again before it is freed.
func (c *Cache) DisposeRetired(inUse func(a *Asset) bool) int {
	c.mu.Lock()
	candidates := c.retired
	c.retired = nil
	c.mu.Unlock()
	if len(candidates) == 0 {
		return 0
	}

	var kept, unused []*Asset
	for _, a := range candidates {
		if inUse(a) {
			kept = append(kept, a)
		} else {
			unused = append(unused, a)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.retired = append(c.retired, kept...)
	for _, a := range unused {
		a.dispose(c.backend)
	}
	if len(unused) > 0 {
		logger.Debug("disposed retired sounds", "freed", len(unused), "kept", len(kept))
	}
	return len(unused)
}

// DisposeAll releases every asset's backend buffers and empties the cache.
func (c *Cache) DisposeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range c.assets {
		a.dispose(c.backend)
	}
	for _, a := range c.retired {
		a.dispose(c.backend)
	}
	c.assets = make(map[string]*Asset)
	c.retired = nil
}

// Names returns the sorted cache keys.
func (c *Cache) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.assets))
	for k := range c.assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Assets = len(c.assets)
	s.Retired = len(c.retired)
	for _, a := range c.assets {
		if !a.Valid() {
			s.Invalid++
			continue
		}
		for _, seg := range a.segments {
			s.Bytes += int64(seg.Length)
		}
	}
	return s
}

