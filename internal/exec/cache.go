package exec

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"govigil/domain/core"
	"govigil/domain/signal"
	"govigil/ports"
)

// CacheStats tracks cache effectiveness
type CacheStats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	StaleEvicted  int64 `json:"stale_evicted"`
	SharedFlights int64 `json:"shared_flights"`
}

// Cache memoizes operation results keyed by fingerprint, stamped with the
// dataset version they were computed against. It is an explicit object with
// a lifecycle (construct at session start, invalidate on version change),
// not ambient global state. Single-writer, multiple-reader: all mutation
// goes through the mutex.
type Cache struct {
	mu      sync.RWMutex
	entries *lru.Cache[string, *signal.CacheEntry]
	version core.DatasetVersion
	store   ports.CacheStore // optional write-through persistence
	stats   CacheStats
	log     *logrus.Entry
}

// NewCache creates a bounded cache; store may be nil
func NewCache(size int, store ports.CacheStore) (*Cache, error) {
	entries, err := lru.New[string, *signal.CacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		entries: entries,
		store:   store,
		log:     logrus.WithField("component", "cache"),
	}, nil
}

// SetVersion switches the cache to a new dataset version. On change, every
// in-memory entry is dropped and the persistent store is purged so stale
// results can never be served against the newer dataset.
func (c *Cache) SetVersion(ctx context.Context, version core.DatasetVersion) {
	c.mu.Lock()
	if c.version == version {
		c.mu.Unlock()
		return
	}
	prev := c.version
	c.version = version
	c.entries.Purge()
	c.mu.Unlock()

	if prev != "" {
		c.log.WithFields(logrus.Fields{"from": prev, "to": version}).Info("dataset version changed, cache invalidated")
	}
	if c.store != nil {
		if err := c.store.PurgeExcept(ctx, version); err != nil {
			c.log.WithError(err).Warn("failed to purge persistent cache store")
		}
	}
}

// Get returns the cached entry for a fingerprint if it matches the current
// dataset version.
func (c *Cache) Get(ctx context.Context, fp core.Fingerprint) (*signal.CacheEntry, bool) {
	c.mu.RLock()
	version := c.version
	entry, ok := c.entries.Get(fp.String())
	c.mu.RUnlock()

	if ok {
		if entry.Version == version {
			c.bump(func(s *CacheStats) { s.Hits++ })
			return entry, true
		}
		c.bump(func(s *CacheStats) { s.StaleEvicted++ })
		c.mu.Lock()
		c.entries.Remove(fp.String())
		c.mu.Unlock()
	}

	if c.store != nil {
		stored, err := c.store.Get(ctx, fp)
		if err == nil && stored != nil && stored.Version == version {
			c.mu.Lock()
			c.entries.Add(fp.String(), stored)
			c.mu.Unlock()
			c.bump(func(s *CacheStats) { s.Hits++ })
			return stored, true
		}
	}

	c.bump(func(s *CacheStats) { s.Misses++ })
	return nil, false
}

// Put stores a freshly computed entry; entries for other versions are
// rejected rather than poisoning the cache.
func (c *Cache) Put(ctx context.Context, entry *signal.CacheEntry) {
	c.mu.Lock()
	if entry.Version != c.version {
		c.mu.Unlock()
		return
	}
	c.entries.Add(entry.Fingerprint.String(), entry)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Put(ctx, entry); err != nil {
			c.log.WithError(err).Warn("failed to persist cache entry")
		}
	}
}

// Stats returns a snapshot of the counters
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Cache) bump(update func(*CacheStats)) {
	c.mu.Lock()
	update(&c.stats)
	c.mu.Unlock()
}
