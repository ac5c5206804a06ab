package fs

import (
	"container/list"
	"sync"
	"time"

	"github.com/marmos91/objfs/internal/logger"
	"github.com/marmos91/objfs/pkg/objstore"
)

// ============================================================================
// Lookup Cache
// ============================================================================

// lookupCache caches resolved directory entries keyed by (parent object,
// child name).
//
// Path resolution walks one store round-trip per component; on read-heavy
// workloads the same prefixes are resolved over and over, so a small LRU of
// entry records removes most of those round-trips.
//
// Cache Strategy:
//   - LRU eviction when the cache is full
//   - TTL-based expiration
//   - Invalidation on every namespace mutation (create, remove, setattr)
//
// Thread Safety:
// Operations take an RWMutex unless the mount was created with the no-lock
// flag, in which case the caller has promised single-threaded use and the
// locks are skipped entirely.
type lookupCache struct {
	ttl        time.Duration
	maxEntries int
	locking    bool

	cache   map[lookupKey]*lookupEntry
	lruList *list.List
	mu      sync.RWMutex

	hits   uint64
	misses uint64
}

// lookupKey identifies one cached resolution step.
type lookupKey struct {
	parent objstore.ObjectID
	name   string
}

// lookupEntry is one cached entry record with its LRU bookkeeping.
type lookupEntry struct {
	entry     *DirEntry
	timestamp time.Time
	lruNode   *list.Element
}

const (
	defaultCacheTTL        = 5 * time.Second
	defaultCacheMaxEntries = 4096
)

// newLookupCache builds a cache. Locking is disabled when the no-lock mount
// flag was set.
func newLookupCache(locking bool) *lookupCache {
	return &lookupCache{
		ttl:        defaultCacheTTL,
		maxEntries: defaultCacheMaxEntries,
		locking:    locking,
		cache:      make(map[lookupKey]*lookupEntry),
		lruList:    list.New(),
	}
}

// get returns a cached entry record, or nil on miss or expiry. Hits return a
// copy so callers never mutate cached state.
func (c *lookupCache) get(parent objstore.ObjectID, name string) *DirEntry {
	if c.locking {
		c.mu.Lock()
		defer c.mu.Unlock()
	}

	key := lookupKey{parent: parent, name: name}
	cached, exists := c.cache[key]
	if !exists {
		c.misses++
		return nil
	}

	if time.Since(cached.timestamp) > c.ttl {
		c.lruList.Remove(cached.lruNode)
		delete(c.cache, key)
		c.misses++
		return nil
	}

	c.lruList.MoveToFront(cached.lruNode)
	c.hits++
	return cached.entry.clone()
}

// put stores an entry record, evicting the least recently used record when
// the cache is full.
func (c *lookupCache) put(parent objstore.ObjectID, entry *DirEntry) {
	if c.locking {
		c.mu.Lock()
		defer c.mu.Unlock()
	}

	key := lookupKey{parent: parent, name: entry.Name}

	if existing, exists := c.cache[key]; exists {
		existing.entry = entry.clone()
		existing.timestamp = time.Now()
		c.lruList.MoveToFront(existing.lruNode)
		return
	}

	if len(c.cache) >= c.maxEntries {
		c.evictOldest()
	}

	cached := &lookupEntry{
		entry:     entry.clone(),
		timestamp: time.Now(),
	}
	cached.lruNode = c.lruList.PushFront(key)
	c.cache[key] = cached
}

// evictOldest removes the least recently used record. Must be called with
// the write lock held (when locking is enabled).
func (c *lookupCache) evictOldest() {
	oldest := c.lruList.Back()
	if oldest == nil {
		return
	}
	c.lruList.Remove(oldest)

	key := oldest.Value.(lookupKey)
	delete(c.cache, key)

	logger.Debug("Evicted lookup cache entry: %s/%s", key.parent, key.name)
}

// invalidate drops one cached resolution step. Called on every mutation of
// the (parent, name) pair so stale kinds or timestamps are never served.
func (c *lookupCache) invalidate(parent objstore.ObjectID, name string) {
	if c.locking {
		c.mu.Lock()
		defer c.mu.Unlock()
	}

	key := lookupKey{parent: parent, name: name}
	cached, exists := c.cache[key]
	if !exists {
		return
	}

	c.lruList.Remove(cached.lruNode)
	delete(c.cache, key)
}

// stats returns hit/miss counters and the current size.
func (c *lookupCache) stats() (hits, misses uint64, size int) {
	if c.locking {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}
	return c.hits, c.misses, len(c.cache)
}

// clear removes all cached records.
func (c *lookupCache) clear() {
	if c.locking {
		c.mu.Lock()
		defer c.mu.Unlock()
	}

	c.cache = make(map[lookupKey]*lookupEntry)
	c.lruList = list.New()
}

// entryCache is what the resolver needs from a cache. Two implementations:
// the LRU above and the no-op below, selected at mount time.
type entryCache interface {
	get(parent objstore.ObjectID, name string) *DirEntry
	put(parent objstore.ObjectID, entry *DirEntry)
	invalidate(parent objstore.ObjectID, name string)
	stats() (hits, misses uint64, size int)
	clear()
}

// noopCache is the cache used for no-cache mounts: every lookup is a miss
// and every store is dropped, keeping the call sites unconditional.
type noopCache struct{}

func (noopCache) get(objstore.ObjectID, string) *DirEntry { return nil }
func (noopCache) put(objstore.ObjectID, *DirEntry)        {}
func (noopCache) invalidate(objstore.ObjectID, string)    {}
func (noopCache) stats() (uint64, uint64, int)            { return 0, 0, 0 }
func (noopCache) clear()                                  {}
