package objstore

import (
	"context"
	"sync"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/observability"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

// CachedStore wraps a zarr store with an in-memory LRU cache of raw
// objects. Chunk objects are immutable once written, so entries never
// expire; they only fall out under capacity pressure.
//
// A single mutex guards the cache. Concurrent readers serialize on it,
// which is measurable under parallel chunk fetches; the gridbench
// command exists to quantify that.
type CachedStore struct {
	inner   zarr.Store
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedStore creates a cache decorator around a store.
func NewCachedStore(inner zarr.Store, maxEntries int, metrics *observability.Metrics) *CachedStore {
	return &CachedStore{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	if data, ok := c.cache.get(key); ok {
		c.metrics.ChunkCache.WithLabelValues("hit").Inc()
		return data, nil
	}
	c.metrics.ChunkCache.WithLabelValues("miss").Inc()
	data, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, data)
	return data, nil
}

// Len returns the number of cached objects.
func (c *CachedStore) Len() int {
	return c.cache.len()
}

// lruCache is a simple thread-safe LRU cache for raw objects.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []byte
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
