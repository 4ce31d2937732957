package schema

import (
	"container/list"
	"sync"
)

// LRUCache is a thread-safe LRU cache of compiled collections. Entries are
// tagged with the fingerprint of the definition they were compiled from so
// that an edited definition is never served from a stale entry.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[Key]*list.Element
	order    *list.List
}

type cacheEntry struct {
	key         Key
	fingerprint string
	collection  *Collection
}

// NewLRUCache creates a new LRU cache with the given capacity.
func NewLRUCache(capacity int) *LRUCache {
	if capacity < 1 {
		capacity = 1
	}
	return &LRUCache{
		capacity: capacity,
		entries:  make(map[Key]*list.Element),
		order:    list.New(),
	}
}

// Get returns the collection compiled for key from the definition with the
// given fingerprint, or nil.
func (c *LRUCache) Get(key Key, fingerprint string) *Collection {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.entries[key]
	if !exists {
		return nil
	}
	entry := elem.Value.(*cacheEntry)
	if entry.fingerprint != fingerprint {
		return nil
	}

	c.order.MoveToFront(elem)
	return entry.collection
}

// Put stores a compiled collection, evicting the least recently used entry if full.
func (c *LRUCache) Put(key Key, fingerprint string, collection *Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.entries[key]; exists {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.fingerprint = fingerprint
		entry.collection = collection
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			delete(c.entries, oldest.Value.(*cacheEntry).key)
			c.order.Remove(oldest)
		}
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, fingerprint: fingerprint, collection: collection})
}

// Len returns the number of cached collections.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
