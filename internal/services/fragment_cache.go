package services

import (
	"container/list"
	"sync"
)

// FragmentCache keeps decompressed fragment blocks keyed by fragment index.
// Entries are evicted least recently used first once their total size passes
// the byte limit.
type FragmentCache struct {
	entries map[uint32]*list.Element
	order   *list.List // front is most recently used

	maxBytes     int64
	currentBytes int64

	hits      uint64
	misses    uint64
	evictions uint64

	mu sync.Mutex
}

type fragmentEntry struct {
	index uint32
	data  []byte
}

// FragmentCacheStats contains fragment cache counters
type FragmentCacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Blocks    int
	Bytes     int64
	MaxBytes  int64
}

// NewFragmentCache creates a cache holding at most maxBytes of fragment data.
// A limit of zero or less disables caching.
func NewFragmentCache(maxBytes int64) *FragmentCache {
	return &FragmentCache{
		entries:  make(map[uint32]*list.Element),
		order:    list.New(),
		maxBytes: maxBytes,
	}
}

// Get returns the cached block of a fragment
func (c *FragmentCache) Get(index uint32) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[index]; ok {
		c.order.MoveToFront(element)
		c.hits++
		return element.Value.(*fragmentEntry).data, true
	}
	c.misses++
	return nil, false
}

// Put stores the block of a fragment. Blocks larger than the whole cache are
// not stored.
func (c *FragmentCache) Put(index uint32, data []byte) {
	size := int64(len(data))
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[index]; ok {
		c.order.MoveToFront(element)
		return
	}

	c.entries[index] = c.order.PushFront(&fragmentEntry{index: index, data: data})
	c.currentBytes += size

	for c.currentBytes > c.maxBytes && c.order.Len() > 0 {
		c.evictOldest()
	}
}

func (c *FragmentCache) evictOldest() {
	element := c.order.Back()
	if element == nil {
		return
	}
	entry := c.order.Remove(element).(*fragmentEntry)
	delete(c.entries, entry.index)
	c.currentBytes -= int64(len(entry.data))
	c.evictions++
}

// Clear drops every cached block. Counters are kept.
func (c *FragmentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[uint32]*list.Element)
	c.order.Init()
	c.currentBytes = 0
}

// Stats returns the cache counters
func (c *FragmentCache) Stats() FragmentCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return FragmentCacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Blocks:    len(c.entries),
		Bytes:     c.currentBytes,
		MaxBytes:  c.maxBytes,
	}
}
