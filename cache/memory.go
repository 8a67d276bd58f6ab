package cache

import (
	"context"
	"sync"
	"time"
)

const DefaultMaxEntries = 256

// MemoryCache is a process-local LRU with optional expiry. A ttl of zero
// keeps entries until they are evicted.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	order      []string
	maxEntries int
	ttl        time.Duration
}

type memoryEntry struct {
	embeddings [][]float32
	timestamp  time.Time
}

func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &MemoryCache{
		entries:    make(map[string]*memoryEntry),
		order:      make([]string, 0, maxEntries),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([][]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}

	if c.ttl > 0 && time.Since(entry.timestamp) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false, nil
	}

	c.moveToEnd(key)
	return entry.embeddings, true, nil
}

func (c *MemoryCache) Put(ctx context.Context, key string, embeddings [][]float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &memoryEntry{
			embeddings: embeddings,
			timestamp:  time.Now(),
		}

		c.moveToEnd(key)
		return nil
	}

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	c.entries[key] = &memoryEntry{
		embeddings: embeddings,
		timestamp:  time.Now(),
	}

	c.order = append(c.order, key)
	return nil
}

func (c *MemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*memoryEntry)
	c.order = c.order[:0]
	return nil
}

func (c *MemoryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}

	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *MemoryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *MemoryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
