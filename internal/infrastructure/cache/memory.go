package cache

import (
	"context"
	"sync"

	"github.com/sentimentscope/catalog/internal/domain"
)

// MemoryCache is a thread-safe in-memory response cache.
// Entries have no TTL and are never evicted; they live until Clear.
type MemoryCache struct {
	data  map[string][]byte
	mutex sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string][]byte),
	}
}

// Get retrieves a copy of the cached body for key
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	value, exists := c.data[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}

	return cloneBytes(value), nil
}

// Set stores a copy of value under key, replacing any previous entry
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = cloneBytes(value)
	return nil
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string][]byte)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
