package cache

import "time"

// LayeredCache implements a multi-layer cache (memory in front of a persistent store)
type LayeredCache struct {
	memory Cache
	store  Cache
}

// NewLayeredCache creates a memory + disk layered cache
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return NewLayered(NewMemoryCache(memoryTTL, 10*time.Minute), NewDiskCache(diskDir, diskTTL))
}

// NewLayered puts memory in front of any persistent store
func NewLayered(memory, store Cache) *LayeredCache {
	return &LayeredCache{
		memory: memory,
		store:  store,
	}
}

// Get retrieves a value from the cache (checks memory first, then the store)
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if val, found := c.store.Get(key); found {
		// Promote to memory cache
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores a value in both layers
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	return c.store.Set(key, value, ttl)
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.store.Delete(key)
}

// Clear removes all values from both layers
func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.store.Clear()
}

// Close releases the persistent layer
func (c *LayeredCache) Close() error {
	return Close(c.store)
}
