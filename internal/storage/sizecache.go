package storage

import "sync"

// sizeCache remembers collection vector sizes for client-side dimension checks.
type sizeCache struct {
	mu    sync.RWMutex
	sizes map[string]int
}

func newSizeCache() *sizeCache {
	return &sizeCache{sizes: make(map[string]int)}
}

func (c *sizeCache) get(name string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	size, ok := c.sizes[name]
	return size, ok
}

func (c *sizeCache) set(name string, size int) {
	if size <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sizes[name] = size
}
