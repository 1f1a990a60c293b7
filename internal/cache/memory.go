package cache

import (
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value    []byte
	expires  time.Time
	accessed time.Time
}

// memoryCache is the in-process fallback tier. Expiry is checked at read
// time; a periodic sweep (driven by the Store's scheduler) removes dead
// entries so the map does not grow unbounded between reads.
type memoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*memoryEntry
	maxEntries int64
}

func newMemoryCache(maxEntries int64) *memoryCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &memoryCache{
		entries:    make(map[string]*memoryEntry),
		maxEntries: maxEntries,
	}
}

func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	entry.accessed = time.Now()
	return entry.value, true
}

func (c *memoryCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if int64(len(c.entries)) >= c.maxEntries {
		c.evictLRU()
	}
	now := time.Now()
	c.entries[key] = &memoryEntry{
		value:    value,
		expires:  now.Add(ttl),
		accessed: now,
	}
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeletePrefix removes every entry whose key starts with prefix and returns
// the count removed.
func (c *memoryCache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

func (c *memoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*memoryEntry)
}

// RemoveExpired sweeps out dead entries and returns the count removed.
func (c *memoryCache) RemoveExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	n := 0
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// evictLRU removes the least recently accessed entry. Caller holds the lock.
func (c *memoryCache) evictLRU() {
	var oldestKey string
	oldestTime := time.Now()

	for key, entry := range c.entries {
		if entry.accessed.Before(oldestTime) {
			oldestTime = entry.accessed
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
