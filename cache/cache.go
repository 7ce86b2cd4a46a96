// Package cache provides the result caches used to memoize the country code
// resolved for a terminal search tree record.
package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache maps a terminal record id to the country code decoded for it. An
// empty country is a valid entry: the record exists but has no country.
//
// Implementations must be safe for concurrent use. Concurrent misses for the
// same id may both Store; the stored value is the same.
type Cache interface {
	Load(id uint) (string, bool)
	Store(id uint, country string)
	Len() int
	Purge()
}

type mapCache struct {
	mu      sync.RWMutex
	entries map[uint]string
}

// NewMap returns an unbounded cache. Entries are never evicted; the number of
// distinct terminal records in a database bounds its size.
func NewMap() Cache {
	return &mapCache{entries: make(map[uint]string)}
}

func (c *mapCache) Load(id uint) (string, bool) {
	c.mu.RLock()
	country, ok := c.entries[id]
	c.mu.RUnlock()
	return country, ok
}

func (c *mapCache) Store(id uint, country string) {
	c.mu.Lock()
	if _, ok := c.entries[id]; !ok {
		c.entries[id] = country
	}
	c.mu.Unlock()
}

func (c *mapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *mapCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[uint]string)
	c.mu.Unlock()
}

type lruCache struct {
	entries *lru.Cache[uint, string]
}

// NewLRU returns a cache holding at most size entries, evicting the least
// recently used one when full.
func NewLRU(size int) (Cache, error) {
	entries, err := lru.New[uint, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating LRU result cache: %w", err)
	}
	return &lruCache{entries: entries}, nil
}

func (c *lruCache) Load(id uint) (string, bool) {
	return c.entries.Get(id)
}

func (c *lruCache) Store(id uint, country string) {
	c.entries.ContainsOrAdd(id, country)
}

func (c *lruCache) Len() int {
	return c.entries.Len()
}

func (c *lruCache) Purge() {
	c.entries.Purge()
}

type noCache struct{}

// NewNone returns a cache that stores nothing, so every lookup decodes.
func NewNone() Cache {
	return noCache{}
}

func (noCache) Load(uint) (string, bool) { return "", false }

func (noCache) Store(uint, string) {}

func (noCache) Len() int { return 0 }

func (noCache) Purge() {}
