package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/zatekoja/localservices/internal/domain/providers"
)

var _ providers.CacheProvider = (*Cache)(nil)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is an in-process CacheProvider with per-key expiry
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry), now: time.Now}
}

// SetClock replaces the cache clock
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get retrieves a value
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lookupLocked(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return append([]byte(nil), entry.value...), nil
}

// Set stores a value
func (c *Cache) Set(_ context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{value: append([]byte(nil), value...)}
	if expirationSeconds > 0 {
		entry.expiresAt = c.now().Add(time.Duration(expirationSeconds) * time.Second)
	}
	c.entries[key] = entry
	return nil
}

// Delete removes values
func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

// Exists checks if a live key exists
func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookupLocked(key)
	return ok, nil
}

// Increment adds one to the counter at key, setting the expiry only on creation
func (c *Cache) Increment(_ context.Context, key string, expirationSeconds int) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.lookupLocked(key)
	var count int64
	if ok {
		n, err := strconv.ParseInt(string(entry.value), 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("value at %s is not a counter", key)
		}
		count = n
	} else if expirationSeconds > 0 {
		entry.expiresAt = now.Add(time.Duration(expirationSeconds) * time.Second)
	}
	count++
	entry.value = []byte(strconv.FormatInt(count, 10))
	c.entries[key] = entry

	var remaining time.Duration
	if !entry.expiresAt.IsZero() {
		remaining = entry.expiresAt.Sub(now)
	}
	return count, remaining, nil
}

func (c *Cache) lookupLocked(key string) (cacheEntry, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return cacheEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return cacheEntry{}, false
	}
	return entry, true
}
