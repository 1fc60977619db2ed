// ABOUTME: In-memory cache with TTL-based expiration
// ABOUTME: Thread-safe store over sync.Map with a background cleanup sweep

package cache

import (
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	data      interface{}
	expiresAt time.Time
}

// Cache is a TTL key/value store. It backs the session service and the
// health payload; entries expire lazily on read and eagerly once a minute.
type Cache struct {
	store sync.Map
	ttl   time.Duration
}

func New(ttl time.Duration) *Cache {
	c := &Cache{
		ttl: ttl,
	}
	go c.startCleanup()
	return c
}

func (c *Cache) Get(key string) (interface{}, bool) {
	val, ok := c.store.Load(key)
	if !ok {
		return nil, false
	}

	e := val.(entry)
	if time.Now().After(e.expiresAt) {
		c.store.Delete(key)
		slog.Debug("Cache expired", "key", key)
		return nil, false
	}

	return e.data, true
}

// Set stores a value with the cache's default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.store.Store(key, entry{
		data:      value,
		expiresAt: time.Now().Add(ttl),
	})
	slog.Debug("Cache set", "key", key, "ttl", ttl)
}

func (c *Cache) Clear(key string) {
	c.store.Delete(key)
}

func (c *Cache) startCleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.store.Range(func(key, val interface{}) bool {
			if now.After(val.(entry).expiresAt) {
				c.store.Delete(key)
			}
			return true
		})
	}
}
