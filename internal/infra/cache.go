package infra

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// Cache size limits to prevent unbounded memory growth
const (
	DefaultMaxCacheEntries = 500             // Maximum number of cached pages
	DefaultCacheCleanup    = 5 * time.Minute // How often expired pages are swept
)

// CacheObserver receives cache events. The wiki client wires it to Prometheus.
type CacheObserver interface {
	CacheAccess(hit bool)
	CacheEviction()
	CacheSize(size int)
}

type cacheEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is a typed LRU cache with per-entry TTL.
// The most recently used entry sits at the front of the list.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	observer   CacheObserver

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCache creates a cache holding at most maxEntries values and starts the expiry sweeper.
func NewCache[V any](maxEntries int) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxCacheEntries
	}
	c := &Cache[V]{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go c.sweepLoop(DefaultCacheCleanup)
	return c
}

// SetObserver attaches an observer for hit/miss/eviction events.
func (c *Cache[V]) SetObserver(o CacheObserver) {
	c.mu.Lock()
	c.observer = o
	c.mu.Unlock()
}

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		c.notifyAccess(false)
		return zero, false
	}
	entry := el.Value.(*cacheEntry[V])
	if time.Now().After(entry.expiresAt) {
		c.removeElement(el)
		c.notifyAccess(false)
		return zero, false
	}
	c.order.MoveToFront(el)
	c.notifyAccess(true)
	return entry.value, true
}

// Set stores value under key for ttl, evicting the least recently used entry when full.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(ttl)
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry[V]{key: key, value: value, expiresAt: expiresAt})
	for c.order.Len() > c.maxEntries {
		c.removeElement(c.order.Back())
		if c.observer != nil {
			c.observer.CacheEviction()
		}
	}
	c.notifySize()
}

// Delete removes key from the cache.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
		c.notifySize()
	}
}

// DeletePrefix removes every entry whose key starts with prefix,
// e.g. all pages of one language edition.
func (c *Cache[V]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, el := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeElement(el)
			removed++
		}
	}
	if removed > 0 {
		c.notifySize()
	}
	return removed
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Close stops the sweeper goroutine. It is safe to call more than once.
func (c *Cache[V]) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

func (c *Cache[V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep drops expired entries.
func (c *Cache[V]) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*cacheEntry[V]).expiresAt) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	if removed > 0 {
		c.notifySize()
	}
	return removed
}

// removeElement must be called with c.mu held.
func (c *Cache[V]) removeElement(el *list.Element) {
	entry := c.order.Remove(el).(*cacheEntry[V])
	delete(c.entries, entry.key)
}

func (c *Cache[V]) notifyAccess(hit bool) {
	if c.observer != nil {
		c.observer.CacheAccess(hit)
	}
}

func (c *Cache[V]) notifySize() {
	if c.observer != nil {
		c.observer.CacheSize(c.order.Len())
	}
}
