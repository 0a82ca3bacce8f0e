package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// EvictFunc is called for every entry leaving the cache, outside the cache lock.
type EvictFunc[V any] func(key string, value V)

// LRUCache implements an LRU cache with sliding TTL support.
type LRUCache[V any] struct {
	capacity   int
	defaultTTL time.Duration
	onEvict    EvictFunc[V]
	now        func() time.Time
	mu         sync.Mutex

	cache map[string]*entry[V]
	order *list.List // Doubly linked list for LRU ordering
}

type entry[V any] struct {
	key       string
	value     V
	ttl       time.Duration
	expiresAt time.Time
	element   *list.Element
}

// NewLRUCache creates a new LRU cache.
func NewLRUCache[V any](capacity int, defaultTTL time.Duration) *LRUCache[V] {
	if capacity <= 0 {
		capacity = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}

	return &LRUCache[V]{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		now:        time.Now,
		cache:      make(map[string]*entry[V]),
		order:      list.New(),
	}
}

// OnEvict registers a callback for expired, evicted and invalidated entries.
func (c *LRUCache[V]) OnEvict(fn EvictFunc[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get retrieves a value from the cache and extends its deadline.
func (c *LRUCache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	e, ok := c.cache[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}

	now := c.now()
	if now.After(e.expiresAt) {
		c.removeEntry(e)
		c.mu.Unlock()
		c.notify([]*entry[V]{e})
		return zero, false
	}

	e.expiresAt = now.Add(e.ttl)
	c.order.MoveToFront(e.element)
	value := e.value
	c.mu.Unlock()
	return value, true
}

// Set stores a value in the cache.
func (c *LRUCache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	now := c.now()

	if e, ok := c.cache[key]; ok {
		e.value = value
		e.ttl = ttl
		e.expiresAt = now.Add(ttl)
		c.order.MoveToFront(e.element)
		c.mu.Unlock()
		return
	}

	var evicted []*entry[V]
	for len(c.cache) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		e := oldest.Value.(*entry[V])
		c.removeEntry(e)
		evicted = append(evicted, e)
	}

	e := &entry[V]{
		key:       key,
		value:     value,
		ttl:       ttl,
		expiresAt: now.Add(ttl),
	}
	e.element = c.order.PushFront(e)
	c.cache[key] = e
	c.mu.Unlock()

	c.notify(evicted)
}

// Invalidate removes entries matching the pattern.
// Supports * wildcard at the end (e.g., "chat:*").
func (c *LRUCache[V]) Invalidate(pattern string) int {
	c.mu.Lock()
	var removed []*entry[V]

	if !strings.Contains(pattern, "*") {
		if e, ok := c.cache[pattern]; ok {
			c.removeEntry(e)
			removed = append(removed, e)
		}
	} else {
		prefix := strings.TrimSuffix(pattern, "*")
		for key, e := range c.cache {
			if strings.HasPrefix(key, prefix) {
				c.removeEntry(e)
				removed = append(removed, e)
			}
		}
	}
	c.mu.Unlock()

	c.notify(removed)
	return len(removed)
}

// Size returns the number of entries in the cache.
func (c *LRUCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// CleanupExpired removes all expired entries.
// Returns the number of entries removed.
func (c *LRUCache[V]) CleanupExpired() int {
	c.mu.Lock()

	var toDelete []*entry[V]
	now := c.now()
	for _, e := range c.cache {
		if now.After(e.expiresAt) {
			toDelete = append(toDelete, e)
		}
	}
	for _, e := range toDelete {
		c.removeEntry(e)
	}
	c.mu.Unlock()

	c.notify(toDelete)
	return len(toDelete)
}

// removeEntry removes an entry from the cache.
// Must be called with lock held.
func (c *LRUCache[V]) removeEntry(e *entry[V]) {
	c.order.Remove(e.element)
	delete(c.cache, e.key)
}

func (c *LRUCache[V]) notify(entries []*entry[V]) {
	if len(entries) == 0 {
		return
	}
	c.mu.Lock()
	fn := c.onEvict
	c.mu.Unlock()
	if fn == nil {
		return
	}
	for _, e := range entries {
		fn(e.key, e.value)
	}
}

var _ Store[int] = (*LRUCache[int])(nil)
