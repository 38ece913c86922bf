// Package cache holds short-lived values keyed by string, bounded in both
// size and age.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is an LRU cache whose entries expire after a fixed TTL.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]*list.Element
	lru     *list.List
}

type entry[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// Option configures an LRUCache.
type Option func(*lruOptions)

type lruOptions struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *lruOptions) { o.now = now }
}

// NewLRUCache creates a cache holding at most maxSize entries for ttl each.
func NewLRUCache[T any](maxSize int, ttl time.Duration, opts ...Option) *LRUCache[T] {
	o := lruOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxSize <= 0 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     o.now,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Get returns a live entry and marks it recently used.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.liveLocked(key)
	if !ok {
		var zero T
		return zero, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*entry[T]).data, true
}

// Take returns a live entry and removes it, so a key can be redeemed once.
func (c *LRUCache[T]) Take(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.liveLocked(key)
	if !ok {
		var zero T
		return zero, false
	}
	c.removeElement(elem)
	return elem.Value.(*entry[T]).data, true
}

// Set stores data under key and returns its expiry. The least recently used
// entry is evicted when the cache is full.
func (c *LRUCache[T]) Set(key string, data T) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, data: data, expiresAt: c.now().Add(c.ttl)}
	if elem, ok := c.items[key]; ok {
		elem.Value = e
		c.lru.MoveToFront(elem)
		return e.expiresAt
	}

	c.items[key] = c.lru.PushFront(e)
	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
	return e.expiresAt
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// CleanExpired removes expired entries and returns how many were dropped.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		if now.After(elem.Value.(*entry[T]).expiresAt) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// liveLocked finds key, dropping it if it has expired.
func (c *LRUCache[T]) liveLocked(key string) (*list.Element, bool) {
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if c.now().After(elem.Value.(*entry[T]).expiresAt) {
		c.removeElement(elem)
		return nil, false
	}
	return elem, true
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	delete(c.items, elem.Value.(*entry[T]).key)
	c.lru.Remove(elem)
}
