// file: internal/cache/memory.go
// version: 2.1.0
// guid: a1b2c3d4-e5f6-7a8b-9c0d-1e2f3a4b5c6d

package cache

import (
	"sync"
	"time"
)

type memEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// Memory is an in-process cache safe for concurrent use. A zero TTL keeps
// entries for the life of the process.
type Memory[T any] struct {
	mu    sync.RWMutex
	items map[string]memEntry[T]
	ttl   time.Duration
	now   func() time.Time
}

// NewMemory creates a Memory cache with the given TTL.
func NewMemory[T any](ttl time.Duration) *Memory[T] {
	return &Memory[T]{
		items: make(map[string]memEntry[T]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a value if it exists and hasn't expired.
func (c *Memory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || (!e.expiresAt.IsZero() && c.now().After(e.expiresAt)) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value under the cache TTL.
func (c *Memory[T]) Set(key string, value T) {
	e := memEntry[T]{value: value}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
}

// Len counts stored entries, expired or not.
func (c *Memory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// InvalidateAll removes all entries.
func (c *Memory[T]) InvalidateAll() {
	c.mu.Lock()
	c.items = make(map[string]memEntry[T])
	c.mu.Unlock()
}
