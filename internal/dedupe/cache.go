// ABOUTME: Size-bounded cache of recently seen keys.
// ABOUTME: Used by delivery handlers to drop redundant broker deliveries.

package dedupe

import (
	"container/list"
	"sync"
)

// Cache remembers the most recently marked keys up to a fixed capacity.
// When full, the oldest key is evicted. Safe for concurrent use. Insertion
// order is kept in a linked list so eviction is O(1).
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // keys in mark order, oldest at front
	maxSize int
}

// New creates a cache holding at most maxSize keys.
func New(maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// CheckAndMark atomically reports whether the key was already seen and marks
// it if not. Returns true for a duplicate, false for a new key. The single
// lock scope avoids the check-then-mark race of separate calls.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.seen[key]; ok {
		c.order.MoveToBack(elem)
		return true
	}

	if len(c.seen) >= c.maxSize {
		front := c.order.Front()
		if front != nil {
			delete(c.seen, front.Value.(string))
			c.order.Remove(front)
		}
	}

	c.seen[key] = c.order.PushBack(key)
	return false
}

// Len returns the number of keys currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
