package irsynth

import (
	"container/list"
	"sync"
)

// DefaultCacheSize bounds the package cache used by Cached. A four second
// stereo response at 44.1 kHz is about 1.4 MB.
const DefaultCacheSize = 16

// Cache keeps the most recently used impulse responses, evicting the least
// recently used one once it is full. It is safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	max   int
	order *list.List // front is most recent; values are Room
	items map[Room]cacheEntry
}

type cacheEntry struct {
	left, right []float32
	elem        *list.Element
}

// NewCache returns a cache holding at most size rooms. size < 1 is treated
// as 1.
func NewCache(size int) *Cache {
	return &Cache{max: max(1, size), order: list.New(), items: make(map[Room]cacheEntry)}
}

var defaultCache = NewCache(DefaultCacheSize)

// Cached returns Generate(r) through the package cache. The returned slices
// are shared and must not be modified.
func Cached(r Room) ([]float32, []float32, error) {
	return defaultCache.Get(r)
}

// Get returns the response for r, generating it on a miss. Concurrent misses
// for the same room may both generate; the results are identical.
func (c *Cache) Get(r Room) ([]float32, []float32, error) {
	c.mu.Lock()
	if e, ok := c.items[r]; ok {
		c.order.MoveToFront(e.elem)
		c.mu.Unlock()
		return e.left, e.right, nil
	}
	c.mu.Unlock()

	l, rr, err := Generate(r)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[r]; ok {
		c.order.MoveToFront(e.elem)
		return e.left, e.right, nil
	}
	c.items[r] = cacheEntry{left: l, right: rr, elem: c.order.PushFront(r)}
	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(Room))
	}
	return l, rr, nil
}

// Len reports how many rooms are cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
