package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/chromaffi/internal/resource"
)

// Sizer reports the memory held by a cached value.
type Sizer interface {
	MemoryUsage() int64
}

// EvictFunc is called outside the cache lock for every entry that leaves the
// cache through capacity pressure or Close.
type EvictFunc[V Sizer] func(key string, value V)

// LRU is a least recently used cache safe for concurrent use.
type LRU[V Sizer] struct {
	mu        sync.Mutex
	capacity  int // 0 means unlimited
	items     map[string]*list.Element
	evictList *list.List
	rc        *resource.Controller
	onEvict   EvictFunc[V]
	group     singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[V Sizer] struct {
	key   string
	value V
	size  int64
}

// New creates a cache holding at most capacity entries. If rc is provided,
// it is used to track memory usage.
func New[V Sizer](capacity int, rc *resource.Controller, onEvict EvictFunc[V]) *LRU[V] {
	if capacity < 0 {
		capacity = 0
	}
	return &LRU[V]{
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		rc:        rc,
		onEvict:   onEvict,
	}
}

// Get returns a cached value.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(el)
		return el.Value.(*entry[V]).value, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// GetOrLoad returns the cached value for key or loads it. Concurrent callers
// for the same key wait for a single load, which holds a load slot of the
// resource controller.
func (c *LRU[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		if err := c.rc.AcquireLoad(ctx); err != nil {
			return nil, err
		}
		defer c.rc.ReleaseLoad()

		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Set caches a value, replacing any previous value for key. A value that
// does not fit the memory budget even after evicting everything else is not
// cached.
func (c *LRU[V]) Set(key string, v V) {
	var evicted []*entry[V]
	defer func() { c.notify(evicted) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}

	size := v.MemoryUsage()
	for c.rc.AcquireMemory(size) != nil {
		el := c.evictList.Back()
		if el == nil {
			evicted = append(evicted, &entry[V]{key: key, value: v})
			return
		}
		evicted = append(evicted, c.removeElement(el))
	}

	el := c.evictList.PushFront(&entry[V]{key: key, value: v, size: size})
	c.items[key] = el

	for c.capacity > 0 && c.evictList.Len() > c.capacity {
		evicted = append(evicted, c.removeElement(c.evictList.Back()))
	}
}

// Refresh re-measures the memory of a cached value after it was mutated.
func (c *LRU[V]) Refresh(key string) {
	c.mu.Lock()
	el, ok := c.items[key]
	c.mu.Unlock()
	if ok {
		c.Set(key, el.Value.(*entry[V]).value)
	}
}

// Remove drops key without calling the eviction callback.
func (c *LRU[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Clear drops every entry without calling the eviction callback.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.evictList.Len() > 0 {
		c.removeElement(c.evictList.Back())
	}
}

// Close evicts every entry through the eviction callback.
func (c *LRU[V]) Close() {
	c.mu.Lock()
	var evicted []*entry[V]
	for c.evictList.Len() > 0 {
		evicted = append(evicted, c.removeElement(c.evictList.Back()))
	}
	c.mu.Unlock()
	c.notify(evicted)
}

// Len returns the number of cached entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Stats returns hit and miss counters.
func (c *LRU[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *LRU[V]) removeElement(el *list.Element) *entry[V] {
	c.evictList.Remove(el)
	e := el.Value.(*entry[V])
	delete(c.items, e.key)
	c.rc.ReleaseMemory(e.size)
	return e
}

func (c *LRU[V]) notify(evicted []*entry[V]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range evicted {
		c.onEvict(e.key, e.value)
	}
}
