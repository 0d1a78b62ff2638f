package memory

import (
	"sort"
	"sync"
)

// collection is a concurrency safe map of records. Records are cloned on the
// way in and out so callers never share memory with the store.
type collection[T any] struct {
	mu    sync.RWMutex
	items map[string]*T
	clone func(*T) *T
}

func newCollection[T any](clone func(*T) *T) *collection[T] {
	if clone == nil {
		clone = func(v *T) *T {
			c := *v
			return &c
		}
	}
	return &collection[T]{items: map[string]*T{}, clone: clone}
}

func (c *collection[T]) get(id string) (*T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[id]
	if !ok {
		return nil, false
	}
	return c.clone(v), true
}

func (c *collection[T]) put(id string, v *T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = c.clone(v)
}

func (c *collection[T]) delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	return true
}

// filter returns clones of the matching records ordered by id.
func (c *collection[T]) filter(match func(*T) bool) []*T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.items))
	for id, v := range c.items {
		if match(v) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.clone(c.items[id]))
	}
	return out
}
