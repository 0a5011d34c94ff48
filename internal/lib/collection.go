package lib

import "sync"

type IModel interface {
	ID() string
}

// Collection is a typed wrapper around sync.Map keyed by the item's ID.
type Collection[T IModel] struct {
	items sync.Map
}

func NewCollection[T IModel]() *Collection[T] {
	return &Collection[T]{
		items: sync.Map{},
	}
}

func (c *Collection[T]) Load(id string) (item T, ok bool) {
	if v, ok := c.items.Load(id); ok {
		return v.(T), true
	}
	return item, false
}

func (c *Collection[T]) Range(f func(item T) bool) {
	c.items.Range(func(key, value any) bool {
		return f(value.(T))
	})
}

func (c *Collection[T]) Store(item T) {
	c.items.Store(item.ID(), item)
}

// LoadOrStore returns the existing item with the same ID if present,
// otherwise stores and returns the given item.
func (c *Collection[T]) LoadOrStore(item T) (actual T, loaded bool) {
	v, loaded := c.items.LoadOrStore(item.ID(), item)
	return v.(T), loaded
}

func (c *Collection[T]) Delete(id string) {
	c.items.Delete(id)
}

func (c *Collection[T]) Len() int {
	count := 0
	c.items.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}
