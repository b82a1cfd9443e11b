// Package observable holds state values that notify subscribers on change.
package observable

import (
	"maps"
	"slices"
	"sync"
)

// Value is a thread-safe holder that pushes every Set to its observers.
type Value[T any] struct {
	mu        sync.Mutex
	v         T
	set       bool
	nextID    int
	observers map[int]func(T)
}

// New returns an unset Value.
func New[T any]() *Value[T] {
	return &Value[T]{observers: make(map[int]func(T))}
}

// NewWith returns a Value holding v.
func NewWith[T any](v T) *Value[T] {
	o := New[T]()
	o.v = v
	o.set = true
	return o
}

// Set stores v and notifies observers on the calling goroutine.
func (o *Value[T]) Set(v T) {
	o.mu.Lock()
	o.v = v
	o.set = true
	fns := o.snapshot()
	o.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Get returns the current value and whether one was ever set.
func (o *Value[T]) Get() (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.v, o.set
}

// Observe registers fn and, if a value is already set, delivers it
// immediately. The returned func removes the observer.
func (o *Value[T]) Observe(fn func(T)) (cancel func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.observers[id] = fn
	v, set := o.v, o.set
	o.mu.Unlock()

	if set {
		fn(v)
	}
	return func() {
		o.mu.Lock()
		delete(o.observers, id)
		o.mu.Unlock()
	}
}

func (o *Value[T]) snapshot() []func(T) {
	fns := make([]func(T), 0, len(o.observers))
	for _, id := range slices.Sorted(maps.Keys(o.observers)) {
		fns = append(fns, o.observers[id])
	}
	return fns
}
