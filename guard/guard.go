// Package guard provides a value protected by a mutex.
//
// Value is the simple mutual-exclusion primitive used for single-field
// state shared between goroutines: reads and writes are atomic with
// respect to each other, and With runs a read-modify-write under the
// lock. There is no ordering guarantee between waiters beyond what
// sync.Mutex provides.
package guard

import "sync"

// Value holds a T behind an exclusive lock.
type Value[T any] struct {
	mu sync.Mutex
	v  T
}

// New returns a Value holding v.
func New[T any](v T) *Value[T] {
	return &Value[T]{v: v}
}

// Load returns the current value.
func (g *Value[T]) Load() T {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.v
}

// Store replaces the current value.
func (g *Value[T]) Store(v T) {
	g.mu.Lock()
	g.v = v
	g.mu.Unlock()
}

// With calls fn with exclusive access to the value. fn must not call
// back into g.
func (g *Value[T]) With(fn func(v *T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.v)
}
