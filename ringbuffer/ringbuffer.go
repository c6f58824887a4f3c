// Package ringbuffer provides a fixed-capacity circular container with
// FIFO overwrite.
package ringbuffer

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
)

// ErrInvalidLayout is returned when decoding a buffer whose slot layout
// does not match its declared capacity or write position.
var ErrInvalidLayout = errors.New("ringbuffer: invalid layout")

// RingBuffer is a fixed-capacity circular buffer. Pushing onto a full
// buffer overwrites the oldest element.
//
// RingBuffer is not safe for concurrent use.
type RingBuffer[T any] struct {
	slots []slot[T]
	tail  int // next write position
}

type slot[T any] struct {
	value T
	ok    bool
}

// New creates a ring buffer holding at most capacity elements.
// A capacity of zero (or less) yields a buffer on which every
// operation is a no-op.
func New[T any](capacity int) *RingBuffer[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &RingBuffer[T]{slots: make([]slot[T], capacity)}
}

// Cap returns the buffer capacity.
func (r *RingBuffer[T]) Cap() int {
	return len(r.slots)
}

// Len returns the number of occupied slots.
func (r *RingBuffer[T]) Len() int {
	n := 0
	for _, s := range r.slots {
		if s.ok {
			n++
		}
	}
	return n
}

// Push stores v at the write position and advances it. It returns the
// element previously held in that slot, if any.
func (r *RingBuffer[T]) Push(v T) (evicted T, ok bool) {
	if len(r.slots) == 0 {
		return evicted, false
	}
	prev := r.slots[r.tail]
	r.slots[r.tail] = slot[T]{value: v, ok: true}
	r.tail = (r.tail + 1) % len(r.slots)
	return prev.value, prev.ok
}

// Pop moves the write position back one slot and removes the element
// stored there. ok is false when that slot was empty.
func (r *RingBuffer[T]) Pop() (v T, ok bool) {
	if len(r.slots) == 0 {
		return v, false
	}
	r.tail = (r.tail - 1 + len(r.slots)) % len(r.slots)
	s := r.slots[r.tail]
	r.slots[r.tail] = slot[T]{}
	return s.value, s.ok
}

// All iterates occupied slots oldest first. The traversal does not
// consume the buffer and may be restarted.
func (r *RingBuffer[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		n := len(r.slots)
		for i := 0; i < n; i++ {
			s := r.slots[(r.tail+i)%n]
			if !s.ok {
				continue
			}
			if !yield(s.value) {
				return
			}
		}
	}
}

// Clone returns a copy with the same slot layout. Elements are copied
// by assignment.
func (r *RingBuffer[T]) Clone() *RingBuffer[T] {
	c := &RingBuffer[T]{slots: make([]slot[T], len(r.slots)), tail: r.tail}
	copy(c.slots, r.slots)
	return c
}

// Slice returns the occupied slots oldest first.
func (r *RingBuffer[T]) Slice() []T {
	out := make([]T, 0, len(r.slots))
	for v := range r.All() {
		out = append(out, v)
	}
	return out
}

// wireBuffer is the JSON representation of a RingBuffer. Empty slots
// encode as null so the exact layout survives a round trip.
type wireBuffer[T any] struct {
	Capacity int  `json:"capacity"`
	Tail     int  `json:"tail"`
	Slots    []*T `json:"slots"`
}

// MarshalJSON implements json.Marshaler.
func (r *RingBuffer[T]) MarshalJSON() ([]byte, error) {
	w := wireBuffer[T]{
		Capacity: len(r.slots),
		Tail:     r.tail,
		Slots:    make([]*T, len(r.slots)),
	}
	for i, s := range r.slots {
		if s.ok {
			v := s.value
			w.Slots[i] = &v
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RingBuffer[T]) UnmarshalJSON(data []byte) error {
	var w wireBuffer[T]
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Capacity < 0 || len(w.Slots) != w.Capacity {
		return fmt.Errorf("%w: %d slots for capacity %d", ErrInvalidLayout, len(w.Slots), w.Capacity)
	}
	if w.Capacity > 0 && (w.Tail < 0 || w.Tail >= w.Capacity) {
		return fmt.Errorf("%w: tail %d out of range", ErrInvalidLayout, w.Tail)
	}
	if w.Capacity == 0 && w.Tail != 0 {
		return fmt.Errorf("%w: tail %d out of range", ErrInvalidLayout, w.Tail)
	}

	slots := make([]slot[T], w.Capacity)
	for i, p := range w.Slots {
		if p != nil {
			slots[i] = slot[T]{value: *p, ok: true}
		}
	}
	r.slots = slots
	r.tail = w.Tail
	return nil
}
