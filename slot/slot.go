// Package slot - A single-value, last-write-wins handoff between one producer
// and any number of readers.
package slot

import (
	"go.uber.org/atomic"
)

// Slot holds the most recently published value. Publish and Load never
// block and a reader always observes one complete published value.
// Concurrent publishers are ordered by the version they draw.
type Slot[T any] struct {
	value   atomic.Pointer[versioned[T]]
	version atomic.Uint64
}

type versioned[T any] struct {
	v       *T
	version uint64
}

// New creates an empty slot.
func New[T any]() *Slot[T] {
	return &Slot[T]{}
}

// Publish replaces the current value with v. Published values must not be
// mutated afterwards.
//
// Arguments:
//   - v: The new value.
//
// Returns:
//   - uint64: The version assigned to v, starting at 1.
func (s *Slot[T]) Publish(v *T) uint64 {
	next := &versioned[T]{v: v, version: s.version.Inc()}
	for {
		cur := s.value.Load()
		// A concurrent publisher that drew a later version already won.
		if cur != nil && cur.version > next.version {
			return next.version
		}
		if s.value.CompareAndSwap(cur, next) {
			return next.version
		}
	}
}

// Load returns the current value, or nil before the first Publish.
func (s *Slot[T]) Load() *T {
	v, _ := s.LoadVersion()
	return v
}

// LoadVersion returns the current value together with its version. The
// version is 0 before the first Publish.
func (s *Slot[T]) LoadVersion() (*T, uint64) {
	cur := s.value.Load()
	if cur == nil {
		return nil, 0
	}
	return cur.v, cur.version
}

// Version returns the version of the current value.
func (s *Slot[T]) Version() uint64 {
	_, n := s.LoadVersion()
	return n
}
