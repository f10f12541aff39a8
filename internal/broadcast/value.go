// Package broadcast publishes state from a single writer to any number of
// readers without shared mutable fields.
package broadcast

import (
	"context"
	"sync"
)

// Value holds the latest published T. Store is meant for one writer; Load
// and Subscribe are safe from any goroutine.
//
// Subscribers see the most recent value: a reader that falls behind skips
// intermediate values and never blocks the writer.
type Value[T any] struct {
	mu      sync.RWMutex
	val     T
	version uint64
	subs    map[*subscriber[T]]struct{}
}

type subscriber[T any] struct {
	ch chan T
}

// New creates a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{val: initial}
}

// Load returns the current value.
func (v *Value[T]) Load() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.val
}

// Version counts Store calls.
func (v *Value[T]) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Store publishes val.
func (v *Value[T]) Store(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.val = val
	v.version++
	for s := range v.subs {
		offer(s.ch, val)
	}
}

// Update publishes fn applied to the current value.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.val = fn(v.val)
	v.version++
	for s := range v.subs {
		offer(s.ch, v.val)
	}
	return v.val
}

// Subscribe returns a channel that first yields the current value and then
// each newer one. The channel is closed when ctx ends.
func (v *Value[T]) Subscribe(ctx context.Context) <-chan T {
	s := &subscriber[T]{ch: make(chan T, 1)}

	v.mu.Lock()
	if v.subs == nil {
		v.subs = make(map[*subscriber[T]]struct{})
	}
	v.subs[s] = struct{}{}
	s.ch <- v.val
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		delete(v.subs, s)
		close(s.ch)
		v.mu.Unlock()
	}()
	return s.ch
}

// offer replaces any unread value in ch with val. Callers hold the write lock.
func offer[T any](ch chan T, val T) {
	select {
	case <-ch:
	default:
	}
	ch <- val
}
