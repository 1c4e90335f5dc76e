// Package emitter is a minimal synchronous publish/subscribe notifier.
package emitter

import "sync"

// Listener receives one emitted value.
type Listener[V any] func(V)

// Emitter maps event names to ordered listener lists. It is safe for concurrent use;
// listeners run on the emitting goroutine, in registration order, without any lock held,
// so a listener may register listeners or emit again. A panicking listener propagates to
// the caller of Emit.
type Emitter[K comparable, V any] struct {
	mu        sync.RWMutex
	listeners map[K][]Listener[V]
}

// New returns an empty Emitter.
func New[K comparable, V any]() *Emitter[K, V] {
	return &Emitter[K, V]{listeners: make(map[K][]Listener[V])}
}

// On appends fn to the listeners of event.
func (e *Emitter[K, V]) On(event K, fn Listener[V]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[event] = append(e.listeners[event], fn)
}

// Emit calls every listener of event with v and reports how many were called.
func (e *Emitter[K, V]) Emit(event K, v V) int {
	e.mu.RLock()
	fns := append([]Listener[V](nil), e.listeners[event]...)
	e.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
	return len(fns)
}

// ListenerCount returns the number of listeners registered for event.
func (e *Emitter[K, V]) ListenerCount(event K) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[event])
}

// RemoveAllListeners drops every registration.
func (e *Emitter[K, V]) RemoveAllListeners() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = make(map[K][]Listener[V])
}
