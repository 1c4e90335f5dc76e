package testutil

import "sync"

// Recorded is one captured event.
type Recorded[T any] struct {
	Name  string
	Value T
}

// Recorder captures values handed to listeners, in arrival order.
type Recorder[T any] struct {
	mu     sync.Mutex
	events []Recorded[T]
}

// NewRecorder returns an empty Recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{}
}

// Listener returns a callback that records every value under name.
func (r *Recorder[T]) Listener(name string) func(T) {
	return func(v T) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, Recorded[T]{Name: name, Value: v})
	}
}

// Names returns the recorded event names in order.
func (r *Recorder[T]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name
	}
	return names
}

// Count returns how many values were recorded under name.
func (r *Recorder[T]) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Values returns the values recorded under name.
func (r *Recorder[T]) Values(name string) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e.Value)
		}
	}
	return out
}

// Last returns the most recent value recorded under name.
func (r *Recorder[T]) Last(name string) (T, bool) {
	values := r.Values(name)
	if len(values) == 0 {
		var zero T
		return zero, false
	}
	return values[len(values)-1], true
}

// Reset forgets everything recorded so far.
func (r *Recorder[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
