// Package testutil provides deterministic time and event recording helpers for tests.
package testutil

import (
	"sync"
	"time"

	"github.com/mescon/timr/internal/clock"
)

// Compile-time assertion that MockClock implements clock.Clock
var _ clock.Clock = (*MockClock)(nil)

// MockClock is a manually driven clock. Callbacks run synchronously on the goroutine
// calling Advance, in due-time order, with Now() set to their due time; callbacks
// scheduled while advancing run in the same Advance call if they fall due before its end.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	pending map[int]*scheduled
}

type scheduled struct {
	seq int
	at  time.Time
	fn  func()
}

// MockTimer is the handle returned by MockClock.AfterFunc.
type MockTimer struct {
	clock *MockClock
	seq   int
}

// NewMockClock returns a MockClock set to a fixed instant.
func NewMockClock() *MockClock {
	return NewMockClockAt(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
}

// NewMockClockAt returns a MockClock set to t.
func NewMockClockAt(t time.Time) *MockClock {
	return &MockClock{now: t, pending: make(map[int]*scheduled)}
}

// Now returns the mock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// SetNow moves the clock without running anything.
func (m *MockClock) SetNow(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// AfterFunc schedules f at Now()+d.
func (m *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	m.pending[m.seq] = &scheduled{seq: m.seq, at: m.now.Add(d), fn: f}
	return &MockTimer{clock: m, seq: m.seq}
}

// Advance moves time forward by d, running every callback that falls due on the way.
// It returns the number of callbacks run.
func (m *MockClock) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	fired := 0
	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return fired
		}
		delete(m.pending, next.seq)
		if next.at.After(m.now) {
			m.now = next.at
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
		fired++
	}
}

// Tick advances the clock by n whole seconds.
func (m *MockClock) Tick(n int) int {
	return m.Advance(time.Duration(n) * time.Second)
}

// PendingCount returns the number of callbacks neither run nor stopped.
func (m *MockClock) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *MockClock) nextDueLocked(target time.Time) *scheduled {
	var next *scheduled
	for _, s := range m.pending {
		if s.at.After(target) {
			continue
		}
		if next == nil || s.at.Before(next.at) || (s.at.Equal(next.at) && s.seq < next.seq) {
			next = s
		}
	}
	return next
}

// Stop cancels the callback if it has not run yet.
func (t *MockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if _, ok := t.clock.pending[t.seq]; !ok {
		return false
	}
	delete(t.clock.pending, t.seq)
	return true
}
