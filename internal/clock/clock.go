// Package clock is the scheduling seam for timers. Production code uses RealClock;
// tests drive time by hand with testutil.MockClock.
package clock

import "time"

// Clock schedules one-shot callbacks and reports the current time.
type Clock interface {
	// AfterFunc calls f on its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
	// Now returns the current time.
	Now() time.Time
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop cancels the callback. It returns false if the callback already ran or
	// was stopped before. Stop does not wait for a running callback to return.
	Stop() bool
}

// RealClock is backed by the time package.
type RealClock struct{}

// NewRealClock returns a RealClock.
func NewRealClock() *RealClock {
	return &RealClock{}
}

// AfterFunc wraps time.AfterFunc.
func (c *RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Now wraps time.Now.
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}
