package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time check
var _ Clock = (*RealClock)(nil)

func TestRealClock_Now(t *testing.T) {
	c := NewRealClock()

	before := time.Now()
	got := c.Now()
	after := time.Now()

	assert.False(t, got.Before(before), "Now() = %v is before %v", got, before)
	assert.False(t, got.After(after), "Now() = %v is after %v", got, after)
}

func TestRealClock_AfterFunc(t *testing.T) {
	c := NewRealClock()

	var wg sync.WaitGroup
	wg.Add(1)

	fired := false
	timer := c.AfterFunc(10*time.Millisecond, func() {
		fired = true
		wg.Done()
	})
	require.NotNil(t, timer)

	wg.Wait()
	assert.True(t, fired)
	assert.False(t, timer.Stop(), "Stop after firing reports false")
}

func TestRealClock_AfterFunc_StopBeforeFiring(t *testing.T) {
	c := NewRealClock()

	fired := make(chan struct{}, 1)
	timer := c.AfterFunc(100*time.Millisecond, func() { fired <- struct{}{} })

	assert.True(t, timer.Stop())

	select {
	case <-fired:
		t.Fatal("callback ran after Stop")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSince(t *testing.T) {
	c := NewRealClock()
	start := c.Now().Add(-time.Second)
	assert.GreaterOrEqual(t, Since(c, start), time.Second)
}
