package notifier

import (
	"sync"
	"time"
)

// CircuitState is the state of one target's breaker.
type CircuitState int

const (
	// CircuitClosed lets deliveries through.
	CircuitClosed CircuitState = iota
	// CircuitOpen skips deliveries until the reset timeout has passed.
	CircuitOpen
	// CircuitHalfOpen lets a probe delivery decide whether to close again.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the per-target circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// ResetTimeout is how long an open circuit waits before a probe.
	ResetTimeout time.Duration
}

// DefaultBreakerConfig returns the defaults used when no breaker option is given.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	}
}

type breaker struct {
	state       CircuitState
	failures    int
	lastFailure time.Time
}

// breakers tracks one circuit per notification URL.
type breakers struct {
	mu     sync.Mutex
	config BreakerConfig
	now    func() time.Time
	byURL  map[string]*breaker
}

func newBreakers(config BreakerConfig, now func() time.Time) *breakers {
	def := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = def.ResetTimeout
	}
	return &breakers{
		config: config,
		now:    now,
		byURL:  make(map[string]*breaker),
	}
}

func (b *breakers) get(url string) *breaker {
	cb, ok := b.byURL[url]
	if !ok {
		cb = &breaker{}
		b.byURL[url] = cb
	}
	return cb
}

// allow reports whether a delivery to url may be attempted.
func (b *breakers) allow(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	cb := b.get(url)
	if cb.state != CircuitOpen {
		return true
	}
	if b.now().Sub(cb.lastFailure) >= b.config.ResetTimeout {
		cb.state = CircuitHalfOpen
		return true
	}
	return false
}

func (b *breakers) record(url string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cb := b.get(url)
	if err == nil {
		cb.state = CircuitClosed
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailure = b.now()
	if cb.state == CircuitHalfOpen || cb.failures >= b.config.FailureThreshold {
		cb.state = CircuitOpen
	}
}

func (b *breakers) state(url string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.byURL[url]; ok {
		return cb.state
	}
	return CircuitClosed
}
