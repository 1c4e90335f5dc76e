package eventbus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mescon/timr/internal/domain"
	"github.com/mescon/timr/internal/logger"
)

// ErrClosed is returned by Publish after Shutdown.
var ErrClosed = errors.New("event bus is shut down")

// Publisher defines the interface for publishing events.
// This interface enables testing with mock implementations.
type Publisher interface {
	Publish(event domain.Event) error
	Subscribe(eventType domain.EventType, handler func(domain.Event))
}

// Ensure EventBus implements Publisher
var _ Publisher = (*EventBus)(nil)

// EventBus fans events out to subscribers asynchronously. Every subscriber has its own
// buffered channel and goroutine; events for a full buffer are dropped so that a slow
// subscriber never blocks a ticking timer.
type EventBus struct {
	subscribers map[domain.EventType][]chan domain.Event
	all         []chan domain.Event
	mu          sync.RWMutex
	stopChan    chan struct{}
	stopped     bool
	wg          sync.WaitGroup
	bufferSize  int
	nextID      atomic.Int64
	dropped     atomic.Int64
}

// NewEventBus returns a bus whose subscribers buffer up to bufferSize events.
// A bufferSize below 1 selects the default of 100.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize < 1 {
		bufferSize = 100
	}
	return &EventBus{
		subscribers: make(map[domain.EventType][]chan domain.Event),
		stopChan:    make(chan struct{}),
		bufferSize:  bufferSize,
	}
}

// Publish assigns the event an ID (and a timestamp when missing) and queues it for
// every subscriber of its type and every SubscribeAll subscriber.
func (eb *EventBus) Publish(event domain.Event) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.stopped {
		return ErrClosed
	}

	event.ID = eb.nextID.Add(1)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.EventType.IsLifecycle() {
		logger.Debugf("EventBus: Publishing event %s (ID: %d, TimerID: %s)", event.EventType, event.ID, event.TimerID)
	}

	for _, ch := range eb.subscribers[event.EventType] {
		eb.deliver(ch, event)
	}
	for _, ch := range eb.all {
		eb.deliver(ch, event)
	}
	return nil
}

func (eb *EventBus) deliver(ch chan domain.Event, event domain.Event) {
	select {
	case ch <- event:
	default:
		eb.dropped.Add(1)
	}
}

// Subscribe runs handler on its own goroutine for every event of eventType.
func (eb *EventBus) Subscribe(eventType domain.EventType, handler func(domain.Event)) {
	ch := make(chan domain.Event, eb.bufferSize)

	eb.mu.Lock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	eb.mu.Unlock()

	eb.consume(ch, handler)
}

// SubscribeAll runs handler for every event regardless of type.
func (eb *EventBus) SubscribeAll(handler func(domain.Event)) {
	ch := make(chan domain.Event, eb.bufferSize)

	eb.mu.Lock()
	eb.all = append(eb.all, ch)
	eb.mu.Unlock()

	eb.consume(ch, handler)
}

func (eb *EventBus) consume(ch chan domain.Event, handler func(domain.Event)) {
	eb.wg.Add(1)
	go func() {
		defer eb.wg.Done()
		for {
			select {
			case event := <-ch:
				handler(event)
			case <-eb.stopChan:
				return // Shutdown signal received
			}
		}
	}()
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (eb *EventBus) Dropped() int64 {
	return eb.dropped.Load()
}

// Shutdown stops all subscriber goroutines and waits for them to finish.
// Events still buffered are discarded. Calling it twice is safe.
func (eb *EventBus) Shutdown() {
	eb.mu.Lock()
	if eb.stopped {
		eb.mu.Unlock()
		return
	}
	eb.stopped = true
	close(eb.stopChan)
	eb.mu.Unlock()

	eb.wg.Wait()
	logger.Infof("EventBus shutdown complete")
}
