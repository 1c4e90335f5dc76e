// Package store holds a set of timers and fans control calls out over them.
//
// A Store is an ordinary value; callers construct one and pass it to whatever needs it.
// The store listens to each member's onDestroy event to drop the member, so a timer
// never references the store holding it.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/mescon/timr/internal/domain"
	"github.com/mescon/timr/internal/eventbus"
	"github.com/mescon/timr/internal/format"
	"github.com/mescon/timr/internal/logger"
	"github.com/mescon/timr/internal/timer"
)

// ErrNilTimer is returned by Add for a nil timer.
var ErrNilTimer = errors.New("timer is nil")

var eventTypes = map[timer.Event]domain.EventType{
	timer.EventTicker:         domain.TimerTick,
	timer.EventFinish:         domain.TimerFinished,
	timer.EventStart:          domain.TimerStarted,
	timer.EventAlreadyStarted: domain.TimerAlreadyStarted,
	timer.EventPause:          domain.TimerPaused,
	timer.EventStop:           domain.TimerStopped,
	timer.EventDestroy:        domain.TimerDestroyed,
}

// Entry is a timer held by a Store.
type Entry struct {
	ID        string
	Name      string
	Timer     *timer.Timer
	CreatedAt time.Time
}

// Store is safe for concurrent use. Batch operations call timers without holding the
// store's lock, so listeners may use the store.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	order     []string
	publisher eventbus.Publisher
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher forwards every event of every member to p.
func WithPublisher(p eventbus.Publisher) Option {
	return func(s *Store) {
		s.publisher = p
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{entries: make(map[string]*Entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add takes t into the store under a fresh ID. An empty name defaults to the ID.
func (s *Store) Add(name string, t *timer.Timer) (*Entry, error) {
	if t == nil {
		return nil, ErrNilTimer
	}
	if t.Status() == timer.StatusDestroyed {
		return nil, fmt.Errorf("add %q: %w", name, timer.ErrDestroyed)
	}

	id := uuid.New().String()
	if name == "" {
		name = id
	}
	entry := &Entry{ID: id, Name: name, Timer: t, CreatedAt: time.Now().UTC()}

	s.mu.Lock()
	s.entries[id] = entry
	s.order = append(s.order, id)
	s.mu.Unlock()

	for ev, et := range eventTypes {
		et := et
		_ = t.On(ev, func(p timer.Payload) { s.publish(entry, et, p) })
	}
	_ = t.OnDestroy(func(timer.Payload) { s.Remove(id) })

	logger.Infof("Timer added: %s (%s)", name, id)
	s.publish(entry, domain.TimerAdded, t.Snapshot())
	return entry, nil
}

// CreateRequest describes a timer for Create.
type CreateRequest struct {
	Name      string
	Start     any
	Options   *format.Partial
	Autostart bool
	Delay     time.Duration
}

// Create builds a timer from req and adds it. With Autostart set the timer is started
// after Delay; a timer that fails to start is destroyed again, which also removes it.
func (s *Store) Create(req CreateRequest, opts ...timer.Option) (*Entry, error) {
	t, err := timer.New(req.Start, req.Options, opts...)
	if err != nil {
		return nil, err
	}
	e, err := s.Add(req.Name, t)
	if err != nil {
		return nil, err
	}
	if !req.Autostart {
		return e, nil
	}
	if err := t.StartAfter(req.Delay); err != nil {
		t.Destroy()
		return nil, fmt.Errorf("start %q: %w", e.Name, err)
	}
	return e, nil
}

func (s *Store) publish(e *Entry, et domain.EventType, p timer.Payload) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(domain.Event{
		TimerID:       e.ID,
		TimerName:     e.Name,
		EventType:     et,
		Status:        string(p.Status),
		FormattedTime: p.FormattedTime,
		CurrentTime:   p.CurrentTime,
		StartTime:     p.StartTime,
		PercentDone:   p.PercentDone,
	})
	if err != nil {
		logger.Debugf("Store: event %s for %s not published: %v", et, e.ID, err)
	}
}

// Get returns the entry with the given ID.
func (s *Store) Get(id string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// GetAll returns every entry in the order they were added.
func (s *Store) GetAll() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out
}

// GetStatus returns the entries whose timer currently has status st.
func (s *Store) GetStatus(st timer.Status) []*Entry {
	var out []*Entry
	for _, e := range s.GetAll() {
		if e.Timer.Status() == st {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Remove drops the entry with the given ID without touching its timer. It reports
// whether the entry existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// StartAll starts every timer. Failures are collected and returned together; timers
// that were already started just emit onAlreadyStarted.
func (s *Store) StartAll() error {
	return s.each(func(t *timer.Timer) error { return t.Start() })
}

// PauseAll pauses every started timer. Timers in other states are skipped.
func (s *Store) PauseAll() error {
	return s.each(func(t *timer.Timer) error { return t.Pause() })
}

// StopAll stops every started or paused timer. Timers in other states are skipped.
func (s *Store) StopAll() error {
	return s.each(func(t *timer.Timer) error { return t.Stop() })
}

// DestroyAll destroys every timer, which also empties the store.
func (s *Store) DestroyAll() {
	for _, e := range s.GetAll() {
		e.Timer.Destroy()
	}
}

func (s *Store) each(fn func(*timer.Timer) error) error {
	var errs error
	for _, e := range s.GetAll() {
		err := fn(e.Timer)
		if err == nil || errors.Is(err, timer.ErrInvalidTransition) {
			continue
		}
		errs = multierr.Append(errs, fmt.Errorf("timer %s (%s): %w", e.Name, e.ID, err))
	}
	return errs
}
