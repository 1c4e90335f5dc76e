// Package timer implements a countdown/stopwatch timer that ticks once per interval and
// emits formatted snapshots to its listeners.
//
// Ticks are a chain of one-shot clock callbacks: the next tick is armed only after the
// current one has been emitted to every listener, so ticks of one Timer never overlap.
// Pause, Stop, Clear, Destroy and SetStartTime invalidate pending callbacks before they
// return. A tick callback that has already passed that check when the call is made may
// still finish emitting; at most one such in-flight tick exists per Timer.
package timer

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mescon/timr/internal/clock"
	"github.com/mescon/timr/internal/emitter"
	"github.com/mescon/timr/internal/format"
	"github.com/mescon/timr/internal/logger"
	"github.com/mescon/timr/internal/timeexpr"
	"github.com/mescon/timr/internal/validate"
)

// DefaultTickInterval is the time between two ticks.
const DefaultTickInterval = time.Second

// Timer is safe for concurrent use. Listeners run without the timer's lock held and may
// call back into the Timer.
type Timer struct {
	mu       sync.Mutex
	clock    clock.Clock
	interval time.Duration
	events   *emitter.Emitter[Event, Payload]

	startTime   int
	currentTime int
	opts        format.Options
	status      Status

	// futureBackup is the backup given with futureDate; nil means the options' one
	futureDate   any
	futureBackup any

	destroying bool

	// gen is bumped whenever pending callbacks must be ignored
	gen   uint64
	tick  clock.Timer
	delay clock.Timer
}

// Option configures a Timer at construction.
type Option func(*Timer)

// WithClock replaces the real clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(t *Timer) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithTickInterval changes how often the timer ticks. Each tick still counts one second.
func WithTickInterval(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// New creates a Timer from a duration or date expression (see timeexpr.Resolve) and
// optional display options. The timer is idle until Start is called.
func New(expr any, partial *format.Partial, opts ...Option) (*Timer, error) {
	t := &Timer{
		clock:    clock.NewRealClock(),
		interval: DefaultTickInterval,
		events:   emitter.New[Event, Payload](),
		status:   StatusInitialized,
	}
	for _, opt := range opts {
		opt(t)
	}

	options, err := format.Build(partial, nil)
	if err != nil {
		return nil, err
	}
	t.opts = options

	seconds, isDate, err := timeexpr.Resolve(t.clock.Now(), expr, options.BackupStartTime)
	if err != nil {
		return nil, err
	}
	t.startTime = seconds
	t.currentTime = seconds
	if isDate {
		t.futureDate = expr
	}
	return t, nil
}

// Start arms the timer immediately. See StartAfter.
func (t *Timer) Start() error {
	return t.start(0)
}

// StartAfter arms the timer once delay has elapsed. The timer reports StatusStarted and
// emits onStart right away; Pause, Stop or Clear before the delay runs out cancel it.
//
// Starting a started timer emits onAlreadyStarted and changes nothing. A timer built
// from a date re-resolves it, so the countdown always targets the original instant.
func (t *Timer) StartAfter(delay time.Duration) error {
	if delay < 0 {
		return fmt.Errorf("%w: start delay must not be negative, got %s", ErrType, delay)
	}
	return t.start(delay)
}

func (t *Timer) start(delay time.Duration) error {
	t.mu.Lock()
	if t.status == StatusDestroyed {
		t.mu.Unlock()
		return ErrDestroyed
	}
	if t.status == StatusStarted {
		p := t.payloadLocked()
		t.mu.Unlock()
		t.events.Emit(EventAlreadyStarted, p)
		return nil
	}

	startTime, currentTime := t.startTime, t.currentTime
	if t.futureDate != nil {
		backup := t.futureBackup
		if backup == nil {
			backup = t.opts.BackupStartTime
		}
		seconds, err := timeexpr.DateToSeconds(t.clock.Now(), t.futureDate, backup)
		if err != nil {
			t.mu.Unlock()
			return err
		}
		startTime, currentTime = seconds, seconds
	}

	if t.opts.Countdown && startTime == 0 {
		t.mu.Unlock()
		return fmt.Errorf("%w: a countdown needs a start time above 0", ErrZeroStartTime)
	}
	t.startTime, t.currentTime = startTime, currentTime

	t.clearLocked()
	gen := t.gen
	if delay > 0 {
		t.delay = t.clock.AfterFunc(delay, func() { t.arm(gen) })
	} else {
		t.scheduleLocked(gen)
	}
	t.status = StatusStarted
	p := t.payloadLocked()
	t.mu.Unlock()

	logger.Debugf("Timer started at %ds of %ds (delay %s)", p.CurrentTime, p.StartTime, delay)
	t.events.Emit(EventStart, p)
	return nil
}

// arm runs when a start delay elapses.
func (t *Timer) arm(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	t.delay = nil
	t.scheduleLocked(gen)
}

func (t *Timer) scheduleLocked(gen uint64) {
	t.tick = t.clock.AfterFunc(t.interval, func() { t.onTick(gen) })
}

func (t *Timer) onTick(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.status != StatusStarted {
		t.mu.Unlock()
		return
	}
	t.tick = nil

	finished := false
	if t.opts.Countdown {
		t.currentTime--
		if t.currentTime <= 0 {
			t.currentTime = 0
			finished = true
		}
	} else {
		t.currentTime++
	}
	tickPayload := t.payloadLocked()

	var finishPayload Payload
	if finished {
		t.gen++
		t.currentTime = t.startTime
		t.status = StatusFinished
		finishPayload = t.payloadLocked()
	}
	t.mu.Unlock()

	t.events.Emit(EventTicker, tickPayload)
	if finished {
		logger.Debugf("Timer finished after %ds", finishPayload.StartTime)
		t.events.Emit(EventFinish, finishPayload)
		return
	}

	t.mu.Lock()
	if gen == t.gen && t.status == StatusStarted && t.tick == nil {
		t.scheduleLocked(gen)
	}
	t.mu.Unlock()
}

// Pause cancels ticking and keeps the current time. Only a started timer can be paused.
func (t *Timer) Pause() error {
	return t.transition(EventPause, StatusPaused, false, StatusStarted)
}

// Stop cancels ticking and rewinds the current time to the start time. A started or a
// paused timer can be stopped.
func (t *Timer) Stop() error {
	return t.transition(EventStop, StatusStopped, true, StatusStarted, StatusPaused)
}

func (t *Timer) transition(event Event, to Status, rewind bool, from ...Status) error {
	t.mu.Lock()
	if t.status == StatusDestroyed {
		t.mu.Unlock()
		return ErrDestroyed
	}
	allowed := false
	for _, s := range from {
		if t.status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		status := t.status
		t.mu.Unlock()
		return fmt.Errorf("%w: cannot go from %s to %s", ErrInvalidTransition, status, to)
	}

	t.clearLocked()
	if rewind {
		t.currentTime = t.startTime
	}
	t.status = to
	p := t.payloadLocked()
	t.mu.Unlock()

	logger.Debugf("Timer %s at %ds", to, p.CurrentTime)
	t.events.Emit(event, p)
	return nil
}

// Clear cancels the pending tick and any pending delayed start. It changes neither the
// status nor the times and emits nothing.
func (t *Timer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearLocked()
}

func (t *Timer) clearLocked() {
	t.gen++
	if t.tick != nil {
		t.tick.Stop()
		t.tick = nil
	}
	if t.delay != nil {
		t.delay.Stop()
		t.delay = nil
	}
}

// Destroy emits onDestroy, then cancels ticking and drops every listener. Listeners
// see the timer as it was before the call. The timer is unusable afterwards; destroying
// it again does nothing.
func (t *Timer) Destroy() {
	t.mu.Lock()
	if t.status == StatusDestroyed || t.destroying {
		t.mu.Unlock()
		return
	}
	t.destroying = true
	p := t.payloadLocked()
	t.mu.Unlock()

	t.events.Emit(EventDestroy, p)

	t.mu.Lock()
	t.clearLocked()
	t.status = StatusDestroyed
	t.mu.Unlock()

	logger.Debugf("Timer destroyed")
	t.events.RemoveAllListeners()
}

// SetStartTime resolves expr like New does and replaces both the start and the current
// time. The options' backup start time applies to past dates. Ticking is cancelled and a
// started or paused timer becomes stopped; it is not restarted.
func (t *Timer) SetStartTime(expr any) error {
	return t.SetStartTimeWithBackup(expr, nil)
}

// SetStartTimeWithBackup is SetStartTime with an explicit backup for past dates.
func (t *Timer) SetStartTimeWithBackup(expr, backup any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusDestroyed {
		return ErrDestroyed
	}
	resolveBackup := backup
	if resolveBackup == nil {
		resolveBackup = t.opts.BackupStartTime
	}

	seconds, isDate, err := timeexpr.Resolve(t.clock.Now(), expr, resolveBackup)
	if err != nil {
		return err
	}

	t.clearLocked()
	t.startTime = seconds
	t.currentTime = seconds
	t.futureDate, t.futureBackup = nil, nil
	if isDate {
		t.futureDate, t.futureBackup = expr, backup
	}
	if t.status == StatusStarted || t.status == StatusPaused {
		t.status = StatusStopped
	}
	return nil
}

// ChangeOptions merges p into the current options. Invalid options leave the timer as is.
func (t *Timer) ChangeOptions(p *format.Partial) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusDestroyed {
		return ErrDestroyed
	}
	opts, err := format.Build(p, &t.opts)
	if err != nil {
		return err
	}
	t.opts = opts
	return nil
}

// PercentDone returns how much of a countdown has elapsed, 0 to 100. ok is false in
// stopwatch mode and when the start time is 0.
func (t *Timer) PercentDone() (percent int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentDoneLocked()
}

func (t *Timer) percentDoneLocked() (int, bool) {
	if !t.opts.Countdown || t.startTime == 0 {
		return 0, false
	}
	return 100 - int(math.Round(float64(t.currentTime)/float64(t.startTime)*100)), true
}

// CurrentTime returns the seconds left (countdown) or elapsed (stopwatch).
func (t *Timer) CurrentTime() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentTime
}

// StartTime returns the seconds the timer starts from.
func (t *Timer) StartTime() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startTime
}

func (t *Timer) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Options returns a copy of the current options.
func (t *Timer) Options() format.Options {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opts
}

// Format renders the current time with the current options.
func (t *Timer) Format() format.Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return format.Format(t.currentTime, t.opts)
}

// Snapshot returns the payload a listener would receive right now.
func (t *Timer) Snapshot() Payload {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.payloadLocked()
}

func (t *Timer) payloadLocked() Payload {
	res := format.Format(t.currentTime, t.opts)
	p := Payload{
		FormattedTime: res.FormattedTime,
		Raw:           res.Raw,
		CurrentTime:   t.currentTime,
		StartTime:     t.startTime,
		Status:        t.status,
		Self:          t,
	}
	if pct, ok := t.percentDoneLocked(); ok {
		p.PercentDone = &pct
	}
	return p
}

// On subscribes fn to event. Listeners of one event run in registration order.
func (t *Timer) On(event Event, fn Listener) error {
	if validate.NotFn(fn) {
		return fmt.Errorf("%w: %s listener must be a function, got %s", ErrType, event, validate.CheckType(fn))
	}
	t.events.On(event, emitter.Listener[Payload](fn))
	return nil
}

// Emit calls the listeners of event with p and returns how many ran.
func (t *Timer) Emit(event Event, p Payload) int {
	return t.events.Emit(event, p)
}

// Ticker subscribes fn to every tick.
func (t *Timer) Ticker(fn Listener) error { return t.On(EventTicker, fn) }

// Finish subscribes fn to the end of a countdown.
func (t *Timer) Finish(fn Listener) error { return t.On(EventFinish, fn) }

func (t *Timer) OnStart(fn Listener) error          { return t.On(EventStart, fn) }
func (t *Timer) OnAlreadyStarted(fn Listener) error { return t.On(EventAlreadyStarted, fn) }
func (t *Timer) OnPause(fn Listener) error          { return t.On(EventPause, fn) }
func (t *Timer) OnStop(fn Listener) error           { return t.On(EventStop, fn) }
func (t *Timer) OnDestroy(fn Listener) error        { return t.On(EventDestroy, fn) }
