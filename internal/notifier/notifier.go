package notifier

import (
	"fmt"
	"sync"
	"time"

	"github.com/containrrr/shoutrrr"
	"go.uber.org/multierr"

	"github.com/mescon/timr/internal/domain"
	"github.com/mescon/timr/internal/eventbus"
	"github.com/mescon/timr/internal/logger"
)

// Sender delivers message to one shoutrrr URL.
type Sender func(url, message string) error

// OutcomeRecorder counts delivery attempts; MetricsService implements it.
type OutcomeRecorder interface {
	RecordNotification(sent bool)
}

// Notifier sends a message to every configured URL when a countdown finishes.
// Delivery failures are logged and counted and never reach the timer.
type Notifier struct {
	eb       *eventbus.EventBus
	urls     []string
	send     Sender
	recorder OutcomeRecorder
	throttle time.Duration
	now      func() time.Time
	sleep    func(time.Duration)

	attempts   int
	retryDelay time.Duration
	breakerCfg BreakerConfig
	breakers   *breakers

	mu       sync.Mutex
	lastSent map[string]time.Time // per timer ID
	wg       sync.WaitGroup
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithSender replaces shoutrrr.Send.
func WithSender(s Sender) Option {
	return func(n *Notifier) { n.send = s }
}

// WithRecorder reports every delivery attempt to r.
func WithRecorder(r OutcomeRecorder) Option {
	return func(n *Notifier) { n.recorder = r }
}

// WithThrottle suppresses repeated notifications for the same timer within d.
func WithThrottle(d time.Duration) Option {
	return func(n *Notifier) { n.throttle = d }
}

// WithRetry retries a failed delivery up to attempts times in total, doubling
// delay after each failure.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(n *Notifier) {
		n.attempts = attempts
		n.retryDelay = delay
	}
}

// WithBreaker overrides the per-URL circuit breaker settings.
func WithBreaker(cfg BreakerConfig) Option {
	return func(n *Notifier) { n.breakerCfg = cfg }
}

// NewNotifier creates a new notifier service. Invalid URLs are reported together in
// the returned error; the notifier is still usable with the valid ones.
func NewNotifier(eb *eventbus.EventBus, urls []string, opts ...Option) (*Notifier, error) {
	n := &Notifier{
		eb:         eb,
		send:       shoutrrr.Send,
		now:        time.Now,
		sleep:      time.Sleep,
		attempts:   1,
		breakerCfg: DefaultBreakerConfig(),
		lastSent:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.attempts < 1 {
		n.attempts = 1
	}
	n.breakers = newBreakers(n.breakerCfg, func() time.Time { return n.now() })

	var errs error
	for _, raw := range urls {
		u, err := NormalizeURL(raw)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		n.urls = append(n.urls, u)
	}
	return n, errs
}

// Start begins listening for finished timers.
func (n *Notifier) Start() {
	if len(n.urls) == 0 {
		logger.Infof("Notifier disabled: no notification URLs configured")
		return
	}
	// one subscription keeps a timer's finish and destroy events in order
	n.eb.SubscribeAll(n.handleEvent)
	logger.Infof("Notifier started with %d targets", len(n.urls))
}

// Stop waits for deliveries in flight.
func (n *Notifier) Stop() {
	n.wg.Wait()
}

// FormatMessage builds the text sent for a finished timer.
func FormatMessage(ev domain.Event) string {
	return fmt.Sprintf("Timer %s finished (%s)", ev.DisplayName(), ev.FormattedTime)
}

func (n *Notifier) handleEvent(ev domain.Event) {
	switch ev.EventType {
	case domain.TimerFinished:
		n.handleFinished(ev)
	case domain.TimerDestroyed:
		n.forget(ev.TimerID)
	}
}

// forget drops the throttle state of a destroyed timer.
func (n *Notifier) forget(timerID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.lastSent, timerID)
}

func (n *Notifier) handleFinished(ev domain.Event) {
	if !n.canSend(ev.TimerID) {
		logger.Debugf("Throttled notification for timer %s", ev.TimerID)
		return
	}

	message := FormatMessage(ev)
	for _, u := range n.urls {
		n.wg.Add(1)
		go func(u string) {
			defer n.wg.Done()
			n.deliver(u, message)
		}(u)
	}
}

func (n *Notifier) canSend(timerID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if last, ok := n.lastSent[timerID]; ok && n.throttle > 0 && now.Sub(last) < n.throttle {
		return false
	}
	n.lastSent[timerID] = now
	return true
}

// CircuitState reports the breaker state for a configured URL.
func (n *Notifier) CircuitState(url string) CircuitState {
	return n.breakers.state(url)
}

func (n *Notifier) deliver(u, message string) {
	if !n.breakers.allow(u) {
		logger.Warnf("Skipping notification to %s: circuit open", redactURL(u))
		n.record(false)
		return
	}

	err := n.sendWithRetry(u, message)
	n.breakers.record(u, err)
	if err != nil {
		logger.Errorf("Failed to send notification to %s: %v", redactURL(u), err)
	} else {
		logger.Debugf("Notification sent to %s", redactURL(u))
	}
	n.record(err == nil)
}

func (n *Notifier) sendWithRetry(u, message string) error {
	var err error
	for attempt := 0; attempt < n.attempts; attempt++ {
		if err = n.send(u, message); err == nil {
			return nil
		}
		if attempt < n.attempts-1 {
			delay := n.retryDelay * time.Duration(1<<attempt)
			logger.Debugf("Notification to %s failed, retrying in %v (attempt %d/%d)", redactURL(u), delay, attempt+1, n.attempts)
			n.sleep(delay)
		}
	}
	if n.attempts > 1 {
		return fmt.Errorf("giving up after %d attempts: %w", n.attempts, err)
	}
	return err
}

func (n *Notifier) record(sent bool) {
	if n.recorder != nil {
		n.recorder.RecordNotification(sent)
	}
}
