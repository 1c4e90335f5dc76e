package timer

import "github.com/mescon/timr/internal/format"

// Status is the lifecycle state of a Timer.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusStarted     Status = "started"
	StatusPaused      Status = "paused"
	StatusStopped     Status = "stopped"
	StatusFinished    Status = "finished"
	StatusDestroyed   Status = "destroyed"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusInitialized, StatusStarted, StatusPaused, StatusStopped, StatusFinished, StatusDestroyed}
}

// ParseStatus returns the Status named s.
func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses() {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Event names a notification emitted by a Timer.
type Event string

const (
	EventTicker         Event = "ticker"
	EventFinish         Event = "finish"
	EventStart          Event = "onStart"
	EventAlreadyStarted Event = "onAlreadyStarted"
	EventPause          Event = "onPause"
	EventStop           Event = "onStop"
	EventDestroy        Event = "onDestroy"
)

// Events lists every event a Timer emits.
func Events() []Event {
	return []Event{EventTicker, EventFinish, EventStart, EventAlreadyStarted, EventPause, EventStop, EventDestroy}
}

// Payload is the snapshot handed to listeners. PercentDone is nil where it is undefined
// (stopwatch mode, or a start time of zero).
type Payload struct {
	FormattedTime string     `json:"formattedTime"`
	Raw           format.Raw `json:"raw"`
	PercentDone   *int       `json:"percentDone,omitempty"`
	CurrentTime   int        `json:"currentTime"`
	StartTime     int        `json:"startTime"`
	Status        Status     `json:"status"`
	Self          *Timer     `json:"-"`
}

// Listener receives a Payload.
type Listener func(Payload)
