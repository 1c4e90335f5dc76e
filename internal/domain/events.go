package domain

import (
	"time"
)

type EventType string

const (
	TimerAdded          EventType = "TimerAdded"
	TimerTick           EventType = "TimerTick"
	TimerFinished       EventType = "TimerFinished"
	TimerStarted        EventType = "TimerStarted"
	TimerAlreadyStarted EventType = "TimerAlreadyStarted"
	TimerPaused         EventType = "TimerPaused"
	TimerStopped        EventType = "TimerStopped"
	TimerDestroyed      EventType = "TimerDestroyed"
)

// AllEventTypes lists every event type, ticks first.
func AllEventTypes() []EventType {
	return []EventType{
		TimerTick,
		TimerFinished,
		TimerAdded,
		TimerStarted,
		TimerAlreadyStarted,
		TimerPaused,
		TimerStopped,
		TimerDestroyed,
	}
}

// IsLifecycle reports whether t marks a change of a timer's status or membership,
// as opposed to a tick.
func (t EventType) IsLifecycle() bool {
	return t != TimerTick
}

// Event is what the store publishes for every notification of a member timer.
type Event struct {
	ID            int64     `json:"id"`
	TimerID       string    `json:"timer_id"`
	TimerName     string    `json:"timer_name"`
	EventType     EventType `json:"event_type"`
	Status        string    `json:"status"`
	FormattedTime string    `json:"formatted_time"`
	CurrentTime   int       `json:"current_time"`
	StartTime     int       `json:"start_time"`
	PercentDone   *int      `json:"percent_done,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// GetPercentDone returns the percentage and whether it is defined for the event.
func (e *Event) GetPercentDone() (int, bool) {
	if e.PercentDone == nil {
		return 0, false
	}
	return *e.PercentDone, true
}

// DisplayName returns the timer name, or its ID when the timer is unnamed.
func (e *Event) DisplayName() string {
	if e.TimerName != "" {
		return e.TimerName
	}
	return e.TimerID
}
