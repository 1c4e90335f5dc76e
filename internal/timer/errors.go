package timer

import "errors"

var (
	// ErrType reports an argument of the wrong type, such as a nil listener.
	ErrType = errors.New("invalid argument")

	// ErrZeroStartTime is returned by Start for a countdown whose start time is 0.
	ErrZeroStartTime = errors.New("countdown start time is 0")

	// ErrInvalidTransition is returned when the current status does not allow the call.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDestroyed is returned by every control call on a destroyed timer.
	ErrDestroyed = errors.New("timer destroyed")
)
