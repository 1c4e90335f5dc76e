package timeexpr

import "errors"

var (
	// ErrType is returned when an expression has a type that cannot describe a time.
	ErrType = errors.New("invalid time type")

	// ErrFormat is returned for strings that are not a recognised duration or date form.
	ErrFormat = errors.New("wrong time format")

	// ErrNegative is returned for negative durations. They are never clamped.
	ErrNegative = errors.New("negative time")

	// ErrRange is returned for durations too large to count in seconds.
	ErrRange = errors.New("time out of range")

	// ErrDateParse is returned when a string looks like an ISO date but does not parse.
	ErrDateParse = errors.New("unparseable date")
)
