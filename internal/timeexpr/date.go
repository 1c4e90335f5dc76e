package timeexpr

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/mescon/timr/internal/validate"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// Date-time layouts tried in order. Fractional seconds are accepted by time.Parse
// after the seconds field even though the layouts do not spell them out.
var (
	zonedLayouts = []string{
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
)

// IsDate reports whether expr should be resolved as an absolute date rather than
// a duration: a time.Time, or a string starting with YYYY-MM-DD.
func IsDate(expr any) bool {
	if validate.IsDate(expr) {
		return true
	}
	str, ok := expr.(string)
	return ok && datePattern.MatchString(str)
}

// ParseDate parses an ISO-8601 date or date-time. A bare date is midnight UTC,
// a date-time without an offset is read in loc.
func ParseDate(str string, loc *time.Location) (time.Time, error) {
	if !datePattern.MatchString(str) {
		return time.Time{}, fmt.Errorf("%w: %q (%s) is not an ISO date", ErrFormat, str, validate.CheckType(str))
	}
	if len(str) == len("2006-01-02") {
		t, err := time.Parse("2006-01-02", str)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q: %v", ErrDateParse, str, err)
		}
		return t, nil
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	if loc == nil {
		loc = time.Local
	}
	var lastErr error
	for _, layout := range localLayouts {
		t, err := time.ParseInLocation(layout, str, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("%w: %q: %v", ErrDateParse, str, lastErr)
}

// DateToSeconds returns the whole seconds (rounded up) from now until target.
//
// When target lies in the past the backup expression, if any, is resolved instead
// (as a date or a duration, whichever it is). Without a backup a past target yields 0.
func DateToSeconds(now time.Time, target any, backup any) (int, error) {
	var instant time.Time
	switch v := target.(type) {
	case time.Time:
		instant = v
	case *time.Time:
		if v == nil {
			return 0, fmt.Errorf("%w: expected a date or ISO date string, got null", ErrType)
		}
		instant = *v
	case string:
		t, err := ParseDate(v, now.Location())
		if err != nil {
			return 0, err
		}
		instant = t
	default:
		return 0, fmt.Errorf("%w: expected a date or ISO date string, got %v (%s)", ErrType, target, validate.CheckType(target))
	}

	seconds := int(math.Ceil(instant.Sub(now).Seconds()))
	if seconds >= 0 {
		return seconds, nil
	}
	if backup != nil {
		seconds, _, err := Resolve(now, backup, nil)
		return seconds, err
	}
	return 0, nil
}

// Resolve dispatches expr to DateToSeconds or ToSeconds and reports which one was used.
func Resolve(now time.Time, expr any, backup any) (seconds int, isDate bool, err error) {
	if expr == nil {
		return 0, false, fmt.Errorf("%w: a start time is required, got undefined", ErrType)
	}
	if IsDate(expr) {
		seconds, err = DateToSeconds(now, expr, backup)
		return seconds, true, err
	}
	seconds, err = ToSeconds(expr)
	return seconds, false, err
}
