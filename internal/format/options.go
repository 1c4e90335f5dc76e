// Package format builds timer display options and expands display templates such as
// "DD hh:{mm:ss}" for a number of seconds.
package format

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/multierr"

	"github.com/mescon/timr/internal/validate"
)

// DefaultFormatOutput is the template used when none is configured.
const DefaultFormatOutput = "DD hh:{mm:ss}"

// ErrInvalidOption is wrapped by every option validation failure.
var ErrInvalidOption = errors.New("invalid option")

// FormatFunc renders one time component.
type FormatFunc func(n int) string

// ZeroPad renders n with a leading zero below 10.
func ZeroPad(n int) string {
	if n >= 0 && n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// Plain renders n without padding.
func Plain(n int) string { return strconv.Itoa(n) }

// Formatters are the named FormatFuncs available to loosely typed configuration.
var Formatters = map[string]FormatFunc{
	"pad": ZeroPad,
	"raw": Plain,
}

// Options is the complete, validated display configuration of a timer.
// Values are copied on assignment; FormatValues holds a function for every unit.
type Options struct {
	FormatOutput    string
	Countdown       bool
	FormatValues    [unitCount]FormatFunc
	BackupStartTime any
}

// Partial is a set of option changes. Nil fields leave the current value untouched.
// FormatValue applies one function to every unit and excludes FormatValues.
type Partial struct {
	FormatOutput    *string
	Countdown       *bool
	FormatValue     FormatFunc
	FormatValues    map[Unit]FormatFunc
	BackupStartTime any
}

// Ptr returns a pointer to v, for filling Partial fields inline.
func Ptr[T any](v T) *T { return &v }

// Default returns the built-in options: the default template, countdown mode and
// zero padding for every unit.
func Default() Options {
	opts := Options{
		FormatOutput: DefaultFormatOutput,
		Countdown:    true,
	}
	for i := range opts.FormatValues {
		opts.FormatValues[i] = ZeroPad
	}
	return opts
}

// FormatValue returns the function used for u.
func (o Options) FormatValue(u Unit) FormatFunc {
	if !u.Valid() || o.FormatValues[u] == nil {
		return ZeroPad
	}
	return o.FormatValues[u]
}

// Build layers defaults, then old (if non-nil), then p (if non-nil) into a new Options.
// p is validated before anything is merged; every violation found is reported in the
// returned error, not just the first.
func Build(p *Partial, old *Options) (Options, error) {
	if err := p.Validate(); err != nil {
		return Options{}, err
	}

	opts := Default()
	if old != nil {
		opts.FormatOutput = old.FormatOutput
		opts.Countdown = old.Countdown
		opts.BackupStartTime = old.BackupStartTime
		for i, fn := range old.FormatValues {
			if fn != nil {
				opts.FormatValues[i] = fn
			}
		}
	}
	if p == nil {
		return opts, nil
	}

	if p.FormatOutput != nil {
		opts.FormatOutput = *p.FormatOutput
	}
	if p.Countdown != nil {
		opts.Countdown = *p.Countdown
	}
	if p.BackupStartTime != nil {
		opts.BackupStartTime = p.BackupStartTime
	}
	if p.FormatValue != nil {
		for i := range opts.FormatValues {
			opts.FormatValues[i] = p.FormatValue
		}
	}
	for u, fn := range p.FormatValues {
		opts.FormatValues[u] = fn
	}
	return opts, nil
}

// Validate checks p without merging it. A nil Partial is valid.
func (p *Partial) Validate() error {
	if p == nil {
		return nil
	}

	var errs error
	if p.FormatValue != nil && p.FormatValues != nil {
		errs = multierr.Append(errs, fmt.Errorf("%w: formatValue and formatValues are mutually exclusive", ErrInvalidOption))
	}
	if p.FormatValue != nil {
		if err := probe(p.FormatValue); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: formatValue %v", ErrInvalidOption, err))
		}
	}

	units := make([]Unit, 0, len(p.FormatValues))
	for u := range p.FormatValues {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })
	for _, u := range units {
		fn := p.FormatValues[u]
		switch {
		case !u.Valid():
			errs = multierr.Append(errs, fmt.Errorf("%w: formatValues has unknown unit %d", ErrInvalidOption, int(u)))
		case fn == nil:
			errs = multierr.Append(errs, fmt.Errorf("%w: formatValues[%s] must be a function, got null", ErrInvalidOption, u))
		default:
			if err := probe(fn); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%w: formatValues[%s] %v", ErrInvalidOption, u, err))
			}
		}
	}

	if b := p.BackupStartTime; b != nil && !validate.IsNum(b) && !validate.IsStr(b) && !validate.IsDate(b) {
		errs = multierr.Append(errs, fmt.Errorf("%w: backupStartTime must be a duration or date, got %v (%s)", ErrInvalidOption, b, validate.CheckType(b)))
	}
	return errs
}

// probe calls fn with a sample value and turns a panic into an error.
func probe(fn FormatFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panicked on sample input 5: %v", r)
		}
	}()
	fn(5)
	return nil
}
