package format

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/mescon/timr/internal/validate"
)

// Decode converts a loosely typed option bag (decoded JSON or YAML) into a Partial.
//
// Recognised keys are formatOutput (string), countdown (bool), backupStartTime
// (string or number) and formatValues: either a formatter name applied to every unit
// or a map from unit token to formatter name (see Formatters). All violations are
// collected into the returned error.
func Decode(raw map[string]any) (*Partial, error) {
	p := &Partial{}
	if len(raw) == 0 {
		return p, nil
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs error
	for _, key := range keys {
		value := raw[key]
		switch key {
		case "formatOutput":
			if validate.NotStr(value) {
				errs = multierr.Append(errs, typeError(key, "a string", value))
				continue
			}
			p.FormatOutput = Ptr(value.(string))
		case "countdown":
			if validate.NotBool(value) {
				errs = multierr.Append(errs, typeError(key, "a boolean", value))
				continue
			}
			p.Countdown = Ptr(value.(bool))
		case "backupStartTime":
			if validate.NotStr(value) && validate.NotNum(value) {
				errs = multierr.Append(errs, typeError(key, "a string or number", value))
				continue
			}
			p.BackupStartTime = value
		case "formatValues":
			errs = multierr.Append(errs, decodeFormatValues(p, value))
		default:
			errs = multierr.Append(errs, fmt.Errorf("%w: unknown option %q", ErrInvalidOption, key))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return p, nil
}

func decodeFormatValues(p *Partial, value any) error {
	if name, ok := value.(string); ok {
		fn, err := lookupFormatter("formatValues", name)
		if err != nil {
			return err
		}
		p.FormatValue = fn
		return nil
	}

	entries, ok := toStringMap(value)
	if validate.NotObj(value) || !ok {
		return typeError("formatValues", "a formatter name or a map of unit tokens", value)
	}

	tokens := make([]string, 0, len(entries))
	for tok := range entries {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	var errs error
	values := make(map[Unit]FormatFunc, len(entries))
	for _, tok := range tokens {
		unit, ok := ParseUnit(tok)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: formatValues has unknown unit %q, expected one of SS MM HH DD ss mm hh dd", ErrInvalidOption, tok))
			continue
		}
		name, ok := entries[tok].(string)
		if !ok {
			errs = multierr.Append(errs, typeError("formatValues."+tok, "a formatter name", entries[tok]))
			continue
		}
		fn, err := lookupFormatter("formatValues."+tok, name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		values[unit] = fn
	}
	if errs != nil {
		return errs
	}
	p.FormatValues = values
	return nil
}

func lookupFormatter(field, name string) (FormatFunc, error) {
	fn, ok := Formatters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s: unknown formatter %q", ErrInvalidOption, field, name)
	}
	return fn, nil
}

func toStringMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func typeError(field, want string, got any) error {
	return fmt.Errorf("%w: %s must be %s, got %v (%s)", ErrInvalidOption, field, want, got, validate.CheckType(got))
}
