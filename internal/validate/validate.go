// Package validate holds the small runtime predicates used to guard loosely typed
// input (time expressions, decoded JSON/YAML option bags) and the CheckType
// diagnostic embedded in every error message.
package validate

import (
	"math"
	"reflect"
	"time"
)

// IsNum reports whether v is a finite number of any Go numeric kind.
// NaN and ±Inf are not numbers here.
func IsNum(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return false
	}
}

// IsStr reports whether v is a string.
func IsStr(v any) bool {
	_, ok := v.(string)
	return ok
}

// IsBool reports whether v is a bool.
func IsBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

// IsFn reports whether v is a non-nil function value.
func IsFn(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Func && !rv.IsNil()
}

// IsObj reports whether v is a non-nil map or struct (or pointer to one).
// Slices and arrays are not objects.
func IsObj(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		return !rv.IsNil()
	case reflect.Struct:
		_, isTime := rv.Interface().(time.Time)
		return !isTime
	default:
		return false
	}
}

// IsDate reports whether v is a time.Time (or a non-nil *time.Time).
func IsDate(v any) bool {
	switch t := v.(type) {
	case time.Time:
		return true
	case *time.Time:
		return t != nil
	default:
		return false
	}
}

// Exists reports whether v carries a value. Only an untyped nil is missing.
func Exists(v any) bool { return v != nil }

func NotNum(v any) bool    { return !IsNum(v) }
func NotStr(v any) bool    { return !IsStr(v) }
func NotBool(v any) bool   { return !IsBool(v) }
func NotFn(v any) bool     { return !IsFn(v) }
func NotObj(v any) bool    { return !IsObj(v) }
func NotExists(v any) bool { return !Exists(v) }

// CheckType returns a short human name for the runtime type of v:
// "number", "string", "boolean", "function", "object", "array", "date",
// "undefined" (untyped nil), "null" (typed nil), "NaN", "Infinity" or "-Infinity".
func CheckType(v any) string {
	if v == nil {
		return "undefined"
	}
	if IsDate(v) {
		return "date"
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		switch {
		case math.IsNaN(f):
			return "NaN"
		case math.IsInf(f, 1):
			return "Infinity"
		case math.IsInf(f, -1):
			return "-Infinity"
		}
		return "number"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Func:
		if rv.IsNil() {
			return "null"
		}
		return "function"
	case reflect.Slice:
		if rv.IsNil() {
			return "null"
		}
		return "array"
	case reflect.Array:
		return "array"
	case reflect.Map, reflect.Pointer, reflect.Interface, reflect.Chan:
		if rv.IsNil() {
			return "null"
		}
		if rv.Kind() == reflect.Pointer {
			return CheckType(rv.Elem().Interface())
		}
		return "object"
	default:
		return "object"
	}
}
