// Package timeexpr turns the time expressions a timer accepts into a whole number of
// seconds: durations ("90", "10:00", "1:00:00", "10m", "2h", "1d", plain numbers) and
// absolute dates (ISO-8601 strings or time.Time values) measured from a given instant.
package timeexpr

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/mescon/timr/internal/validate"
)

var (
	shorthandPattern = regexp.MustCompile(`(?i)^(\d+)([mhd])$`)
	numericPattern   = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	clockPattern     = regexp.MustCompile(`^\d+(:\d+)?(:\d+)?$`)
)

// segment weights for 1, 2 and 3 colon separated parts, most significant first
var segmentWeights = [][]int{
	{1},
	{60, 1},
	{3600, 60, 1},
}

// ToSeconds converts a duration expression into seconds.
//
// Accepted forms are non-negative numbers (rounded to the nearest integer), numeric
// strings, "SS", "MM:SS", "HH:MM:SS" and the shorthands "Nm", "Nh", "Nd".
// Components are not clamped: "90:00" is 5400 seconds.
func ToSeconds(input any) (int, error) {
	if validate.IsNum(input) {
		return numberToSeconds(toFloat(input), input)
	}

	str, ok := input.(string)
	if !ok {
		return 0, fmt.Errorf("%w: expected a string or number, got %v (%s)", ErrType, input, validate.CheckType(input))
	}

	str, err := expandShorthand(str)
	if err != nil {
		return 0, err
	}

	if numericPattern.MatchString(str) {
		f, err := strconv.ParseFloat(str, 64)
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %q", ErrRange, str)
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrFormat, str, err)
		}
		return numberToSeconds(f, input)
	}

	if !clockPattern.MatchString(str) {
		return 0, fmt.Errorf("%w: %q (%s) is not SS, MM:SS, HH:MM:SS or a shorthand like 10m", ErrFormat, str, validate.CheckType(input))
	}

	parts := strings.Split(str, ":")
	weights := segmentWeights[len(parts)-1]
	total := 0
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %q", ErrRange, str)
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrFormat, str, err)
		}
		next, ok := addMul(total, n, weights[i])
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrRange, str)
		}
		total = next
	}
	return total, nil
}

// addMul returns total + n*w for non-negative operands, reporting false on overflow.
func addMul(total, n, w int) (int, bool) {
	if w != 0 && n > (math.MaxInt-total)/w {
		return 0, false
	}
	return total + n*w, true
}

// expandShorthand rewrites "10m", "2h" and "1d" into their colon forms.
func expandShorthand(str string) (string, error) {
	m := shorthandPattern.FindStringSubmatch(str)
	if m == nil {
		return str, nil
	}
	switch strings.ToLower(m[2]) {
	case "m":
		return m[1] + ":00", nil
	case "h":
		return m[1] + ":00:00", nil
	default:
		days, err := strconv.Atoi(m[1])
		if err != nil || days > math.MaxInt/24 {
			return "", fmt.Errorf("%w: %q", ErrRange, str)
		}
		return strconv.Itoa(days*24) + ":00:00", nil
	}
}

// 2^63 as a float; every smaller rounded float fits in an int64
const maxSecondsFloat = float64(1 << 63)

func numberToSeconds(f float64, original any) (int, error) {
	if math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %v (%s)", ErrType, original, validate.CheckType(original))
	}
	if f < 0 {
		return 0, fmt.Errorf("%w: %v (%s)", ErrNegative, original, validate.CheckType(original))
	}
	r := math.Round(f)
	if r >= maxSecondsFloat || r > float64(math.MaxInt) {
		return 0, fmt.Errorf("%w: %v (%s)", ErrRange, original, validate.CheckType(original))
	}
	return int(r), nil
}

func toFloat(v any) float64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint())
	default:
		return rv.Float()
	}
}
