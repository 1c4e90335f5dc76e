package format

import "strings"

// Result is a formatted time together with the components it was built from.
type Result struct {
	FormattedTime string `json:"formattedTime"`
	Raw           Raw    `json:"raw"`
}

var braceStripper = strings.NewReplacer("{", "", "}", "")

// leading units checked for a non-zero total, largest first
var leadingUnits = []Unit{TotalDays, TotalHours, TotalMinutes}

// Format renders seconds with opts.FormatOutput.
//
// When the template has a protected region (the text from its last '{'), leading units
// outside that region are dropped while they are zero: the output starts at the largest
// non-zero unit if it appears before the region, otherwise at the region itself. Templates
// without '{' are used as they are. Braces are removed and every token is replaced by the
// matching FormatValues function. Negative seconds are treated as zero.
func Format(seconds int, opts Options) Result {
	if seconds < 0 {
		seconds = 0
	}
	raw := Components(seconds)

	tmpl := braceStripper.Replace(truncate(opts.FormatOutput, raw))
	return Result{
		FormattedTime: expand(tmpl, raw, opts),
		Raw:           raw,
	}
}

func truncate(tmpl string, raw Raw) string {
	open := strings.LastIndex(tmpl, "{")
	if open < 0 {
		return tmpl
	}
	if at := leadingUnitIndex(tmpl, raw); at >= 0 && at < open {
		return tmpl[at:]
	}
	return tmpl[open:]
}

// leadingUnitIndex finds the position of the largest unit that is non-zero and present
// in tmpl, in either case. With nothing above zero it falls back to seconds.
func leadingUnitIndex(tmpl string, raw Raw) int {
	for _, u := range leadingUnits {
		if raw.Value(u) == 0 {
			continue
		}
		if at := indexFold(tmpl, u.Token()); at >= 0 {
			return at
		}
	}
	return indexFold(tmpl, TotalSeconds.Token())
}

// indexFold is strings.Index with ASCII case folding; byte offsets match tmpl.
func indexFold(tmpl, token string) int {
	n := len(token)
	for i := 0; i+n <= len(tmpl); i++ {
		match := true
		for j := 0; j < n; j++ {
			if lowerASCII(tmpl[i+j]) != lowerASCII(token[j]) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func lowerASCII(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func expand(tmpl string, raw Raw, opts Options) string {
	var sb strings.Builder
	sb.Grow(len(tmpl))
	for i := 0; i < len(tmpl); {
		if i+2 <= len(tmpl) {
			if u, ok := ParseUnit(tmpl[i : i+2]); ok {
				sb.WriteString(opts.FormatValue(u)(raw.Value(u)))
				i += 2
				continue
			}
		}
		sb.WriteByte(tmpl[i])
		i++
	}
	return sb.String()
}
