package format

// Unit identifies one of the eight template tokens. Upper case tokens are cumulative
// totals, lower case tokens are the remainder within the next larger unit.
type Unit int

const (
	TotalSeconds Unit = iota // SS
	TotalMinutes             // MM
	TotalHours               // HH
	TotalDays                // DD
	Seconds                  // ss
	Minutes                  // mm
	Hours                    // hh
	Days                     // dd

	unitCount
)

var unitTokens = [unitCount]string{"SS", "MM", "HH", "DD", "ss", "mm", "hh", "dd"}

// Units lists every unit in declaration order.
func Units() []Unit {
	units := make([]Unit, 0, unitCount)
	for u := TotalSeconds; u < unitCount; u++ {
		units = append(units, u)
	}
	return units
}

// Valid reports whether u is one of the eight known units.
func (u Unit) Valid() bool { return u >= 0 && u < unitCount }

// Token returns the two letter template token for u.
func (u Unit) Token() string {
	if !u.Valid() {
		return "??"
	}
	return unitTokens[u]
}

func (u Unit) String() string { return u.Token() }

// ParseUnit maps a case-sensitive token such as "mm" or "HH" to its Unit.
func ParseUnit(token string) (Unit, bool) {
	for u, t := range unitTokens {
		if t == token {
			return Unit(u), true
		}
	}
	return 0, false
}

// Raw holds the eight time components of a second count.
// TotalDays*86400 + Hours*3600 + Minutes*60 + Seconds == TotalSeconds.
type Raw struct {
	TotalSeconds int `json:"SS"`
	TotalMinutes int `json:"MM"`
	TotalHours   int `json:"HH"`
	TotalDays    int `json:"DD"`
	Seconds      int `json:"ss"`
	Minutes      int `json:"mm"`
	Hours        int `json:"hh"`
	Days         int `json:"dd"`
}

// Components splits seconds into its raw components.
func Components(seconds int) Raw {
	r := Raw{
		TotalSeconds: seconds,
		TotalMinutes: seconds / 60,
		TotalHours:   seconds / 3600,
		TotalDays:    seconds / 86400,
	}
	r.Seconds = r.TotalSeconds - r.TotalMinutes*60
	r.Minutes = r.TotalMinutes - r.TotalHours*60
	r.Hours = r.TotalHours - r.TotalDays*24
	r.Days = r.TotalDays
	return r
}

// Value returns the component selected by u.
func (r Raw) Value(u Unit) int {
	switch u {
	case TotalSeconds:
		return r.TotalSeconds
	case TotalMinutes:
		return r.TotalMinutes
	case TotalHours:
		return r.TotalHours
	case TotalDays:
		return r.TotalDays
	case Seconds:
		return r.Seconds
	case Minutes:
		return r.Minutes
	case Hours:
		return r.Hours
	case Days:
		return r.Days
	default:
		return 0
	}
}
