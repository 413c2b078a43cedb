// Package recurrence expands weekly day sets into calendar dates.
package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used throughout the ledger.
const DateLayout = "2006-01-02"

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// Weekdays is a set of weekdays stored as a bitmask (bit 0 = Sunday).
type Weekdays uint8

// Parse parses a day list like "MO,WE,FR". An RRULE-style "BYDAY=" prefix
// is accepted. Duplicates are ignored.
func Parse(days string) (Weekdays, error) {
	days = strings.TrimPrefix(strings.TrimSpace(days), "BYDAY=")
	if days == "" {
		return 0, fmt.Errorf("empty day list")
	}

	var w Weekdays
	for _, d := range strings.Split(days, ",") {
		wd, ok := dayNames[strings.ToUpper(strings.TrimSpace(d))]
		if !ok {
			return 0, fmt.Errorf("unknown day: %q", d)
		}
		w = w.With(wd)
	}
	return w, nil
}

// Of builds a set from explicit weekdays.
func Of(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w = w.With(d)
	}
	return w
}

func (w Weekdays) With(d time.Weekday) Weekdays {
	return w | 1<<uint(d)
}

func (w Weekdays) Contains(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

func (w Weekdays) Empty() bool {
	return w == 0
}

// Days returns the members in Monday-first order.
func (w Weekdays) Days() []time.Weekday {
	var out []time.Weekday
	for _, d := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		if w.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}

// String serializes the set back to "MO,WE,FR".
func (w Weekdays) String() string {
	var parts []string
	for _, d := range w.Days() {
		parts = append(parts, dayAbbrev[d])
	}
	return strings.Join(parts, ",")
}

// Describe returns a human-readable description of the set.
func (w Weekdays) Describe() string {
	switch w {
	case 0:
		return "Never"
	case Of(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday):
		return "Weekdays"
	case Of(time.Saturday, time.Sunday):
		return "Weekends"
	case 0x7f:
		return "Every day"
	}
	var names []string
	for _, d := range w.Days() {
		names = append(names, d.String()[:3])
	}
	return "Every " + strings.Join(names, ", ")
}

// Expand returns every date in [from, to] whose weekday is in the set, in
// ascending order. Times are truncated to the start of the day in from's
// location.
func (w Weekdays) Expand(from, to time.Time) []time.Time {
	if w.Empty() {
		return nil
	}
	start := StartOfDay(from)
	end := StartOfDay(to.In(from.Location()))

	// Safety limit to prevent runaway ranges
	const maxDays = 3660

	var out []time.Time
	for d, i := start, 0; !d.After(end) && i < maxDays; d, i = d.AddDate(0, 0, 1), i+1 {
		if w.Contains(d.Weekday()) {
			out = append(out, d)
		}
	}
	return out
}

// Occurs reports whether the set includes the weekday of date.
func (w Weekdays) Occurs(date time.Time) bool {
	return w.Contains(date.Weekday())
}

// Next returns the first date on or after t that is in the set.
func (w Weekdays) Next(t time.Time) (time.Time, bool) {
	if w.Empty() {
		return time.Time{}, false
	}
	d := StartOfDay(t)
	for i := 0; i < 7; i++ {
		if w.Contains(d.Weekday()) {
			return d, true
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
