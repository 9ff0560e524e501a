// Package dates provides the calendar-day arithmetic the timeline is built
// on. All values are dates normalized to midnight; time-of-day is never
// significant.
package dates

import (
	"errors"
	"iter"
	"strings"
	"time"
)

// ISOLayout is the wire and storage layout for dates.
const ISOLayout = "2006-01-02"

// Days is a lazily evaluated, finite and restartable sequence of consecutive
// dates. The zero value is an empty sequence.
type Days struct {
	start time.Time
	n     int
}

// BuildDaysArray returns totalDays consecutive dates beginning at start
// (inclusive), each normalized to midnight in start's location.
// totalDays <= 0 yields an empty sequence.
func BuildDaysArray(start time.Time, totalDays int) Days {
	if totalDays < 0 {
		totalDays = 0
	}
	return Days{start: Midnight(start), n: totalDays}
}

// Len returns the number of days in the sequence.
func (d Days) Len() int { return d.n }

// Start returns the first day. It is the zero time for empty sequences.
func (d Days) Start() time.Time {
	if d.n == 0 {
		return time.Time{}
	}
	return d.start
}

// At returns the i-th day. It panics if i is out of range, like a slice.
func (d Days) At(i int) time.Time {
	if i < 0 || i >= d.n {
		panic("dates: index out of range")
	}
	return AddDays(d.start, i)
}

// All yields (index, day) pairs. Every call restarts from the first day.
func (d Days) All() iter.Seq2[int, time.Time] {
	return func(yield func(int, time.Time) bool) {
		for i := 0; i < d.n; i++ {
			if !yield(i, AddDays(d.start, i)) {
				return
			}
		}
	}
}

// Slice materializes the sequence.
func (d Days) Slice() []time.Time {
	out := make([]time.Time, 0, d.n)
	for _, day := range d.All() {
		out = append(out, day)
	}
	return out
}

// Midnight truncates t to 00:00 of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays returns date offset by n calendar days. n may be negative.
// The wall-clock time of date is kept, so midnight stays midnight across
// DST transitions.
func AddDays(date time.Time, n int) time.Time {
	return date.AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from a to b (negative when
// b is before a). Only the calendar dates of a and b are compared.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	// Unix seconds, not Sub: a Duration saturates at about 292 years.
	return int((ub.Unix() - ua.Unix()) / 86400)
}

// DayIndex is the position of d within a sequence starting at rangeStart.
func DayIndex(rangeStart, d time.Time) int {
	return DaysBetween(rangeStart, d)
}

var errEmptyDate = errors.New("dates: empty date")

// ParseISODate parses a YYYY-MM-DD date in loc. RFC 3339 timestamps are
// accepted too; only their date component (as written) is used.
// A nil loc means time.Local.
func ParseISODate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyDate
	}
	if len(s) > len(ISOLayout) && (s[len(ISOLayout)] == 'T' || s[len(ISOLayout)] == ' ') {
		s = s[:len(ISOLayout)]
	}
	return time.ParseInLocation(ISOLayout, s, loc)
}

// FormatISO formats the calendar date of t as YYYY-MM-DD.
func FormatISO(t time.Time) string {
	return t.Format(ISOLayout)
}

// UTCToLocalDate converts a UTC-stored ISO date into the display date string
// for loc. The calendar date is preserved: a date stored as 2025-03-10 is
// displayed as 2025-03-10 in every zone.
func UTCToLocalDate(iso string, loc *time.Location) (string, error) {
	utc, err := ParseISODate(iso, time.UTC)
	if err != nil {
		return "", err
	}
	if loc == nil {
		loc = time.Local
	}
	y, m, d := utc.Date()
	return FormatISO(time.Date(y, m, d, 0, 0, 0, 0, loc)), nil
}

// LocalDateToUTC converts a display date in loc to the ISO date stored as
// UTC midnight of the same wall-clock date.
func LocalDateToUTC(local string, loc *time.Location) (string, error) {
	t, err := ParseISODate(local, loc)
	if err != nil {
		return "", err
	}
	y, m, d := t.Date()
	return FormatISO(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)), nil
}
