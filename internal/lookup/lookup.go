// Package lookup expands calendars into a date-keyed table of special days
// for a display range.
package lookup

import (
	"time"

	"github.com/teambition/rrule-go"

	"plantime/internal/dates"
	appLog "plantime/internal/log"
	"plantime/internal/model"
)

// Entry is one special day attributed to the calendar it came from.
type Entry struct {
	Day          model.CalendarDay `json:"day"`
	CalendarName string            `json:"calendarName"`
}

// Map is an insertion-ordered mapping from ISO date to entries.
// Entries of one date keep calendar order, then day order within a calendar.
type Map struct {
	keys    []string
	entries map[string][]Entry
}

func newMap() *Map {
	return &Map{entries: make(map[string][]Entry)}
}

func (m *Map) add(date string, e Entry) {
	if _, ok := m.entries[date]; !ok {
		m.keys = append(m.keys, date)
	}
	m.entries[date] = append(m.entries[date], e)
}

// Len returns the number of distinct dates.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the entries for an ISO date.
func (m *Map) Get(date string) []Entry {
	if m == nil {
		return nil
	}
	return m.entries[date]
}

// Keys returns dates in first-insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Pairs flattens the map for the wire.
func (m *Map) Pairs() []Pair {
	out := make([]Pair, 0, m.Len())
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out = append(out, Pair{Date: k, Entries: m.entries[k]})
	}
	return out
}

// Query describes one lookup.
type Query struct {
	Calendars []model.Calendar
	Start     time.Time
	End       time.Time

	// Viewport, when non-nil, restricts results to day indices (relative to
	// Start) inside the inclusive window.
	Viewport *Viewport
}

// Viewport is an inclusive day-index window.
type Viewport struct {
	Start int
	End   int
}

func (v *Viewport) contains(idx int) bool {
	return v == nil || (idx >= v.Start && idx <= v.End)
}

// Build computes the lookup table for q. Start and End are compared by
// calendar date only. An inverted range yields an empty map.
func Build(q Query) *Map {
	m := newMap()

	start := utcDate(q.Start)
	end := utcDate(q.End)
	if end.Before(start) {
		return m
	}

	for _, cal := range q.Calendars {
		for _, day := range cal.Days {
			tmpl, err := dates.ParseISODate(day.Date, time.UTC)
			if err != nil {
				appLog.Debug("lookup: skipping day with bad date", "calendar", cal.Name, "day", day.ID, "date", day.Date)
				continue
			}

			if !day.Recurring {
				if tmpl.Before(start) || tmpl.After(end) {
					continue
				}
				if !q.Viewport.contains(dates.DayIndex(start, tmpl)) {
					continue
				}
				m.add(dates.FormatISO(tmpl), Entry{Day: day, CalendarName: cal.Name})
				continue
			}

			for _, occ := range recurrences(tmpl, start, end) {
				if !q.Viewport.contains(dates.DayIndex(start, occ)) {
					continue
				}
				m.add(dates.FormatISO(occ), Entry{Day: day, CalendarName: cal.Name})
			}
		}
	}

	return m
}

// recurrences returns the template's month/day in every year of
// [start.Year(), end.Year()] that falls inside [start, end]. Feb 29 only
// occurs in leap years.
func recurrences(tmpl, start, end time.Time) []time.Time {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:       rrule.YEARLY,
		Dtstart:    time.Date(start.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
		Until:      time.Date(end.Year(), time.December, 31, 0, 0, 0, 0, time.UTC),
		Bymonth:    []int{int(tmpl.Month())},
		Bymonthday: []int{tmpl.Day()},
	})
	if err != nil {
		appLog.Error("lookup: failed to build yearly rule", err, "template", dates.FormatISO(tmpl))
		return nil
	}
	return r.Between(start, end, true)
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
