// Package segment groups a day sequence into month and week segments for the
// timeline header rows.
package segment

import (
	"fmt"
	"time"

	"plantime/internal/dates"
	"plantime/internal/model"
)

// Options controls segment labelling and week boundaries.
type Options struct {
	// WeekStart is the first weekday of a week. Only time.Monday and
	// time.Sunday are meaningful to callers, but any weekday works.
	WeekStart time.Weekday
}

// DefaultOptions starts weeks on Monday.
func DefaultOptions() Options {
	return Options{WeekStart: time.Monday}
}

// Groups holds the two parallel groupings of one day sequence.
type Groups struct {
	Months []model.Segment `json:"months"`
	Weeks  []model.Segment `json:"weeks"`
}

// Build computes both groupings.
func Build(days dates.Days, opts Options) Groups {
	return Groups{
		Months: Months(days),
		Weeks:  Weeks(days, opts),
	}
}

// Months starts a new segment whenever the month or year changes.
//
// Labels are short month names. If the sequence spans more than one calendar
// year, the first segment and the first segment of every later year also
// carry the year ("Dec 2025", "Jan 2026").
func Months(days dates.Days) []model.Segment {
	n := days.Len()
	if n == 0 {
		return nil
	}
	multiYear := days.At(0).Year() != days.At(n-1).Year()

	var (
		out      []model.Segment
		cur      model.Segment
		curYear  int
		curMonth time.Month
		lastYear = -1
	)
	for i, d := range days.All() {
		if i > 0 && d.Year() == curYear && d.Month() == curMonth {
			cur.Length++
			continue
		}
		if i > 0 {
			out = append(out, cur)
		}
		curYear, curMonth = d.Year(), d.Month()
		label := d.Format("Jan")
		if multiYear && curYear != lastYear {
			label = d.Format("Jan 2006")
		}
		lastYear = curYear
		cur = model.Segment{StartIndex: i, Length: 1, Label: label}
	}
	return append(out, cur)
}

// Weeks starts a new segment at every opts.WeekStart. Labels are "Wnn", the
// ISO week of the week's anchor day (week start + 3 days), so Monday weeks
// are labelled exactly by ISO week number.
func Weeks(days dates.Days, opts Options) []model.Segment {
	if days.Len() == 0 {
		return nil
	}
	var (
		out []model.Segment
		cur model.Segment
	)
	for i, d := range days.All() {
		if i > 0 && d.Weekday() != opts.WeekStart {
			cur.Length++
			continue
		}
		if i > 0 {
			out = append(out, cur)
		}
		cur = model.Segment{StartIndex: i, Length: 1, Label: weekLabel(d, opts.WeekStart)}
	}
	return append(out, cur)
}

// WeekStartOf returns the first day of the week containing d.
func WeekStartOf(d time.Time, weekStart time.Weekday) time.Time {
	offset := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return dates.AddDays(dates.Midnight(d), -offset)
}

func weekLabel(d time.Time, weekStart time.Weekday) string {
	anchor := dates.AddDays(WeekStartOf(d, weekStart), 3)
	_, week := anchor.ISOWeek()
	return fmt.Sprintf("W%02d", week)
}

// Validate checks that segs cover [0, n) exactly once, in order.
func Validate(segs []model.Segment, n int) error {
	next := 0
	for i, s := range segs {
		if s.Length < 1 {
			return fmt.Errorf("segment %d: length %d < 1", i, s.Length)
		}
		if s.StartIndex != next {
			return fmt.Errorf("segment %d: starts at %d, want %d", i, s.StartIndex, next)
		}
		next = s.End()
	}
	if next != n {
		return fmt.Errorf("segments cover %d days, want %d", next, n)
	}
	return nil
}
