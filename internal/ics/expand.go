package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"plantime/internal/dates"
)

// maxOccurrences caps a single event's expansion.
const maxOccurrences = 5000

var errNoRange = errors.New("ics: recurrence needs a range")

// expandRule returns the occurrence dates of opt starting at start that fall
// inside [from, to], minus excluded ISO dates. Dates are UTC midnights.
func expandRule(opt rrule.ROption, start time.Time, excluded map[string]bool, from, to time.Time) ([]time.Time, error) {
	if from.IsZero() || to.IsZero() {
		return nil, errNoRange
	}
	from, to = civilDate(from), civilDate(to)
	if to.Before(from) {
		return nil, nil
	}

	opt.Dtstart = start
	if !opt.Until.IsZero() {
		opt.Until = civilDate(opt.Until)
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, err
	}

	var out []time.Time
	for _, t := range r.Between(from, to, true) {
		if excluded[dates.FormatISO(t)] {
			continue
		}
		out = append(out, t)
		if len(out) == maxOccurrences {
			break
		}
	}
	return out, nil
}

// spanDays lists the n consecutive dates from start that lie in [from, to].
// A zero bound leaves that side open.
func spanDays(start time.Time, n int, from, to time.Time) []time.Time {
	var out []time.Time
	for i := 0; i < n && i < maxOccurrences; i++ {
		d := dates.AddDays(start, i)
		if !from.IsZero() && d.Before(civilDate(from)) {
			continue
		}
		if !to.IsZero() && d.After(civilDate(to)) {
			break
		}
		out = append(out, d)
	}
	return out
}
