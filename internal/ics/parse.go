package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"plantime/internal/dates"
	appLog "plantime/internal/log"
	"plantime/internal/model"
)

// CategorySpecial marks a VEVENT as a special day rather than a holiday.
const CategorySpecial = "SPECIAL"

// ParseOptions bounds the expansion of feed events into calendar days.
type ParseOptions struct {
	// Location converts timed events to their display date. Nil means
	// time.Local.
	Location *time.Location
	// RangeStart and RangeEnd bound non-yearly recurrences and multi-day
	// events. Yearly events become Recurring days and are not bounded here.
	RangeStart time.Time
	RangeEnd   time.Time
}

// ParseCalendar converts an ICS payload into a Calendar.
//
// Each VEVENT becomes one or more CalendarDays:
//   - a plain RRULE:FREQ=YEARLY event becomes a single Recurring day
//   - any other RRULE is expanded inside the options range
//   - a multi-day all-day event yields one day per covered date
//
// Events carrying the SPECIAL category are typed special, all others
// holiday. Events that cannot be read are logged and skipped.
func ParseCalendar(feed Feed, body []byte, opts ParseOptions) (model.Calendar, error) {
	if len(body) == 0 {
		return model.Calendar{}, fmt.Errorf("ics: feed %q: empty body", feed.ID)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return model.Calendar{}, fmt.Errorf("ics: feed %q: %w", feed.ID, err)
	}

	out := model.Calendar{ID: feed.ID, Name: calendarName(cal, feed)}
	for i, ev := range cal.Events() {
		days, err := eventDays(ev, i, feed.ID, opts)
		if err != nil {
			appLog.Debug("skipping unreadable event", "feed", feed.ID, "index", i, "err", err.Error())
			continue
		}
		out.Days = append(out.Days, days...)
	}

	appLog.Debug("holiday feed parsed", "id", feed.ID, "days", len(out.Days))
	return out, nil
}

func calendarName(cal *ical.Calendar, feed Feed) string {
	for _, p := range cal.CalendarProperties {
		if p.IANAToken == string(ical.PropertyXWRCalName) && p.Value != "" {
			return p.Value
		}
	}
	if feed.Name != "" {
		return feed.Name
	}
	return feed.ID
}

// eventDays maps one VEVENT to calendar days. A UID of the form
// "<id>@<feedID>", as written by Export, reads back as "<id>".
func eventDays(ev *ical.VEvent, index int, feedID string, opts ParseOptions) ([]model.CalendarDay, error) {
	start, allDay, err := eventStart(ev, opts.Location)
	if err != nil {
		return nil, err
	}

	tmpl := model.CalendarDay{
		ID:   propValue(ev, ical.ComponentPropertyUniqueId),
		Name: propValue(ev, ical.ComponentPropertySummary),
		Type: model.DayTypeHoliday,
		Date: dates.FormatISO(start),
	}
	if id, ok := strings.CutSuffix(tmpl.ID, "@"+feedID); ok && id != "" && feedID != "" {
		tmpl.ID = id
	}
	if tmpl.ID == "" {
		tmpl.ID = fmt.Sprintf("event-%d", index)
	}
	if tmpl.Name == "" {
		return nil, errors.New("missing SUMMARY")
	}
	tmpl.Description = propValue(ev, ical.ComponentPropertyDescription)
	if hasCategory(ev, CategorySpecial) {
		tmpl.Type = model.DayTypeSpecial
	}

	if rule := propValue(ev, ical.ComponentPropertyRrule); rule != "" {
		opt, err := rrule.StrToROption(rule)
		if err != nil {
			return nil, fmt.Errorf("rrule %q: %w", rule, err)
		}
		if isPlainYearly(opt, start) {
			tmpl.Recurring = true
			return []model.CalendarDay{tmpl}, nil
		}
		occ, err := expandRule(*opt, start, exdates(ev), opts.RangeStart, opts.RangeEnd)
		if err != nil {
			return nil, err
		}
		return occurrenceDays(tmpl, occ), nil
	}

	span := 1
	if allDay {
		if end, err := ev.GetAllDayEndAt(); err == nil {
			span = max(dates.DaysBetween(start, civilDate(end)), 1)
		}
	}
	if span == 1 {
		return []model.CalendarDay{tmpl}, nil
	}
	return occurrenceDays(tmpl, spanDays(start, span, opts.RangeStart, opts.RangeEnd)), nil
}

// eventStart returns the display date of DTSTART at UTC midnight.
func eventStart(ev *ical.VEvent, loc *time.Location) (time.Time, bool, error) {
	p := ev.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return time.Time{}, false, errors.New("missing DTSTART")
	}
	if isDateValue(p) {
		t, err := ev.GetAllDayStartAt()
		if err != nil {
			return time.Time{}, false, err
		}
		return civilDate(t), true, nil
	}
	t, err := ev.GetStartAt()
	if err != nil {
		return time.Time{}, false, err
	}
	return civilDate(t.In(loc)), false, nil
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs := p.ICalParameters[string(ical.ParameterValue)]; len(vs) > 0 && strings.EqualFold(vs[0], string(ical.ValueDataTypeDate)) {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// civilDate keeps the wall-clock date of t as UTC midnight.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// isPlainYearly reports whether the rule repeats the start month/day every
// year forever, which is exactly what a Recurring calendar day means.
func isPlainYearly(opt *rrule.ROption, start time.Time) bool {
	if opt.Freq != rrule.YEARLY || opt.Interval > 1 || opt.Count != 0 || !opt.Until.IsZero() {
		return false
	}
	if len(opt.Bysetpos)+len(opt.Byyearday)+len(opt.Byweekno)+len(opt.Byweekday)+len(opt.Byeaster) > 0 {
		return false
	}
	if len(opt.Bymonth) > 1 || len(opt.Bymonth) == 1 && opt.Bymonth[0] != int(start.Month()) {
		return false
	}
	if len(opt.Bymonthday) > 1 || len(opt.Bymonthday) == 1 && opt.Bymonthday[0] != start.Day() {
		return false
	}
	return true
}

func hasCategory(ev *ical.VEvent, want string) bool {
	for _, p := range ev.GetProperties(ical.ComponentPropertyCategories) {
		for _, c := range strings.Split(p.Value, ",") {
			if strings.EqualFold(strings.TrimSpace(c), want) {
				return true
			}
		}
	}
	return false
}

func exdates(ev *ical.VEvent) map[string]bool {
	out := make(map[string]bool)
	for _, p := range ev.GetProperties(ical.ComponentPropertyExdate) {
		for _, v := range strings.Split(p.Value, ",") {
			v = strings.TrimSpace(v)
			if len(v) < 8 {
				continue
			}
			if t, err := time.Parse("20060102", v[:8]); err == nil {
				out[dates.FormatISO(t)] = true
			}
		}
	}
	return out
}

func occurrenceDays(tmpl model.CalendarDay, occ []time.Time) []model.CalendarDay {
	out := make([]model.CalendarDay, 0, len(occ))
	for _, t := range occ {
		d := tmpl
		d.Date = dates.FormatISO(t)
		d.ID = tmpl.ID + "/" + d.Date
		out = append(out, d)
	}
	return out
}

func propValue(ev *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ev.GetProperty(p); prop != nil {
		return strings.TrimSpace(prop.Value)
	}
	return ""
}
