package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"plantime/internal/dates"
	appLog "plantime/internal/log"
	"plantime/internal/model"
)

const prodID = "-//plantime//release timeline//EN"

// Export writes c as an ICS calendar of all-day events. Recurring days are
// emitted with RRULE:FREQ=YEARLY and special days with the SPECIAL category.
// UIDs are "<day id>@<calendar id>", so ParseCalendar with a feed of the same
// ID reads the same days back, IDs included. A day without an ID is exported
// under its date. now stamps DTSTAMP.
func Export(w io.Writer, c model.Calendar, now time.Time) error {
	cal := ical.NewCalendarFor(prodID)
	cal.SetMethod(ical.MethodPublish)
	if c.Name != "" {
		cal.SetName(c.Name)
	}

	for _, d := range c.Days {
		date, err := dates.ParseISODate(d.Date, time.UTC)
		if err != nil {
			appLog.Debug("skipping day with bad date", "calendar", c.ID, "id", d.ID, "date", d.Date)
			continue
		}
		uid := d.ID
		if uid == "" {
			uid = dates.FormatISO(date)
		}
		ev := cal.AddEvent(fmt.Sprintf("%s@%s", uid, c.ID))
		ev.SetDtStampTime(now)
		ev.SetSummary(d.Name)
		if d.Description != "" {
			ev.SetDescription(d.Description)
		}
		ev.SetAllDayStartAt(date)
		ev.SetAllDayEndAt(dates.AddDays(date, 1))
		if d.Recurring {
			ev.AddRrule("FREQ=YEARLY")
		}
		if d.Type == model.DayTypeSpecial {
			ev.AddCategory(CategorySpecial)
		}
	}

	return cal.SerializeTo(w)
}
