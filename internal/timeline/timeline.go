// Package timeline composes day sequences, segments, pixel mapping and plan
// overlays into the derived layout of one release plan.
//
// Build is pure: the same Config and Input always produce the same Layout.
// Calendar lookups are left to the caller (see LookupRequest) so they can run
// on the worker pool or inline.
package timeline

import (
	"time"

	"plantime/internal/dates"
	appLog "plantime/internal/log"
	"plantime/internal/lookup"
	"plantime/internal/model"
	"plantime/internal/pixel"
	"plantime/internal/plan"
	"plantime/internal/segment"
)

// Config is the explicit view state of a timeline.
type Config struct {
	// Start and End bound the displayed range, both inclusive.
	Start time.Time
	End   time.Time

	PxPerDay  float64
	WeekStart time.Weekday

	// Today positions the today marker. The zero value hides it.
	Today time.Time

	// Location is the display zone. Nil means time.Local.
	Location *time.Location

	// ScrollLeft and ViewportWidth describe the scroll container. A zero
	// ViewportWidth means the whole range is visible.
	ScrollLeft    float64
	ViewportWidth float64
	// Overscan widens the visible window by this many days on each side.
	Overscan int
}

// Input is the plan data laid out on the timeline.
type Input struct {
	Phases     []model.PlanPhase
	References []model.PlanReference
}

// Marker is the today overlay.
type Marker struct {
	Index  int     `json:"index"`
	Offset float64 `json:"offset"`
}

// PhaseBar is a positioned phase. Clipped is set when the phase extends
// beyond the displayed range and the box was cut to it.
type PhaseBar struct {
	Phase      model.PlanPhase `json:"phase"`
	StartIndex int             `json:"startIndex"`
	EndIndex   int             `json:"endIndex"`
	pixel.Box
	Clipped bool `json:"clipped,omitempty"`
}

// Milestone is a positioned plan reference.
type Milestone struct {
	Reference model.PlanReference `json:"reference"`
	Index     int                 `json:"index"`
	Offset    float64             `json:"offset"`
}

// Rejection records a phase left off the layout.
type Rejection struct {
	PhaseID string `json:"phaseId"`
	Reason  string `json:"reason"`
}

// Layout is everything a renderer needs to draw the timeline.
type Layout struct {
	Start     string  `json:"start"`
	End       string  `json:"end"`
	TotalDays int     `json:"totalDays"`
	PxPerDay  float64 `json:"pxPerDay"`
	Width     float64 `json:"width"`

	Months []model.Segment `json:"months"`
	Weeks  []model.Segment `json:"weeks"`

	Today *Marker `json:"today,omitempty"`
	// Window is the visible day-index window, absent for an empty range.
	Window *pixel.Window `json:"window,omitempty"`

	Phases     []PhaseBar  `json:"phases"`
	Milestones []Milestone `json:"milestones"`
	Rejected   []Rejection `json:"rejected,omitempty"`

	// CalendarDays is filled in by the caller from a lookup response.
	CalendarDays []lookup.Pair `json:"calendarDays,omitempty"`

	days dates.Days
}

// Build computes the layout of in under cfg. The calendar dates of
// cfg.Start and cfg.End are used as written; every date is a valid bound,
// including 0001-01-01. An inverted range produces an
// empty layout rather than an error; invalid phases are reported in
// Layout.Rejected.
func Build(cfg Config, in Input) Layout {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	start := civilMidnight(cfg.Start, loc)
	end := civilMidnight(cfg.End, loc)

	total := pixel.TotalDays(float64(dates.DaysBetween(start, end) + 1))
	px := pixel.PxPerDay(cfg.PxPerDay)
	days := dates.BuildDaysArray(start, total)
	groups := segment.Build(days, segment.Options{WeekStart: cfg.WeekStart})

	l := Layout{
		Start:      dates.FormatISO(start),
		End:        dates.FormatISO(end),
		TotalDays:  total,
		PxPerDay:   px,
		Width:      pixel.Width(total, px),
		Months:     groups.Months,
		Weeks:      groups.Weeks,
		Phases:     []PhaseBar{},
		Milestones: []Milestone{},
		days:       days,
	}
	if total == 0 {
		appLog.Debug("empty timeline range", "start", l.Start, "end", l.End)
		return l
	}

	if !cfg.Today.IsZero() {
		idx := dates.DayIndex(start, dates.Midnight(cfg.Today.In(loc)))
		if off, ok := pixel.TodayOffset(idx, total, px); ok {
			l.Today = &Marker{Index: idx, Offset: off}
		}
	}

	viewport := cfg.ViewportWidth
	if viewport <= 0 {
		viewport = l.Width
	}
	if w, ok := pixel.VisibleWindow(cfg.ScrollLeft, viewport, px, total, cfg.Overscan); ok {
		l.Window = &w
	}

	for _, ph := range in.Phases {
		r, err := plan.ValidatePhase(ph, loc)
		if err != nil {
			l.Rejected = append(l.Rejected, Rejection{PhaseID: ph.ID, Reason: err.Error()})
			continue
		}
		si := dates.DayIndex(start, r.Start)
		ei := dates.DayIndex(start, r.End)
		box, ok := pixel.Span(si, ei, total, px)
		if !ok {
			continue
		}
		l.Phases = append(l.Phases, PhaseBar{
			Phase:      ph,
			StartIndex: si,
			EndIndex:   ei,
			Box:        box,
			Clipped:    si < 0 || ei >= total,
		})
	}

	for _, ref := range in.References {
		d, err := dates.ParseISODate(ref.Date, loc)
		if err != nil {
			appLog.Debug("skipping milestone with bad date", "date", ref.Date, "title", ref.Title)
			continue
		}
		idx := dates.DayIndex(start, d)
		if idx < 0 || idx >= total {
			continue
		}
		l.Milestones = append(l.Milestones, Milestone{
			Reference: ref,
			Index:     idx,
			Offset:    pixel.DayIndexToPixel(idx, px),
		})
	}

	return l
}

// Days returns the day sequence of the layout.
func (l Layout) Days() dates.Days {
	return l.days
}

// LookupRequest is the worker request for the calendar days of the layout's
// range, bounded to the visible window when there is one.
func (l Layout) LookupRequest(calendars []model.Calendar) lookup.Request {
	req := lookup.Request{
		Type:      lookup.TypeProcessCalendars,
		Calendars: calendars,
		StartDate: l.Start,
		EndDate:   l.End,
	}
	if l.Window != nil {
		vs, ve := l.Window.Start, l.Window.End
		req.ViewportStart = &vs
		req.ViewportEnd = &ve
	}
	return req
}

// civilMidnight keeps the calendar date of t as written and places it at
// midnight in loc.
func civilMidnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
