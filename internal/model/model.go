package model

// DayType classifies a calendar special day.
type DayType string

const (
	DayTypeHoliday DayType = "holiday"
	DayTypeSpecial DayType = "special"
)

// CalendarDay is a single holiday or special day of a Calendar.
//
// Date is an ISO date string (YYYY-MM-DD). When Recurring is set, only its
// month and day-of-month matter: the day repeats every year of a lookup
// range and the original year is a template, not a lower bound.
type CalendarDay struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Date        string  `json:"date" yaml:"date"`
	Type        DayType `json:"type" yaml:"type"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Recurring   bool    `json:"recurring" yaml:"recurring"`
}

// Calendar groups special days, typically one per country or product.
type Calendar struct {
	ID   string        `json:"id" yaml:"id"`
	Name string        `json:"name" yaml:"name"`
	Days []CalendarDay `json:"days" yaml:"days"`
}

// PlanPhase is a date range of a release plan, drawn as a bar on the
// timeline. StartDate and EndDate are ISO dates; the range is inclusive.
type PlanPhase struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	StartDate string `json:"startDate" yaml:"start_date"`
	EndDate   string `json:"endDate" yaml:"end_date"`
	Color     string `json:"color" yaml:"color"`
}

// PlanReference is a milestone pinned to a single day.
type PlanReference struct {
	Date           string `json:"date" yaml:"date"`
	Title          string `json:"title,omitempty" yaml:"title,omitempty"`
	Description    string `json:"description,omitempty" yaml:"description,omitempty"`
	MilestoneColor string `json:"milestoneColor,omitempty" yaml:"milestone_color,omitempty"`
}

// Segment is a run of consecutive days sharing a month or a week.
type Segment struct {
	StartIndex int    `json:"startIndex"`
	Length     int    `json:"length"`
	Label      string `json:"label"`
}

// End returns the index one past the last day of the segment.
func (s Segment) End() int {
	return s.StartIndex + s.Length
}
