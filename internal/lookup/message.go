package lookup

import (
	"encoding/json"
	"fmt"
	"time"

	"plantime/internal/dates"
	"plantime/internal/model"
)

// Message types of the lookup wire contract.
const (
	TypeProcessCalendars   = "PROCESS_CALENDARS"
	TypeCalendarsProcessed = "CALENDARS_PROCESSED"
)

// Request is the PROCESS_CALENDARS message.
type Request struct {
	Type          string           `json:"type"`
	Calendars     []model.Calendar `json:"calendars"`
	StartDate     string           `json:"startDate"`
	EndDate       string           `json:"endDate"`
	ViewportStart *int             `json:"viewportStart,omitempty"`
	ViewportEnd   *int             `json:"viewportEnd,omitempty"`
}

// Response is the CALENDARS_PROCESSED message.
type Response struct {
	Type            string `json:"type"`
	CalendarDaysMap []Pair `json:"calendarDaysMap"`
}

// Pair is one map entry. It is encoded as a two-element JSON array
// ["YYYY-MM-DD", [entries...]].
type Pair struct {
	Date    string
	Entries []Entry
}

func (p Pair) MarshalJSON() ([]byte, error) {
	entries := p.Entries
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal([]any{p.Date, entries})
}

func (p *Pair) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("lookup: pair has %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Date); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Entries)
}

// Query converts a request into a lookup query. ok is false when the
// request cannot describe a range; callers answer such requests with an
// empty mapping. The viewport applies only when both bounds are present.
func (r Request) Query() (q Query, ok bool) {
	start, err := dates.ParseISODate(r.StartDate, time.UTC)
	if err != nil {
		return Query{}, false
	}
	end, err := dates.ParseISODate(r.EndDate, time.UTC)
	if err != nil {
		return Query{}, false
	}
	q = Query{Calendars: r.Calendars, Start: start, End: end}
	if r.ViewportStart != nil && r.ViewportEnd != nil {
		q.Viewport = &Viewport{Start: *r.ViewportStart, End: *r.ViewportEnd}
	}
	return q, true
}

// Process answers a request. Malformed requests produce an empty mapping.
func Process(r Request) Response {
	if r.Type != TypeProcessCalendars {
		return NewResponse(nil)
	}
	q, ok := r.Query()
	if !ok {
		return NewResponse(nil)
	}
	return NewResponse(Build(q))
}

// NewResponse wraps m as a CALENDARS_PROCESSED message.
func NewResponse(m *Map) Response {
	return Response{Type: TypeCalendarsProcessed, CalendarDaysMap: m.Pairs()}
}

// ToMap rebuilds the lookup table from a response.
func (r Response) ToMap() *Map {
	m := newMap()
	for _, p := range r.CalendarDaysMap {
		for _, e := range p.Entries {
			m.add(p.Date, e)
		}
	}
	return m
}
