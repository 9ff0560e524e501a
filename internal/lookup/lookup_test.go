package lookup

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantime/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intp(v int) *int { return &v }

func TestRecurringDayExpandsPerYear(t *testing.T) {
	cals := []model.Calendar{{
		ID:   "us",
		Name: "US Holidays",
		Days: []model.CalendarDay{{ID: "xmas", Name: "Christmas", Date: "2024-12-25", Type: model.DayTypeHoliday, Recurring: true}},
	}}

	m := Build(Query{Calendars: cals, Start: date(2025, 1, 1), End: date(2026, 12, 31)})

	require.Equal(t, []string{"2025-12-25", "2026-12-25"}, m.Keys())
	for _, k := range m.Keys() {
		entries := m.Get(k)
		require.Len(t, entries, 1)
		assert.Equal(t, "US Holidays", entries[0].CalendarName)
		assert.Equal(t, "2024-12-25", entries[0].Day.Date)
	}
}

func TestRecurringRespectsPartialYears(t *testing.T) {
	cals := []model.Calendar{{Name: "c", Days: []model.CalendarDay{
		{ID: "a", Date: "2000-01-15", Recurring: true},
		{ID: "b", Date: "2000-11-15", Recurring: true},
	}}}

	m := Build(Query{Calendars: cals, Start: date(2025, 6, 1), End: date(2026, 3, 1)})
	assert.Equal(t, []string{"2026-01-15", "2025-11-15"}, m.Keys())
}

func TestRecurringLeapDay(t *testing.T) {
	cals := []model.Calendar{{Name: "c", Days: []model.CalendarDay{{ID: "leap", Date: "2024-02-29", Recurring: true}}}}

	m := Build(Query{Calendars: cals, Start: date(2025, 1, 1), End: date(2028, 12, 31)})
	assert.Equal(t, []string{"2028-02-29"}, m.Keys())
}

func TestNonRecurringBoundaries(t *testing.T) {
	cals := []model.Calendar{{Name: "c", Days: []model.CalendarDay{
		{ID: "before", Date: "2024-12-31"},
		{ID: "start", Date: "2025-01-01"},
		{ID: "mid", Date: "2025-06-15"},
		{ID: "end", Date: "2025-12-31"},
		{ID: "after", Date: "2026-01-01"},
		{ID: "broken", Date: "not-a-date"},
	}}}

	m := Build(Query{Calendars: cals, Start: date(2025, 1, 1), End: date(2025, 12, 31)})
	assert.Equal(t, []string{"2025-01-01", "2025-06-15", "2025-12-31"}, m.Keys())
}

func TestEntriesAccumulateInOrder(t *testing.T) {
	cals := []model.Calendar{
		{Name: "first", Days: []model.CalendarDay{
			{ID: "f1", Date: "2025-05-01"},
			{ID: "f2", Date: "2020-05-01", Recurring: true},
		}},
		{Name: "second", Days: []model.CalendarDay{{ID: "s1", Date: "2025-05-01"}}},
	}

	m := Build(Query{Calendars: cals, Start: date(2025, 1, 1), End: date(2025, 12, 31)})
	entries := m.Get("2025-05-01")
	require.Len(t, entries, 3)
	assert.Equal(t, "f1", entries[0].Day.ID)
	assert.Equal(t, "f2", entries[1].Day.ID)
	assert.Equal(t, "s1", entries[2].Day.ID)
	assert.Equal(t, "second", entries[2].CalendarName)
}

func TestViewportFilters(t *testing.T) {
	cals := []model.Calendar{{Name: "c", Days: []model.CalendarDay{
		{ID: "a", Date: "2025-01-05"},                  // index 4
		{ID: "b", Date: "2025-01-11"},                  // index 10
		{ID: "c", Date: "1999-01-21", Recurring: true}, // index 20
		{ID: "d", Date: "2025-01-22"},                  // index 21
	}}}

	m := Build(Query{Calendars: cals, Start: date(2025, 1, 1), End: date(2025, 12, 31), Viewport: &Viewport{Start: 10, End: 20}})
	assert.Equal(t, []string{"2025-01-11", "2025-01-21"}, m.Keys())
}

func TestInvertedRangeIsEmpty(t *testing.T) {
	cals := []model.Calendar{{Name: "c", Days: []model.CalendarDay{{ID: "a", Date: "2025-01-05"}}}}
	m := Build(Query{Calendars: cals, Start: date(2025, 2, 1), End: date(2025, 1, 1)})
	assert.Equal(t, 0, m.Len())
}

func TestWireContract(t *testing.T) {
	in := []byte(`{
		"type": "PROCESS_CALENDARS",
		"calendars": [{"id": "de", "name": "Germany", "days": [
			{"id": "1", "name": "Tag der Einheit", "date": "2024-10-03", "type": "holiday", "recurring": true}
		]}],
		"startDate": "2025-01-01T00:00:00.000Z",
		"endDate": "2025-12-31"
	}`)

	var req Request
	require.NoError(t, json.Unmarshal(in, &req))

	out, err := json.Marshal(Process(req))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "CALENDARS_PROCESSED",
		"calendarDaysMap": [
			["2025-10-03", [{"day": {"id": "1", "name": "Tag der Einheit", "date": "2024-10-03", "type": "holiday", "recurring": true}, "calendarName": "Germany"}]]
		]
	}`, string(out))

	var resp Response
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, 1, resp.ToMap().Len())
}

func TestMalformedRequestsAreEmpty(t *testing.T) {
	cases := []Request{
		{Type: "SOMETHING_ELSE", StartDate: "2025-01-01", EndDate: "2025-12-31"},
		{Type: TypeProcessCalendars, StartDate: "", EndDate: "2025-12-31"},
		{Type: TypeProcessCalendars, StartDate: "2025-01-01", EndDate: "garbage"},
	}
	for _, req := range cases {
		resp := Process(req)
		assert.Equal(t, TypeCalendarsProcessed, resp.Type)
		assert.NotNil(t, resp.CalendarDaysMap)
		assert.Empty(t, resp.CalendarDaysMap)
	}

	out, err := json.Marshal(Process(Request{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CALENDARS_PROCESSED","calendarDaysMap":[]}`, string(out))
}

func TestRequestViewportNeedsBothBounds(t *testing.T) {
	req := Request{Type: TypeProcessCalendars, StartDate: "2025-01-01", EndDate: "2025-01-31", ViewportStart: intp(3)}
	q, ok := req.Query()
	require.True(t, ok)
	assert.Nil(t, q.Viewport)

	req.ViewportEnd = intp(9)
	q, ok = req.Query()
	require.True(t, ok)
	assert.Equal(t, &Viewport{Start: 3, End: 9}, q.Viewport)
}

func TestPairRejectsWrongArity(t *testing.T) {
	var p Pair
	assert.Error(t, json.Unmarshal([]byte(`["2025-01-01"]`), &p))
}
