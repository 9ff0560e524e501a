package ics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantime/internal/model"
)

const holidayFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//holidays//EN
X-WR-CALNAME:Korea Holidays
BEGIN:VEVENT
UID:christmas
DTSTAMP:20240101T000000Z
DTSTART;VALUE=DATE:20241225
DTEND;VALUE=DATE:20241226
RRULE:FREQ=YEARLY
SUMMARY:Christmas
END:VEVENT
BEGIN:VEVENT
UID:chuseok-2025
DTSTAMP:20240101T000000Z
DTSTART;VALUE=DATE:20251005
DTEND;VALUE=DATE:20251008
SUMMARY:Chuseok
DESCRIPTION:Harvest festival
END:VEVENT
BEGIN:VEVENT
UID:freeze
DTSTAMP:20240101T000000Z
DTSTART:20250310T020000Z
SUMMARY:Code freeze
CATEGORIES:RELEASE,SPECIAL
END:VEVENT
BEGIN:VEVENT
UID:demo
DTSTAMP:20240101T000000Z
DTSTART;VALUE=DATE:20250106
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE;VALUE=DATE:20250113
SUMMARY:Sprint demo
CATEGORIES:SPECIAL
END:VEVENT
BEGIN:VEVENT
UID:nameless
DTSTAMP:20240101T000000Z
DTSTART;VALUE=DATE:20250101
END:VEVENT
END:VCALENDAR
`

func parseOpts() ParseOptions {
	seoul, _ := time.LoadLocation("Asia/Seoul")
	return ParseOptions{
		Location:   seoul,
		RangeStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func daysByDate(c model.Calendar) map[string]model.CalendarDay {
	out := make(map[string]model.CalendarDay)
	for _, d := range c.Days {
		out[d.Date] = d
	}
	return out
}

func TestParseCalendar(t *testing.T) {
	cal, err := ParseCalendar(Feed{ID: "kr", Name: "fallback"}, []byte(holidayFeed), parseOpts())
	require.NoError(t, err)

	assert.Equal(t, "kr", cal.ID)
	assert.Equal(t, "Korea Holidays", cal.Name)

	byDate := daysByDate(cal)

	xmas := byDate["2024-12-25"]
	assert.True(t, xmas.Recurring)
	assert.Equal(t, model.DayTypeHoliday, xmas.Type)
	assert.Equal(t, "christmas", xmas.ID)

	for _, d := range []string{"2025-10-05", "2025-10-06", "2025-10-07"} {
		assert.Equal(t, "Chuseok", byDate[d].Name, d)
		assert.Equal(t, "Harvest festival", byDate[d].Description, d)
	}
	assert.NotContains(t, byDate, "2025-10-08")

	// 02:00 UTC is 11:00 in Seoul, same date.
	freeze := byDate["2025-03-10"]
	assert.Equal(t, model.DayTypeSpecial, freeze.Type)
	assert.False(t, freeze.Recurring)

	for _, d := range []string{"2025-01-06", "2025-01-20", "2025-01-27"} {
		assert.Equal(t, "Sprint demo", byDate[d].Name, d)
		assert.Equal(t, model.DayTypeSpecial, byDate[d].Type, d)
	}
	assert.NotContains(t, byDate, "2025-01-13")
	assert.NotContains(t, byDate, "2025-01-01")
}

func TestParseCalendarTimedEventUsesDisplayDate(t *testing.T) {
	body := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:late
DTSTAMP:20240101T000000Z
DTSTART:20250309T200000Z
SUMMARY:Go-live
END:VEVENT
END:VCALENDAR
`
	cal, err := ParseCalendar(Feed{ID: "ops", Name: "Ops"}, []byte(body), parseOpts())
	require.NoError(t, err)
	require.Len(t, cal.Days, 1)
	assert.Equal(t, "2025-03-10", cal.Days[0].Date)
	assert.Equal(t, "Ops", cal.Name)
}

func TestParseCalendarRejectsEmpty(t *testing.T) {
	_, err := ParseCalendar(Feed{ID: "x"}, nil, parseOpts())
	assert.Error(t, err)
}

func TestExportRoundTrip(t *testing.T) {
	in := model.Calendar{
		ID:   "kr",
		Name: "Korea",
		Days: []model.CalendarDay{
			{ID: "1", Name: "Hangul Day", Date: "2020-10-09", Type: model.DayTypeHoliday, Recurring: true},
			{ID: "2", Name: "Release freeze", Date: "2025-03-10", Type: model.DayTypeSpecial, Description: "No merges"},
			{ID: "3", Name: "Broken", Date: "not-a-date", Type: model.DayTypeHoliday},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, in, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Contains(t, buf.String(), "RRULE:FREQ=YEARLY")
	assert.Contains(t, buf.String(), "X-WR-CALNAME:Korea")

	out, err := ParseCalendar(Feed{ID: "kr"}, buf.Bytes(), parseOpts())
	require.NoError(t, err)
	assert.Equal(t, "Korea", out.Name)
	require.Len(t, out.Days, 2)

	byDate := daysByDate(out)
	assert.Equal(t, "Hangul Day", byDate["2020-10-09"].Name)
	assert.True(t, byDate["2020-10-09"].Recurring)
	assert.Equal(t, model.DayTypeSpecial, byDate["2025-03-10"].Type)
	assert.Equal(t, "No merges", byDate["2025-03-10"].Description)
	assert.False(t, byDate["2025-03-10"].Recurring)
	assert.Equal(t, "1", byDate["2020-10-09"].ID)
	assert.Equal(t, "2", byDate["2025-03-10"].ID)

	// Under another feed ID the exported UIDs are foreign and kept whole.
	other, err := ParseCalendar(Feed{ID: "jp"}, buf.Bytes(), parseOpts())
	require.NoError(t, err)
	assert.Equal(t, "1@kr", daysByDate(other)["2020-10-09"].ID)
}

func TestFetcherUsesETagCache(t *testing.T) {
	var hits, conditional atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(holidayFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	feed := Feed{ID: "kr", URL: srv.URL + "/kr.ics?token=secret"}

	first, err := f.Fetch(context.Background(), feed)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.Fetch(context.Background(), feed)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), conditional.Load())
}

func TestFetcherFallsBackToCache(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(holidayFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	feed := Feed{ID: "kr", URL: srv.URL}

	_, err := f.Fetch(context.Background(), feed)
	require.NoError(t, err)

	fail.Store(true)
	res, err := f.Fetch(context.Background(), feed)
	require.NoError(t, err)
	assert.True(t, res.FromCache)

	_, err = NewFetcher(t.TempDir(), srv.Client()).Fetch(context.Background(), feed)
	assert.Error(t, err)
}

func TestFetchAllKeepsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.ics") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(holidayFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	results, errs := f.FetchAll(context.Background(), []Feed{
		{ID: "a", URL: srv.URL + "/a.ics"},
		{ID: "missing", URL: srv.URL + "/missing.ics"},
		{ID: "b", URL: srv.URL + "/b.ics"},
		{ID: "empty"},
	})
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Feed.ID)
	assert.Equal(t, "b", results[1].Feed.ID)
	assert.Len(t, errs, 2)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.com/...(redacted)", redactURL("https://calendar.example.com/private/abc.ics?token=x"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
