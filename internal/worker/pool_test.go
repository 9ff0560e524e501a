package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"plantime/internal/lookup"
	"plantime/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func holidayRequest(start, end string) lookup.Request {
	return lookup.Request{
		Type: lookup.TypeProcessCalendars,
		Calendars: []model.Calendar{{
			ID:   "kr",
			Name: "Korea",
			Days: []model.CalendarDay{
				{ID: "1", Name: "Hangul Day", Date: "2020-10-09", Type: model.DayTypeHoliday, Recurring: true},
				{ID: "2", Name: "Release freeze", Date: "2025-10-10", Type: model.DayTypeSpecial},
			},
		}},
		StartDate: start,
		EndDate:   end,
	}
}

func TestPoolProcess(t *testing.T) {
	p := NewPool(Options{Workers: 2})
	defer func() { require.NoError(t, p.Close()) }()

	resp, err := p.Process(context.Background(), holidayRequest("2025-01-01", "2026-12-31"))
	require.NoError(t, err)
	assert.Equal(t, lookup.TypeCalendarsProcessed, resp.Type)

	m := resp.ToMap()
	assert.Equal(t, []string{"2025-10-09", "2026-10-09", "2025-10-10"}, m.Keys())
	assert.Equal(t, 0, p.Pending())
}

func TestPoolConcurrentRequestsAreIsolated(t *testing.T) {
	p := NewPool(Options{Workers: 4})
	defer func() { require.NoError(t, p.Close()) }()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(year int) {
			defer wg.Done()
			start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
			end := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC).Format("2006-01-02")

			resp, err := p.Process(context.Background(), holidayRequest(start, end))
			assert.NoError(t, err)

			keys := resp.ToMap().Keys()
			if year == 2025 {
				assert.Len(t, keys, 2)
			} else {
				assert.Equal(t, []string{time.Date(year, 10, 9, 0, 0, 0, 0, time.UTC).Format("2006-01-02")}, keys)
			}
		}(2000 + i)
	}
	wg.Wait()
}

func TestHandleMessage(t *testing.T) {
	p := NewPool(Options{Workers: 1})
	defer func() { require.NoError(t, p.Close()) }()

	msg, err := json.Marshal(holidayRequest("2025-10-01", "2025-10-31"))
	require.NoError(t, err)

	out, err := p.HandleMessage(context.Background(), msg)
	require.NoError(t, err)

	var resp lookup.Response
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, lookup.TypeCalendarsProcessed, resp.Type)
	require.Len(t, resp.CalendarDaysMap, 2)
	assert.Equal(t, "2025-10-09", resp.CalendarDaysMap[0].Date)
	assert.Equal(t, "Korea", resp.CalendarDaysMap[0].Entries[0].CalendarName)

	out, err = p.HandleMessage(context.Background(), []byte(`{not json`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CALENDARS_PROCESSED","calendarDaysMap":[]}`, string(out))
}

func TestProcessAfterClose(t *testing.T) {
	p := NewPool(Options{Workers: 1})
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.Process(context.Background(), holidayRequest("2025-01-01", "2025-12-31"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestProcessContextCancelled(t *testing.T) {
	gate := make(chan struct{})
	p := NewPool(Options{Workers: 1, Process: func(r lookup.Request) lookup.Response {
		<-gate
		return lookup.Process(r)
	}})
	defer func() {
		close(gate)
		require.NoError(t, p.Close())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Process(ctx, holidayRequest("2025-01-01", "2025-12-31"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, p.Pending())
}

func TestSessionSupersedes(t *testing.T) {
	started := make(chan string, 2)
	release := make(chan struct{})
	p := NewPool(Options{Workers: 2, Process: func(r lookup.Request) lookup.Response {
		started <- r.StartDate
		<-release
		return lookup.Process(r)
	}})
	defer func() { require.NoError(t, p.Close()) }()

	s := p.NewSession()

	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Do(context.Background(), holidayRequest("2024-01-01", "2024-12-31"))
		firstErr <- err
	}()
	require.Equal(t, "2024-01-01", <-started)

	secondDone := make(chan lookup.Response, 1)
	go func() {
		resp, err := s.Do(context.Background(), holidayRequest("2025-01-01", "2025-12-31"))
		assert.NoError(t, err)
		secondDone <- resp
	}()

	assert.ErrorIs(t, <-firstErr, ErrSuperseded)
	require.Equal(t, "2025-01-01", <-started)
	close(release)

	resp := <-secondDone
	assert.Equal(t, []string{"2025-10-09", "2025-10-10"}, resp.ToMap().Keys())
}
