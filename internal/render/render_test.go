package render

import (
	"bytes"
	"encoding/xml"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantime/internal/lookup"
	"plantime/internal/model"
	"plantime/internal/timeline"
)

func sampleLayout(t *testing.T) timeline.Layout {
	t.Helper()
	return scaledLayout(t, 20)
}

func scaledLayout(t *testing.T, pxPerDay float64) timeline.Layout {
	t.Helper()
	l := timeline.Build(timeline.Config{
		Start:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		PxPerDay:  pxPerDay,
		WeekStart: time.Monday,
		Today:     time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC),
		Location:  time.UTC,
	}, timeline.Input{
		Phases: []model.PlanPhase{
			{ID: "dev", Name: "Dev & <QA>", StartDate: "2025-03-10", EndDate: "2025-03-15", Color: "#123456"},
		},
		References: []model.PlanReference{{Date: "2025-04-01", Title: "GA"}},
	})

	resp := lookup.Process(l.LookupRequest([]model.Calendar{{
		ID:   "kr",
		Name: "Korea",
		Days: []model.CalendarDay{{ID: "1", Name: "Independence Movement Day", Date: "2019-03-01", Type: model.DayTypeHoliday, Recurring: true}},
	}}))
	l.CalendarDays = resp.CalendarDaysMap
	return l
}

func TestSVGIsWellFormed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, sampleLayout(t), "Spring & Summer", DefaultStyle()))

	dec := xml.NewDecoder(&buf)
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
}

func TestSVGPositions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, sampleLayout(t), "Plan", DefaultStyle()))
	out := buf.String()

	// Bar at 160 + 68*20.
	assert.Contains(t, out, `data-phase="dev" x="1520" y="48" width="120"`)
	assert.Contains(t, out, `fill="#123456"`)
	assert.Contains(t, out, "Dev &amp; &lt;QA&gt;")
	assert.Contains(t, out, `class="calendar-day" data-date="2025-03-01"`)
	assert.Contains(t, out, `class="today" x1="1570"`)
	assert.Contains(t, out, `class="milestone"`)
	assert.Contains(t, out, ">Jan<")
	assert.Contains(t, out, ">W11<")
}

func TestSVGExtremeScaleStaysFinite(t *testing.T) {
	for _, px := range []float64{1e308, math.MaxFloat64, math.Inf(1), math.NaN()} {
		var buf bytes.Buffer
		require.NoError(t, SVG(&buf, scaledLayout(t, px), "Plan", DefaultStyle()))
		out := buf.String()
		assert.NotContains(t, out, "Inf", "px=%v", px)
		assert.NotContains(t, out, "NaN", "px=%v", px)
	}

	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, scaledLayout(t, 1e308), "Plan", DefaultStyle()))
	// Clamped to pixel.MaxPxPerDay: bar at 160 + 68e6, today at 160 + 70e6 + 5e5.
	assert.Contains(t, buf.String(), `data-phase="dev" x="68000160" y="48" width="6000000"`)
	assert.Contains(t, buf.String(), `class="today" x1="70500160"`)
}

func TestSVGEmptyLayout(t *testing.T) {
	inverted := timeline.Config{
		Start: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, timeline.Build(inverted, timeline.Input{}), "", DefaultStyle()))
	assert.True(t, strings.HasSuffix(buf.String(), "</svg>\n"))
	assert.NotContains(t, buf.String(), "NaN")
}

func TestPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Page(&buf, sampleLayout(t), "Plan", DefaultStyle()))
	out := buf.String()

	assert.Contains(t, out, `<body data-ready="true">`)
	assert.Contains(t, out, "<svg ")
	assert.NotContains(t, out, "<?xml")
}

func TestPageEscapesTitle(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Page(&buf, sampleLayout(t), "Q3 <beta>", DefaultStyle()))
	assert.Contains(t, buf.String(), "<title>Q3 &lt;beta&gt;</title>")
}

func TestNum(t *testing.T) {
	assert.Equal(t, "0", num(0))
	assert.Equal(t, "1520", num(1520))
	assert.Equal(t, "10.5", num(10.5))
	assert.Equal(t, "0.33", num(1.0/3))
	assert.Equal(t, "0", num(math.Inf(1)))
	assert.Equal(t, "0", num(math.NaN()))
}
