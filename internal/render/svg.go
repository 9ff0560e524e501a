// Package render draws a timeline Layout as a static SVG Gantt chart.
package render

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"
	"time"

	"plantime/internal/dates"
	"plantime/internal/lookup"
	"plantime/internal/model"
	"plantime/internal/pixel"
	"plantime/internal/timeline"
)

// Style controls colors and row geometry.
type Style struct {
	FontFamily string
	FontSize   int

	Background string
	Text       string
	Grid       string
	Weekend    string
	Holiday    string
	Special    string
	Today      string
	PhaseColor string
	Milestone  string

	// LabelWidth is the left gutter holding phase names.
	LabelWidth int
	MonthRow   int
	WeekRow    int
	PhaseRow   int
}

// DefaultStyle is a light theme.
func DefaultStyle() Style {
	return Style{
		FontFamily: "Arial, sans-serif",
		FontSize:   12,
		Background: "#ffffff",
		Text:       "#222222",
		Grid:       "#dddddd",
		Weekend:    "#f4f4f4",
		Holiday:    "#fde2e2",
		Special:    "#e2ecfd",
		Today:      "#e53935",
		PhaseColor: "#4f8ef7",
		Milestone:  "#8e24aa",
		LabelWidth: 160,
		MonthRow:   24,
		WeekRow:    20,
		PhaseRow:   28,
	}
}

// SVG writes the layout as a standalone SVG document. Coordinates are the
// layout's own pixel offsets shifted right by the label gutter, so a bar at
// Left=1360 is drawn at x=LabelWidth+1360.
func SVG(w io.Writer, l timeline.Layout, title string, s Style) error {
	var b strings.Builder

	gutter := float64(s.LabelWidth)
	px := pixel.PxPerDay(l.PxPerDay)
	headerH := s.MonthRow + s.WeekRow
	bodyTop := headerH
	rows := max(len(l.Phases), 1)
	height := headerH + rows*s.PhaseRow
	width := gutter + pixel.Width(l.TotalDays, px)

	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<svg width="%s" height="%d" viewBox="0 0 %s %d" xmlns="http://www.w3.org/2000/svg">
<title>%s</title>
<rect width="100%%" height="100%%" fill="%s"/>
<defs>
<style>
.label { font-family: %s; font-size: %dpx; fill: %s; }
.small { font-family: %s; font-size: %dpx; fill: %s; }
</style>
</defs>
`, num(width), height, num(width), height, esc(title), s.Background,
		s.FontFamily, s.FontSize, s.Text,
		s.FontFamily, s.FontSize-2, s.Text)

	dayBackgrounds(&b, l, s, gutter, bodyTop, height)

	for _, seg := range l.Months {
		x := gutter + pixel.DayIndexToPixel(seg.StartIndex, px)
		fmt.Fprintf(&b, `<line x1="%s" y1="0" x2="%s" y2="%d" stroke="%s"/>`+"\n", num(x), num(x), height, s.Grid)
		fmt.Fprintf(&b, `<text class="label" x="%s" y="%d">%s</text>`+"\n", num(x+4), s.MonthRow-7, esc(seg.Label))
	}
	for _, seg := range l.Weeks {
		x := gutter + pixel.DayIndexToPixel(seg.StartIndex, px)
		fmt.Fprintf(&b, `<line x1="%s" y1="%d" x2="%s" y2="%d" stroke="%s" stroke-dasharray="2,2"/>`+"\n", num(x), s.MonthRow, num(x), height, s.Grid)
		if pixel.DayIndexToPixel(seg.Length, px) >= 24 {
			fmt.Fprintf(&b, `<text class="small" x="%s" y="%d">%s</text>`+"\n", num(x+3), headerH-6, esc(seg.Label))
		}
	}
	fmt.Fprintf(&b, `<line x1="0" y1="%d" x2="%s" y2="%d" stroke="%s"/>`+"\n", headerH, num(width), headerH, s.Text)

	for i, bar := range l.Phases {
		y := bodyTop + i*s.PhaseRow
		color := bar.Phase.Color
		if color == "" {
			color = s.PhaseColor
		}
		name := bar.Phase.Name
		if name == "" {
			name = bar.Phase.ID
		}
		fmt.Fprintf(&b, `<text class="label" x="6" y="%d">%s</text>`+"\n", y+s.PhaseRow/2+4, esc(name))
		fmt.Fprintf(&b, `<rect class="phase" data-phase="%s" x="%s" y="%d" width="%s" height="%d" rx="3" fill="%s"><title>%s %s..%s</title></rect>`+"\n",
			esc(bar.Phase.ID), num(gutter+bar.Left), y+4, num(bar.Width), s.PhaseRow-8, esc(color),
			esc(name), esc(bar.Phase.StartDate), esc(bar.Phase.EndDate))
	}

	for _, m := range l.Milestones {
		x := gutter + pixel.DayIndexToPixel(m.Index, px) + px/2
		color := m.Reference.MilestoneColor
		if color == "" {
			color = s.Milestone
		}
		r := 6.0
		fmt.Fprintf(&b, `<line x1="%s" y1="%d" x2="%s" y2="%d" stroke="%s" stroke-dasharray="4,2"/>`+"\n", num(x), headerH, num(x), height, esc(color))
		fmt.Fprintf(&b, `<polygon class="milestone" points="%s,%s %s,%s %s,%s %s,%s" fill="%s"><title>%s</title></polygon>`+"\n",
			num(x), num(float64(headerH)-2*r), num(x+r), num(float64(headerH)-r), num(x), num(float64(headerH)), num(x-r), num(float64(headerH)-r),
			esc(color), esc(milestoneTitle(m.Reference)))
	}

	if l.Today != nil {
		x := gutter + pixel.DayIndexToPixel(l.Today.Index, px) + px/2
		fmt.Fprintf(&b, `<line class="today" x1="%s" y1="0" x2="%s" y2="%d" stroke="%s" stroke-width="2"/>`+"\n", num(x), num(x), height, s.Today)
	}

	b.WriteString("</svg>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// dayBackgrounds shades weekends and calendar days as full-height columns.
func dayBackgrounds(b *strings.Builder, l timeline.Layout, s Style, gutter float64, top, height int) {
	if l.Days().Len() == 0 {
		return
	}
	px := pixel.PxPerDay(l.PxPerDay)
	start := l.Days().Start()
	for i, d := range l.Days().All() {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			fmt.Fprintf(b, `<rect x="%s" y="%d" width="%s" height="%d" fill="%s"/>`+"\n",
				num(gutter+pixel.DayIndexToPixel(i, px)), top, num(px), height-top, s.Weekend)
		}
	}

	m := lookup.Response{CalendarDaysMap: l.CalendarDays}.ToMap()
	for _, key := range m.Keys() {
		d, err := dates.ParseISODate(key, start.Location())
		if err != nil {
			continue
		}
		idx := dates.DayIndex(start, d)
		if idx < 0 || idx >= l.TotalDays {
			continue
		}
		entries := m.Get(key)
		fill := s.Special
		for _, e := range entries {
			if e.Day.Type == model.DayTypeHoliday {
				fill = s.Holiday
				break
			}
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Day.Name+" ("+e.CalendarName+")")
		}
		fmt.Fprintf(b, `<rect class="calendar-day" data-date="%s" x="%s" y="%d" width="%s" height="%d" fill="%s"><title>%s</title></rect>`+"\n",
			key, num(gutter+pixel.DayIndexToPixel(idx, px)), top, num(px), height-top, fill, esc(strings.Join(names, ", ")))
	}
}

func milestoneTitle(r model.PlanReference) string {
	switch {
	case r.Title != "" && r.Description != "":
		return r.Title + ": " + r.Description
	case r.Title != "":
		return r.Title
	default:
		return r.Date
	}
}

// num formats a coordinate without trailing zeros. Non-finite values are
// written as 0.
func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func esc(s string) string {
	return html.EscapeString(s)
}
