// Package pixel maps day indices to horizontal pixel offsets and back.
//
// Malformed scale inputs are normalized, never reported: no function in this
// package returns NaN or Inf.
package pixel

import "math"

// roundingSlack absorbs float error in px/pxPerDay so that
// PixelToDayIndex(DayIndexToPixel(i, p), p) == i for integer i.
const roundingSlack = 1e-9

// MaxPxPerDay caps the scale. Any int day index times MaxPxPerDay stays
// finite, so coordinates never overflow.
const MaxPxPerDay = 1e6

// PxPerDay returns v, or 1 when v is not a finite positive number. Scales
// above MaxPxPerDay are clamped to it.
func PxPerDay(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 1
	}
	return min(v, MaxPxPerDay)
}

// TotalDays returns v truncated to an int, or 0 when v is not a finite
// positive number.
func TotalDays(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	return clampInt(v)
}

// DayIndexToPixel returns index * pxPerDay.
func DayIndexToPixel(index int, pxPerDay float64) float64 {
	return finite(float64(index) * PxPerDay(pxPerDay))
}

// PixelToDayIndex returns floor(px / pxPerDay). Non-finite px maps to 0.
func PixelToDayIndex(px, pxPerDay float64) int {
	if math.IsNaN(px) || math.IsInf(px, 0) {
		return 0
	}
	idx := math.Floor(px/PxPerDay(pxPerDay) + roundingSlack)
	if math.IsNaN(idx) || math.IsInf(idx, 0) {
		return 0
	}
	return clampInt(idx)
}

// clampInt converts a finite v to int, saturating at the int range.
// float64(math.MaxInt) rounds up to 2^63, hence >=.
func clampInt(v float64) int {
	if v >= math.MaxInt {
		return math.MaxInt
	}
	if v <= math.MinInt {
		return math.MinInt
	}
	return int(v)
}

// Width is the pixel width of totalDays days.
func Width(totalDays int, pxPerDay float64) float64 {
	if totalDays < 0 {
		totalDays = 0
	}
	return DayIndexToPixel(totalDays, pxPerDay)
}

// TodayOffset positions the today marker. ok is false when todayIndex is
// outside [0, totalDays): the marker is absent, not placed at 0.
func TodayOffset(todayIndex, totalDays int, pxPerDay float64) (offset float64, ok bool) {
	if todayIndex < 0 || todayIndex >= totalDays {
		return 0, false
	}
	return DayIndexToPixel(todayIndex, pxPerDay), true
}

// Box is a horizontal extent in pixels.
type Box struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// Span returns the box of the inclusive day span [startIdx, endIdx] clipped
// to [0, totalDays). ok is false when nothing of the span is visible or the
// span is inverted.
func Span(startIdx, endIdx, totalDays int, pxPerDay float64) (Box, bool) {
	if endIdx < startIdx || totalDays <= 0 {
		return Box{}, false
	}
	if endIdx < 0 || startIdx >= totalDays {
		return Box{}, false
	}
	startIdx = max(startIdx, 0)
	endIdx = min(endIdx, totalDays-1)
	return Box{
		Left:  DayIndexToPixel(startIdx, pxPerDay),
		Width: DayIndexToPixel(endIdx-startIdx+1, pxPerDay),
	}, true
}

// Window is an inclusive day-index range.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// VisibleWindow returns the day indices visible in a scroll container of
// viewportWidth pixels scrolled to scrollLeft, widened by overscan days on
// both sides and clipped to [0, totalDays). ok is false for an empty range.
func VisibleWindow(scrollLeft, viewportWidth, pxPerDay float64, totalDays, overscan int) (Window, bool) {
	if totalDays <= 0 {
		return Window{}, false
	}
	if math.IsNaN(scrollLeft) || math.IsInf(scrollLeft, 0) || scrollLeft < 0 {
		scrollLeft = 0
	}
	if math.IsNaN(viewportWidth) || math.IsInf(viewportWidth, 0) || viewportWidth < 0 {
		viewportWidth = 0
	}
	overscan = max(overscan, 0)

	first := PixelToDayIndex(scrollLeft, pxPerDay)
	last := PixelToDayIndex(scrollLeft+viewportWidth, pxPerDay)
	w := Window{
		Start: max(first-overscan, 0),
		End:   min(last+overscan, totalDays-1),
	}
	if w.Start > w.End {
		return Window{}, false
	}
	return w, true
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
