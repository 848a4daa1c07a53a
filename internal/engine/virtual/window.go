// Package virtual computes which rows of a long list need to be
// materialized for a given scroll position.
package virtual

import (
	"math"
)

// Window is the visible index range of a virtualized list plus the layout
// offsets needed to position it. VisibleEnd is inclusive; an empty list has
// VisibleStart=0 and VisibleEnd=-1.
type Window struct {
	VisibleStart  int
	VisibleEnd    int
	TotalExtent   float64
	LeadingOffset float64
}

// Len returns the number of rows in the window.
func (w Window) Len() int {
	return w.VisibleEnd - w.VisibleStart + 1
}

// IsEmpty returns true if no rows are visible.
func (w Window) IsEmpty() bool {
	return w.VisibleEnd < w.VisibleStart
}

// Contains returns true if row i is materialized.
func (w Window) Contains(i int) bool {
	return i >= w.VisibleStart && i <= w.VisibleEnd
}

// MaxScroll returns the largest valid scroll offset.
func MaxScroll(length int, itemExtent, containerExtent float64) float64 {
	return math.Max(0, float64(length)*itemExtent-containerExtent)
}

// ClampScroll clamps offset to [0, MaxScroll]. NaN clamps to 0.
func ClampScroll(offset float64, length int, itemExtent, containerExtent float64) float64 {
	if math.IsNaN(offset) {
		return 0
	}
	return math.Min(math.Max(0, offset), MaxScroll(length, itemExtent, containerExtent))
}

// Compute returns the window for a list of length rows scrolled to
// scrollOffset. overscan extra rows are included on each side. Offsets
// beyond either end are clamped first.
func Compute(length int, scrollOffset, itemExtent, containerExtent float64, overscan int) Window {
	if length <= 0 || !(itemExtent > 0) {
		return Window{VisibleStart: 0, VisibleEnd: -1}
	}
	overscan = max(0, overscan)
	scroll := ClampScroll(scrollOffset, length, itemExtent, containerExtent)

	first := int(math.Floor(scroll / itemExtent))
	last := int(math.Ceil((scroll + containerExtent) / itemExtent))

	start := max(0, first-overscan)
	end := min(length-1, last+overscan)

	return Window{
		VisibleStart:  start,
		VisibleEnd:    end,
		TotalExtent:   float64(length) * itemExtent,
		LeadingOffset: float64(start) * itemExtent,
	}
}
