package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/xtxerr/streamscope/internal/engine/categories"
	"github.com/xtxerr/streamscope/internal/engine/render"
	"github.com/xtxerr/streamscope/internal/engine/types"
)

// Braille cells are 2 dots wide and 4 dots high.
const (
	dotsPerColumn = 2
	dotsPerRow    = 4
)

func computePaneWidths(totalWidth int, splitPercent int) (left, right int) {
	if totalWidth <= 1 {
		return 1, 1
	}
	left = totalWidth * splitPercent / 100
	left = max(1, min(left, totalWidth-1))
	right = totalWidth - left

	// Keep panes readable when the terminal is wide enough.
	const minPane = 18
	if totalWidth >= minPane*2 {
		if left < minPane {
			left = minPane
			right = totalWidth - left
		}
		if right < minPane {
			right = minPane
			left = totalWidth - right
		}
	}
	return max(1, left), max(1, right)
}

// frameSeries converts the mapped points of f into plot values. Display Y
// grows downwards, plot values grow upwards.
func frameSeries(f *render.Frame, dst []float64) []float64 {
	dst = dst[:0]
	if f == nil {
		return dst
	}
	bottom := f.Rect.Y + f.Rect.Height
	for _, p := range f.Points {
		dst = append(dst, bottom-p.Y)
	}
	return dst
}

// toggleCategory adds category to the filter list, or removes it if
// present.
func toggleCategory(current []string, category string) []string {
	if i := slices.Index(current, category); i >= 0 {
		return slices.Delete(slices.Clone(current), i, i+1)
	}
	return append(slices.Clone(current), category)
}

// visibleRows returns the samples of the rows the table shows. The window
// includes overscan rows that are materialized but not drawn.
func visibleRows(samples []types.Sample, visibleStart, firstRow, rows int) []types.Sample {
	from := firstRow - visibleStart
	if from < 0 || from >= len(samples) {
		return nil
	}
	return samples[from:min(len(samples), from+rows)]
}

func formatRow(index int, s types.Sample) string {
	ts := s.TimestampTime().UTC().Format("15:04:05.000")
	return fmt.Sprintf("%8d  %s  %-12s %12.3f", index, ts, truncate(s.Category, 12), s.Value)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

// axisLabels spreads the viewport time range across width.
func axisLabels(f *render.Frame, width int, middle string) string {
	if f == nil || width <= 0 {
		return ""
	}
	left := time.UnixMilli(f.Viewport.XMin).UTC().Format("15:04:05")
	right := time.UnixMilli(f.Viewport.XMax).UTC().Format("15:04:05")

	gap := width - len(left) - len(right) - len(middle)
	if gap < 2 {
		return middle
	}
	leftGap := gap / 2
	return left + strings.Repeat(" ", leftGap) + middle + strings.Repeat(" ", gap-leftGap) + right
}

type listItem struct {
	rank int
	categories.Count
	filtered bool
}

func (i listItem) Title() string {
	mark := " "
	if i.filtered {
		mark = "●"
	}
	return fmt.Sprintf("#%-3d %s %s", i.rank, mark, i.Category)
}

func (i listItem) Description() string { return fmt.Sprintf("     %d", i.Count.Count) }
func (i listItem) FilterValue() string { return i.Category }
