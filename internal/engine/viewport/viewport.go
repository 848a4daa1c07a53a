// Package viewport computes the data-space rectangle that a sample
// sequence is mapped onto for display.
package viewport

import (
	"fmt"
	"time"

	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/logging"
)

const (
	// FallbackWindow is the time span of the viewport used for empty input.
	FallbackWindow = 60 * time.Second

	// FallbackYMin and FallbackYMax bound values of the fallback viewport.
	FallbackYMin = 0.0
	FallbackYMax = 100.0

	// EpsilonXMs replaces a zero timestamp range before padding.
	EpsilonXMs = 1000
	// EpsilonY replaces a zero value range before padding.
	EpsilonY = 1.0
)

// Viewport is a data-space rectangle. XMax > XMin and YMax > YMin always
// hold for viewports produced by a Calculator.
type Viewport struct {
	XMin int64
	XMax int64
	YMin float64
	YMax float64
}

// Width returns the time span in milliseconds.
func (v Viewport) Width() int64 {
	return v.XMax - v.XMin
}

// Height returns the value span.
func (v Viewport) Height() float64 {
	return v.YMax - v.YMin
}

// Contains returns true if the sample lies inside the viewport.
func (v Viewport) Contains(s *types.Sample) bool {
	return s.TimestampMs >= v.XMin && s.TimestampMs <= v.XMax &&
		s.Value >= v.YMin && s.Value <= v.YMax
}

func (v Viewport) String() string {
	return fmt.Sprintf("[%d..%d] x [%g..%g]", v.XMin, v.XMax, v.YMin, v.YMax)
}

// Calculator computes viewports. Its clock only positions the fallback
// viewport; nil means time.Now.
type Calculator struct {
	Now func() time.Time
}

// Compute is Calculator{}.Compute.
func Compute(samples []types.Sample, padding float64) Viewport {
	return Calculator{}.Compute(samples, padding)
}

// Fallback returns the canonical viewport for empty input: the last
// FallbackWindow ending now, values [FallbackYMin, FallbackYMax].
func (c Calculator) Fallback() Viewport {
	now := c.now().UnixMilli()
	return Viewport{
		XMin: now - FallbackWindow.Milliseconds(),
		XMax: now,
		YMin: FallbackYMin,
		YMax: FallbackYMax,
	}
}

// Compute returns the bounding viewport of samples expanded by
// padding × range on each side. YMin never drops below zero. Empty input
// yields Fallback, and a zero range on either axis is widened to a fixed
// epsilon around the single value before padding.
func (c Calculator) Compute(samples []types.Sample, padding float64) Viewport {
	if len(samples) == 0 {
		logging.Debug("viewport fallback", "reason", "empty input")
		return c.Fallback()
	}

	xMin, xMax := samples[0].TimestampMs, samples[0].TimestampMs
	yMin, yMax := samples[0].Value, samples[0].Value
	for i := 1; i < len(samples); i++ {
		s := &samples[i]
		xMin = min(xMin, s.TimestampMs)
		xMax = max(xMax, s.TimestampMs)
		yMin = min(yMin, s.Value)
		yMax = max(yMax, s.Value)
	}

	if xMax == xMin {
		logging.Debug("viewport epsilon", "axis", "x", "value", xMin)
		xMin -= EpsilonXMs / 2
		xMax = xMin + EpsilonXMs
	}
	if yMax == yMin {
		logging.Debug("viewport epsilon", "axis", "y", "value", yMin)
		yMin -= EpsilonY / 2
		yMax = yMin + EpsilonY
	}

	xPad := int64(padding * float64(xMax-xMin))
	yPad := padding * (yMax - yMin)

	vp := Viewport{
		XMin: xMin - xPad,
		XMax: xMax + xPad,
		YMin: max(0, yMin-yPad),
		YMax: yMax + yPad,
	}

	// All-negative values sit below the zero floor.
	if vp.YMax <= vp.YMin {
		vp.YMax = vp.YMin + EpsilonY
	}

	return vp
}

func (c Calculator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
