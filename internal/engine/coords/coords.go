// Package coords maps samples between data space and display space.
//
// Display space has its origin at the top-left corner with y growing
// downward, so value-space y is inverted. Both directions are pure affine
// transforms with no guarding: the viewport calculator guarantees
// non-zero viewport extents.
package coords

import (
	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/engine/viewport"
)

// DisplayRect is the pixel-space plotting area inside axis padding.
type DisplayRect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Inset returns r shrunk by the given margins.
func (r DisplayRect) Inset(left, top, right, bottom float64) DisplayRect {
	return DisplayRect{
		X:      r.X + left,
		Y:      r.Y + top,
		Width:  r.Width - left - right,
		Height: r.Height - top - bottom,
	}
}

// Point is a position in display space.
type Point struct {
	X float64
	Y float64
}

// ToDisplay maps a sample to its display position.
func ToDisplay(s types.Sample, r DisplayRect, vp viewport.Viewport) Point {
	nx := float64(s.TimestampMs-vp.XMin) / float64(vp.XMax-vp.XMin)
	ny := (s.Value - vp.YMin) / (vp.YMax - vp.YMin)
	return Point{
		X: r.X + nx*r.Width,
		Y: r.Y + r.Height - ny*r.Height,
	}
}

// ToData is the inverse of ToDisplay. It returns the timestamp as a float
// so that the round trip is exact up to floating-point error.
func ToData(p Point, r DisplayRect, vp viewport.Viewport) (timestampMs, value float64) {
	nx := (p.X - r.X) / r.Width
	ny := (r.Y + r.Height - p.Y) / r.Height
	timestampMs = float64(vp.XMin) + nx*float64(vp.XMax-vp.XMin)
	value = vp.YMin + ny*(vp.YMax-vp.YMin)
	return timestampMs, value
}

// Mapper binds a rect and viewport for mapping whole sequences.
type Mapper struct {
	Rect     DisplayRect
	Viewport viewport.Viewport
}

// Map appends the display position of every sample to dst and returns it.
func (m Mapper) Map(dst []Point, samples []types.Sample) []Point {
	for i := range samples {
		dst = append(dst, ToDisplay(samples[i], m.Rect, m.Viewport))
	}
	return dst
}

// Unmap returns the data coordinates under p.
func (m Mapper) Unmap(p Point) (timestampMs, value float64) {
	return ToData(p, m.Rect, m.Viewport)
}
