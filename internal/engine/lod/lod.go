// Package lod reduces point density with a strict positional stride so that
// the same input always decimates to the same output.
package lod

import (
	"fmt"
	"strings"

	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
)

// Stride returns max(1, floor(n / targetDensity)). targetDensity <= 0
// yields a stride of 1.
func Stride(n, targetDensity int) int {
	if targetDensity <= 0 {
		return 1
	}
	return max(1, n/targetDensity)
}

// Decimate returns every s-th sample starting at index 0, where s is
// Stride(len(samples), targetDensity). Order is preserved and non-empty
// input never decimates to nothing. The result is a new slice unless no
// reduction is needed, in which case samples is returned as is.
func Decimate(samples []types.Sample, targetDensity int) []types.Sample {
	s := Stride(len(samples), targetDensity)
	if s == 1 {
		return samples
	}

	out := make([]types.Sample, 0, (len(samples)+s-1)/s)
	for i := 0; i < len(samples); i += s {
		out = append(out, samples[i])
	}
	return out
}

// Mode is a presentation mode with its own density threshold.
type Mode string

const (
	ModeLine    Mode = "line"
	ModeScatter Mode = "scatter"
	ModeBar     Mode = "bar"
)

// Modes lists the known presentation modes.
var Modes = []Mode{ModeLine, ModeScatter, ModeBar}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(s))
	switch m {
	case ModeLine, ModeScatter, ModeBar:
		return m, nil
	}
	return "", fmt.Errorf("mode %q: %w", s, errors.ErrModeNotFound)
}

// Policy holds the target density of each presentation mode.
type Policy struct {
	densities map[Mode]int
}

// NewPolicy validates densities and returns a Policy. Every density must
// be positive; a missing mode is rejected only when it is looked up.
func NewPolicy(densities map[Mode]int) (*Policy, error) {
	verrs := errors.NewValidationErrors()
	p := &Policy{densities: make(map[Mode]int, len(densities))}

	for mode, d := range densities {
		if d <= 0 {
			verrs.Add(fmt.Errorf("lod %s density %d must be positive: %w", mode, d, errors.ErrInvalidDensity))
			continue
		}
		p.densities[mode] = d
	}

	if err := verrs.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// Density returns the target density of mode.
func (p *Policy) Density(mode Mode) (int, error) {
	d, ok := p.densities[mode]
	if !ok {
		return 0, fmt.Errorf("mode %q: %w", mode, errors.ErrModeNotFound)
	}
	return d, nil
}

// ScaledDensity returns the density of mode multiplied by scale, never
// below 1. The adaptive detail controller supplies scale.
func (p *Policy) ScaledDensity(mode Mode, scale float64) (int, error) {
	d, err := p.Density(mode)
	if err != nil {
		return 0, err
	}
	if scale <= 0 || scale > 1 {
		return d, nil
	}
	return max(1, int(float64(d)*scale)), nil
}

// Decimate decimates samples at the scaled density of mode.
func (p *Policy) Decimate(samples []types.Sample, mode Mode, scale float64) ([]types.Sample, error) {
	d, err := p.ScaledDensity(mode, scale)
	if err != nil {
		return nil, err
	}
	return Decimate(samples, d), nil
}
