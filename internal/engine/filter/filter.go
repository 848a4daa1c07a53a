// Package filter implements the predicate engine that narrows a sample
// sequence by category, value bounds and time range.
package filter

import (
	"slices"

	"github.com/xtxerr/streamscope/internal/engine/types"
)

// TimeRange bounds timestamps inclusively. A nil bound is unbounded.
type TimeRange struct {
	Start *int64
	End   *int64
}

// Spec defines criteria for filtering samples. All present fields must
// match (AND). The zero Spec matches every sample.
type Spec struct {
	// Categories is the set of accepted categories. Empty means any.
	Categories map[string]struct{}

	// MinValue and MaxValue bound Value inclusively; nil is unbounded.
	MinValue *float64
	MaxValue *float64

	TimeRange *TimeRange
}

// ForCategories returns a Spec accepting only the given categories.
// Empty strings are ignored, so ForCategories("") matches everything.
func ForCategories(categories ...string) Spec {
	var s Spec
	for _, c := range categories {
		if c == "" {
			continue
		}
		if s.Categories == nil {
			s.Categories = make(map[string]struct{}, len(categories))
		}
		s.Categories[c] = struct{}{}
	}
	return s
}

// WithValueRange returns a copy of s with the given value bounds.
func (s Spec) WithValueRange(min, max *float64) Spec {
	s.MinValue = min
	s.MaxValue = max
	return s
}

// WithTimeRange returns a copy of s with the given time bounds.
func (s Spec) WithTimeRange(start, end *int64) Spec {
	s.TimeRange = &TimeRange{Start: start, End: end}
	return s
}

// IsEmpty returns true if the spec places no constraint.
func (s *Spec) IsEmpty() bool {
	return len(s.Categories) == 0 &&
		s.MinValue == nil &&
		s.MaxValue == nil &&
		(s.TimeRange == nil || (s.TimeRange.Start == nil && s.TimeRange.End == nil))
}

// CategoryList returns the accepted categories, sorted.
func (s *Spec) CategoryList() []string {
	out := make([]string, 0, len(s.Categories))
	for c := range s.Categories {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Matches returns true if the sample matches the spec.
func (s *Spec) Matches(sample *types.Sample) bool {
	if len(s.Categories) > 0 {
		if _, ok := s.Categories[sample.Category]; !ok {
			return false
		}
	}
	if s.MinValue != nil && sample.Value < *s.MinValue {
		return false
	}
	if s.MaxValue != nil && sample.Value > *s.MaxValue {
		return false
	}
	if tr := s.TimeRange; tr != nil {
		if tr.Start != nil && sample.TimestampMs < *tr.Start {
			return false
		}
		if tr.End != nil && sample.TimestampMs > *tr.End {
			return false
		}
	}
	return true
}

// Apply returns the samples matching spec, in input order. The input is
// never modified and the result is always a new slice.
func Apply(samples []types.Sample, spec Spec) []types.Sample {
	out := make([]types.Sample, 0, len(samples))
	for i := range samples {
		if spec.Matches(&samples[i]) {
			out = append(out, samples[i])
		}
	}
	return out
}

// Limit returns at most n of the newest samples, keeping order.
// n <= 0 returns the input unchanged.
func Limit(samples []types.Sample, n int) []types.Sample {
	if n <= 0 || len(samples) <= n {
		return samples
	}
	return samples[len(samples)-n:]
}
