// Package aggregate groups samples into fixed-width, left-closed time
// buckets and summarizes each bucket.
package aggregate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
)

// CategoryPolicy selects the representative category of a bucket.
type CategoryPolicy int

const (
	// PolicyFirst picks the first category encountered in input order.
	PolicyFirst CategoryPolicy = iota
	// PolicyMajority picks the most frequent category, ties broken by
	// first encounter.
	PolicyMajority
)

// String returns the config name of the policy.
func (p CategoryPolicy) String() string {
	switch p {
	case PolicyFirst:
		return "first"
	case PolicyMajority:
		return "majority"
	default:
		return "unknown"
	}
}

// ParseCategoryPolicy parses "first" or "majority". Empty means first.
func ParseCategoryPolicy(s string) (CategoryPolicy, error) {
	switch strings.ToLower(s) {
	case "", "first":
		return PolicyFirst, nil
	case "majority":
		return PolicyMajority, nil
	default:
		return PolicyFirst, errors.NewInvalidValue("category_policy", s, "must be first or majority")
	}
}

// Options controls optional aggregation features.
type Options struct {
	Policy CategoryPolicy

	// PercentileAccuracy enables p50/p90/p95/p99 when > 0. It is the
	// relative accuracy of the underlying DDSketch, e.g. 0.01 for 1%.
	PercentileAccuracy float64
}

// BucketStart returns floor(ts / widthMs) * widthMs. Negative timestamps
// round toward negative infinity so every bucket is [start, start+width).
func BucketStart(ts, widthMs int64) int64 {
	q := ts / widthMs
	if ts%widthMs != 0 && (ts < 0) != (widthMs < 0) {
		q--
	}
	return q * widthMs
}

// Aggregate groups samples into buckets of widthMs and returns them sorted
// by BucketStart. Empty input yields an empty result. widthMs <= 0 is a
// configuration error.
func Aggregate(samples []types.Sample, widthMs int64, opts Options) ([]types.Bucket, error) {
	if widthMs <= 0 {
		return nil, fmt.Errorf("bucket width %d must be positive: %w", widthMs, errors.ErrInvalidWidth)
	}

	accs := make(map[int64]*Accumulator)
	for i := range samples {
		start := BucketStart(samples[i].TimestampMs, widthMs)
		acc, ok := accs[start]
		if !ok {
			acc = NewAccumulator(start, widthMs, opts.PercentileAccuracy)
			accs[start] = acc
		}
		acc.Add(&samples[i])
	}

	buckets := make([]types.Bucket, 0, len(accs))
	for _, acc := range accs {
		buckets = append(buckets, acc.Result(opts.Policy))
	}
	slices.SortFunc(buckets, func(a, b types.Bucket) int {
		switch {
		case a.BucketStart < b.BucketStart:
			return -1
		case a.BucketStart > b.BucketStart:
			return 1
		default:
			return 0
		}
	})

	return buckets, nil
}

// AggregatePeriod aggregates with the width of a named period.
func AggregatePeriod(samples []types.Sample, period types.Period, opts Options) ([]types.Bucket, error) {
	return Aggregate(samples, period.WidthMs(), opts)
}
