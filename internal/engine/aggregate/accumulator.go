package aggregate

import (
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/xtxerr/streamscope/internal/engine/types"
)

// Accumulator maintains running statistics for a single time bucket.
// It supports optional percentile calculation using DDSketch.
// An Accumulator is not safe for concurrent use; Aggregate owns each one
// for the duration of a single call.
type Accumulator struct {
	bucketStart int64
	widthMs     int64

	// Running statistics
	count int64
	sum   float64
	min   float64
	max   float64

	categories categoryTally

	// DDSketch for percentiles (nil if disabled)
	sketch *ddsketch.DDSketch
}

// NewAccumulator creates an accumulator for the bucket starting at
// bucketStart. accuracy > 0 enables percentiles with that relative accuracy.
func NewAccumulator(bucketStart, widthMs int64, accuracy float64) *Accumulator {
	acc := &Accumulator{
		bucketStart: bucketStart,
		widthMs:     widthMs,
		min:         math.MaxFloat64,
		max:         -math.MaxFloat64,
	}

	if accuracy > 0 {
		sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
		if err == nil {
			acc.sketch = sketch
		}
	}

	return acc
}

// Add adds a sample to the bucket.
func (a *Accumulator) Add(s *types.Sample) {
	a.count++
	a.sum += s.Value

	if s.Value < a.min {
		a.min = s.Value
	}
	if s.Value > a.max {
		a.max = s.Value
	}

	a.categories.add(s.Category)

	if a.sketch != nil {
		// Values the sketch cannot index (NaN, ±Inf) only skip percentiles.
		_ = a.sketch.Add(s.Value)
	}
}

// Count returns the number of samples added.
func (a *Accumulator) Count() int64 {
	return a.count
}

// Result returns the bucket under the given category policy.
func (a *Accumulator) Result(policy CategoryPolicy) types.Bucket {
	b := types.Bucket{
		BucketStart: a.bucketStart,
		WidthMs:     a.widthMs,
		Count:       a.count,
	}

	if a.count == 0 {
		return b
	}

	b.Mean = a.sum / float64(a.count)
	b.Min = a.min
	b.Max = a.max
	b.Category = a.categories.representative(policy)

	if a.sketch != nil && !a.sketch.IsEmpty() {
		p50, _ := a.sketch.GetValueAtQuantile(0.50)
		p90, _ := a.sketch.GetValueAtQuantile(0.90)
		p95, _ := a.sketch.GetValueAtQuantile(0.95)
		p99, _ := a.sketch.GetValueAtQuantile(0.99)
		b.SetPercentiles(p50, p90, p95, p99)
	}

	return b
}

// categoryTally counts categories in first-encounter order.
type categoryTally struct {
	order  []string
	counts map[string]int64
}

func (t *categoryTally) add(category string) {
	if t.counts == nil {
		t.counts = make(map[string]int64, 4)
	}
	if _, seen := t.counts[category]; !seen {
		t.order = append(t.order, category)
	}
	t.counts[category]++
}

func (t *categoryTally) representative(policy CategoryPolicy) string {
	if len(t.order) == 0 {
		return ""
	}
	if policy != PolicyMajority {
		return t.order[0]
	}

	// Strict comparison keeps the earliest category on ties.
	best := t.order[0]
	for _, c := range t.order[1:] {
		if t.counts[c] > t.counts[best] {
			best = c
		}
	}
	return best
}
