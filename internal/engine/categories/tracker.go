// Package categories tracks the most frequent sample categories over a
// sliding window of ingestion ticks.
package categories

import (
	"cmp"
	"slices"
	"sync"

	"github.com/keilerkonzept/topk/sliding"

	"github.com/xtxerr/streamscope/internal/engine/types"
)

const (
	DefaultK           = 10
	DefaultWindowTicks = 600 // one minute of 100ms ingestion ticks
	defaultWidth       = 1024
	defaultDepth       = 4
)

// Count is a category and its approximate count in the window.
type Count struct {
	Category string `json:"category"`
	Count    uint32 `json:"count"`
}

// Tracker is a sliding top-k sketch of categories. It is safe for
// concurrent use.
type Tracker struct {
	mu     sync.Mutex
	sketch *sliding.Sketch
	k      int
	window int
}

// New creates a tracker of the k heaviest categories over window ticks.
// Non-positive values use the defaults.
func New(k, window int) *Tracker {
	if k <= 0 {
		k = DefaultK
	}
	if window <= 0 {
		window = DefaultWindowTicks
	}
	return &Tracker{
		sketch: newSketch(k, window),
		k:      k,
		window: window,
	}
}

func newSketch(k, window int) *sliding.Sketch {
	return sliding.New(k, window,
		sliding.WithWidth(defaultWidth),
		sliding.WithDepth(defaultDepth),
	)
}

// Observe counts the categories of samples in the current tick.
func (t *Tracker) Observe(samples []types.Sample) {
	if len(samples) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range samples {
		t.sketch.Incr(samples[i].Category)
	}
}

// Tick advances the window by one ingestion tick.
func (t *Tracker) Tick() {
	t.mu.Lock()
	t.sketch.Ticks(1)
	t.mu.Unlock()
}

// Top returns up to k categories, heaviest first.
func (t *Tracker) Top() []Count {
	t.mu.Lock()
	items := t.sketch.SortedSlice()
	out := make([]Count, 0, len(items))
	for _, it := range items {
		// Heap counts lag behind expired ticks; read the window count.
		if c := t.sketch.Count(it.Item); c > 0 {
			out = append(out, Count{Category: it.Item, Count: c})
		}
	}
	t.mu.Unlock()

	slices.SortStableFunc(out, func(a, b Count) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return out
}

// Count returns the approximate count of category in the window.
func (t *Tracker) Count(category string) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sketch.Count(category)
}

// Reset forgets all counts.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.sketch = newSketch(t.k, t.window)
	t.mu.Unlock()
}

// K returns the number of categories tracked.
func (t *Tracker) K() int {
	return t.k
}
