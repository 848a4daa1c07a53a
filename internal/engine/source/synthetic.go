package source

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	defaults "github.com/xtxerr/streamscope/config"
	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/engine/types"
)

// Synthetic generates a bounded random walk in [0, 100] per category.
// Timestamps advance by a fixed interval; categories rotate round-robin.
// It is safe for concurrent use.
type Synthetic struct {
	mu sync.Mutex

	rng        *rand.Rand
	categories []string
	intervalMs int64
	now        func() time.Time

	// Generation state. last is the Fetch cursor.
	last    int64
	hasLast bool
	values  map[string]float64
	nextCat int
	seq     int64
}

// NewSynthetic creates a synthetic source.
func NewSynthetic(cfg config.SyntheticConfig, now func() time.Time) *Synthetic {
	if now == nil {
		now = time.Now
	}

	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = uint64(now().UnixNano())
	}

	interval := cfg.IntervalMs
	if interval <= 0 {
		interval = defaults.DefaultSampleIntervalMs
	}

	categories := cfg.Categories
	if len(categories) == 0 {
		categories = []string{"default"}
	}

	return &Synthetic{
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		categories: append([]string(nil), categories...),
		intervalMs: interval,
		now:        now,
		values:     make(map[string]float64, len(categories)),
	}
}

// Name implements Source.
func (g *Synthetic) Name() string { return "synthetic" }

// Close implements Source.
func (g *Synthetic) Close() error { return nil }

// Fetch implements Source. The first sample is stamped with the clock;
// later ones continue from the previous timestamp.
func (g *Synthetic) Fetch(_ context.Context, n int) ([]types.Sample, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := g.now().UnixMilli()
	if g.hasLast {
		start = g.last + g.intervalMs
	}

	out := g.generateLocked(n, start)
	if len(out) > 0 {
		g.last = out[len(out)-1].TimestampMs
		g.hasLast = true
	}
	return out, nil
}

// GenerateBatch returns count samples spaced by the interval, starting at
// start or, when start is nil, at the clock's now. It does not move the
// Fetch cursor.
func (g *Synthetic) GenerateBatch(count int, start *int64) []types.Sample {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now().UnixMilli()
	if start != nil {
		ts = *start
	}
	return g.generateLocked(count, ts)
}

// GenerateNext returns one sample at last + interval.
func (g *Synthetic) GenerateNext(last int64) types.Sample {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.generateLocked(1, last+g.intervalMs)[0]
}

// IntervalMs returns the spacing between generated timestamps.
func (g *Synthetic) IntervalMs() int64 {
	return g.intervalMs
}

func (g *Synthetic) generateLocked(count int, start int64) []types.Sample {
	if count <= 0 {
		return []types.Sample{}
	}

	out := make([]types.Sample, count)
	for i := range out {
		ts := start + int64(i)*g.intervalMs
		category := g.categories[g.nextCat]
		g.nextCat = (g.nextCat + 1) % len(g.categories)

		out[i] = types.Sample{
			TimestampMs: ts,
			Value:       g.step(category),
			Category:    category,
			Metadata:    types.Metadata{"seq": float64(g.seq)},
		}
		g.seq++
	}
	return out
}

// step advances the walk of one category.
func (g *Synthetic) step(category string) float64 {
	v, ok := g.values[category]
	if !ok {
		v = 20 + g.rng.Float64()*60
	}
	v += g.rng.NormFloat64() * 2
	v = math.Max(0, math.Min(100, v))
	g.values[category] = v
	return math.Round(v*100) / 100
}
