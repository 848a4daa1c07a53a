package viewport

import (
	"testing"
	"time"

	"github.com/xtxerr/streamscope/internal/engine/types"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestCompute_EmptyFallback(t *testing.T) {
	c := Calculator{Now: fixedClock(1_700_000_000_000)}
	vp := c.Compute(nil, 0.05)

	if vp.XMax <= vp.XMin {
		t.Errorf("expected XMax > XMin, got %v", vp)
	}
	if vp.YMax <= vp.YMin {
		t.Errorf("expected YMax > YMin, got %v", vp)
	}
	if vp.XMax != 1_700_000_000_000 || vp.Width() != 60000 {
		t.Errorf("expected last 60s ending now, got %v", vp)
	}
	if vp.YMin != 0 || vp.YMax != 100 {
		t.Errorf("expected values [0,100], got %v", vp)
	}
}

func TestCompute_PackageLevelFallback(t *testing.T) {
	vp := Compute([]types.Sample{}, 0.1)
	if vp.XMax <= vp.XMin || vp.YMax <= vp.YMin {
		t.Errorf("degenerate fallback: %v", vp)
	}
}

func TestCompute_Padding(t *testing.T) {
	samples := []types.Sample{
		{TimestampMs: 1000, Value: 20},
		{TimestampMs: 3000, Value: 60},
		{TimestampMs: 2000, Value: 40},
	}

	vp := Compute(samples, 0.1)

	want := Viewport{XMin: 800, XMax: 3200, YMin: 16, YMax: 64}
	if vp != want {
		t.Errorf("expected %v, got %v", want, vp)
	}
}

func TestCompute_YFloorAtZero(t *testing.T) {
	samples := []types.Sample{
		{TimestampMs: 0, Value: 1},
		{TimestampMs: 1000, Value: 101},
	}

	vp := Compute(samples, 0.05)
	if vp.YMin != 0 {
		t.Errorf("expected YMin floored at 0, got %v", vp.YMin)
	}
	if vp.YMax != 106 {
		t.Errorf("expected YMax=106, got %v", vp.YMax)
	}
}

func TestCompute_ZeroRange(t *testing.T) {
	tests := []struct {
		name    string
		samples []types.Sample
	}{
		{"single sample", []types.Sample{{TimestampMs: 5000, Value: 50}}},
		{"equal values", []types.Sample{{TimestampMs: 0, Value: 7}, {TimestampMs: 100, Value: 7}}},
		{"equal timestamps", []types.Sample{{TimestampMs: 100, Value: 1}, {TimestampMs: 100, Value: 9}}},
		{"zero value", []types.Sample{{TimestampMs: 100, Value: 0}}},
		{"negative values", []types.Sample{{TimestampMs: 0, Value: -20}, {TimestampMs: 10, Value: -10}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, padding := range []float64{0, 0.05} {
				vp := Compute(tt.samples, padding)
				if vp.XMax <= vp.XMin {
					t.Errorf("padding=%v: zero-width x axis: %v", padding, vp)
				}
				if vp.YMax <= vp.YMin {
					t.Errorf("padding=%v: zero-height y axis: %v", padding, vp)
				}
			}
		})
	}
}

func TestCompute_SingleSampleCentered(t *testing.T) {
	vp := Compute([]types.Sample{{TimestampMs: 5000, Value: 50}}, 0)
	want := Viewport{XMin: 4500, XMax: 5500, YMin: 49.5, YMax: 50.5}
	if vp != want {
		t.Errorf("expected %v, got %v", want, vp)
	}
}

func TestViewport_Contains(t *testing.T) {
	vp := Viewport{XMin: 0, XMax: 100, YMin: 0, YMax: 10}
	if !vp.Contains(&types.Sample{TimestampMs: 50, Value: 5}) {
		t.Error("expected sample inside")
	}
	if vp.Contains(&types.Sample{TimestampMs: 150, Value: 5}) {
		t.Error("expected sample outside")
	}
}
