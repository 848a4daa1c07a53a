package lod

import (
	"reflect"
	"testing"

	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
)

func seq(n int) []types.Sample {
	out := make([]types.Sample, n)
	for i := range out {
		out[i] = types.Sample{TimestampMs: int64(i) * 100, Value: float64(i)}
	}
	return out
}

func TestStride(t *testing.T) {
	tests := []struct {
		n, density, want int
	}{
		{0, 100, 1},
		{50, 100, 1},
		{100, 100, 1},
		{199, 100, 1},
		{200, 100, 2},
		{10000, 1000, 10},
		{10000, 3, 3333},
		{10, 0, 1},
	}

	for _, tt := range tests {
		if got := Stride(tt.n, tt.density); got != tt.want {
			t.Errorf("Stride(%d, %d) = %d, want %d", tt.n, tt.density, got, tt.want)
		}
	}
}

func TestDecimate_StrictStride(t *testing.T) {
	in := seq(10)
	out := Decimate(in, 3)

	// stride = floor(10/3) = 3 -> indices 0, 3, 6, 9
	want := []float64{0, 3, 6, 9}
	if len(out) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(out))
	}
	for i, v := range want {
		if out[i].Value != v {
			t.Errorf("index %d: expected %v, got %v", i, v, out[i].Value)
		}
	}
}

func TestDecimate_Properties(t *testing.T) {
	for _, n := range []int{1, 2, 7, 100, 999, 5000} {
		for _, d := range []int{1, 3, 10, 1000} {
			in := seq(n)
			out := Decimate(in, d)

			if len(out) == 0 {
				t.Errorf("n=%d d=%d: decimated to nothing", n, d)
			}
			if !reflect.DeepEqual(out[0], in[0]) {
				t.Errorf("n=%d d=%d: first sample not kept", n, d)
			}
			for i := 1; i < len(out); i++ {
				if out[i].TimestampMs <= out[i-1].TimestampMs {
					t.Errorf("n=%d d=%d: order not preserved at %d", n, d, i)
					break
				}
			}
			// Deterministic.
			if !reflect.DeepEqual(out, Decimate(in, d)) {
				t.Errorf("n=%d d=%d: non-deterministic", n, d)
			}
		}
	}
}

func TestDecimate_Empty(t *testing.T) {
	if out := Decimate(nil, 10); len(out) != 0 {
		t.Errorf("expected empty, got %d", len(out))
	}
}

func TestNewPolicy_InvalidDensity(t *testing.T) {
	for _, d := range []int{0, -5} {
		_, err := NewPolicy(map[Mode]int{ModeLine: 1000, ModeBar: d})
		if !errors.IsConfiguration(err) {
			t.Errorf("density=%d: expected configuration error, got %v", d, err)
		}
	}
}

func TestPolicy(t *testing.T) {
	p, err := NewPolicy(map[Mode]int{ModeLine: 1000, ModeScatter: 500, ModeBar: 200})
	if err != nil {
		t.Fatal(err)
	}

	if d, _ := p.Density(ModeScatter); d != 500 {
		t.Errorf("expected scatter=500, got %d", d)
	}
	if _, err := p.Density(Mode("area")); !errors.Is(err, errors.ErrModeNotFound) {
		t.Errorf("expected ErrModeNotFound, got %v", err)
	}

	tests := []struct {
		scale float64
		want  int
	}{
		{1.0, 200},
		{0.5, 100},
		{0.25, 50},
		{0.001, 1},
		{0, 200},
		{2, 200},
	}
	for _, tt := range tests {
		if got, _ := p.ScaledDensity(ModeBar, tt.scale); got != tt.want {
			t.Errorf("scale=%v: expected %d, got %d", tt.scale, tt.want, got)
		}
	}

	out, err := p.Decimate(seq(1000), ModeBar, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 100 {
		t.Errorf("expected 100 samples, got %d", len(out))
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("Scatter"); err != nil || m != ModeScatter {
		t.Errorf("expected scatter, got %v (%v)", m, err)
	}
	if _, err := ParseMode("pie"); !errors.Is(err, errors.ErrModeNotFound) {
		t.Errorf("expected ErrModeNotFound, got %v", err)
	}
}
