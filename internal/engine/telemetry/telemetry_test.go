package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersOnInjectedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordIngest("synthetic", 10, 3)
	m.SetBufferSamples(7)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}

	// A second registry accepts the same collectors without conflict.
	New(prometheus.NewRegistry())
}

func TestRecordIngest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordIngest("synthetic", 10, 0)
	m.RecordIngest("synthetic", 5, 2)

	if got := testutil.ToFloat64(m.SamplesIngested.WithLabelValues("synthetic")); got != 15 {
		t.Errorf("expected 15 ingested, got %v", got)
	}
	if got := testutil.ToFloat64(m.SamplesEvicted); got != 2 {
		t.Errorf("expected 2 evicted, got %v", got)
	}
}

func TestGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetFPS(59)
	m.SetDetailLevel(2)
	m.SetBufferSamples(100)

	if got := testutil.ToFloat64(m.FPS); got != 59 {
		t.Errorf("expected fps=59, got %v", got)
	}
	if got := testutil.ToFloat64(m.DetailLevel); got != 2 {
		t.Errorf("expected level=2, got %v", got)
	}
	if got := testutil.ToFloat64(m.BufferSamples); got != 100 {
		t.Errorf("expected 100 samples, got %v", got)
	}
}

func TestHistograms(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveFrame(0.004)
	m.RecordHTTPRequest("/v1/batch", "200", 0.01)
	m.RecordSourceError("snmp:r1")

	if count := testutil.CollectAndCount(m.FrameDuration); count == 0 {
		t.Error("expected frame duration to be recorded")
	}
	if count := testutil.CollectAndCount(m.HTTPRequestsTotal); count != 1 {
		t.Errorf("expected one request series, got %d", count)
	}
	if got := testutil.ToFloat64(m.SourceErrors.WithLabelValues("snmp:r1")); got != 1 {
		t.Errorf("expected 1 source error, got %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordIngest("x", 1, 1)
	m.RecordSourceError("x")
	m.SetBufferSamples(1)
	m.ObserveFrame(1)
	m.SetFPS(1)
	m.SetDetailLevel(1)
	m.RecordHTTPRequest("/", "200", 1)
}
