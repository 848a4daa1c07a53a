package source

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
	testutil "github.com/xtxerr/streamscope/internal/testing"
	"github.com/xtxerr/streamscope/internal/wire"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func newTestSynthetic() *Synthetic {
	return NewSynthetic(config.SyntheticConfig{
		Categories: []string{"cpu", "mem"},
		Seed:       42,
		IntervalMs: 100,
	}, fixedClock(1_000_000))
}

func TestSynthetic_GenerateBatch(t *testing.T) {
	g := newTestSynthetic()

	start := int64(5000)
	batch := g.GenerateBatch(10, &start)
	if len(batch) != 10 {
		t.Fatalf("expected 10 samples, got %d", len(batch))
	}
	for i, s := range batch {
		if want := start + int64(i)*100; s.TimestampMs != want {
			t.Errorf("index %d: expected ts=%d, got %d", i, want, s.TimestampMs)
		}
		if s.Value < 0 || s.Value > 100 {
			t.Errorf("index %d: value %v out of range", i, s.Value)
		}
	}
	if batch[0].Category != "cpu" || batch[1].Category != "mem" || batch[2].Category != "cpu" {
		t.Error("expected round-robin categories")
	}

	// Defaults to the clock.
	if got := g.GenerateBatch(1, nil); got[0].TimestampMs != 1_000_000 {
		t.Errorf("expected clock timestamp, got %d", got[0].TimestampMs)
	}
	if got := g.GenerateBatch(0, nil); len(got) != 0 {
		t.Errorf("expected empty batch, got %d", len(got))
	}
}

func TestSynthetic_GenerateNext(t *testing.T) {
	g := newTestSynthetic()
	if s := g.GenerateNext(12345); s.TimestampMs != 12445 {
		t.Errorf("expected ts=12445, got %d", s.TimestampMs)
	}
}

func TestSynthetic_Deterministic(t *testing.T) {
	start := int64(0)
	a := newTestSynthetic().GenerateBatch(50, &start)
	b := newTestSynthetic().GenerateBatch(50, &start)
	for i := range a {
		if a[i].Value != b[i].Value {
			t.Fatalf("index %d: same seed produced %v and %v", i, a[i].Value, b[i].Value)
		}
	}
}

func TestSynthetic_FetchContinues(t *testing.T) {
	g := newTestSynthetic()
	ctx := context.Background()

	first, _ := g.Fetch(ctx, 3)
	second, _ := g.Fetch(ctx, 2)

	if first[0].TimestampMs != 1_000_000 {
		t.Errorf("expected first fetch at clock, got %d", first[0].TimestampMs)
	}
	if second[0].TimestampMs != first[2].TimestampMs+100 {
		t.Errorf("expected fetch to continue, got %d after %d", second[0].TimestampMs, first[2].TimestampMs)
	}

	// Out-of-band generation does not move the cursor.
	g.GenerateNext(0)
	third, _ := g.Fetch(ctx, 1)
	if third[0].TimestampMs != second[1].TimestampMs+100 {
		t.Errorf("cursor moved by GenerateNext: %d", third[0].TimestampMs)
	}
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		name string
		pdu  gosnmp.SnmpPDU
		want float64
		ok   bool
	}{
		{"counter32", gosnmp.SnmpPDU{Type: gosnmp.Counter32, Value: uint32(100)}, 100, true},
		{"counter64", gosnmp.SnmpPDU{Type: gosnmp.Counter64, Value: uint64(1 << 40)}, 1 << 40, true},
		{"gauge32", gosnmp.SnmpPDU{Type: gosnmp.Gauge32, Value: uint(55)}, 55, true},
		{"integer", gosnmp.SnmpPDU{Type: gosnmp.Integer, Value: -7}, -7, true},
		{"timeticks", gosnmp.SnmpPDU{Type: gosnmp.TimeTicks, Value: uint32(360000)}, 360000, true},
		{"octet string", gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte("up")}, 0, false},
		{"no such object", gosnmp.SnmpPDU{Type: gosnmp.NoSuchObject}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := numericValue(tt.pdu)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSNMP_ToSample(t *testing.T) {
	s, err := NewSNMP(config.SNMPConfig{
		Host:      "192.0.2.1",
		Community: "public",
		TimeoutMs: 100,
		OIDs:      []config.OIDConfig{{Category: "uptime", OID: "1.3.6.1.2.1.1.3.0"}},
	}, fixedClock(0))
	if err != nil {
		t.Fatal(err)
	}

	sample, ok := s.toSample(gosnmp.SnmpPDU{Name: ".1.3.6.1.2.1.1.3.0", Type: gosnmp.TimeTicks, Value: uint32(42)}, 777)
	if !ok {
		t.Fatal("expected numeric sample")
	}
	if sample.Category != "uptime" || sample.Value != 42 || sample.TimestampMs != 777 {
		t.Errorf("unexpected sample %+v", sample)
	}
	if s.Name() != "snmp:192.0.2.1" {
		t.Errorf("unexpected name %q", s.Name())
	}
}

func TestNewSNMP_Invalid(t *testing.T) {
	_, err := NewSNMP(config.SNMPConfig{Community: "public", TimeoutMs: 100}, nil)
	if !errors.IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func encodeSamples(t *testing.T, samples ...types.Sample) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	for _, s := range samples {
		if err := w.WriteSample(s); err != nil {
			t.Fatal(err)
		}
	}
	return &buf
}

func TestStream_FetchAndExhaust(t *testing.T) {
	buf := encodeSamples(t,
		types.Sample{TimestampMs: 100, Value: 1, Category: "a"},
		types.Sample{TimestampMs: 200, Value: 2, Category: "a"},
		types.Sample{TimestampMs: 300, Value: 3, Category: "b"},
	)

	s := NewStream(io.NopCloser(buf), 0)
	defer s.Close()

	ctx := context.Background()
	var got []types.Sample
	var lastErr error

	testutil.WaitFor(t, 2*time.Second, func() bool {
		batch, err := s.Fetch(ctx, 2)
		got = append(got, batch...)
		lastErr = err
		return err != nil
	})

	if !errors.Is(lastErr, errors.ErrSourceExhausted) {
		t.Errorf("expected ErrSourceExhausted, got %v", lastErr)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	for i, s := range got {
		if s.TimestampMs != int64(i+1)*100 {
			t.Errorf("index %d: unexpected ts %d", i, s.TimestampMs)
		}
	}
}

func TestStream_ReadError(t *testing.T) {
	// A truncated frame: length prefix promises more than is there.
	s := NewStream(io.NopCloser(bytes.NewReader([]byte{0x20, 0x01})), 0)
	defer s.Close()

	var lastErr error
	testutil.WaitFor(t, 2*time.Second, func() bool {
		_, lastErr = s.Fetch(context.Background(), 10)
		return lastErr != nil
	})

	if !errors.Is(lastErr, errors.ErrSourceFailed) {
		t.Errorf("expected source failure, got %v", lastErr)
	}
}

func TestOpen(t *testing.T) {
	src, err := Open(config.SourceConfig{Kind: config.SourceSynthetic}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if src.Name() != "synthetic" {
		t.Errorf("unexpected source %q", src.Name())
	}

	if _, err := Open(config.SourceConfig{Kind: "kafka"}, nil); !errors.IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}

	_, err = Open(config.SourceConfig{Kind: config.SourceStream, Stream: config.StreamConfig{Path: "/nonexistent/stream.bin"}}, nil)
	if !errors.Is(err, errors.ErrSourceFailed) {
		t.Errorf("expected ErrSourceFailed, got %v", err)
	}
}
