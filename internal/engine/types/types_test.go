package types

import (
	"testing"
	"time"

	"github.com/xtxerr/streamscope/internal/errors"
)

func TestSampleTimestampTime(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	s := Sample{
		TimestampMs: now.UnixMilli(),
	}

	if !s.TimestampTime().Equal(now) {
		t.Errorf("expected %v, got %v", now, s.TimestampTime())
	}
}

func TestBucket(t *testing.T) {
	b := Bucket{BucketStart: 60000, WidthMs: 60000, Count: 3}

	if b.BucketEnd() != 120000 {
		t.Errorf("expected end=120000, got %d", b.BucketEnd())
	}
	if b.HasPercentiles() {
		t.Error("new bucket should not have percentiles")
	}

	b.SetPercentiles(1, 2, 3, 4)
	if !b.HasPercentiles() || *b.P99 != 4 {
		t.Error("percentiles not set")
	}
}

func TestPeriodVocabulary(t *testing.T) {
	tests := []struct {
		name    string
		period  Period
		widthMs int64
	}{
		{"1min", PeriodOneMinute, 60000},
		{"5min", PeriodFiveMinutes, 300000},
		{"1hour", PeriodOneHour, 3600000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePeriod(tt.name)
			if err != nil {
				t.Fatalf("ParsePeriod(%q): %v", tt.name, err)
			}
			if p != tt.period {
				t.Errorf("expected %v, got %v", tt.period, p)
			}
			if p.WidthMs() != tt.widthMs {
				t.Errorf("expected width=%d, got %d", tt.widthMs, p.WidthMs())
			}
			if p.String() != tt.name {
				t.Errorf("expected name=%s, got %s", tt.name, p.String())
			}
		})
	}
}

func TestParsePeriodUnknown(t *testing.T) {
	_, err := ParsePeriod("2min")
	if !errors.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestPeriodUnmarshalText(t *testing.T) {
	var p Period
	if err := p.UnmarshalText([]byte("5min")); err != nil {
		t.Fatal(err)
	}
	if p != PeriodFiveMinutes {
		t.Errorf("expected 5min, got %v", p)
	}
}
