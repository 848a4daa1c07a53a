package types

import (
	"fmt"
	"time"

	"github.com/xtxerr/streamscope/internal/errors"
)

// Period is one of the fixed aggregation periods offered to UI collaborators.
type Period int

const (
	// PeriodOneMinute aggregates into 60000 ms buckets.
	PeriodOneMinute Period = iota
	// PeriodFiveMinutes aggregates into 300000 ms buckets.
	PeriodFiveMinutes
	// PeriodOneHour aggregates into 3600000 ms buckets.
	PeriodOneHour
)

// Periods lists every period in ascending width.
var Periods = []Period{PeriodOneMinute, PeriodFiveMinutes, PeriodOneHour}

// String returns the vocabulary name of the period.
func (p Period) String() string {
	switch p {
	case PeriodOneMinute:
		return "1min"
	case PeriodFiveMinutes:
		return "5min"
	case PeriodOneHour:
		return "1hour"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// Duration returns the bucket width of the period.
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodOneMinute:
		return time.Minute
	case PeriodFiveMinutes:
		return 5 * time.Minute
	case PeriodOneHour:
		return time.Hour
	default:
		return 0
	}
}

// WidthMs returns the bucket width in milliseconds.
func (p Period) WidthMs() int64 {
	return p.Duration().Milliseconds()
}

// ParsePeriod parses a period name from the vocabulary.
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "1min":
		return PeriodOneMinute, nil
	case "5min":
		return PeriodFiveMinutes, nil
	case "1hour":
		return PeriodOneHour, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, errors.ErrPeriodNotFound)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so periods can be used
// directly in YAML and JSON.
func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
