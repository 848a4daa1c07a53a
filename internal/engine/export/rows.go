package export

import (
	"encoding/json"
	"fmt"

	"github.com/xtxerr/streamscope/internal/engine/types"
)

// table is a row type every format can write.
type table interface {
	header() []string
	cells() []any
}

// SampleRow represents an exported sample.
type SampleRow struct {
	TimestampMs int64             `parquet:"timestamp_ms" json:"timestamp_ms"`
	Value       float64           `parquet:"value" json:"value"`
	Category    string            `parquet:"category,dict" json:"category"`
	Metadata    map[string]string `parquet:"metadata" json:"metadata,omitempty"`
}

func (SampleRow) header() []string {
	return []string{"timestamp_ms", "value", "category", "metadata"}
}

func (r SampleRow) cells() []any {
	meta := ""
	if len(r.Metadata) > 0 {
		// Keys are sorted by encoding/json.
		b, _ := json.Marshal(r.Metadata)
		meta = string(b)
	}
	return []any{r.TimestampMs, r.Value, r.Category, meta}
}

// BucketRow represents an exported aggregation bucket. Percentiles are zero
// when they were not computed.
type BucketRow struct {
	BucketStart int64   `parquet:"bucket_start" json:"bucket_start"`
	BucketEnd   int64   `parquet:"bucket_end" json:"bucket_end"`
	Category    string  `parquet:"category,dict" json:"category"`
	Count       int64   `parquet:"count" json:"count"`
	Mean        float64 `parquet:"mean" json:"mean"`
	Min         float64 `parquet:"min" json:"min"`
	Max         float64 `parquet:"max" json:"max"`
	P50         float64 `parquet:"p50,optional" json:"p50,omitempty"`
	P90         float64 `parquet:"p90,optional" json:"p90,omitempty"`
	P95         float64 `parquet:"p95,optional" json:"p95,omitempty"`
	P99         float64 `parquet:"p99,optional" json:"p99,omitempty"`
}

func (BucketRow) header() []string {
	return []string{"bucket_start", "bucket_end", "category", "count", "mean", "min", "max", "p50", "p90", "p95", "p99"}
}

func (r BucketRow) cells() []any {
	return []any{r.BucketStart, r.BucketEnd, r.Category, r.Count, r.Mean, r.Min, r.Max, r.P50, r.P90, r.P95, r.P99}
}

// SampleToRow converts a Sample to a SampleRow. Metadata values are
// rendered with fmt.
func SampleToRow(s *types.Sample) SampleRow {
	row := SampleRow{
		TimestampMs: s.TimestampMs,
		Value:       s.Value,
		Category:    s.Category,
	}
	if len(s.Metadata) > 0 {
		row.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			row.Metadata[k] = fmt.Sprint(v)
		}
	}
	return row
}

// BucketToRow converts a Bucket to a BucketRow.
func BucketToRow(b *types.Bucket) BucketRow {
	row := BucketRow{
		BucketStart: b.BucketStart,
		BucketEnd:   b.BucketEnd(),
		Category:    b.Category,
		Count:       b.Count,
		Mean:        b.Mean,
		Min:         b.Min,
		Max:         b.Max,
	}

	if b.HasPercentiles() {
		row.P50, row.P90, row.P95, row.P99 = *b.P50, *b.P90, *b.P95, *b.P99
	}

	return row
}
