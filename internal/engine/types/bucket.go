package types

// Bucket represents aggregated statistics for one time bucket.
// Buckets are recomputed on every aggregation call and never mutated.
type Bucket struct {
	// BucketStart is floor(ts / width) * width, in Unix milliseconds.
	BucketStart int64
	// WidthMs is the bucket width the bucket was computed with.
	WidthMs int64

	Count int64
	Mean  float64
	Min   float64
	Max   float64

	// Category is the representative category of the bucket's members.
	Category string

	// Percentiles (optional, nil if not enabled)
	P50 *float64
	P90 *float64
	P95 *float64
	P99 *float64
}

// BucketEnd returns the exclusive end of the bucket in Unix milliseconds.
func (b *Bucket) BucketEnd() int64 {
	return b.BucketStart + b.WidthMs
}

// HasPercentiles returns true if percentile data is available.
func (b *Bucket) HasPercentiles() bool {
	return b.P50 != nil
}

// SetPercentiles sets all percentile values.
func (b *Bucket) SetPercentiles(p50, p90, p95, p99 float64) {
	b.P50 = &p50
	b.P90 = &p90
	b.P95 = &p95
	b.P99 = &p99
}
