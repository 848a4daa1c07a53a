package types

import "time"

// Metadata is an open key-value map attached to a sample.
// Values are restricted to what the stream wire format can carry:
// nil, bool, float64, string, []any and map[string]any.
type Metadata map[string]any

// Sample represents a single timestamped measurement.
// This is the primary data unit flowing through the engine.
// Samples are immutable once created: nothing in the engine writes to a
// sample (or its Metadata) after it has been appended.
type Sample struct {
	// TimestampMs is a Unix timestamp in milliseconds. Streams are expected
	// to be non-decreasing but the buffer does not enforce it per insert.
	TimestampMs int64

	// Value is the measured scalar.
	Value float64

	// Category is an opaque tag (e.g. "cpu", "ifInOctets"). There is no
	// fixed enumeration; filters test set membership.
	Category string

	// Metadata is optional.
	Metadata Metadata
}

// TimestampTime returns the timestamp as a time.Time.
func (s *Sample) TimestampTime() time.Time {
	return time.UnixMilli(s.TimestampMs)
}
