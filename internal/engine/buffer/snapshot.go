package buffer

import (
	"time"

	"github.com/xtxerr/streamscope/internal/engine/types"
)

// Snapshot is an immutable, ordered view of the buffer at one version.
// It is safe to share between goroutines. Slices returned by its methods
// alias the snapshot's storage and must be treated as read-only.
type Snapshot struct {
	samples []types.Sample
	version uint64
}

// Len returns the number of samples.
func (s *Snapshot) Len() int {
	return len(s.samples)
}

// Version returns the buffer version the snapshot was taken at.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Samples returns all samples, oldest first.
func (s *Snapshot) Samples() []types.Sample {
	return s.samples
}

// Slice returns samples in [start, end), clamped to the snapshot bounds.
func (s *Snapshot) Slice(start, end int) []types.Sample {
	start = max(0, start)
	end = min(len(s.samples), end)
	if start >= end {
		return nil
	}
	return s.samples[start:end]
}

// Latest returns the newest n samples, oldest first.
func (s *Snapshot) Latest(n int) []types.Sample {
	if n <= 0 {
		return nil
	}
	return s.Slice(len(s.samples)-n, len(s.samples))
}

// TimeRange returns the timestamps of the oldest and newest samples.
// Returns (0, 0) if the snapshot is empty.
func (s *Snapshot) TimeRange() (oldest, newest int64) {
	if len(s.samples) == 0 {
		return 0, 0
	}
	return s.samples[0].TimestampMs, s.samples[len(s.samples)-1].TimestampMs
}

// Duration returns the time duration covered by the snapshot.
func (s *Snapshot) Duration() time.Duration {
	oldest, newest := s.TimeRange()
	return time.Duration(newest-oldest) * time.Millisecond
}
