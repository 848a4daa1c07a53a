package buffer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
)

// RingBuffer is the bounded stream buffer. It owns the live sequence of
// samples in a fixed-capacity arena and keeps the newest capacity samples,
// evicting oldest first.
//
// Readers never see the arena. They receive a Snapshot: an immutable copy
// built under the write lock, so a snapshot is either fully before or fully
// after any Append/AppendBatch/Reset. Snapshots are built lazily and cached
// until the next mutation.
type RingBuffer struct {
	mu       sync.Mutex
	data     []types.Sample
	head     int64 // Next write position
	tail     int64 // Oldest data position
	count    int64 // Current number of elements
	capacity int64

	// cursor is the newest timestamp appended since construction or Reset.
	cursor    int64
	hasCursor bool

	version  atomic.Uint64
	snapshot atomic.Pointer[Snapshot]

	// Statistics
	appendCount atomic.Int64
	evictCount  atomic.Int64
	resetCount  atomic.Int64
}

// New creates a new RingBuffer with the given capacity.
// A capacity <= 0 is a configuration error.
func New(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("buffer capacity %d must be positive: %w", capacity, errors.ErrInvalidCapacity)
	}
	rb := &RingBuffer{
		data:     make([]types.Sample, capacity),
		capacity: int64(capacity),
	}
	rb.snapshot.Store(&Snapshot{})
	return rb, nil
}

// Append adds a sample, evicting the oldest one if the buffer is full.
// Returns the new length, min(old+1, capacity).
func (rb *RingBuffer) Append(sample types.Sample) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.appendLocked([]types.Sample{sample})
	return int(rb.count)
}

// AppendBatch adds all samples as one mutation. Eviction happens in a single
// trim pass for the whole batch, and readers observe either none or all of
// it. Returns the new length.
func (rb *RingBuffer) AppendBatch(samples []types.Sample) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(samples) > 0 {
		rb.appendLocked(samples)
	}
	return int(rb.count)
}

func (rb *RingBuffer) appendLocked(samples []types.Sample) {
	rb.appendCount.Add(int64(len(samples)))
	for i := range samples {
		rb.noteCursor(samples[i].TimestampMs)
	}

	// Only the newest capacity samples of the batch can be retained.
	if skip := int64(len(samples)) - rb.capacity; skip > 0 {
		rb.evictCount.Add(skip)
		samples = samples[skip:]
	}

	if overflow := rb.count + int64(len(samples)) - rb.capacity; overflow > 0 {
		rb.evictOldest(overflow)
	}

	for i := range samples {
		rb.data[rb.head%rb.capacity] = samples[i]
		rb.head++
		rb.count++
	}
	rb.version.Add(1)
}

// evictOldest drops the n oldest samples.
func (rb *RingBuffer) evictOldest(n int64) {
	for i := int64(0); i < n && rb.count > 0; i++ {
		rb.data[rb.tail%rb.capacity] = types.Sample{} // Clear for GC
		rb.tail++
		rb.count--
		rb.evictCount.Add(1)
	}
}

func (rb *RingBuffer) noteCursor(ts int64) {
	if !rb.hasCursor || ts > rb.cursor {
		rb.cursor = ts
		rb.hasCursor = true
	}
}

// Reset empties the buffer and restarts the timestamp cursor.
// Snapshots handed out earlier stay valid and unchanged.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	// Clear all data for GC
	for i := range rb.data {
		rb.data[i] = types.Sample{}
	}

	rb.head = 0
	rb.tail = 0
	rb.count = 0
	rb.cursor = 0
	rb.hasCursor = false
	rb.resetCount.Add(1)
	rb.version.Add(1)
}

// Cursor returns the newest timestamp appended since construction or the
// last Reset. ok is false if nothing has been appended.
func (rb *RingBuffer) Cursor() (ts int64, ok bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.cursor, rb.hasCursor
}

// Snapshot returns an immutable view of the current contents, oldest first.
func (rb *RingBuffer) Snapshot() *Snapshot {
	v := rb.version.Load()
	if s := rb.snapshot.Load(); s != nil && s.version == v {
		return s
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	// Another reader may have rebuilt it while we waited.
	v = rb.version.Load()
	if s := rb.snapshot.Load(); s != nil && s.version == v {
		return s
	}

	samples := make([]types.Sample, rb.count)
	for i := int64(0); i < rb.count; i++ {
		samples[i] = rb.data[(rb.tail+i)%rb.capacity]
	}

	s := &Snapshot{samples: samples, version: v}
	rb.snapshot.Store(s)
	return s
}

// Len returns the current number of samples in the buffer.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return int(rb.count)
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer) Cap() int {
	return int(rb.capacity)
}

// UsageRatio returns the current usage as a ratio (0.0 - 1.0).
func (rb *RingBuffer) UsageRatio() float64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return float64(rb.count) / float64(rb.capacity)
}

// Stats returns buffer statistics.
func (rb *RingBuffer) Stats() BufferStats {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	return BufferStats{
		Capacity:    int(rb.capacity),
		Count:       int(rb.count),
		UsageRatio:  float64(rb.count) / float64(rb.capacity),
		AppendCount: rb.appendCount.Load(),
		EvictCount:  rb.evictCount.Load(),
		ResetCount:  rb.resetCount.Load(),
		Version:     rb.version.Load(),
	}
}

// BufferStats holds buffer statistics.
type BufferStats struct {
	Capacity    int
	Count       int
	UsageRatio  float64
	AppendCount int64
	EvictCount  int64
	ResetCount  int64
	Version     uint64
}
