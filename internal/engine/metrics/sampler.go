// Package metrics samples render-frame cadence into a rolling window and
// materializes periodic snapshots of frame rate, memory and processing time.
package metrics

import (
	"math"
	"runtime"
	"sync"
	"time"
)

// DefaultWindow is the number of frame intervals kept.
const DefaultWindow = 60

// Snapshot is a point-in-time view of render performance.
type Snapshot struct {
	FPS              float64   `json:"fps"`
	FrameTimeMs      float64   `json:"frame_time_ms"`
	MaxFrameTimeMs   float64   `json:"max_frame_time_ms"`
	MemoryMB         float64   `json:"memory_mb"`
	DataProcessingMs float64   `json:"data_processing_ms"`
	FrameCount       int64     `json:"frame_count"`
	WindowSize       int       `json:"window_size"`
	TakenAt          time.Time `json:"taken_at"`
}

// MemoryEstimator reports the host's memory use in megabytes.
type MemoryEstimator func() float64

// RuntimeMemory estimates memory from the Go heap.
func RuntimeMemory() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1024 * 1024)
}

// Sampler records frame intervals. TickFrame is called by the render tick
// only; Snapshot and RecordProcessing may be called from any goroutine.
type Sampler struct {
	mu sync.Mutex

	frames     *durationRing
	processing *durationRing
	lastFrame  time.Time
	frameCount int64

	memory MemoryEstimator
	now    func() time.Time
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithMemoryEstimator sets the memory estimator. Without one, MemoryMB is 0.
func WithMemoryEstimator(m MemoryEstimator) Option {
	return func(s *Sampler) { s.memory = m }
}

// WithClock sets the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// NewSampler creates a sampler keeping window frame intervals.
// window < 1 falls back to DefaultWindow.
func NewSampler(window int, opts ...Option) *Sampler {
	if window < 1 {
		window = DefaultWindow
	}
	s := &Sampler{
		frames:     newDurationRing(window),
		processing: newDurationRing(window),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TickFrame records the interval since the previous frame. The first
// frame after construction or Reset only establishes the reference time.
func (s *Sampler) TickFrame(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastFrame.IsZero() {
		if d := now.Sub(s.lastFrame); d >= 0 {
			s.frames.add(d)
		}
	}
	s.lastFrame = now
	s.frameCount++
}

// RecordProcessing records the duration of a data processing pass.
func (s *Sampler) RecordProcessing(d time.Duration) {
	s.mu.Lock()
	s.processing.add(d)
	s.mu.Unlock()
}

// Snapshot computes fps = round(1000 / mean frame time in ms). With no
// recorded interval fps is 0.
func (s *Sampler) Snapshot() Snapshot {
	s.mu.Lock()
	st := s.frames.stats()
	snap := Snapshot{
		FrameCount:       s.frameCount,
		DataProcessingMs: durationMs(s.processing.stats().last),
		WindowSize:       st.n,
		TakenAt:          s.now(),
	}
	s.mu.Unlock()

	if st.n > 0 {
		snap.FrameTimeMs = durationMs(st.avg)
		snap.MaxFrameTimeMs = durationMs(st.max)
		if snap.FrameTimeMs > 0 {
			snap.FPS = math.Round(1000 / snap.FrameTimeMs)
		}
	}

	if s.memory != nil {
		snap.MemoryMB = s.memory()
	}

	return snap
}

// LastFrameTime returns the most recent frame interval, or 0.
func (s *Sampler) LastFrameTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames.stats().last
}

// MeanFrameTime returns the mean interval over the window, or 0.
func (s *Sampler) MeanFrameTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames.stats().avg
}

// MeanProcessingTime returns the mean processing duration over the
// window, or 0. The adaptive controller compares it to the frame budget.
func (s *Sampler) MeanProcessingTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing.stats().avg
}

// Reset clears the window and frame counter. It does not affect the loop
// driving TickFrame.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames.reset()
	s.lastFrame = time.Time{}
	s.frameCount = 0
	s.processing.reset()
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
