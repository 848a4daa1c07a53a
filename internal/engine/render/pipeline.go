// Package render owns the render tick. Each frame reads one buffer
// snapshot, filters it, fits a viewport, decimates to the mode's density
// scaled by the adaptive detail level, and maps the result to display
// space.
package render

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/streamscope/internal/engine/adaptive"
	"github.com/xtxerr/streamscope/internal/engine/buffer"
	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/engine/coords"
	"github.com/xtxerr/streamscope/internal/engine/filter"
	"github.com/xtxerr/streamscope/internal/engine/lod"
	"github.com/xtxerr/streamscope/internal/engine/metrics"
	"github.com/xtxerr/streamscope/internal/engine/telemetry"
	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/engine/viewport"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/logging"
)

var log = logging.Component("render")

// DefaultRect is the plotting area used until a host sets its own.
var DefaultRect = coords.DisplayRect{Width: 1000, Height: 500}

// Frame is the output of one render tick. Samples may alias the buffer
// snapshot and must be treated as read-only.
type Frame struct {
	// Version is the buffer version the frame was rendered from.
	Version uint64

	Viewport viewport.Viewport
	Rect     coords.DisplayRect
	Mode     lod.Mode
	Level    adaptive.Level

	// Total is the number of samples that passed the filter.
	Total int

	// Samples are the decimated samples, Points their display positions.
	Samples []types.Sample
	Points  []coords.Point

	Processing time.Duration
	RenderedAt time.Time
}

// Pipeline renders frames from the stream buffer. Render is called by
// the render tick only; the view setters may be called from any goroutine.
type Pipeline struct {
	mu sync.RWMutex

	// View state
	spec    filter.Spec
	mode    lod.Mode
	rect    coords.DisplayRect
	padding float64

	buffer   *buffer.RingBuffer
	policy   *lod.Policy
	sampler  *metrics.Sampler
	adaptive *adaptive.Controller
	metrics  *telemetry.Metrics
	interval time.Duration
	now      func() time.Time

	latest atomic.Pointer[Frame]
	frames atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAdaptive enables adaptive detail through c.
func WithAdaptive(c *adaptive.Controller) Option {
	return func(p *Pipeline) { p.adaptive = c }
}

// WithTelemetry records frame durations to m.
func WithTelemetry(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock sets the clock used for the fallback viewport and for timing
// frame processing.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline configured by cfg.
func New(cfg config.RenderConfig, buf *buffer.RingBuffer, sampler *metrics.Sampler, opts ...Option) (*Pipeline, error) {
	if buf == nil {
		return nil, errors.NewMissingField("buffer")
	}
	if sampler == nil {
		return nil, errors.NewMissingField("sampler")
	}

	policy, err := lod.NewPolicy(cfg.LOD.Densities())
	if err != nil {
		return nil, err
	}

	mode := lod.ModeLine
	if cfg.Mode != "" {
		if mode, err = lod.ParseMode(cfg.Mode); err != nil {
			return nil, err
		}
	}
	if _, err := policy.Density(mode); err != nil {
		return nil, err
	}

	p := &Pipeline{
		mode:     mode,
		rect:     DefaultRect,
		padding:  cfg.Padding,
		buffer:   buf,
		policy:   policy,
		sampler:  sampler,
		interval: cfg.FrameInterval(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// SetFilter replaces the filter applied to every frame.
func (p *Pipeline) SetFilter(spec filter.Spec) {
	p.mu.Lock()
	p.spec = spec
	p.mu.Unlock()
}

// Filter returns the current filter.
func (p *Pipeline) Filter() filter.Spec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spec
}

// SetMode switches the presentation mode.
func (p *Pipeline) SetMode(mode lod.Mode) error {
	if _, err := p.policy.Density(mode); err != nil {
		return err
	}
	p.mu.Lock()
	p.mode = mode
	p.mu.Unlock()
	return nil
}

// Mode returns the current presentation mode.
func (p *Pipeline) Mode() lod.Mode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mode
}

// SetRect sets the plotting area.
func (p *Pipeline) SetRect(r coords.DisplayRect) {
	p.mu.Lock()
	p.rect = r
	p.mu.Unlock()
}

// Latest returns the most recent frame, or nil before the first one.
func (p *Pipeline) Latest() *Frame {
	return p.latest.Load()
}

// FrameCount returns the number of frames rendered.
func (p *Pipeline) FrameCount() int64 {
	return p.frames.Load()
}

// Render produces one frame. now is the frame's tick time.
func (p *Pipeline) Render(now time.Time) *Frame {
	p.sampler.TickFrame(now)
	start := p.now()

	p.mu.RLock()
	spec, mode, rect, padding := p.spec, p.mode, p.rect, p.padding
	p.mu.RUnlock()

	snap := p.buffer.Snapshot()
	samples := snap.Samples()
	if !spec.IsEmpty() {
		samples = filter.Apply(samples, spec)
	}

	vp := viewport.Calculator{Now: p.now}.Compute(samples, padding)

	level := adaptive.LevelNormal
	if p.adaptive != nil {
		level = p.adaptive.CurrentLevel()
	}

	decimated, err := p.policy.Decimate(samples, mode, level.DensityScale())
	if err != nil {
		// SetMode only accepts modes the policy knows.
		log.Error("decimate failed", "mode", mode, "error", err)
		decimated = samples
	}

	mapper := coords.Mapper{Rect: rect, Viewport: vp}
	points := mapper.Map(make([]coords.Point, 0, len(decimated)), decimated)

	elapsed := p.now().Sub(start)
	p.sampler.RecordProcessing(elapsed)
	p.metrics.ObserveFrame(elapsed.Seconds())

	// The new level applies from the next frame; this frame keeps the one
	// it was decimated with.
	if p.adaptive != nil {
		p.metrics.SetDetailLevel(int(p.adaptive.Check()))
	}

	frame := &Frame{
		Version:    snap.Version(),
		Viewport:   vp,
		Rect:       rect,
		Mode:       mode,
		Level:      level,
		Total:      len(samples),
		Samples:    decimated,
		Points:     points,
		Processing: elapsed,
		RenderedAt: now,
	}
	p.latest.Store(frame)
	p.frames.Add(1)

	return frame
}

// Run drives the render tick at the configured frame rate until ctx is
// cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	log.Info("render started", "interval", p.interval, "mode", p.Mode())
	defer log.Info("render stopped", "frames", p.FrameCount())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			p.Render(t)
		}
	}
}
