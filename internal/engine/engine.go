package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/streamscope/internal/engine/adaptive"
	"github.com/xtxerr/streamscope/internal/engine/aggregate"
	"github.com/xtxerr/streamscope/internal/engine/buffer"
	"github.com/xtxerr/streamscope/internal/engine/categories"
	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/engine/coords"
	"github.com/xtxerr/streamscope/internal/engine/filter"
	"github.com/xtxerr/streamscope/internal/engine/ingestion"
	"github.com/xtxerr/streamscope/internal/engine/metrics"
	"github.com/xtxerr/streamscope/internal/engine/render"
	"github.com/xtxerr/streamscope/internal/engine/source"
	"github.com/xtxerr/streamscope/internal/engine/telemetry"
	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/engine/virtual"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/logging"
)

var log = logging.Component("engine")

// Engine owns the buffer and the three ticks, and answers queries against
// buffer snapshots.
type Engine struct {
	mu sync.Mutex

	config *config.Config

	// Components
	buffer    *buffer.RingBuffer
	source    source.Source
	generator *source.Synthetic
	ingestion *ingestion.Service
	sampler   *metrics.Sampler
	adaptive  *adaptive.Controller
	render    *render.Pipeline
	scroller  *virtual.Scroller
	tracker   *categories.Tracker
	metrics   *telemetry.Metrics

	aggOptions    aggregate.Options
	defaultPeriod types.Period

	// State
	running   atomic.Bool
	cancel    context.CancelFunc
	done      chan error
	startTime time.Time
	now       func() time.Time

	latestMetrics atomic.Pointer[metrics.Snapshot]
}

type options struct {
	source  source.Source
	metrics *telemetry.Metrics
	memory  metrics.MemoryEstimator
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*options)

// WithSource replaces the source selected by the configuration.
func WithSource(src source.Source) Option {
	return func(o *options) { o.source = src }
}

// WithTelemetry records Prometheus metrics to m.
func WithTelemetry(m *telemetry.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithMemoryEstimator sets the memory estimator of the metrics sampler.
func WithMemoryEstimator(m metrics.MemoryEstimator) Option {
	return func(o *options) { o.memory = m }
}

// WithClock sets the engine clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates an engine from cfg. A nil cfg uses DefaultConfig.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	buf, err := buffer.New(cfg.Buffer.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("create buffer: %w", err)
	}

	period, err := types.ParsePeriod(cfg.Aggregation.DefaultPeriod)
	if err != nil {
		return nil, fmt.Errorf("aggregation default period: %w", err)
	}

	vcfg := virtual.Config{
		ItemExtent:      cfg.Virtual.ItemExtent,
		ContainerExtent: cfg.Virtual.ContainerExtent,
		Overscan:        cfg.Virtual.Overscan,
	}
	scroller, err := virtual.NewScroller(vcfg)
	if err != nil {
		return nil, fmt.Errorf("create scroller: %w", err)
	}

	src := o.source
	if src == nil {
		if src, err = source.Open(cfg.Ingestion.Source, o.now); err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
	}

	// GenerateBatch and GenerateNext always use a synthetic generator,
	// whatever feeds the buffer.
	generator, ok := src.(*source.Synthetic)
	if !ok {
		generator = source.NewSynthetic(cfg.Ingestion.Source.Synthetic, o.now)
	}

	samplerOpts := []metrics.Option{metrics.WithClock(o.now)}
	if o.memory != nil {
		samplerOpts = append(samplerOpts, metrics.WithMemoryEstimator(o.memory))
	}
	sampler := metrics.NewSampler(cfg.Metrics.Window, samplerOpts...)

	e := &Engine{
		config:        cfg,
		buffer:        buf,
		source:        src,
		generator:     generator,
		sampler:       sampler,
		scroller:      scroller,
		tracker:       categories.New(cfg.Categories.K, cfg.Categories.WindowTicks),
		metrics:       o.metrics,
		aggOptions:    cfg.Aggregation.Options(),
		defaultPeriod: period,
		now:           o.now,
	}

	renderOpts := []render.Option{render.WithTelemetry(o.metrics), render.WithClock(o.now)}
	if cfg.Adaptive.Enabled {
		e.adaptive = adaptive.New(cfg.Adaptive, cfg.Render.EffectiveFrameBudget(), sampler)
		e.adaptive.SetClock(o.now)
		e.adaptive.SetOnLevelChange(e.onLevelChange)
		renderOpts = append(renderOpts, render.WithAdaptive(e.adaptive))
	}

	if e.render, err = render.New(cfg.Render, buf, sampler, renderOpts...); err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("create render pipeline: %w", err)
	}

	if e.ingestion, err = ingestion.New(cfg.Ingestion, buf, src, o.metrics, ingestion.WithCategories(e.tracker)); err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("create ingestion: %w", err)
	}

	return e, nil
}

// Start runs the ingestion, render and metrics ticks until ctx is
// cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running.Load() {
		return fmt.Errorf("engine: %w", errors.ErrAlreadyRunning)
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan error, 1)

	e.cancel = cancel
	e.done = done
	e.startTime = e.now()
	e.running.Store(true)

	g.Go(func() error { return e.ingestion.Run(gctx) })
	g.Go(func() error { return e.render.Run(gctx) })
	g.Go(func() error { return e.metricsLoop(gctx) })

	// Clears running when the ticks end without Stop, e.g. on parent
	// context cancellation.
	go func() {
		err := g.Wait()
		cancel()
		if e.running.CompareAndSwap(true, false) {
			log.Info("engine ticks ended", "error", err)
		}
		done <- err
	}()

	log.Info("engine started",
		"source", e.source.Name(),
		"buffer", e.buffer.Cap(),
		"fps", e.config.Render.FPS,
		"adaptive", e.adaptive != nil,
	)
	return nil
}

// Stop stops all ticks and waits for them to return. The engine can be
// started again; the buffer is kept.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running.Load() {
		return nil
	}

	e.running.Store(false)
	e.cancel()
	err := <-e.done

	log.Info("engine stopped", "frames", e.render.FrameCount(), "buffered", e.buffer.Len())
	return err
}

// Close stops the engine and releases the source.
func (e *Engine) Close() error {
	var errs []error
	if err := e.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop: %w", err))
	}
	if err := e.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	return errors.Join(errs...)
}

// metricsLoop materializes a metrics snapshot every interval.
func (e *Engine) metricsLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.config.Metrics.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.captureMetrics()
		}
	}
}

func (e *Engine) captureMetrics() metrics.Snapshot {
	snap := e.sampler.Snapshot()
	e.latestMetrics.Store(&snap)
	e.metrics.SetFPS(snap.FPS)
	return snap
}

func (e *Engine) onLevelChange(old, new adaptive.Level) {
	log.Info("detail level changed", "from", old, "to", new, "density_scale", new.DensityScale())
}

// =============================================================================
// Queries
// =============================================================================

// Snapshot returns the current buffer snapshot.
func (e *Engine) Snapshot() *buffer.Snapshot {
	return e.buffer.Snapshot()
}

// Query returns the newest count buffered samples, restricted to category
// when it is non-empty. Samples are oldest first.
func (e *Engine) Query(count int, category string) ([]types.Sample, error) {
	if count <= 0 {
		return nil, errors.NewBadRequest("count", "must be positive")
	}

	snap := e.buffer.Snapshot()
	if category == "" {
		return snap.Latest(count), nil
	}
	return filter.Limit(filter.Apply(snap.Samples(), filter.ForCategories(category)), count), nil
}

// Filter applies spec to the current snapshot.
func (e *Engine) Filter(spec filter.Spec) []types.Sample {
	return filter.Apply(e.buffer.Snapshot().Samples(), spec)
}

// GenerateBatch returns count synthetic samples spaced by the generator
// interval, starting at start or at now when start is nil. The buffer is
// not touched.
func (e *Engine) GenerateBatch(count int, start *int64) ([]types.Sample, error) {
	if count <= 0 {
		return nil, errors.NewBadRequest("count", "must be positive")
	}
	return e.generator.GenerateBatch(count, start), nil
}

// Next returns the synthetic sample following last.
func (e *Engine) Next(last int64) types.Sample {
	return e.generator.GenerateNext(last)
}

// Aggregate buckets the filtered snapshot into buckets of widthMs.
func (e *Engine) Aggregate(spec filter.Spec, widthMs int64) ([]types.Bucket, error) {
	return aggregate.Aggregate(e.Filter(spec), widthMs, e.aggOptions)
}

// AggregatePeriod buckets the filtered snapshot by a named period. An
// empty period uses the configured default.
func (e *Engine) AggregatePeriod(spec filter.Spec, period string) ([]types.Bucket, error) {
	p := e.defaultPeriod
	if period != "" {
		var err error
		if p, err = types.ParsePeriod(period); err != nil {
			return nil, err
		}
	}
	return aggregate.AggregatePeriod(e.Filter(spec), p, e.aggOptions)
}

// WindowView is the materialized part of the virtualized sample list.
type WindowView struct {
	Window  virtual.Window
	Offset  float64
	Length  int
	Samples []types.Sample
}

// Window computes the virtualization window at scroll offset over the
// current snapshot. The offset is clamped first.
func (e *Engine) Window(offset float64) WindowView {
	snap := e.buffer.Snapshot()
	n := snap.Len()

	g := e.scroller.Geometry()
	offset = virtual.ClampScroll(offset, n, g.ItemExtent, g.ContainerExtent)
	w := virtual.Compute(n, offset, g.ItemExtent, g.ContainerExtent, g.Overscan)

	return WindowView{
		Window:  w,
		Offset:  offset,
		Length:  n,
		Samples: snap.Slice(w.VisibleStart, w.VisibleEnd+1),
	}
}

// Frame returns the latest rendered frame, or nil before the first tick.
func (e *Engine) Frame() *render.Frame {
	return e.render.Latest()
}

// SetRect sets the plotting area of subsequent frames.
func (e *Engine) SetRect(r coords.DisplayRect) {
	e.render.SetRect(r)
}

// TopCategories returns the heaviest categories of the sliding window,
// heaviest first.
func (e *Engine) TopCategories() []categories.Count {
	return e.tracker.Top()
}

// MetricsSnapshot returns the latest periodic metrics snapshot. Before the
// first metrics tick it samples immediately.
func (e *Engine) MetricsSnapshot() metrics.Snapshot {
	if snap := e.latestMetrics.Load(); snap != nil {
		return *snap
	}
	return e.captureMetrics()
}

// Reset empties the buffer and the metrics window. Running ticks continue.
func (e *Engine) Reset() {
	e.buffer.Reset()
	e.sampler.Reset()
	e.latestMetrics.Store(nil)
	e.scroller.SetLength(0)
	e.tracker.Reset()
	e.metrics.SetBufferSamples(0)
	log.Info("engine reset")
}

// =============================================================================
// Accessors
// =============================================================================

// Render returns the render pipeline.
func (e *Engine) Render() *render.Pipeline {
	return e.render
}

// Scroller returns the scroll state of the virtualized sample list.
func (e *Engine) Scroller() *virtual.Scroller {
	return e.scroller
}

// Ingestion returns the ingestion service.
func (e *Engine) Ingestion() *ingestion.Service {
	return e.ingestion
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config {
	return e.config
}

// IsRunning returns whether the ticks are running.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// Stats returns combined statistics.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	start := e.startTime
	e.mu.Unlock()

	var uptime time.Duration
	if e.running.Load() && !start.IsZero() {
		uptime = e.now().Sub(start)
	}

	snap := e.buffer.Snapshot()
	oldest, newest := snap.TimeRange()

	stats := Stats{
		Running:   e.running.Load(),
		Uptime:    uptime,
		Buffer:    e.buffer.Stats(),
		OldestMs:  oldest,
		NewestMs:  newest,
		Span:      snap.Duration(),
		Ingestion: e.ingestion.Stats(),
		Frames:    e.render.FrameCount(),
	}
	if e.adaptive != nil {
		stats.Adaptive = e.adaptive.Stats()
	}
	return stats
}

// Stats holds combined statistics.
type Stats struct {
	Running bool
	Uptime  time.Duration
	Buffer  buffer.BufferStats

	// Timestamps of the oldest and newest buffered samples and the time
	// between them. Zero when the buffer is empty.
	OldestMs int64
	NewestMs int64
	Span     time.Duration

	Ingestion ingestion.ServiceStats
	Adaptive  adaptive.ControllerStats
	Frames    int64
}
