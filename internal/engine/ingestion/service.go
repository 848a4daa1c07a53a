// Package ingestion owns the ingestion tick: it pulls samples from a
// source and appends them to the stream buffer as one batch per tick.
package ingestion

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/xtxerr/streamscope/internal/engine/buffer"
	"github.com/xtxerr/streamscope/internal/engine/categories"
	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/engine/source"
	"github.com/xtxerr/streamscope/internal/engine/telemetry"
	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/logging"
)

var log = logging.Component("ingestion")

// Service orchestrates the ingestion pipeline: Source → Buffer.
// The buffer has exactly one writer, the ingestion tick.
type Service struct {
	config  config.IngestionConfig
	buffer  *buffer.RingBuffer
	source  source.Source
	metrics *telemetry.Metrics
	tracker *categories.Tracker

	// State
	running   atomic.Bool
	exhausted atomic.Bool

	// Statistics
	stats Stats
}

// Stats holds ingestion statistics.
type Stats struct {
	Ticks            atomic.Int64
	SamplesReceived  atomic.Int64
	SamplesEvicted   atomic.Int64
	BatchesProcessed atomic.Int64
	Errors           atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithCategories feeds every ingested sample to the category tracker and
// advances its window once per tick.
func WithCategories(t *categories.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// New creates a new ingestion service.
func New(cfg config.IngestionConfig, buf *buffer.RingBuffer, src source.Source, m *telemetry.Metrics, opts ...Option) (*Service, error) {
	if buf == nil {
		return nil, errors.NewMissingField("buffer")
	}
	if src == nil {
		return nil, errors.NewMissingField("source")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("ingestion interval %v must be positive: %w", cfg.Interval, errors.ErrInvalidInterval)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}

	s := &Service{
		config:  cfg,
		buffer:  buf,
		source:  src,
		metrics: m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run drives the ingestion tick until ctx is cancelled. It returns nil on
// cancellation. Only one Run may be active at a time.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("ingestion: %w", errors.ErrAlreadyRunning)
	}
	defer s.running.Store(false)

	log.Info("ingestion started", "source", s.source.Name(), "interval", s.config.Interval, "batch_size", s.config.BatchSize)
	defer log.Info("ingestion stopped", "source", s.source.Name())

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one ingestion step. A fetch is bounded by the tick
// interval so a slow source never delays the next tick. Returns the number
// of samples appended.
func (s *Service) Tick(ctx context.Context) int {
	s.stats.Ticks.Add(1)
	if s.tracker != nil {
		defer s.tracker.Tick()
	}

	if s.exhausted.Load() {
		return 0
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.config.Interval)
	defer cancel()

	samples, err := s.source.Fetch(fetchCtx, s.config.BatchSize)
	if err != nil {
		s.handleError(err)
	}

	return s.Ingest(samples)
}

func (s *Service) handleError(err error) {
	if errors.Is(err, errors.ErrSourceExhausted) {
		if s.exhausted.CompareAndSwap(false, true) {
			log.Info("source exhausted", "source", s.source.Name())
		}
		return
	}

	s.stats.Errors.Add(1)
	s.metrics.RecordSourceError(s.source.Name())

	if errors.IsRetriable(err) {
		log.Warn("fetch failed, retrying next tick", "source", s.source.Name(), "error", err)
	} else {
		log.Error("fetch failed", "source", s.source.Name(), "error", err)
	}
}

// Ingest appends samples to the buffer as a single batch.
func (s *Service) Ingest(samples []types.Sample) int {
	if len(samples) == 0 {
		return 0
	}

	before := s.buffer.Len()
	after := s.buffer.AppendBatch(samples)
	evicted := int64(before + len(samples) - after)

	s.stats.SamplesReceived.Add(int64(len(samples)))
	s.stats.SamplesEvicted.Add(evicted)
	s.stats.BatchesProcessed.Add(1)

	if s.tracker != nil {
		s.tracker.Observe(samples)
	}
	s.metrics.RecordIngest(s.source.Name(), len(samples), evicted)
	s.metrics.SetBufferSamples(after)

	return len(samples)
}

// Stats returns current statistics.
func (s *Service) Stats() ServiceStats {
	bufferStats := s.buffer.Stats()

	return ServiceStats{
		Running:          s.running.Load(),
		Exhausted:        s.exhausted.Load(),
		Source:           s.source.Name(),
		Ticks:            s.stats.Ticks.Load(),
		SamplesReceived:  s.stats.SamplesReceived.Load(),
		SamplesEvicted:   s.stats.SamplesEvicted.Load(),
		BatchesProcessed: s.stats.BatchesProcessed.Load(),
		Errors:           s.stats.Errors.Load(),
		BufferUsage:      bufferStats.UsageRatio,
		BufferCount:      bufferStats.Count,
	}
}

// ServiceStats holds combined service statistics.
type ServiceStats struct {
	Running          bool    `json:"running"`
	Exhausted        bool    `json:"exhausted"`
	Source           string  `json:"source"`
	Ticks            int64   `json:"ticks"`
	SamplesReceived  int64   `json:"samples_received"`
	SamplesEvicted   int64   `json:"samples_evicted"`
	BatchesProcessed int64   `json:"batches_processed"`
	Errors           int64   `json:"errors"`
	BufferUsage      float64 `json:"buffer_usage"`
	BufferCount      int     `json:"buffer_count"`
}
