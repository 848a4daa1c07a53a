// Package server provides the HTTP query surface of the engine.
//
// Read routes answer from buffer snapshots and never block the ticks.
// Mutating routes (export, reset, view) require a bearer token when a
// secret is configured; failed attempts are rate limited per client IP.
// An optional gRPC listener serves the standard health protocol.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/streamscope/internal/api"
	"github.com/xtxerr/streamscope/internal/engine"
	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/engine/export"
	"github.com/xtxerr/streamscope/internal/engine/telemetry"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/logging"
)

var log = logging.Component("server")

// healthPollInterval is how often the gRPC engine status is refreshed.
const healthPollInterval = time.Second

// Server serves the query surface for one engine.
type Server struct {
	cfg      config.ServerConfig
	engine   *engine.Engine
	exporter *export.Exporter
	metrics  *telemetry.Metrics
	gatherer prometheus.Gatherer
	now      func() time.Time

	auth    *Authenticator
	limiter *RateLimiter
	batches singleflight.Group

	mux      *http.ServeMux
	http     *http.Server
	listener net.Listener
	health   *HealthServer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithTelemetry records request metrics to m.
func WithTelemetry(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithClock sets the clock used for request timing and token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server for eng. Server and export settings come from the
// engine configuration.
func New(eng *engine.Engine, opts ...Option) (*Server, error) {
	cfg := eng.Config()

	exporter, err := export.NewFromConfig(cfg.Export)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	s := &Server{
		cfg:      cfg.Server,
		engine:   eng,
		exporter: exporter,
		gatherer: prometheus.DefaultGatherer,
		now:      time.Now,
		auth:     NewAuthenticator(cfg.Server.Auth),
		limiter:  NewRateLimiter(cfg.Server.Auth.MaxFailures, cfg.Server.Auth.FailureWindow),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	exporter.SetClock(s.now)
	s.limiter.SetClock(s.now)
	if s.auth != nil {
		s.auth.now = s.now
	}

	s.routes()

	s.http = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.mux,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	if s.cfg.GRPCListen != "" {
		s.health = newHealthServer()
	}

	return s, nil
}

func (s *Server) routes() {
	s.handle("GET "+api.PathBatch, "batch", false, s.handleBatch)
	s.handle("GET "+api.PathNext, "next", false, s.handleNext)
	s.handle("GET "+api.PathGenerate, "generate", false, s.handleGenerate)
	s.handle("GET "+api.PathAggregate, "aggregate", false, s.handleAggregate)
	s.handle("GET "+api.PathWindow, "window", false, s.handleWindow)
	s.handle("GET "+api.PathFrame, "frame", false, s.handleFrame)
	s.handle("GET "+api.PathMetrics, "metrics_snapshot", false, s.handleMetricsSnapshot)
	s.handle("GET "+api.PathCategories, "categories", false, s.handleCategories)
	s.handle("GET "+api.PathStats, "stats", false, s.handleStats)
	s.handle("GET "+api.PathExports, "exports", false, s.handleListExports)
	s.handle("GET "+api.PathHealth, "healthz", false, s.handleHealth)

	s.handle("POST "+api.PathView, "view", true, s.handleView)
	s.handle("POST "+api.PathExport, "export", true, s.handleExport)
	s.handle("POST "+api.PathReset, "reset", true, s.handleReset)

	s.mux.Handle("GET "+api.PathPrometheus, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the HTTP handler of the query surface.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Exporter returns the snapshot exporter.
func (s *Server) Exporter() *export.Exporter {
	return s.exporter
}

// Start binds the listeners and serves in the background until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln

	if s.health != nil {
		if err := s.health.Listen(s.cfg.GRPCListen); err != nil {
			ln.Close()
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.auth == nil {
		log.Warn("no auth secret configured, mutating routes are open")
	} else {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.limiter.Run(ctx)
		}()
	}

	if s.health != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.watchEngine(ctx)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info("listening", "address", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound HTTP address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// GRPCAddr returns the bound gRPC address, or nil if gRPC is disabled.
func (s *Server) GRPCAddr() net.Addr {
	if s.health == nil {
		return nil
	}
	return s.health.Addr()
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("shutting down")

	err := s.http.Shutdown(ctx)
	if s.health != nil {
		s.health.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	log.Info("shutdown complete")
	return err
}

// watchEngine mirrors the engine state into the gRPC health service.
func (s *Server) watchEngine(ctx context.Context) {
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	s.health.SetEngineServing(s.engine.IsRunning())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.health.SetEngineServing(s.engine.IsRunning())
		}
	}
}
