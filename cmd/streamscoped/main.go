// streamscoped runs the streaming engine and serves its query surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/xtxerr/streamscope/internal/engine"
	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/engine/telemetry"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/logging"
	"github.com/xtxerr/streamscope/internal/server"
)

// Version is set at build time via ldflags
var Version = "dev"

var log = logging.Component("main")

func main() {
	// CLI flags
	cfgPath := flag.String("config", "streamscope.yaml", "config file path")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	grpcListen := flag.String("grpc-listen", "", "gRPC health listen address (overrides config)")
	sourceKind := flag.String("source", "", "sample source: synthetic, snmp or stream (overrides config)")
	exportDir := flag.String("export-dir", "", "export directory (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	issueToken := flag.String("issue-token", "", "print a bearer token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// CLI overrides
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *grpcListen != "" {
		cfg.Server.GRPCListen = *grpcListen
	}
	if *sourceKind != "" {
		cfg.Ingestion.Source.Kind = *sourceKind
	}
	if *exportDir != "" {
		cfg.Export.Dir = *exportDir
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	// Secret from env wins over an empty config value
	if cfg.Server.Auth.Secret == "" {
		cfg.Server.Auth.Secret = os.Getenv("STREAMSCOPE_AUTH_SECRET")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		if err := printToken(cfg.Server.Auth, *issueToken, *tokenTTL); err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)
	log.Info("streamscoped starting", "version", Version, "config", *cfgPath)

	if err := run(cfg); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads path, falling back to defaults when it does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return config.DefaultConfig(), nil
	}
	return nil, err
}

func printToken(auth config.AuthConfig, subject string, ttl time.Duration) error {
	if auth.Secret == "" {
		return fmt.Errorf("no secret configured (server.auth.secret or STREAMSCOPE_AUTH_SECRET)")
	}
	token, err := server.SignToken(auth.Secret, auth.Issuer, subject, ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func run(cfg *config.Config) error {
	// =========================================================================
	// Telemetry
	// =========================================================================

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.New(reg)

	// =========================================================================
	// Engine
	// =========================================================================

	eng, err := engine.New(cfg, engine.WithTelemetry(metrics))
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn("engine close", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	// =========================================================================
	// Server
	// =========================================================================

	srv, err := server.New(eng, server.WithTelemetry(metrics), server.WithGatherer(reg))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	log.Info("ready",
		"listen", srv.Addr().String(),
		"grpc", cfg.Server.GRPCListen,
		"source", cfg.Ingestion.Source.Kind,
		"auth", cfg.Server.Auth.Secret != "",
	)

	// =========================================================================
	// Signal Handling and Graceful Shutdown
	// =========================================================================

	<-ctx.Done()
	log.Info("shutting down", "drain_timeout", cfg.Server.DrainTimeout)

	// Server first; the deferred Close stops the engine after it.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.DrainTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}

	return nil
}
