package config

import (
	"fmt"
	"net"

	"github.com/xtxerr/streamscope/internal/engine/aggregate"
	"github.com/xtxerr/streamscope/internal/engine/lod"
	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
)

// Validate checks the configuration for errors. All problems are reported
// together; every one of them matches errors.IsConfiguration.
func (c *Config) Validate() error {
	var errs []error

	if c.Buffer.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("buffer: max_size %d must be positive: %w", c.Buffer.MaxSize, errors.ErrInvalidCapacity))
	}

	if err := c.Ingestion.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ingestion: %w", err))
	}

	if err := c.Render.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("render: %w", err))
	}

	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}

	if err := c.Aggregation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("aggregation: %w", err))
	}

	if err := c.Adaptive.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("adaptive: %w", err))
	}

	if err := c.Virtual.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("virtual: %w", err))
	}

	if err := c.Categories.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("categories: %w", err))
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}

	if err := c.Export.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("export: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the ingestion configuration.
func (c *IngestionConfig) Validate() error {
	var errs []error

	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval %v must be positive: %w", c.Interval, errors.ErrInvalidInterval))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, errors.NewValidation("batch_size", "must be positive"))
	}

	switch c.Source.Kind {
	case SourceSynthetic:
		if c.Source.Synthetic.IntervalMs <= 0 {
			errs = append(errs, errors.NewValidation("source.synthetic.interval_ms", "must be positive"))
		}
	case SourceSNMP:
		if err := c.Source.SNMP.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("source.snmp: %w", err))
		}
	case SourceStream:
		if c.Source.Stream.Path == "" {
			errs = append(errs, errors.NewMissingField("source.stream.path"))
		}
		if c.Source.Stream.MaxMessageSize <= 0 {
			errs = append(errs, errors.NewValidation("source.stream.max_message_size", "must be positive"))
		}
	default:
		errs = append(errs, errors.NewInvalidValue("source.kind", c.Source.Kind, "must be one of: synthetic, snmp, stream"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the SNMP source configuration.
func (c *SNMPConfig) Validate() error {
	verrs := errors.NewValidationErrors()

	if c.Host == "" {
		verrs.AddMissing("host")
	}
	if c.Community == "" {
		verrs.AddMissing("community")
	}
	if c.TimeoutMs <= 0 {
		verrs.AddField("timeout_ms", "must be positive")
	}
	if c.Retries < 0 {
		verrs.AddField("retries", "must not be negative")
	}
	if len(c.OIDs) == 0 {
		verrs.AddMissing("oids")
	}
	for i, o := range c.OIDs {
		if o.OID == "" {
			verrs.AddMissing(fmt.Sprintf("oids[%d].oid", i))
		}
		if o.Category == "" {
			verrs.AddMissing(fmt.Sprintf("oids[%d].category", i))
		}
	}

	if !verrs.HasErrors() {
		return nil
	}
	return verrs
}

// Validate checks the render configuration.
func (c *RenderConfig) Validate() error {
	var errs []error

	if c.FPS <= 0 || c.FPS > 240 {
		errs = append(errs, errors.NewValidation("fps", "must be between 1 and 240"))
	}
	if c.Padding < 0 || c.Padding >= 0.5 {
		errs = append(errs, errors.NewValidation("padding", "must be in [0, 0.5)"))
	}
	if _, err := lod.ParseMode(c.Mode); err != nil {
		errs = append(errs, errors.NewInvalidValue("mode", c.Mode, "must be one of: line, scatter, bar"))
	}
	if _, err := lod.NewPolicy(c.LOD.Densities()); err != nil {
		errs = append(errs, fmt.Errorf("lod: %w", err))
	}
	if c.FrameBudget < 0 {
		errs = append(errs, errors.NewValidation("frame_budget", "must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Densities returns the per-mode densities keyed by mode.
func (c *LODConfig) Densities() map[lod.Mode]int {
	return map[lod.Mode]int{
		lod.ModeLine:    c.Line,
		lod.ModeScatter: c.Scatter,
		lod.ModeBar:     c.Bar,
	}
}

// Validate checks the metrics configuration.
func (c *MetricsConfig) Validate() error {
	var errs []error

	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval %v must be positive: %w", c.Interval, errors.ErrInvalidInterval))
	}
	if c.Window <= 0 {
		errs = append(errs, errors.NewValidation("window", "must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the aggregation configuration.
func (c *AggregationConfig) Validate() error {
	var errs []error

	if _, err := types.ParsePeriod(c.DefaultPeriod); err != nil {
		errs = append(errs, errors.NewInvalidValue("default_period", c.DefaultPeriod, "must be one of: 1min, 5min, 1hour"))
	}
	if c.Percentile.Enabled {
		if c.Percentile.Accuracy <= 0 || c.Percentile.Accuracy >= 1 {
			errs = append(errs, errors.NewValidation("percentile.accuracy", "must be between 0 and 1"))
		}
	}
	if _, err := aggregate.ParseCategoryPolicy(c.CategoryPolicy); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Options returns the aggregation options the configuration selects.
func (c *AggregationConfig) Options() aggregate.Options {
	policy, _ := aggregate.ParseCategoryPolicy(c.CategoryPolicy)
	opts := aggregate.Options{Policy: policy}
	if c.Percentile.Enabled {
		opts.PercentileAccuracy = c.Percentile.Accuracy
	}
	return opts
}

// Validate checks the adaptive configuration.
func (c *AdaptiveConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error
	t := c.Thresholds

	if t.Warning <= 0 {
		errs = append(errs, errors.NewValidation("thresholds.warning", "must be positive"))
	}
	if t.Critical <= t.Warning {
		errs = append(errs, errors.NewValidation("thresholds.critical", "must be greater than warning"))
	}
	if t.Emergency <= t.Critical {
		errs = append(errs, errors.NewValidation("thresholds.emergency", "must be greater than critical"))
	}
	if c.Recovery.Hysteresis < 0 || c.Recovery.Hysteresis >= t.Warning {
		errs = append(errs, errors.NewValidation("recovery.hysteresis", "must be in [0, warning)"))
	}
	if c.Recovery.Cooldown < 0 {
		errs = append(errs, errors.NewValidation("recovery.cooldown", "must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the virtual list configuration.
func (c *VirtualConfig) Validate() error {
	var errs []error

	if c.ItemExtent <= 0 {
		errs = append(errs, errors.NewValidation("item_extent", "must be positive"))
	}
	if c.ContainerExtent < 0 {
		errs = append(errs, errors.NewValidation("container_extent", "must not be negative"))
	}
	if c.Overscan < 0 {
		errs = append(errs, errors.NewValidation("overscan", "must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the category tracker configuration.
func (c *CategoriesConfig) Validate() error {
	var errs []error

	if c.K <= 0 {
		errs = append(errs, errors.NewValidation("k", "must be positive"))
	}
	if c.WindowTicks <= 0 {
		errs = append(errs, errors.NewValidation("window_ticks", "must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.NewMissingField("listen"))
	} else if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = append(errs, errors.NewInvalidValue("listen", c.Listen, err.Error()))
	}
	if c.MaxBatchCount <= 0 {
		errs = append(errs, errors.NewValidation("max_batch_count", "must be positive"))
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 || c.ReadHeaderTimeout < 0 {
		errs = append(errs, errors.NewValidation("timeouts", "must not be negative"))
	}
	if c.GRPCListen != "" {
		if _, _, err := net.SplitHostPort(c.GRPCListen); err != nil {
			errs = append(errs, errors.NewInvalidValue("grpc_listen", c.GRPCListen, err.Error()))
		}
	}
	if c.Auth.Secret != "" {
		if len(c.Auth.Secret) < 16 {
			errs = append(errs, errors.NewValidation("auth.secret", "must be at least 16 bytes"))
		}
		if c.Auth.MaxFailures <= 0 {
			errs = append(errs, errors.NewValidation("auth.max_failures", "must be positive"))
		}
		if c.Auth.FailureWindow <= 0 {
			errs = append(errs, errors.NewValidation("auth.failure_window", "must be positive"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the export configuration.
func (c *ExportConfig) Validate() error {
	var errs []error

	validAlgorithms := map[string]bool{
		"snappy": true,
		"zstd":   true,
		"lz4":    true,
		"gzip":   true,
		"none":   true,
		"":       true, // Empty defaults to zstd
	}
	if !validAlgorithms[c.Compression.Algorithm] {
		errs = append(errs, errors.NewInvalidValue("compression.algorithm", c.Compression.Algorithm, "must be one of: snappy, zstd, lz4, gzip, none"))
	}

	switch c.Format {
	case "", "parquet", "xlsx", "ndjson.xz":
	default:
		errs = append(errs, errors.NewInvalidValue("format", c.Format, "must be one of: parquet, xlsx, ndjson.xz"))
	}

	if c.Compression.Algorithm == "zstd" && (c.Compression.Level < 0 || c.Compression.Level > 22) {
		errs = append(errs, errors.NewValidation("compression.level", "for zstd must be between 0 and 22"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
