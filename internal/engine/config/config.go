// Package config holds the YAML configuration of the engine and its hosts.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	defaults "github.com/xtxerr/streamscope/config"
)

// Config represents the complete engine configuration.
type Config struct {
	// Log configures logging output.
	Log LogConfig `yaml:"log"`

	// Buffer configures the bounded stream buffer.
	Buffer BufferConfig `yaml:"buffer"`

	// Ingestion configures the ingestion tick and the sample source.
	Ingestion IngestionConfig `yaml:"ingestion"`

	// Render configures the render tick.
	Render RenderConfig `yaml:"render"`

	// Metrics configures the metrics sampler.
	Metrics MetricsConfig `yaml:"metrics"`

	// Aggregation configures bucket aggregation.
	Aggregation AggregationConfig `yaml:"aggregation"`

	// Adaptive configures the adaptive detail controller.
	Adaptive AdaptiveConfig `yaml:"adaptive"`

	// Virtual configures the virtualized sample list.
	Virtual VirtualConfig `yaml:"virtual"`

	// Categories configures the sliding top-k category tracker.
	Categories CategoriesConfig `yaml:"categories"`

	// Server configures the HTTP query surface.
	Server ServerConfig `yaml:"server"`

	// Export configures snapshot export.
	Export ExportConfig `yaml:"export"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON switches to JSON output.
	JSON bool `yaml:"json"`
}

// BufferConfig configures the bounded stream buffer.
type BufferConfig struct {
	// MaxSize is the number of samples retained.
	MaxSize int `yaml:"max_size"`
}

// IngestionConfig configures the ingestion tick.
type IngestionConfig struct {
	// Interval is the ingestion tick period.
	Interval time.Duration `yaml:"interval"`

	// BatchSize is the number of samples pulled per tick.
	BatchSize int `yaml:"batch_size"`

	// Source selects and configures the sample source.
	Source SourceConfig `yaml:"source"`
}

// Source kinds.
const (
	SourceSynthetic = "synthetic"
	SourceSNMP      = "snmp"
	SourceStream    = "stream"
)

// SourceConfig selects and configures the sample source.
type SourceConfig struct {
	// Kind is synthetic, snmp or stream.
	Kind string `yaml:"kind"`

	Synthetic SyntheticConfig `yaml:"synthetic"`
	SNMP      SNMPConfig      `yaml:"snmp"`
	Stream    StreamConfig    `yaml:"stream"`
}

// SyntheticConfig configures the synthetic generator.
type SyntheticConfig struct {
	// Categories are assigned to generated samples round-robin.
	Categories []string `yaml:"categories"`

	// Seed makes generated values reproducible. 0 seeds from the clock.
	Seed int64 `yaml:"seed"`

	// IntervalMs is the spacing between generated timestamps.
	IntervalMs int64 `yaml:"interval_ms"`
}

// SNMPConfig configures the SNMP poller source.
type SNMPConfig struct {
	Host      string `yaml:"host"`
	Port      uint16 `yaml:"port"`
	Community string `yaml:"community"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Retries   int    `yaml:"retries"`

	// OIDs maps a category name to the numeric OID polled for it.
	OIDs []OIDConfig `yaml:"oids"`
}

// OIDConfig names one polled OID.
type OIDConfig struct {
	Category string `yaml:"category"`
	OID      string `yaml:"oid"`
}

// StreamConfig configures the framed protobuf stream source.
type StreamConfig struct {
	// Path is a file or named pipe. "-" reads standard input.
	Path string `yaml:"path"`

	// MaxMessageSize bounds a single framed message.
	MaxMessageSize int `yaml:"max_message_size"`
}

// RenderConfig configures the render tick.
type RenderConfig struct {
	// FPS is the target refresh rate.
	FPS int `yaml:"fps"`

	// Padding is the viewport padding fraction.
	Padding float64 `yaml:"padding"`

	// Mode is the default presentation mode: line, scatter or bar.
	Mode string `yaml:"mode"`

	// LOD holds the target density per presentation mode.
	LOD LODConfig `yaml:"lod"`

	// FrameBudget is the time one frame may take. Defaults to 1s / FPS.
	FrameBudget time.Duration `yaml:"frame_budget"`
}

// LODConfig holds the target density per presentation mode.
type LODConfig struct {
	Line    int `yaml:"line"`
	Scatter int `yaml:"scatter"`
	Bar     int `yaml:"bar"`
}

// MetricsConfig configures the metrics sampler.
type MetricsConfig struct {
	// Interval is the snapshot tick period.
	Interval time.Duration `yaml:"interval"`

	// Window is the number of frame intervals kept.
	Window int `yaml:"window"`
}

// AggregationConfig configures bucket aggregation.
type AggregationConfig struct {
	// DefaultPeriod is 1min, 5min or 1hour.
	DefaultPeriod string `yaml:"default_period"`

	// Percentile configures DDSketch percentiles.
	Percentile PercentileConfig `yaml:"percentile"`

	// CategoryPolicy is first or majority.
	CategoryPolicy string `yaml:"category_policy"`
}

// PercentileConfig configures DDSketch percentile calculation.
type PercentileConfig struct {
	// Enabled enables percentile calculation.
	Enabled bool `yaml:"enabled"`

	// Accuracy is the relative accuracy (0.01 = 1% error).
	Accuracy float64 `yaml:"accuracy"`
}

// AdaptiveConfig configures the adaptive detail controller.
type AdaptiveConfig struct {
	// Enabled enables adaptive detail.
	Enabled bool `yaml:"enabled"`

	// Thresholds defines frame-load thresholds for level changes.
	Thresholds AdaptiveThresholds `yaml:"thresholds"`

	// Recovery configures recovery behavior.
	Recovery AdaptiveRecovery `yaml:"recovery"`
}

// AdaptiveThresholds are ratios of mean frame time to the frame budget.
type AdaptiveThresholds struct {
	Warning   float64 `yaml:"warning"`
	Critical  float64 `yaml:"critical"`
	Emergency float64 `yaml:"emergency"`
}

// AdaptiveRecovery configures recovery behavior.
type AdaptiveRecovery struct {
	// Hysteresis to prevent flapping.
	Hysteresis float64 `yaml:"hysteresis"`

	// Cooldown is the minimum time between evaluations.
	Cooldown time.Duration `yaml:"cooldown"`
}

// VirtualConfig configures the virtualized sample list.
type VirtualConfig struct {
	ItemExtent      float64 `yaml:"item_extent"`
	ContainerExtent float64 `yaml:"container_extent"`
	Overscan        int     `yaml:"overscan"`
}

// CategoriesConfig configures the sliding top-k category tracker.
type CategoriesConfig struct {
	// K is the number of categories reported.
	K int `yaml:"k"`

	// WindowTicks is the sliding window length in ingestion ticks.
	WindowTicks int `yaml:"window_ticks"`
}

// ServerConfig configures the HTTP query surface.
type ServerConfig struct {
	Listen            string        `yaml:"listen"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	DrainTimeout      time.Duration `yaml:"drain_timeout"`

	// MaxBatchCount caps the count parameter of batch requests.
	MaxBatchCount int `yaml:"max_batch_count"`

	// GRPCListen enables the gRPC health service on this address.
	GRPCListen string `yaml:"grpc_listen"`

	// Auth protects the mutating routes.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig configures bearer token authentication of mutating routes.
type AuthConfig struct {
	// Secret is the HMAC key tokens are signed with. Empty disables auth.
	Secret string `yaml:"secret"`

	// Issuer, if set, must match the token's iss claim.
	Issuer string `yaml:"issuer"`

	// MaxFailures is the number of failed attempts per client IP
	// allowed within FailureWindow before requests are rejected.
	MaxFailures int `yaml:"max_failures"`

	// FailureWindow is the period failed attempts are counted over.
	FailureWindow time.Duration `yaml:"failure_window"`
}

// ExportConfig configures snapshot export.
type ExportConfig struct {
	// Dir is the directory export files are written to.
	Dir string `yaml:"dir"`

	// Format is the default export format: parquet, xlsx or ndjson.xz.
	Format string `yaml:"format"`

	// Compression configures Parquet compression.
	Compression CompressionConfig `yaml:"compression"`
}

// CompressionConfig configures Parquet compression.
type CompressionConfig struct {
	// Algorithm is the compression algorithm: snappy, zstd, lz4, gzip, none.
	Algorithm string `yaml:"algorithm"`

	// Level is the compression level (for zstd: 1-22).
	Level int `yaml:"level"`
}

// Load loads configuration from a YAML file on top of DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration on top of DefaultConfig.
func Parse(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Buffer: BufferConfig{
			MaxSize: defaults.DefaultBufferMaxSize,
		},
		Ingestion: IngestionConfig{
			Interval:  defaults.DefaultIngestInterval,
			BatchSize: defaults.DefaultIngestBatchSize,
			Source: SourceConfig{
				Kind: defaults.DefaultSourceKind,
				Synthetic: SyntheticConfig{
					Categories: []string{"cpu", "memory", "network"},
					IntervalMs: defaults.DefaultSampleIntervalMs,
				},
				SNMP: SNMPConfig{
					Port:      defaults.DefaultSNMPPort,
					Community: "public",
					TimeoutMs: defaults.DefaultSNMPTimeoutMs,
					Retries:   defaults.DefaultSNMPRetries,
				},
				Stream: StreamConfig{
					MaxMessageSize: defaults.DefaultMaxMessageSize,
				},
			},
		},
		Render: RenderConfig{
			FPS:     defaults.DefaultRenderFPS,
			Padding: defaults.DefaultViewportPadding,
			Mode:    "line",
			LOD: LODConfig{
				Line:    defaults.DefaultLineDensity,
				Scatter: defaults.DefaultScatterDensity,
				Bar:     defaults.DefaultBarDensity,
			},
		},
		Metrics: MetricsConfig{
			Interval: defaults.DefaultMetricsInterval,
			Window:   defaults.DefaultFrameWindow,
		},
		Aggregation: AggregationConfig{
			DefaultPeriod: defaults.DefaultAggregationPeriod,
			Percentile: PercentileConfig{
				Enabled:  true,
				Accuracy: defaults.DefaultPercentileAccuracy,
			},
			CategoryPolicy: defaults.DefaultCategoryPolicy,
		},
		Adaptive: AdaptiveConfig{
			Enabled: true,
			Thresholds: AdaptiveThresholds{
				Warning:   defaults.DefaultAdaptiveWarning,
				Critical:  defaults.DefaultAdaptiveCritical,
				Emergency: defaults.DefaultAdaptiveEmergency,
			},
			Recovery: AdaptiveRecovery{
				Hysteresis: defaults.DefaultAdaptiveHysteresis,
				Cooldown:   defaults.DefaultAdaptiveCooldown,
			},
		},
		Virtual: VirtualConfig{
			ItemExtent:      defaults.DefaultItemExtent,
			ContainerExtent: defaults.DefaultContainerExtent,
			Overscan:        defaults.DefaultOverscan,
		},
		Categories: CategoriesConfig{
			K:           defaults.DefaultTopCategories,
			WindowTicks: defaults.DefaultCategoryWindowTicks,
		},
		Server: ServerConfig{
			Listen:            defaults.DefaultListenAddress,
			ReadHeaderTimeout: defaults.DefaultReadHeaderTimeout,
			ReadTimeout:       defaults.DefaultReadTimeout,
			WriteTimeout:      defaults.DefaultWriteTimeout,
			IdleTimeout:       defaults.DefaultIdleTimeout,
			DrainTimeout:      defaults.DefaultDrainTimeoutSec * time.Second,
			MaxBatchCount:     defaults.DefaultMaxBatchCount,
			Auth: AuthConfig{
				MaxFailures:   defaults.DefaultAuthMaxFailures,
				FailureWindow: defaults.DefaultAuthFailureWindow,
			},
		},
		Export: ExportConfig{
			Dir:    defaults.DefaultExportDir,
			Format: defaults.DefaultExportFormat,
			Compression: CompressionConfig{
				Algorithm: defaults.DefaultExportCompression,
				Level:     3,
			},
		},
	}
}

// EffectiveFrameBudget returns the configured frame budget, or 1s / FPS.
func (c *RenderConfig) EffectiveFrameBudget() time.Duration {
	if c.FrameBudget > 0 {
		return c.FrameBudget
	}
	if c.FPS <= 0 {
		return time.Second / defaults.DefaultRenderFPS
	}
	return time.Second / time.Duration(c.FPS)
}

// FrameInterval returns the render tick period, 1s / FPS.
func (c *RenderConfig) FrameInterval() time.Duration {
	if c.FPS <= 0 {
		return time.Second / defaults.DefaultRenderFPS
	}
	return time.Second / time.Duration(c.FPS)
}
