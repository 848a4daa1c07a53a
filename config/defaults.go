// Package config provides configuration defaults for the streamscope
// engine and its hosts.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or command-line flags.
package config

import "time"

// =============================================================================
// Buffer Defaults
// =============================================================================

const (
	// DefaultBufferMaxSize is the number of samples kept in the live buffer.
	// The newest DefaultBufferMaxSize samples are retained, oldest evicted first.
	// Override via config: buffer.max_size
	DefaultBufferMaxSize = 10000
)

// =============================================================================
// Ingestion Defaults
// =============================================================================

const (
	// DefaultIngestInterval is the period of the ingestion tick.
	// Override via config: ingestion.interval
	DefaultIngestInterval = 100 * time.Millisecond

	// DefaultSampleIntervalMs is the spacing between generated samples.
	// Each generated timestamp is the previous one plus this value.
	DefaultSampleIntervalMs = 100

	// DefaultIngestBatchSize is the number of samples pulled per ingestion tick.
	// Override via config: ingestion.batch_size
	DefaultIngestBatchSize = 1

	// DefaultSourceKind selects the sample source.
	// Override via config: ingestion.source.kind
	DefaultSourceKind = "synthetic"
)

// =============================================================================
// Render Defaults
// =============================================================================

const (
	// DefaultRenderFPS is the target display refresh rate.
	// Override via config: render.fps
	DefaultRenderFPS = 60

	// DefaultViewportPadding is the fraction of the data range added on
	// both sides of each viewport axis.
	// Override via config: render.padding
	DefaultViewportPadding = 0.05

	// DefaultLineDensity is the LOD target density for line rendering.
	// Lines stay readable with fewer points than markers.
	// Override via config: render.lod.line
	DefaultLineDensity = 1000

	// DefaultScatterDensity is the LOD target density for scatter markers.
	// Override via config: render.lod.scatter
	DefaultScatterDensity = 500

	// DefaultBarDensity is the LOD target density for bar rendering.
	// Override via config: render.lod.bar
	DefaultBarDensity = 200
)

// =============================================================================
// Aggregation Defaults
// =============================================================================

const (
	// DefaultAggregationPeriod is the bucket period used when a query names none.
	// Override via config: aggregation.default_period
	DefaultAggregationPeriod = "1min"

	// DefaultPercentileAccuracy is the DDSketch relative accuracy (1%).
	// Override via config: aggregation.percentile.accuracy
	DefaultPercentileAccuracy = 0.01

	// DefaultCategoryPolicy picks the representative category of a bucket.
	// Override via config: aggregation.category_policy
	DefaultCategoryPolicy = "first"
)

// =============================================================================
// Adaptive Detail Defaults
// =============================================================================

const (
	// Thresholds are ratios of mean frame time to the frame budget.
	// Override via config: adaptive.thresholds.*
	DefaultAdaptiveWarning   = 0.80
	DefaultAdaptiveCritical  = 1.00
	DefaultAdaptiveEmergency = 1.50

	// DefaultAdaptiveHysteresis prevents flapping between levels.
	// Override via config: adaptive.recovery.hysteresis
	DefaultAdaptiveHysteresis = 0.10

	// DefaultAdaptiveCooldown is the minimum time between level evaluations.
	// Override via config: adaptive.recovery.cooldown
	DefaultAdaptiveCooldown = 500 * time.Millisecond
)

// =============================================================================
// Metrics Defaults
// =============================================================================

const (
	// DefaultMetricsInterval is the period of the metrics snapshot tick.
	// Override via config: metrics.interval
	DefaultMetricsInterval = time.Second

	// DefaultFrameWindow is the number of frame times kept in the rolling window.
	// Override via config: metrics.window
	DefaultFrameWindow = 60
)

// =============================================================================
// Virtualization Defaults
// =============================================================================

const (
	// DefaultItemExtent is the height of one list row in pixels.
	// Override via config: virtual.item_extent
	DefaultItemExtent = 40

	// DefaultContainerExtent is the visible height of the list in pixels.
	// Override via config: virtual.container_extent
	DefaultContainerExtent = 400

	// DefaultOverscan is the number of extra rows materialized on each side.
	// Override via config: virtual.overscan
	DefaultOverscan = 5
)

// =============================================================================
// Category Tracker Defaults
// =============================================================================

const (
	// DefaultTopCategories is the number of categories the tracker reports.
	// Override via config: categories.k
	DefaultTopCategories = 10

	// DefaultCategoryWindowTicks is the sliding window of the tracker in
	// ingestion ticks. At the default interval this is one minute.
	// Override via config: categories.window_ticks
	DefaultCategoryWindowTicks = 600
)

// =============================================================================
// Network Defaults
// =============================================================================

const (
	// DefaultListenAddress is the default query surface listen address.
	// Override via config: server.listen
	DefaultListenAddress = "127.0.0.1:8087"

	// DefaultMaxMessageSize limits framed protobuf messages to prevent OOM.
	// Override via config: ingestion.source.stream.max_message_size
	DefaultMaxMessageSize = 1 * 1024 * 1024

	// DefaultMaxBatchCount caps the count parameter of batch requests.
	// Override via config: server.max_batch_count
	DefaultMaxBatchCount = 100000
)

const (
	// HTTP server timeouts.
	// Override via config: server.*_timeout
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultReadTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
)

const (
	// DefaultAuthMaxFailures is the number of failed auth attempts per
	// client IP tolerated within DefaultAuthFailureWindow.
	// Override via config: server.auth.max_failures
	DefaultAuthMaxFailures = 5

	// DefaultAuthFailureWindow is the period failed attempts are counted over.
	// Override via config: server.auth.failure_window
	DefaultAuthFailureWindow = time.Minute
)

// =============================================================================
// Export Defaults
// =============================================================================

const (
	// DefaultExportDir is where snapshot exports are written.
	// Override via config: export.dir
	DefaultExportDir = "exports"

	// DefaultExportCompression is the Parquet compression codec.
	// Override via config: export.compression.algorithm
	DefaultExportCompression = "zstd"

	// DefaultExportFormat is the file format of exports.
	// Override via config: export.format
	DefaultExportFormat = "parquet"
)

// =============================================================================
// SNMP Defaults
// =============================================================================

const (
	// DefaultSNMPTimeoutMs is the timeout for a single SNMP request.
	// Override via config: ingestion.source.snmp.timeout_ms
	DefaultSNMPTimeoutMs = 2000

	// DefaultSNMPRetries is the number of retry attempts after timeout.
	// Override via config: ingestion.source.snmp.retries
	DefaultSNMPRetries = 1

	// DefaultSNMPPort is the agent UDP port.
	DefaultSNMPPort = 161
)

// =============================================================================
// Shutdown Defaults
// =============================================================================

const (
	// DefaultDrainTimeoutSec is how long the daemon waits for in-flight
	// HTTP requests during shutdown.
	// Override via config: server.drain_timeout_sec
	DefaultDrainTimeoutSec = 10
)
