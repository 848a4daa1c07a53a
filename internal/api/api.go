// Package api defines the JSON documents of the HTTP query surface.
//
// The server converts engine values into these types and the client
// decodes them; neither side shares engine internals over the wire.
package api

import "time"

// Route paths.
const (
	PathBatch      = "/v1/batch"
	PathNext       = "/v1/next"
	PathGenerate   = "/v1/generate"
	PathAggregate  = "/v1/aggregate"
	PathWindow     = "/v1/window"
	PathFrame      = "/v1/frame"
	PathMetrics    = "/v1/metrics/snapshot"
	PathCategories = "/v1/categories"
	PathStats      = "/v1/stats"
	PathView       = "/v1/view"
	PathExport     = "/v1/export"
	PathExports    = "/v1/exports"
	PathReset      = "/v1/reset"
	PathHealth     = "/healthz"
	PathPrometheus = "/metrics"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// Sample is one measurement.
type Sample struct {
	TimestampMs int64          `json:"timestamp_ms"`
	Value       float64        `json:"value"`
	Category    string         `json:"category"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Bucket is one aggregation bucket. Percentiles are omitted when they were
// not computed.
type Bucket struct {
	BucketStart int64    `json:"bucket_start"`
	BucketEnd   int64    `json:"bucket_end"`
	Category    string   `json:"category"`
	Count       int64    `json:"count"`
	Mean        float64  `json:"mean"`
	Min         float64  `json:"min"`
	Max         float64  `json:"max"`
	P50         *float64 `json:"p50,omitempty"`
	P90         *float64 `json:"p90,omitempty"`
	P95         *float64 `json:"p95,omitempty"`
	P99         *float64 `json:"p99,omitempty"`
}

// BatchResponse answers GET /v1/batch and GET /v1/generate.
type BatchResponse struct {
	Count   int      `json:"count"`
	Samples []Sample `json:"samples"`
}

// AggregateResponse answers GET /v1/aggregate.
type AggregateResponse struct {
	Period  string   `json:"period,omitempty"`
	WidthMs int64    `json:"width_ms"`
	Buckets []Bucket `json:"buckets"`
}

// WindowResponse answers GET /v1/window.
type WindowResponse struct {
	VisibleStart  int      `json:"visible_start"`
	VisibleEnd    int      `json:"visible_end"`
	TotalExtent   float64  `json:"total_extent"`
	LeadingOffset float64  `json:"leading_offset"`
	Offset        float64  `json:"offset"`
	Length        int      `json:"length"`
	Samples       []Sample `json:"samples"`
}

// Viewport is the data-space rectangle of a frame.
type Viewport struct {
	XMin int64   `json:"x_min"`
	XMax int64   `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// Point is a display-space position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FrameResponse answers GET /v1/frame.
type FrameResponse struct {
	Version      uint64    `json:"version"`
	Viewport     Viewport  `json:"viewport"`
	Width        float64   `json:"width"`
	Height       float64   `json:"height"`
	Mode         string    `json:"mode"`
	Level        string    `json:"level"`
	Total        int       `json:"total"`
	Points       []Point   `json:"points"`
	ProcessingMs float64   `json:"processing_ms"`
	RenderedAt   time.Time `json:"rendered_at"`
}

// MetricsSnapshot answers GET /v1/metrics/snapshot.
type MetricsSnapshot struct {
	FPS              float64   `json:"fps"`
	FrameTimeMs      float64   `json:"frame_time_ms"`
	MaxFrameTimeMs   float64   `json:"max_frame_time_ms"`
	MemoryMB         float64   `json:"memory_mb"`
	DataProcessingMs float64   `json:"data_processing_ms"`
	FrameCount       int64     `json:"frame_count"`
	WindowSize       int       `json:"window_size"`
	TakenAt          time.Time `json:"taken_at"`
}

// CategoryCount is one entry of the top categories.
type CategoryCount struct {
	Category string `json:"category"`
	Count    uint32 `json:"count"`
}

// CategoriesResponse answers GET /v1/categories.
type CategoriesResponse struct {
	Categories []CategoryCount `json:"categories"`
}

// BufferStats describes the stream buffer.
type BufferStats struct {
	Capacity    int     `json:"capacity"`
	Count       int     `json:"count"`
	UsageRatio  float64 `json:"usage_ratio"`
	AppendCount int64   `json:"append_count"`
	EvictCount  int64   `json:"evict_count"`
	ResetCount  int64   `json:"reset_count"`
	Version     uint64  `json:"version"`
	OldestMs    int64   `json:"oldest_ms"`
	NewestMs    int64   `json:"newest_ms"`
	SpanMs      int64   `json:"span_ms"`
}

// IngestionStats describes the ingestion tick.
type IngestionStats struct {
	Running          bool   `json:"running"`
	Exhausted        bool   `json:"exhausted"`
	Source           string `json:"source"`
	Ticks            int64  `json:"ticks"`
	SamplesReceived  int64  `json:"samples_received"`
	SamplesEvicted   int64  `json:"samples_evicted"`
	BatchesProcessed int64  `json:"batches_processed"`
	Errors           int64  `json:"errors"`
}

// AdaptiveStats describes the adaptive detail controller.
type AdaptiveStats struct {
	Enabled      bool    `json:"enabled"`
	Level        string  `json:"level"`
	Load         float64 `json:"load"`
	LevelChanges int64   `json:"level_changes"`
}

// StatsResponse answers GET /v1/stats.
type StatsResponse struct {
	Running   bool           `json:"running"`
	UptimeSec float64        `json:"uptime_sec"`
	Buffer    BufferStats    `json:"buffer"`
	Ingestion IngestionStats `json:"ingestion"`
	Adaptive  AdaptiveStats  `json:"adaptive"`
	Frames    int64          `json:"frames"`
	Mode      string         `json:"mode"`
	Filter    []string       `json:"filter,omitempty"`
}

// ViewResponse answers POST /v1/view with the view now in effect.
type ViewResponse struct {
	Mode       string   `json:"mode"`
	Categories []string `json:"categories,omitempty"`
}

// ExportResult answers POST /v1/export.
type ExportResult struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Format   string `json:"format"`
	Rows     int64  `json:"rows"`
	Bytes    int64  `json:"bytes"`
	Checksum string `json:"checksum"`
}

// ExportsResponse answers GET /v1/exports.
type ExportsResponse struct {
	Files []string `json:"files"`
}

// HealthResponse answers GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
