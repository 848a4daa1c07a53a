package server

import (
	"github.com/xtxerr/streamscope/internal/api"
	"github.com/xtxerr/streamscope/internal/engine"
	"github.com/xtxerr/streamscope/internal/engine/categories"
	"github.com/xtxerr/streamscope/internal/engine/export"
	"github.com/xtxerr/streamscope/internal/engine/metrics"
	"github.com/xtxerr/streamscope/internal/engine/render"
	"github.com/xtxerr/streamscope/internal/engine/types"
)

func toSample(s types.Sample) api.Sample {
	return api.Sample{
		TimestampMs: s.TimestampMs,
		Value:       s.Value,
		Category:    s.Category,
		Metadata:    s.Metadata,
	}
}

func toSamples(samples []types.Sample) []api.Sample {
	out := make([]api.Sample, len(samples))
	for i := range samples {
		out[i] = toSample(samples[i])
	}
	return out
}

func toBuckets(buckets []types.Bucket) []api.Bucket {
	out := make([]api.Bucket, len(buckets))
	for i := range buckets {
		b := &buckets[i]
		out[i] = api.Bucket{
			BucketStart: b.BucketStart,
			BucketEnd:   b.BucketEnd(),
			Category:    b.Category,
			Count:       b.Count,
			Mean:        b.Mean,
			Min:         b.Min,
			Max:         b.Max,
			P50:         b.P50,
			P90:         b.P90,
			P95:         b.P95,
			P99:         b.P99,
		}
	}
	return out
}

func toWindow(v engine.WindowView) api.WindowResponse {
	return api.WindowResponse{
		VisibleStart:  v.Window.VisibleStart,
		VisibleEnd:    v.Window.VisibleEnd,
		TotalExtent:   v.Window.TotalExtent,
		LeadingOffset: v.Window.LeadingOffset,
		Offset:        v.Offset,
		Length:        v.Length,
		Samples:       toSamples(v.Samples),
	}
}

func toFrame(f *render.Frame) api.FrameResponse {
	points := make([]api.Point, len(f.Points))
	for i, p := range f.Points {
		points[i] = api.Point{X: p.X, Y: p.Y}
	}
	return api.FrameResponse{
		Version: f.Version,
		Viewport: api.Viewport{
			XMin: f.Viewport.XMin,
			XMax: f.Viewport.XMax,
			YMin: f.Viewport.YMin,
			YMax: f.Viewport.YMax,
		},
		Width:        f.Rect.Width,
		Height:       f.Rect.Height,
		Mode:         string(f.Mode),
		Level:        f.Level.String(),
		Total:        f.Total,
		Points:       points,
		ProcessingMs: float64(f.Processing.Microseconds()) / 1000,
		RenderedAt:   f.RenderedAt,
	}
}

func toMetrics(s metrics.Snapshot) api.MetricsSnapshot {
	return api.MetricsSnapshot{
		FPS:              s.FPS,
		FrameTimeMs:      s.FrameTimeMs,
		MaxFrameTimeMs:   s.MaxFrameTimeMs,
		MemoryMB:         s.MemoryMB,
		DataProcessingMs: s.DataProcessingMs,
		FrameCount:       s.FrameCount,
		WindowSize:       s.WindowSize,
		TakenAt:          s.TakenAt,
	}
}

func toCategories(counts []categories.Count) api.CategoriesResponse {
	out := make([]api.CategoryCount, len(counts))
	for i, c := range counts {
		out[i] = api.CategoryCount{Category: c.Category, Count: c.Count}
	}
	return api.CategoriesResponse{Categories: out}
}

func toStats(e *engine.Engine) api.StatsResponse {
	st := e.Stats()
	filter := e.Render().Filter()

	return api.StatsResponse{
		Running:   st.Running,
		UptimeSec: st.Uptime.Seconds(),
		Buffer: api.BufferStats{
			Capacity:    st.Buffer.Capacity,
			Count:       st.Buffer.Count,
			UsageRatio:  st.Buffer.UsageRatio,
			AppendCount: st.Buffer.AppendCount,
			EvictCount:  st.Buffer.EvictCount,
			ResetCount:  st.Buffer.ResetCount,
			Version:     st.Buffer.Version,
			OldestMs:    st.OldestMs,
			NewestMs:    st.NewestMs,
			SpanMs:      st.Span.Milliseconds(),
		},
		Ingestion: api.IngestionStats{
			Running:          st.Ingestion.Running,
			Exhausted:        st.Ingestion.Exhausted,
			Source:           st.Ingestion.Source,
			Ticks:            st.Ingestion.Ticks,
			SamplesReceived:  st.Ingestion.SamplesReceived,
			SamplesEvicted:   st.Ingestion.SamplesEvicted,
			BatchesProcessed: st.Ingestion.BatchesProcessed,
			Errors:           st.Ingestion.Errors,
		},
		Adaptive: api.AdaptiveStats{
			Enabled:      e.Config().Adaptive.Enabled,
			Level:        st.Adaptive.CurrentLevel.String(),
			Load:         st.Adaptive.Load,
			LevelChanges: st.Adaptive.LevelChanges,
		},
		Frames: st.Frames,
		Mode:   string(e.Render().Mode()),
		Filter: filter.CategoryList(),
	}
}

func toExportResult(r export.Result) api.ExportResult {
	return api.ExportResult{
		ID:       r.ID,
		Path:     r.Path,
		Kind:     r.Kind,
		Format:   string(r.Format),
		Rows:     r.Rows,
		Bytes:    r.Bytes,
		Checksum: r.Checksum,
	}
}
