// Package telemetry provides Prometheus instrumentation for the engine and
// its HTTP query surface.
//
// Metrics exposed:
//   - streamscope_samples_ingested_total: Counter of samples appended, by source
//   - streamscope_samples_evicted_total: Counter of samples evicted from the buffer
//   - streamscope_source_errors_total: Counter of failed fetches, by source
//   - streamscope_buffer_samples: Gauge of samples in the buffer
//   - streamscope_frame_duration_seconds: Histogram of render frame processing time
//   - streamscope_fps: Gauge of the frame rate in the last metrics snapshot
//   - streamscope_detail_level: Gauge of the adaptive detail level (0 = normal)
//   - streamscope_http_requests_total: Counter of HTTP requests by route and status
//   - streamscope_http_request_duration_seconds: Histogram of HTTP request durations
//
// All methods are no-ops on a nil *Metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "streamscope"

// frameBuckets spans sub-millisecond to several frames at 60 Hz.
var frameBuckets = []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066, 0.1, 0.25}

type Metrics struct {
	SamplesIngested     *prometheus.CounterVec
	SamplesEvicted      prometheus.Counter
	SourceErrors        *prometheus.CounterVec
	BufferSamples       prometheus.Gauge
	FrameDuration       prometheus.Histogram
	FPS                 prometheus.Gauge
	DetailLevel         prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers all collectors on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SamplesIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_ingested_total",
			Help:      "Total number of samples appended to the buffer by source",
		}, []string{"source"}),

		SamplesEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_evicted_total",
			Help:      "Total number of samples evicted from the buffer",
		}),

		SourceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Total number of failed source fetches by source",
		}, []string{"source"}),

		BufferSamples: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_samples",
			Help:      "Number of samples currently in the buffer",
		}),

		FrameDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Duration of render frame processing",
			Buckets:   frameBuckets,
		}),

		FPS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fps",
			Help:      "Frame rate in the last metrics snapshot",
		}),

		DetailLevel: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "detail_level",
			Help:      "Adaptive detail level (0 normal, 1 warning, 2 critical, 3 emergency)",
		}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) RecordIngest(source string, appended int, evicted int64) {
	if m == nil {
		return
	}
	m.SamplesIngested.WithLabelValues(source).Add(float64(appended))
	if evicted > 0 {
		m.SamplesEvicted.Add(float64(evicted))
	}
}

func (m *Metrics) RecordSourceError(source string) {
	if m == nil {
		return
	}
	m.SourceErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) SetBufferSamples(n int) {
	if m == nil {
		return
	}
	m.BufferSamples.Set(float64(n))
}

func (m *Metrics) ObserveFrame(seconds float64) {
	if m == nil {
		return
	}
	m.FrameDuration.Observe(seconds)
}

func (m *Metrics) SetFPS(fps float64) {
	if m == nil {
		return
	}
	m.FPS.Set(fps)
}

func (m *Metrics) SetDetailLevel(level int) {
	if m == nil {
		return
	}
	m.DetailLevel.Set(float64(level))
}

func (m *Metrics) RecordHTTPRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(seconds)
}
