package server

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/xtxerr/streamscope/internal/api"
	"github.com/xtxerr/streamscope/internal/constants"
	"github.com/xtxerr/streamscope/internal/engine/export"
	"github.com/xtxerr/streamscope/internal/engine/filter"
	"github.com/xtxerr/streamscope/internal/engine/lod"
	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/logging"
)

// handleBatch answers GET /v1/batch?count=<n>&category=<c> with the newest
// count buffered samples. Identical concurrent requests share one query.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) error {
	count, err := s.countParam(r)
	if err != nil {
		return err
	}
	category := r.URL.Query().Get("category")

	key := strconv.Itoa(count) + "/" + category
	v, err, shared := s.batches.Do(key, func() (any, error) {
		samples, err := s.engine.Query(count, category)
		if err != nil {
			return nil, err
		}
		return api.BatchResponse{Count: len(samples), Samples: toSamples(samples)}, nil
	})
	if err != nil {
		return err
	}
	if shared {
		logging.WithContext(r.Context()).Debug("batch coalesced", "key", key)
	}

	return writeJSON(w, http.StatusOK, v)
}

// handleNext answers GET /v1/next?last=<ms> with the synthetic sample
// following last.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) error {
	last, ok, err := int64Param(r, "last")
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewBadRequest("last", "required")
	}

	return writeJSON(w, http.StatusOK, toSample(s.engine.Next(last)))
}

// handleGenerate answers GET /v1/generate?count=<n>[&start=<ms>] with
// synthetic samples. The buffer is not touched.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) error {
	count, err := s.countParam(r)
	if err != nil {
		return err
	}

	var start *int64
	if v, ok, err := int64Param(r, "start"); err != nil {
		return err
	} else if ok {
		start = &v
	}

	samples, err := s.engine.GenerateBatch(count, start)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, api.BatchResponse{Count: len(samples), Samples: toSamples(samples)})
}

// handleAggregate answers GET /v1/aggregate. Either width (ms) or period
// (1min, 5min, 1hour) selects the bucket width; neither uses the default
// period.
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) error {
	spec, err := filterParam(r)
	if err != nil {
		return err
	}

	q := r.URL.Query()
	width, hasWidth, err := int64Param(r, "width")
	if err != nil {
		return err
	}

	if hasWidth {
		if q.Get("period") != "" {
			return errors.NewBadRequest("width", "cannot be combined with period")
		}
		buckets, err := s.engine.Aggregate(spec, width)
		if err != nil {
			if errors.Is(err, errors.ErrInvalidWidth) {
				return errors.NewBadRequest("width", "must be positive")
			}
			return err
		}
		return writeJSON(w, http.StatusOK, api.AggregateResponse{WidthMs: width, Buckets: toBuckets(buckets)})
	}

	name := q.Get("period")
	if name == "" {
		name = s.engine.Config().Aggregation.DefaultPeriod
	}
	period, err := types.ParsePeriod(name)
	if err != nil {
		return errors.NewBadRequest("period", "must be one of: 1min, 5min, 1hour")
	}

	buckets, err := s.engine.AggregatePeriod(spec, name)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, api.AggregateResponse{
		Period:  period.String(),
		WidthMs: period.WidthMs(),
		Buckets: toBuckets(buckets),
	})
}

// handleWindow answers GET /v1/window?offset=<px> with the virtualization
// window over the current buffer.
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) error {
	var offset float64
	if v := r.URL.Query().Get("offset"); v != "" {
		var err error
		if offset, err = strconv.ParseFloat(v, 64); err != nil || math.IsNaN(offset) || math.IsInf(offset, 0) {
			return errors.NewBadRequest("offset", "must be a finite number")
		}
	}

	return writeJSON(w, http.StatusOK, toWindow(s.engine.Window(offset)))
}

// handleFrame answers GET /v1/frame with the latest rendered frame.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) error {
	frame := s.engine.Frame()
	if frame == nil {
		return fmt.Errorf("no frame rendered yet: %w", errors.ErrNotRunning)
	}
	return writeJSON(w, http.StatusOK, toFrame(frame))
}

func (s *Server) handleMetricsSnapshot(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, toMetrics(s.engine.MetricsSnapshot()))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, toCategories(s.engine.TopCategories()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, toStats(s.engine))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, api.HealthResponse{Status: constants.HealthStatusOK, Running: s.engine.IsRunning()})
}

// handleView answers POST /v1/view?mode=<m>&category=<c>... by changing
// the presentation mode and the category filter of subsequent frames.
// Omitted parameters leave the setting unchanged; category= with an empty
// value clears the filter.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	pipeline := s.engine.Render()

	if m := q.Get("mode"); m != "" {
		if err := pipeline.SetMode(lod.Mode(m)); err != nil {
			return errors.NewBadRequest("mode", "must be one of: line, scatter, bar")
		}
	}
	if q.Has("category") {
		pipeline.SetFilter(filter.ForCategories(splitList(q["category"])...))
	}

	spec := pipeline.Filter()
	logging.WithContext(r.Context()).Info("view changed", "mode", pipeline.Mode(), "categories", spec.CategoryList())

	return writeJSON(w, http.StatusOK, api.ViewResponse{
		Mode:       string(pipeline.Mode()),
		Categories: spec.CategoryList(),
	})
}

// handleExport answers POST /v1/export?kind=samples|buckets&format=<f>.
// Buckets take the same period and filter parameters as GET /v1/aggregate.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()

	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		return err
	}
	spec, err := filterParam(r)
	if err != nil {
		return err
	}

	var res export.Result
	switch kind := q.Get("kind"); kind {
	case "", constants.ExportKindSamples:
		res, err = s.exporter.ExportSamples(s.engine.Filter(spec), format)
	case constants.ExportKindBuckets:
		if p := q.Get("period"); p != "" {
			if _, perr := types.ParsePeriod(p); perr != nil {
				return errors.NewBadRequest("period", "must be one of: 1min, 5min, 1hour")
			}
		}
		buckets, aerr := s.engine.AggregatePeriod(spec, q.Get("period"))
		if aerr != nil {
			return aerr
		}
		res, err = s.exporter.ExportBuckets(buckets, format)
	default:
		return errors.NewBadRequest("kind", "must be samples or buckets")
	}
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusCreated, toExportResult(res))
}

// handleListExports answers GET /v1/exports[?pattern=<glob>].
func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) error {
	files, err := s.exporter.List(r.URL.Query().Get("pattern"))
	if err != nil {
		return err
	}
	if files == nil {
		files = []string{}
	}
	return writeJSON(w, http.StatusOK, api.ExportsResponse{Files: files})
}

// handleReset answers POST /v1/reset by emptying the buffer.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) error {
	s.engine.Reset()
	logging.WithContext(r.Context()).Info("buffer reset by request")
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// =============================================================================
// Parameters
// =============================================================================

// countParam parses the required count parameter, bounded by
// max_batch_count.
func (s *Server) countParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("count")
	if v == "" {
		return 0, errors.NewBadRequest("count", "required")
	}
	count, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.NewBadRequest("count", "must be an integer")
	}
	if count <= 0 {
		return 0, errors.NewBadRequest("count", "must be positive")
	}
	if count > s.cfg.MaxBatchCount {
		return 0, errors.NewBadRequest("count", fmt.Sprintf("must not exceed %d", s.cfg.MaxBatchCount))
	}
	return count, nil
}

// int64Param parses an optional integer parameter. ok is false if absent.
func int64Param(r *http.Request, name string) (v int64, ok bool, err error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, errors.NewBadRequest(name, "must be an integer")
	}
	return v, true, nil
}

// floatParam parses an optional float parameter.
func floatParam(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.NewBadRequest(name, "must be a number")
	}
	return &v, nil
}

// filterParam builds a filter from category (repeated or comma separated),
// min, max, start and end.
func filterParam(r *http.Request) (filter.Spec, error) {
	q := r.URL.Query()
	spec := filter.ForCategories(splitList(q["category"])...)

	minV, err := floatParam(r, "min")
	if err != nil {
		return filter.Spec{}, err
	}
	maxV, err := floatParam(r, "max")
	if err != nil {
		return filter.Spec{}, err
	}
	if minV != nil || maxV != nil {
		spec = spec.WithValueRange(minV, maxV)
	}

	var start, end *int64
	if v, ok, err := int64Param(r, "start"); err != nil {
		return filter.Spec{}, err
	} else if ok {
		start = &v
	}
	if v, ok, err := int64Param(r, "end"); err != nil {
		return filter.Spec{}, err
	} else if ok {
		end = &v
	}
	if start != nil || end != nil {
		spec = spec.WithTimeRange(start, end)
	}

	return spec, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
