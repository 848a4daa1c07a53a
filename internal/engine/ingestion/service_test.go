package ingestion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xtxerr/streamscope/internal/engine/buffer"
	"github.com/xtxerr/streamscope/internal/engine/categories"
	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/engine/source"
	"github.com/xtxerr/streamscope/internal/engine/telemetry"
	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
	testutil "github.com/xtxerr/streamscope/internal/testing"
)

// scriptedSource returns one scripted result per Fetch, then nothing.
type scriptedSource struct {
	mu      sync.Mutex
	batches [][]types.Sample
	errs    []error
	fetches int
}

func (s *scriptedSource) Fetch(_ context.Context, _ int) ([]types.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.fetches
	s.fetches++

	var batch []types.Sample
	var err error
	if i < len(s.batches) {
		batch = s.batches[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return batch, err
}

func (s *scriptedSource) Name() string { return "scripted" }
func (s *scriptedSource) Close() error { return nil }

func (s *scriptedSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func testConfig() config.IngestionConfig {
	return config.IngestionConfig{Interval: 10 * time.Millisecond, BatchSize: 4}
}

func TestNew_Validation(t *testing.T) {
	buf, _ := buffer.New(10)
	src := &scriptedSource{}

	tests := []struct {
		name string
		cfg  config.IngestionConfig
		buf  *buffer.RingBuffer
		src  source.Source
	}{
		{"missing buffer", testConfig(), nil, src},
		{"missing source", testConfig(), buf, nil},
		{"zero interval", config.IngestionConfig{BatchSize: 1}, buf, src},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.buf, tt.src, nil)
			if !errors.IsConfiguration(err) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestTick_AppendsBatch(t *testing.T) {
	buf, _ := buffer.New(5)
	src := &scriptedSource{batches: [][]types.Sample{
		testutil.Samples(3, 0, 100, "cpu"),
		testutil.Samples(4, 300, 100, "cpu"),
	}}

	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)

	svc, err := New(testConfig(), buf, src, m)
	if err != nil {
		t.Fatal(err)
	}

	if n := svc.Tick(context.Background()); n != 3 {
		t.Errorf("expected 3 samples, got %d", n)
	}
	if n := svc.Tick(context.Background()); n != 4 {
		t.Errorf("expected 4 samples, got %d", n)
	}

	if buf.Len() != 5 {
		t.Errorf("expected buffer len=5, got %d", buf.Len())
	}

	stats := svc.Stats()
	if stats.SamplesReceived != 7 {
		t.Errorf("expected 7 received, got %d", stats.SamplesReceived)
	}
	if stats.SamplesEvicted != 2 {
		t.Errorf("expected 2 evicted, got %d", stats.SamplesEvicted)
	}
	if stats.BatchesProcessed != 2 {
		t.Errorf("expected 2 batches, got %d", stats.BatchesProcessed)
	}

	if got := promtest.ToFloat64(m.SamplesIngested.WithLabelValues("scripted")); got != 7 {
		t.Errorf("expected ingested counter=7, got %v", got)
	}
	if got := promtest.ToFloat64(m.BufferSamples); got != 5 {
		t.Errorf("expected buffer gauge=5, got %v", got)
	}
}

func TestTick_EmptyFetchDoesNotPublish(t *testing.T) {
	buf, _ := buffer.New(5)
	svc, _ := New(testConfig(), buf, &scriptedSource{}, nil)

	v := buf.Stats().Version
	if n := svc.Tick(context.Background()); n != 0 {
		t.Errorf("expected 0 samples, got %d", n)
	}
	if buf.Stats().Version != v {
		t.Error("empty fetch should not change the buffer")
	}
	if svc.Stats().BatchesProcessed != 0 {
		t.Error("empty fetch should not count as a batch")
	}
}

func TestTick_TransientErrorKeepsPartialBatch(t *testing.T) {
	buf, _ := buffer.New(10)
	src := &scriptedSource{
		batches: [][]types.Sample{testutil.Samples(2, 0, 100, "cpu")},
		errs:    []error{errors.Join(errors.ErrTimeout, errors.ErrSourceFailed)},
	}

	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)
	svc, _ := New(testConfig(), buf, src, m)

	if n := svc.Tick(context.Background()); n != 2 {
		t.Errorf("expected partial batch of 2, got %d", n)
	}
	if svc.Stats().Errors != 1 {
		t.Errorf("expected 1 error, got %d", svc.Stats().Errors)
	}
	if got := promtest.ToFloat64(m.SourceErrors.WithLabelValues("scripted")); got != 1 {
		t.Errorf("expected source error counter=1, got %v", got)
	}

	// The next tick fetches again.
	svc.Tick(context.Background())
	if src.fetchCount() != 2 {
		t.Errorf("expected 2 fetches, got %d", src.fetchCount())
	}
}

func TestTick_ExhaustedSourceStopsFetching(t *testing.T) {
	buf, _ := buffer.New(10)
	src := &scriptedSource{errs: []error{errors.ErrSourceExhausted}}
	svc, _ := New(testConfig(), buf, src, nil)

	svc.Tick(context.Background())
	svc.Tick(context.Background())
	svc.Tick(context.Background())

	if src.fetchCount() != 1 {
		t.Errorf("expected a single fetch, got %d", src.fetchCount())
	}
	stats := svc.Stats()
	if !stats.Exhausted {
		t.Error("expected exhausted")
	}
	if stats.Errors != 0 {
		t.Errorf("exhaustion is not an error, got %d", stats.Errors)
	}
	if stats.Ticks != 3 {
		t.Errorf("expected 3 ticks, got %d", stats.Ticks)
	}
}

func TestService_Run(t *testing.T) {
	buf, _ := buffer.New(100)
	src := source.NewSynthetic(config.SyntheticConfig{Categories: []string{"cpu"}, Seed: 1}, nil)

	svc, err := New(testConfig(), buf, src, nil)
	if err != nil {
		t.Fatal(err)
	}

	gt := testutil.NewGoroutineTest(t)
	gt.GoWithContext(svc.Run)

	testutil.WaitFor(t, 2*time.Second, func() bool { return svc.Stats().Running && buf.Len() >= 8 })

	if err := svc.Run(context.Background()); !errors.Is(err, errors.ErrAlreadyRunning) {
		t.Errorf("second run: expected ErrAlreadyRunning, got %v", err)
	}

	gt.Cancel()
	gt.Wait()

	if svc.Stats().Running {
		t.Error("expected stopped")
	}

	n := buf.Len()
	time.Sleep(30 * time.Millisecond)
	if buf.Len() != n {
		t.Error("buffer changed after stop")
	}

	// A stopped service can run again.
	received := svc.Stats().SamplesReceived
	gt = testutil.NewGoroutineTest(t)
	gt.GoWithContext(svc.Run)
	testutil.WaitFor(t, 2*time.Second, func() bool { return svc.Stats().SamplesReceived > received })
	gt.Cancel()
	gt.Wait()
}

func TestService_RunReturnsOnCancel(t *testing.T) {
	buf, _ := buffer.New(10)
	svc, _ := New(testConfig(), buf, &scriptedSource{}, nil)

	gt := testutil.NewGoroutineTest(t)
	gt.GoWithContext(svc.Run)

	time.Sleep(25 * time.Millisecond)
	gt.Cancel()
	gt.Wait()
}

func TestTick_FeedsCategoryTracker(t *testing.T) {
	buf, _ := buffer.New(100)
	src := &scriptedSource{batches: [][]types.Sample{
		testutil.Samples(9, 0, 100, "cpu", "cpu", "memory"),
	}}
	tracker := categories.New(5, 100)

	svc, _ := New(testConfig(), buf, src, nil, WithCategories(tracker))
	svc.Tick(context.Background())

	top := tracker.Top()
	if len(top) != 2 || top[0].Category != "cpu" {
		t.Fatalf("expected cpu then memory, got %v", top)
	}
	if tracker.Count("cpu") != 6 || tracker.Count("memory") != 3 {
		t.Errorf("unexpected counts: cpu=%d memory=%d", tracker.Count("cpu"), tracker.Count("memory"))
	}
}
