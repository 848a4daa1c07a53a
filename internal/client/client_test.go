package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/xtxerr/streamscope/internal/api"
	"github.com/xtxerr/streamscope/internal/engine"
	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/server"
	testutil "github.com/xtxerr/streamscope/internal/testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestClient(t *testing.T, secret string) (*Client, *engine.Engine) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Export.Dir = t.TempDir()
	cfg.Server.Auth.Secret = secret

	eng, err := engine.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	srv, err := server.New(eng)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c, err := New(&Config{Addr: ts.URL, RequestTimeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, eng
}

func TestNew_Addr(t *testing.T) {
	tests := []struct {
		addr string
		tls  bool
		want string
		ok   bool
	}{
		{"localhost:8080", false, "http://localhost:8080", true},
		{"localhost:8443", true, "https://localhost:8443", true},
		{"http://example.com/base/", false, "http://example.com/base", true},
		{"", false, "", false},
		{"http://", false, "", false},
	}

	for _, tt := range tests {
		c, err := New(&Config{Addr: tt.addr, TLS: tt.tls})
		if !tt.ok {
			if err == nil {
				t.Errorf("New(%q): expected error", tt.addr)
			}
			continue
		}
		if err != nil {
			t.Errorf("New(%q): %v", tt.addr, err)
			continue
		}
		if c.BaseURL() != tt.want {
			t.Errorf("New(%q): base = %q, want %q", tt.addr, c.BaseURL(), tt.want)
		}
	}
}

func TestClient_Queries(t *testing.T) {
	c, eng := newTestClient(t, "")
	eng.Ingestion().Ingest(testutil.Samples(120, 0, 1000, "cpu", "memory"))
	ctx := context.Background()

	health, err := c.Health(ctx)
	if err != nil || health.Status != "ok" {
		t.Fatalf("health = %+v, %v", health, err)
	}

	batch, err := c.Batch(ctx, 4, "memory")
	if err != nil {
		t.Fatal(err)
	}
	if batch.Count != 4 || batch.Samples[3].TimestampMs != 119000 {
		t.Errorf("unexpected batch %+v", batch)
	}

	next, err := c.Next(ctx, 500)
	if err != nil || next.TimestampMs != 600 {
		t.Errorf("next = %+v, %v", next, err)
	}

	start := int64(0)
	gen, err := c.Generate(ctx, 2, &start)
	if err != nil || gen.Count != 2 {
		t.Errorf("generate = %+v, %v", gen, err)
	}

	agg, err := c.Aggregate(ctx, Filter{Categories: []string{"cpu"}}, "1min", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(agg.Buckets) != 2 || agg.Period != "1min" {
		t.Errorf("unexpected aggregate %+v", agg)
	}

	agg, err = c.Aggregate(ctx, Filter{}, "", 20000)
	if err != nil || len(agg.Buckets) != 6 {
		t.Errorf("width aggregate = %d buckets, %v", len(agg.Buckets), err)
	}

	win, err := c.Window(ctx, 0)
	if err != nil || win.Length != 120 || win.VisibleStart != 0 {
		t.Errorf("window = %+v, %v", win, err)
	}

	cats, err := c.Categories(ctx)
	if err != nil || len(cats.Categories) != 2 {
		t.Errorf("categories = %+v, %v", cats, err)
	}

	stats, err := c.Stats(ctx)
	if err != nil || stats.Buffer.Count != 120 {
		t.Errorf("stats = %+v, %v", stats, err)
	}

	if _, err := c.Metrics(ctx); err != nil {
		t.Errorf("metrics: %v", err)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	c, _ := newTestClient(t, "")
	ctx := context.Background()

	_, err := c.Batch(ctx, 0, "")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.RequestID == "" || apiErr.Message == "" {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Error("expected ErrInvalidRequest")
	}

	if _, err := c.Frame(ctx); !errors.Is(err, errors.ErrNotRunning) {
		t.Errorf("frame before render: expected ErrNotRunning, got %v", err)
	}
}

func TestClient_Commands(t *testing.T) {
	c, eng := newTestClient(t, "")
	eng.Ingestion().Ingest(testutil.Samples(60, 0, 1000, "cpu", "disk"))
	ctx := context.Background()

	view, err := c.SetView(ctx, View{Mode: "scatter", Categories: []string{"disk"}})
	if err != nil {
		t.Fatal(err)
	}
	if view.Mode != "scatter" || len(view.Categories) != 1 {
		t.Errorf("unexpected view %+v", view)
	}

	view, err = c.SetView(ctx, View{Categories: []string{}})
	if err != nil || view.Mode != "scatter" || len(view.Categories) != 0 {
		t.Errorf("clear filter = %+v, %v", view, err)
	}

	res, err := c.Export(ctx, ExportRequest{Kind: "samples", Format: "xlsx", Filter: Filter{Categories: []string{"cpu"}}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Rows != 30 || res.Format != "xlsx" {
		t.Errorf("unexpected export %+v", res)
	}

	list, err := c.Exports(ctx, "*.xlsx")
	if err != nil || len(list.Files) != 1 {
		t.Errorf("exports = %+v, %v", list, err)
	}

	if err := c.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if eng.Snapshot().Len() != 0 {
		t.Error("expected empty buffer after reset")
	}
}

func TestClient_Auth(t *testing.T) {
	c, _ := newTestClient(t, testSecret)
	ctx := context.Background()

	if err := c.Reset(ctx); !errors.Is(err, errors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	token, err := server.SignToken(testSecret, "", "test", time.Minute, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	c.SetToken(token)
	if err := c.Reset(ctx); err != nil {
		t.Errorf("reset with token: %v", err)
	}
}

func TestClient_Closed(t *testing.T) {
	c, _ := newTestClient(t, "")
	c.Close()

	if !c.IsClosed() {
		t.Error("expected closed")
	}
	if _, err := c.Health(context.Background()); !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
}

func TestClient_Follow(t *testing.T) {
	c, eng := newTestClient(t, "")
	eng.Ingestion().Ingest(testutil.Samples(5, 0, 100, "cpu"))

	var (
		mu   sync.Mutex
		seen []int64
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Follow(ctx, 10*time.Millisecond, 100, "", func(samples []api.Sample) {
			mu.Lock()
			defer mu.Unlock()
			for _, s := range samples {
				seen = append(seen, s.TimestampMs)
			}
		})
	}()

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(seen)
	}

	testutil.WaitFor(t, 2*time.Second, func() bool { return count() == 5 })
	eng.Ingestion().Ingest(testutil.Samples(3, 500, 100, "cpu"))
	testutil.WaitFor(t, 2*time.Second, func() bool { return count() == 8 })

	cancel()
	if err := <-done; err != nil {
		t.Errorf("follow: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("samples delivered out of order or twice: %v", seen)
		}
	}
}

func TestNewerThan(t *testing.T) {
	samples := []api.Sample{{TimestampMs: 1}, {TimestampMs: 2}, {TimestampMs: 3}}

	tests := []struct {
		last int64
		want int
	}{
		{0, 3},
		{1, 2},
		{3, 0},
		{9, 0},
	}
	for _, tt := range tests {
		if got := newerThan(samples, tt.last); len(got) != tt.want {
			t.Errorf("newerThan(%d) = %d samples, want %d", tt.last, len(got), tt.want)
		}
	}
}
