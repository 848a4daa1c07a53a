package console

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/streamscope/internal/client"
	"github.com/xtxerr/streamscope/internal/engine"
	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/server"
	testutil "github.com/xtxerr/streamscope/internal/testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestConsole(t *testing.T, secret string) (*Console, *bytes.Buffer, *engine.Engine) {
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

	c, err := client.New(&client.Config{Addr: ts.URL, RequestTimeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	var out bytes.Buffer
	return New(c, &out), &out, eng
}

func run(t *testing.T, con *Console, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	if err := con.Execute(context.Background(), line); err != nil {
		t.Fatalf("%q: %v", line, err)
	}
	return out.String()
}

func TestParseArgs(t *testing.T) {
	a, err := parseArgs([]string{"20", "Category=cpu", "period=", "x"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(a.pos, ",") != "20,x" {
		t.Errorf("pos = %v", a.pos)
	}
	if v, ok := a.opt("category"); !ok || v != "cpu" {
		t.Errorf("category = %q, %v", v, ok)
	}
	if v, ok := a.opt("period"); !ok || v != "" {
		t.Errorf("period = %q, %v", v, ok)
	}
	if a.arg(5) != "" {
		t.Error("missing positional should be empty")
	}

	if _, err := parseArgs([]string{"=cpu"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"cpu,disk", "cpu|disk"},
		{" cpu , ,disk ", "cpu|disk"},
		{"", ""},
	}
	for _, tt := range tests {
		got := splitList(tt.in)
		if got == nil {
			t.Errorf("splitList(%q) returned nil", tt.in)
		}
		if strings.Join(got, "|") != tt.want {
			t.Errorf("splitList(%q) = %v, want %s", tt.in, got, tt.want)
		}
	}
}

func TestExecute_Queries(t *testing.T) {
	con, out, eng := newTestConsole(t, "")
	eng.Ingestion().Ingest(testutil.Samples(30, 0, 100, "cpu", "memory", "network"))

	got := run(t, con, out, "batch 5 category=cpu")
	if !strings.Contains(got, "TIMESTAMP") || !strings.Contains(got, "(5 samples)") {
		t.Errorf("batch output:\n%s", got)
	}
	if strings.Contains(got, "memory") {
		t.Errorf("batch should only show cpu:\n%s", got)
	}

	got = run(t, con, out, "categories")
	if !strings.Contains(got, "RANK") || !strings.Contains(got, "network") {
		t.Errorf("categories output:\n%s", got)
	}

	got = run(t, con, out, "generate 4 start=1000")
	if !strings.Contains(got, "(4 samples)") {
		t.Errorf("generate output:\n%s", got)
	}

	got = run(t, con, out, "window 0")
	if !strings.HasPrefix(got, "rows 0-") || !strings.Contains(got, "of 30") {
		t.Errorf("window output:\n%s", got)
	}

	got = run(t, con, out, "stats")
	if !strings.Contains(got, `"buffer"`) {
		t.Errorf("stats should print JSON:\n%s", got)
	}
}

func TestExecute_Aggregate(t *testing.T) {
	con, out, eng := newTestConsole(t, "")
	eng.Ingestion().Ingest(testutil.Samples(180, 0, 1000, "cpu"))

	got := run(t, con, out, "aggregate 1min")
	if !strings.Contains(got, "(3 buckets of 1min)") {
		t.Errorf("aggregate output:\n%s", got)
	}

	got = run(t, con, out, "aggregate width=30000")
	if !strings.Contains(got, "(6 buckets of 30000ms)") {
		t.Errorf("aggregate width output:\n%s", got)
	}

	err := con.Execute(context.Background(), "aggregate 2min")
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestExecute_JSONPath(t *testing.T) {
	con, out, eng := newTestConsole(t, "")
	eng.Ingestion().Ingest(testutil.Samples(30, 0, 100, "cpu", "memory", "network"))

	if got := run(t, con, out, "stats | $.buffer.count"); got != "30\n" {
		t.Errorf("stats count = %q", got)
	}

	got := run(t, con, out, "batch 3 | $.samples[*].category")
	if got != "\"cpu\"\n\"memory\"\n\"network\"\n" {
		t.Errorf("categories = %q", got)
	}

	if got := run(t, con, out, "batch 3 | $.nothing"); got != "" {
		t.Errorf("missing path should print nothing, got %q", got)
	}

	err := con.Execute(context.Background(), "stats |")
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for empty path, got %v", err)
	}
}

func TestExecute_ViewAndExport(t *testing.T) {
	con, out, eng := newTestConsole(t, "")
	eng.Ingestion().Ingest(testutil.Samples(30, 0, 100, "cpu", "disk"))

	if got := run(t, con, out, "view bar category=cpu | $.mode"); got != "\"bar\"\n" {
		t.Errorf("view mode = %q", got)
	}
	if got := run(t, con, out, "stats | $.filter[*]"); got != "\"cpu\"\n" {
		t.Errorf("filter = %q", got)
	}
	run(t, con, out, "view category=")
	if got := run(t, con, out, "stats | $.filter[*]"); got != "" {
		t.Errorf("filter should be cleared, got %q", got)
	}

	got := run(t, con, out, "export samples format=ndjson.xz category=disk")
	if !strings.Contains(got, "exported 15 samples rows") {
		t.Errorf("export output:\n%s", got)
	}
	got = run(t, con, out, "exports")
	if lines := strings.Count(got, "\n"); lines != 1 {
		t.Errorf("expected one export file, got:\n%s", got)
	}

	if got := run(t, con, out, "reset"); got != "buffer reset\n" {
		t.Errorf("reset output %q", got)
	}
	if eng.Snapshot().Len() != 0 {
		t.Error("expected empty buffer after reset")
	}
}

func TestExecute_Errors(t *testing.T) {
	con, _, _ := newTestConsole(t, "")
	ctx := context.Background()

	tests := []struct {
		line string
		want error
	}{
		{"bogus", errors.ErrInvalidRequest},
		{"batch many", errors.ErrInvalidRequest},
		{"window far", errors.ErrInvalidRequest},
		{"view pie", errors.ErrInvalidRequest},
		{"follow -1s", errors.ErrInvalidRequest},
		{"help bogus", errors.ErrInvalidRequest},
		{"export rows", errors.ErrInvalidRequest},
		{"exit", ErrExit},
	}

	for _, tt := range tests {
		if err := con.Execute(ctx, tt.line); !errors.Is(err, tt.want) {
			t.Errorf("%q: expected %v, got %v", tt.line, tt.want, err)
		}
	}

	if err := con.Execute(ctx, "   "); err != nil {
		t.Errorf("blank line: %v", err)
	}
}

func TestExecute_Token(t *testing.T) {
	con, out, _ := newTestConsole(t, testSecret)

	if err := con.Execute(context.Background(), "reset"); !errors.Is(err, errors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	token, err := server.SignToken(testSecret, "", "console", time.Minute, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if got := run(t, con, out, "token "+token); got != "token set\n" {
		t.Errorf("token output %q", got)
	}
	if got := run(t, con, out, "reset"); got != "buffer reset\n" {
		t.Errorf("reset output %q", got)
	}
	if got := run(t, con, out, "token"); got != "token cleared\n" {
		t.Errorf("token output %q", got)
	}
}

func TestExecute_Help(t *testing.T) {
	con, out, _ := newTestConsole(t, "")

	got := run(t, con, out, "help")
	for _, name := range con.Names() {
		if !strings.Contains(got, name) {
			t.Errorf("help missing %s", name)
		}
	}

	got = run(t, con, out, "help batch")
	if !strings.HasPrefix(got, "batch [count]") {
		t.Errorf("help batch:\n%s", got)
	}
}

func TestExecute_Follow(t *testing.T) {
	con, out, eng := newTestConsole(t, "")
	eng.Ingestion().Ingest(testutil.Samples(3, 0, 100, "cpu"))

	got := run(t, con, out, "follow 300ms")
	if strings.Count(got, "cpu") != 3 {
		t.Errorf("follow output:\n%s", got)
	}
}

func TestComplete(t *testing.T) {
	con, _, _ := newTestConsole(t, "")

	tests := []struct {
		text string
		want []string
	}{
		{"ag", []string{"aggregate"}},
		{"help ba", []string{"batch"}},
		{"view ", []string{"line", "scatter", "bar", "category="}},
		{"export format=p", []string{"format=parquet"}},
		{"aggregate 5", []string{"5min"}},
		{"stats | $.b", nil},
		{"reset ", nil},
	}

	for _, tt := range tests {
		got := con.complete(tt.text)
		var texts []string
		for _, s := range got {
			texts = append(texts, s.Text)
		}
		if strings.Join(texts, ",") != strings.Join(tt.want, ",") {
			t.Errorf("complete(%q) = %v, want %v", tt.text, texts, tt.want)
		}
	}

	if got := con.complete(""); len(got) != len(con.Names()) {
		t.Errorf("expected every command for empty input, got %d", len(got))
	}
}

func TestWriteTable_Width(t *testing.T) {
	var buf bytes.Buffer
	writeTable(&buf, 10, []string{"NAME", "DESCRIPTION"}, 1, func(int) []string {
		return []string{"cpu", "a rather long description"}
	})

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		if len(line) > 10 {
			t.Errorf("line %q exceeds width", line)
		}
	}
}
