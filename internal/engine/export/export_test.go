package export

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/ulikunitz/xz"
	"github.com/xuri/excelize/v2"

	"github.com/xtxerr/streamscope/internal/engine/aggregate"
	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
	testutil "github.com/xtxerr/streamscope/internal/testing"
)

func readRows[T any](t *testing.T, path string) []T {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[T](f)
	defer reader.Close()

	rows := make([]T, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	return rows[:n]
}

func TestParseCompressionType(t *testing.T) {
	tests := []struct {
		in      string
		want    CompressionType
		wantErr bool
	}{
		{"", CompressionZstd, false},
		{"zstd", CompressionZstd, false},
		{"snappy", CompressionSnappy, false},
		{"lz4", CompressionLZ4, false},
		{"gzip", CompressionGzip, false},
		{"none", CompressionNone, false},
		{"brotli", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCompressionType(tt.in)
			if tt.wantErr {
				if !errors.IsConfiguration(err) {
					t.Errorf("expected configuration error, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}

func TestExportSamples(t *testing.T) {
	for _, algo := range []string{"zstd", "snappy", "gzip", "lz4", "none"} {
		t.Run(algo, func(t *testing.T) {
			dir := t.TempDir()
			exp, err := NewFromConfig(config.ExportConfig{
				Dir:         dir,
				Compression: config.CompressionConfig{Algorithm: algo, Level: 3},
			})
			if err != nil {
				t.Fatal(err)
			}

			samples := testutil.Samples(100, 1_000, 100, "cpu", "memory")
			samples[0].Metadata = types.Metadata{"seq": 1}

			res, err := exp.ExportSamples(samples, "")
			if err != nil {
				t.Fatal(err)
			}
			if res.Rows != 100 || res.Kind != "samples" || res.Bytes == 0 || res.Format != FormatParquet {
				t.Errorf("unexpected result: %+v", res)
			}
			if filepath.Dir(res.Path) != dir {
				t.Errorf("file written outside export dir: %s", res.Path)
			}

			rows := readRows[SampleRow](t, res.Path)
			if len(rows) != 100 {
				t.Fatalf("expected 100 rows, got %d", len(rows))
			}
			if rows[0].TimestampMs != 1_000 || rows[1].Category != "memory" || rows[99].Value != 99 {
				t.Errorf("unexpected rows: %+v %+v %+v", rows[0], rows[1], rows[99])
			}
			if rows[0].Metadata["seq"] != "1" {
				t.Errorf("expected metadata seq=1, got %v", rows[0].Metadata)
			}
		})
	}
}

func TestExportBuckets(t *testing.T) {
	exp := New(t.TempDir(), Options{Compression: CompressionZstd})

	samples := testutil.Samples(120, 0, 1000, "cpu")
	buckets, err := aggregate.AggregatePeriod(samples, types.PeriodOneMinute, aggregate.Options{PercentileAccuracy: 0.01})
	if err != nil {
		t.Fatal(err)
	}

	res, err := exp.ExportBuckets(buckets, "")
	if err != nil {
		t.Fatal(err)
	}

	rows := readRows[BucketRow](t, res.Path)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].BucketStart != 60000 || rows[1].BucketEnd != 120000 || rows[1].Count != 60 {
		t.Errorf("unexpected bucket row: %+v", rows[1])
	}
	if rows[0].P50 == 0 {
		t.Error("expected percentiles to be exported")
	}
}

func TestExport_FileNamesAreUnique(t *testing.T) {
	exp := New(t.TempDir(), Options{})
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	exp.SetClock(func() time.Time { return fixed })

	a, err := exp.ExportSamples(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := exp.ExportSamples(nil, "")
	if err != nil {
		t.Fatal(err)
	}

	if a.Path == b.Path {
		t.Error("exports at the same instant must not collide")
	}
	if !strings.Contains(filepath.Base(a.Path), "20261019T120000.000Z") {
		t.Errorf("unexpected name %s", a.Path)
	}

	files, err := exp.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 files, got %v", files)
	}
}

func TestExport_UnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	exp := New(filepath.Join(blocker, "sub"), Options{})
	_, err := exp.ExportSamples(testutil.Samples(1, 0, 100), "")
	if !errors.Is(err, errors.ErrExportFailed) {
		t.Errorf("expected export failure, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", "", false},
		{"parquet", FormatParquet, false},
		{"XLSX", FormatXLSX, false},
		{"ndjson.xz", FormatNDJSONXZ, false},
		{"csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrInvalidRequest) {
					t.Errorf("expected invalid request, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestExportSamples_XLSX(t *testing.T) {
	exp := New(t.TempDir(), Options{})

	res, err := exp.ExportSamples(testutil.Samples(5, 1_000, 100, "cpu"), FormatXLSX)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Ext(res.Path) != ".xlsx" {
		t.Errorf("unexpected extension: %s", res.Path)
	}

	f, err := excelize.OpenFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows("samples")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected header and 5 rows, got %d", len(rows))
	}
	if rows[0][0] != "timestamp_ms" || rows[1][0] != "1000" || rows[5][2] != "cpu" {
		t.Errorf("unexpected sheet contents: %v", rows)
	}
}

func TestExportBuckets_NDJSONXZ(t *testing.T) {
	exp := New(t.TempDir(), Options{Format: FormatNDJSONXZ})

	buckets, err := aggregate.AggregatePeriod(testutil.Samples(180, 0, 1000, "cpu"), types.PeriodOneMinute, aggregate.Options{})
	if err != nil {
		t.Fatal(err)
	}

	res, err := exp.ExportBuckets(buckets, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != FormatNDJSONXZ || !strings.HasSuffix(res.Path, ".ndjson.xz") {
		t.Errorf("unexpected result: %+v", res)
	}

	f, err := os.Open(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zr, err := xz.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}

	var got []BucketRow
	scanner := bufio.NewScanner(zr)
	for scanner.Scan() {
		var row BucketRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		got = append(got, row)
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(got))
	}
	if got[2].BucketStart != 120000 || got[2].Count != 60 {
		t.Errorf("unexpected last bucket: %+v", got[2])
	}
}

func TestExport_Checksum(t *testing.T) {
	exp := New(t.TempDir(), Options{})

	res, err := exp.ExportSamples(testutil.Samples(10, 0, 100, "cpu"), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Checksum) != 64 {
		t.Fatalf("expected 256-bit hex checksum, got %q", res.Checksum)
	}
	if res.ID == "" {
		t.Error("expected export id")
	}

	again, err := Checksum(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if again != res.Checksum {
		t.Errorf("checksum mismatch: %s != %s", again, res.Checksum)
	}
}

func TestExport_ListPattern(t *testing.T) {
	exp := New(t.TempDir(), Options{})

	if _, err := exp.ExportSamples(nil, FormatParquet); err != nil {
		t.Fatal(err)
	}
	if _, err := exp.ExportSamples(nil, FormatXLSX); err != nil {
		t.Fatal(err)
	}
	if _, err := exp.ExportBuckets(nil, FormatNDJSONXZ); err != nil {
		t.Fatal(err)
	}

	all, err := exp.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 exports, got %v", all)
	}

	samples, err := exp.List("samples_*")
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Errorf("expected 2 sample exports, got %v", samples)
	}

	if _, err := exp.List("[unclosed"); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected invalid pattern error, got %v", err)
	}
}

func TestExport_ListStaysInDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "exports")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "outside.parquet"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	exp := New(dir, Options{})

	patterns := []string{
		"../*",
		"../outside.parquet",
		"samples/../../*",
		"/etc/pass*",
		root + "/*",
	}
	for _, p := range patterns {
		files, err := exp.List(p)
		if !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("List(%q) = %v, %v; expected ErrInvalidRequest", p, files, err)
		}
	}

	files, err := exp.List("**/*.parquet")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Errorf("expected no files inside export dir, got %v", files)
	}
}
