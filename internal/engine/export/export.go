// Package export writes buffer snapshots and aggregated buckets to files.
// Parquet is the default format; xlsx and xz-compressed NDJSON are
// available for hand inspection. Exports are write-only: nothing is read
// back on start.
package export

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/minio/highwayhash"

	"github.com/xtxerr/streamscope/internal/constants"
	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/logging"
)

var log = logging.Component("export")

// Format is an export file format.
type Format string

const (
	FormatParquet  Format = "parquet"
	FormatXLSX     Format = "xlsx"
	FormatNDJSONXZ Format = "ndjson.xz"
)

// ParseFormat parses a format name. Empty is returned unchanged and means
// the exporter's configured format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatParquet, FormatXLSX, FormatNDJSONXZ:
		return f, nil
	default:
		return "", errors.NewBadRequest("format", "must be one of: parquet, xlsx, ndjson.xz")
	}
}

// Extension returns the file extension of the format.
func (f Format) Extension() string {
	return "." + string(f)
}

// defaultPattern matches every file an Exporter writes.
const defaultPattern = "*.{parquet,xlsx,ndjson.xz}"

// checksumKey is the HighwayHash key of export checksums. The checksum
// detects corruption; it is not a MAC.
var checksumKey = make([]byte, highwayhash.Size)

// Options configures the writer.
type Options struct {
	// Format is used when an export names none. Empty means Parquet.
	Format Format

	Compression CompressionType

	// Level for zstd (1-22). 0 uses the codec default.
	Level int
}

// OptionsFromConfig converts the export configuration.
func OptionsFromConfig(cfg config.ExportConfig) (Options, error) {
	ct, err := ParseCompressionType(cfg.Compression.Algorithm)
	if err != nil {
		return Options{}, err
	}
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return Options{}, errors.NewInvalidValue("format", cfg.Format, "must be one of: parquet, xlsx, ndjson.xz")
	}
	return Options{Format: format, Compression: ct, Level: cfg.Compression.Level}, nil
}

// Result describes a written export file.
type Result struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Format   Format `json:"format"`
	Rows     int64  `json:"rows"`
	Bytes    int64  `json:"bytes"`
	Checksum string `json:"checksum"`
}

// Exporter writes export files into a directory. Each export goes to a new
// file named after its kind and the clock.
type Exporter struct {
	mu   sync.Mutex
	dir  string
	opts Options
	now  func() time.Time
	seq  int
}

// New creates an exporter writing to dir.
func New(dir string, opts Options) *Exporter {
	if opts.Format == "" {
		opts.Format = FormatParquet
	}
	return &Exporter{dir: dir, opts: opts, now: time.Now}
}

// NewFromConfig creates an exporter from the export configuration.
func NewFromConfig(cfg config.ExportConfig) (*Exporter, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return New(cfg.Dir, opts), nil
}

// SetClock replaces the clock used for file names.
func (e *Exporter) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Dir returns the export directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// ExportSamples writes samples in order. An empty format uses the
// configured one.
func (e *Exporter) ExportSamples(samples []types.Sample, format Format) (Result, error) {
	rows := make([]SampleRow, len(samples))
	for i := range samples {
		rows[i] = SampleToRow(&samples[i])
	}
	return export(e, constants.ExportKindSamples, format, rows)
}

// ExportBuckets writes buckets in order. An empty format uses the
// configured one.
func (e *Exporter) ExportBuckets(buckets []types.Bucket, format Format) (Result, error) {
	rows := make([]BucketRow, len(buckets))
	for i := range buckets {
		rows[i] = BucketToRow(&buckets[i])
	}
	return export(e, constants.ExportKindBuckets, format, rows)
}

// List returns the export files matching a doublestar pattern relative to
// the export directory, sorted by name. An empty pattern lists every
// export. Patterns that are rooted or climb out of the directory are
// rejected.
func (e *Exporter) List(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = defaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, errors.NewBadRequest("pattern", "invalid glob")
	}
	if !fs.ValidPath(pattern) {
		return nil, errors.NewBadRequest("pattern", "must stay inside the export directory")
	}

	matches, err := doublestar.Glob(os.DirFS(e.dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	for i, m := range matches {
		matches[i] = filepath.Join(e.dir, filepath.FromSlash(m))
	}
	sort.Strings(matches)
	return matches, nil
}

func (e *Exporter) nextPath(kind string, format Format) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	stamp := e.now().UTC().Format("20060102T150405.000Z")
	return filepath.Join(e.dir, fmt.Sprintf("%s_%s_%04d%s", kind, stamp, e.seq, format.Extension()))
}

func export[T table](e *Exporter, kind string, format Format, rows []T) (Result, error) {
	if format == "" {
		format = e.opts.Format
	}

	var encode func(io.Writer) error
	switch format {
	case FormatParquet:
		codec := e.opts.codec()
		encode = func(w io.Writer) error { return writeParquet(w, rows, codec) }
	case FormatXLSX:
		encode = func(w io.Writer) error { return writeXLSX(w, kind, rows) }
	case FormatNDJSONXZ:
		encode = func(w io.Writer) error { return writeNDJSONXZ(w, rows) }
	default:
		return Result{}, errors.NewBadRequest("format", fmt.Sprintf("unsupported format %q", format))
	}

	res, err := e.writeFile(kind, format, encode)
	if err != nil {
		return Result{}, err
	}
	res.Rows = int64(len(rows))

	log.Info("export written",
		"id", res.ID,
		"kind", kind,
		"format", format,
		"path", res.Path,
		"rows", res.Rows,
		"bytes", res.Bytes,
	)
	return res, nil
}

// writeFile encodes to a temporary file and renames it into place, so a
// failed export never leaves a partial file behind.
func (e *Exporter) writeFile(kind string, format Format, encode func(io.Writer) error) (Result, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return Result{}, exportError("create directory", err)
	}

	path := e.nextPath(kind, format)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return Result{}, exportError("create file", err)
	}

	if err := encode(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return Result{}, exportError("write rows", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return Result{}, exportError("close file", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return Result{}, exportError("rename", err)
	}

	var size int64
	if stat, err := os.Stat(path); err == nil {
		size = stat.Size()
	}

	sum, err := Checksum(path)
	if err != nil {
		return Result{}, exportError("checksum", err)
	}

	return Result{
		ID:       uuid.NewString(),
		Path:     path,
		Kind:     kind,
		Format:   format,
		Bytes:    size,
		Checksum: sum,
	}, nil
}

// Checksum returns the hex HighwayHash-256 of the file at path.
func Checksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash, err := highwayhash.New(checksumKey)
	if err != nil {
		return "", fmt.Errorf("create hash: %w", err)
	}

	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

func exportError(op string, err error) error {
	return fmt.Errorf("export %s: %w", op, errors.Join(err, errors.ErrExportFailed))
}
