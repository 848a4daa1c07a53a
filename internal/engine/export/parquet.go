package export

import (
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/xtxerr/streamscope/internal/errors"
)

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// ParseCompressionType parses a compression type string. Empty selects
// zstd.
func ParseCompressionType(s string) (CompressionType, error) {
	switch s {
	case "snappy":
		return CompressionSnappy, nil
	case "zstd", "":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "gzip":
		return CompressionGzip, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, errors.NewInvalidValue("compression.algorithm", s, "must be one of: snappy, zstd, lz4, gzip, none")
	}
}

// codec returns the parquet-go compression codec.
func (o Options) codec() compress.Codec {
	switch o.Compression {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		if o.Level <= 0 {
			return &parquet.Zstd
		}
		return &zstd.Codec{Level: zstdLevel(o.Level)}
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// zstdLevel maps a zstd command-line level onto the encoder speeds.
func zstdLevel(level int) zstd.Level {
	switch {
	case level <= 2:
		return zstd.SpeedFastest
	case level <= 6:
		return zstd.SpeedDefault
	case level <= 12:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

func writeParquet[T any](w io.Writer, rows []T, codec compress.Codec) error {
	writer := parquet.NewGenericWriter[T](w, parquet.Compression(codec))

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}
