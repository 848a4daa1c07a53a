// Package source produces samples for the ingestion tick.
//
// Three sources are provided: a synthetic generator (the default), an SNMP
// poller and a reader of length-delimited protobuf sample streams.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/logging"
)

var log = logging.Component("source")

// Source produces samples. Fetch must not block past the ingestion tick:
// a source with nothing ready returns an empty slice. Failures are
// transient (errors.IsRetriable) unless the source is exhausted.
type Source interface {
	// Fetch returns up to n new samples.
	Fetch(ctx context.Context, n int) ([]types.Sample, error)

	// Name identifies the source in logs and metrics.
	Name() string

	// Close releases the source.
	Close() error
}

// Open creates the source selected by cfg.
func Open(cfg config.SourceConfig, now func() time.Time) (Source, error) {
	if now == nil {
		now = time.Now
	}

	switch cfg.Kind {
	case config.SourceSynthetic, "":
		return NewSynthetic(cfg.Synthetic, now), nil

	case config.SourceSNMP:
		return NewSNMP(cfg.SNMP, now)

	case config.SourceStream:
		var rc io.ReadCloser
		if cfg.Stream.Path == "-" {
			rc = io.NopCloser(os.Stdin)
		} else {
			f, err := os.Open(cfg.Stream.Path)
			if err != nil {
				return nil, fmt.Errorf("open stream %s: %w", cfg.Stream.Path, errors.Join(err, errors.ErrSourceFailed))
			}
			rc = f
		}
		return NewStream(rc, cfg.Stream.MaxMessageSize), nil

	default:
		return nil, errors.NewInvalidValue("source.kind", cfg.Kind, "must be one of: synthetic, snmp, stream")
	}
}
