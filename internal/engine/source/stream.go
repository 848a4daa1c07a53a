package source

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/wire"
)

// streamBacklog is the number of decoded samples held between Fetch calls.
const streamBacklog = 4096

// Stream reads length-delimited protobuf samples (see package wire) from a
// reader. A background goroutine decodes messages into a bounded backlog
// so that Fetch never blocks on I/O; when the backlog is full, decoding
// waits for the ingestion tick to drain it.
type Stream struct {
	rc      io.ReadCloser
	samples chan types.Sample

	mu      sync.Mutex
	err     error // terminal error, io.EOF at a clean end
	done    chan struct{}
	closing chan struct{}
	once    sync.Once
}

// NewStream starts decoding from rc. The Stream owns rc.
func NewStream(rc io.ReadCloser, maxMessageSize int) *Stream {
	s := &Stream{
		rc:      rc,
		samples: make(chan types.Sample, streamBacklog),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go s.readLoop(wire.NewReader(rc, maxMessageSize))
	return s
}

func (s *Stream) readLoop(r *wire.Reader) {
	defer close(s.done)

	for {
		sample, err := r.ReadSample()
		if err != nil {
			if errors.IsConfiguration(err) {
				// A malformed message is skipped, framing is intact.
				log.Warn("dropping malformed sample", "error", err)
				continue
			}
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}

		select {
		case s.samples <- sample:
		case <-s.closing:
			return
		}
	}
}

// Name implements Source.
func (s *Stream) Name() string { return "stream" }

// Fetch implements Source. It returns what is buffered, up to n samples.
// Once the reader has ended and the backlog is drained, Fetch returns
// errors.ErrSourceExhausted (clean end) or the read error.
func (s *Stream) Fetch(ctx context.Context, n int) ([]types.Sample, error) {
	out := make([]types.Sample, 0, min(n, len(s.samples)))
drain:
	for len(out) < n {
		select {
		case sample := <-s.samples:
			out = append(out, sample)
		case <-ctx.Done():
			return out, ctx.Err()
		default:
			break drain
		}
	}

	if len(out) > 0 {
		return out, nil
	}

	select {
	case <-s.done:
	default:
		return out, nil
	}

	// The reader stopped; drain anything it pushed before exiting.
	select {
	case sample := <-s.samples:
		return append(out, sample), nil
	default:
	}

	s.mu.Lock()
	err := s.err
	s.mu.Unlock()

	if err == nil || err == io.EOF {
		return nil, errors.ErrSourceExhausted
	}
	return nil, fmt.Errorf("stream: %w", errors.Join(err, errors.ErrSourceFailed))
}

// Close stops the reader and closes the underlying stream.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closing)
		err = s.rc.Close()
	})
	return err
}
