// Package wire provides protobuf message framing for sample streams.
//
// Messages are length-delimited using protobuf's standard varint encoding.
// Each message is a google.protobuf.Struct carrying one sample:
//
//	{"timestamp_ms": 1700000000000, "value": 42.5, "category": "cpu", "metadata": {...}}
//
// Struct keeps the stream self-describing, so producers in any language can
// emit samples without a generated schema.
package wire

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sync"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtxerr/streamscope/config"
	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
)

// Field names of a sample message.
const (
	FieldTimestamp = "timestamp_ms"
	FieldValue     = "value"
	FieldCategory  = "category"
	FieldMetadata  = "metadata"
)

// Reader reads length-delimited sample messages from an io.Reader.
// It is safe for concurrent use.
type Reader struct {
	r       *bufio.Reader
	maxSize int64
	mu      sync.Mutex
}

// NewReader creates a Reader wrapping the given io.Reader. maxSize <= 0
// uses config.DefaultMaxMessageSize.
func NewReader(r io.Reader, maxSize int) *Reader {
	if maxSize <= 0 {
		maxSize = config.DefaultMaxMessageSize
	}
	return &Reader{r: bufio.NewReader(r), maxSize: int64(maxSize)}
}

// Read reads and unmarshals the next message.
// Returns io.EOF (unwrapped) at a clean end of stream.
func (r *Reader) Read() (*structpb.Struct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := &structpb.Struct{}
	opts := protodelim.UnmarshalOptions{
		MaxSize: r.maxSize,
	}
	if err := opts.UnmarshalFrom(r.r, msg); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read message: %w", err)
	}
	return msg, nil
}

// ReadSample reads the next message and decodes it as a sample.
func (r *Reader) ReadSample() (types.Sample, error) {
	msg, err := r.Read()
	if err != nil {
		return types.Sample{}, err
	}
	return DecodeSample(msg)
}

// Writer writes length-delimited sample messages to an io.Writer.
// It is safe for concurrent use.
type Writer struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriter creates a Writer wrapping the given io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write marshals and writes a message with length prefix.
func (w *Writer) Write(msg *structpb.Struct) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := protodelim.MarshalTo(w.w, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// WriteSample encodes and writes a sample.
func (w *Writer) WriteSample(s types.Sample) error {
	msg, err := EncodeSample(s)
	if err != nil {
		return err
	}
	return w.Write(msg)
}

// =============================================================================
// Sample Conversion
// =============================================================================

// EncodeSample converts a sample to a Struct message. Metadata values must
// be representable by structpb.NewValue.
func EncodeSample(s types.Sample) (*structpb.Struct, error) {
	fields := map[string]*structpb.Value{
		FieldTimestamp: structpb.NewNumberValue(float64(s.TimestampMs)),
		FieldValue:     structpb.NewNumberValue(s.Value),
	}
	if s.Category != "" {
		fields[FieldCategory] = structpb.NewStringValue(s.Category)
	}
	if len(s.Metadata) > 0 {
		md, err := structpb.NewStruct(s.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		fields[FieldMetadata] = structpb.NewStructValue(md)
	}
	return &structpb.Struct{Fields: fields}, nil
}

// DecodeSample converts a Struct message to a sample. timestamp_ms and
// value are required numbers; timestamp_ms must be a finite integer within
// the int64 range.
func DecodeSample(msg *structpb.Struct) (types.Sample, error) {
	var s types.Sample
	fields := msg.GetFields()

	ts, ok := fields[FieldTimestamp].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return s, errors.NewMissingField(FieldTimestamp)
	}
	if math.IsNaN(ts.NumberValue) || math.IsInf(ts.NumberValue, 0) {
		return s, errors.NewInvalidValue(FieldTimestamp, ts.NumberValue, "must be finite")
	}
	if ts.NumberValue != math.Trunc(ts.NumberValue) {
		return s, errors.NewInvalidValue(FieldTimestamp, ts.NumberValue, "must be integral")
	}
	if ts.NumberValue < math.MinInt64 || ts.NumberValue >= math.MaxInt64 {
		return s, errors.NewInvalidValue(FieldTimestamp, ts.NumberValue, "out of int64 range")
	}
	s.TimestampMs = int64(ts.NumberValue)

	v, ok := fields[FieldValue].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return s, errors.NewMissingField(FieldValue)
	}
	s.Value = v.NumberValue

	if c, ok := fields[FieldCategory].GetKind().(*structpb.Value_StringValue); ok {
		s.Category = c.StringValue
	}
	if md := fields[FieldMetadata].GetStructValue(); md != nil && len(md.GetFields()) > 0 {
		s.Metadata = md.AsMap()
	}

	return s, nil
}
