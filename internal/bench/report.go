package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/oklog/ulid/v2"
)

// Report collects the results of one harness run.
type Report struct {
	ID         string          `json:"id" cbor:"id"`
	StartedAt  time.Time       `json:"started_at" cbor:"started_at"`
	Capacity   int             `json:"capacity" cbor:"capacity"`
	Throughput []Result        `json:"throughput,omitempty" cbor:"throughput,omitempty"`
	Latency    []LatencyResult `json:"latency,omitempty" cbor:"latency,omitempty"`
}

// NewReport returns an empty report with a fresh time-sortable id.
func NewReport(capacity int) *Report {
	now := time.Now().UTC()
	return &Report{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		StartedAt: now,
		Capacity:  capacity,
	}
}

// Codec encodes reports in one wire format.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) ContentType() string                { return "application/json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.MarshalIndent(v, "", "  ") }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a deterministic CBOR codec. Times keep nanosecond precision.
func CBOR() (Codec, error) {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborCodec{enc: em, dec: dm}, nil
}

func (c cborCodec) ContentType() string                { return "application/cbor" }
func (c cborCodec) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

// CodecFor returns the codec named by format: "json" or "cbor".
func CodecFor(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return jsonCodec{}, nil
	case "cbor":
		return CBOR()
	default:
		return nil, fmt.Errorf("bench: unknown report format %q", format)
	}
}

// Write encodes r in format to w.
func (r *Report) Write(w io.Writer, format string) error {
	codec, err := CodecFor(format)
	if err != nil {
		return err
	}
	data, err := codec.Marshal(r)
	if err != nil {
		return fmt.Errorf("bench: encode report: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ReadReport decodes a report previously written in format.
func ReadReport(data []byte, format string) (*Report, error) {
	codec, err := CodecFor(format)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := codec.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("bench: decode report: %w", err)
	}
	return &r, nil
}
