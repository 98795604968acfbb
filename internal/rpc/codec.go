package rpc

import (
	"encoding/json"
	"fmt"
)

// CodecName is the content subtype negotiated by clients ("application/grpc+json").
const CodecName = "json"

// codec carries the messages of this package as JSON over gRPC framing.
type codec struct{}

// frame is an undecoded message body. The codec passes it through as is, so
// a receiver can decode each message itself.
type frame []byte

func (codec) Marshal(v any) ([]byte, error) {
	if f, ok := v.(frame); ok {
		return f, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return b, nil
}

func (codec) Unmarshal(data []byte, v any) error {
	if f, ok := v.(*frame); ok {
		*f = append((*f)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

func (codec) Name() string { return CodecName }
