// Package codec encodes envelopes for the network transports.
package codec

import (
	"encoding/json"
	"fmt"
)

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	// ContentType names the encoding in message headers.
	ContentType() string
}

type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSONCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }
func (JSONCodec) ContentType() string             { return "application/json" }

// Default is the codec used when none is configured.
var Default Codec = JSONCodec{}

// Convert turns a decoded, untyped payload into T by encoding it again and
// decoding into T. Receivers of network envelopes use it to get typed
// messages back.
func Convert[T any](c Codec, payload any) (T, error) {
	var out T
	if v, ok := payload.(T); ok {
		return v, nil
	}
	data, err := c.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("codec: re-encode payload: %w", err)
	}
	if err := c.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("codec: decode %T: %w", out, err)
	}
	return out, nil
}
