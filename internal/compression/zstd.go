// Package compression wraps zstd for payloads that travel to registries.
package compression

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec holds a reusable zstd encoder/decoder pair. EncodeAll and
// DecodeAll are safe for concurrent use, so one Codec serves a backend.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New builds a codec. Levels: 1 fastest, 2 default, 3 better compression.
func New(level int) (*Codec, error) {
	var encoderLevel zstd.EncoderLevel
	switch level {
	case 1:
		encoderLevel = zstd.SpeedFastest
	case 3:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedDefault
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encoderLevel))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Encode compresses data into a self-contained zstd frame.
func (c *Codec) Encode(data []byte) []byte {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Decode reverses Encode.
func (c *Codec) Decode(data []byte) ([]byte, error) {
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

func (c *Codec) Close() error {
	c.encoder.Close()
	c.decoder.Close()
	return nil
}
