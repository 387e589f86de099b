package codec

import (
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Compressor is a reversible byte transform applied after encoding.
type Compressor interface {
	Compress([]byte) ([]byte, error)
	Decompress([]byte) ([]byte, error)
	Name() string
}

type s2c struct{}

// S2 is fast and cheap; a good default for short JSON rows.
func S2() Compressor { return s2c{} }

func (s2c) Compress(b []byte) ([]byte, error)   { return s2.Encode(nil, b), nil }
func (s2c) Decompress(b []byte) ([]byte, error) { return s2.Decode(nil, b) }
func (s2c) Name() string                        { return "s2" }

type zstdc struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Zstd trades CPU for size. level: 1 (fastest) to 4 (best compression).
func Zstd(level int) (Compressor, error) {
	lvl := zstd.SpeedDefault
	switch {
	case level <= 1:
		lvl = zstd.SpeedFastest
	case level >= 4:
		lvl = zstd.SpeedBestCompression
	case level == 3:
		lvl = zstd.SpeedBetterCompression
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(lvl))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdc{enc: enc, dec: dec}, nil
}

func (z *zstdc) Compress(b []byte) ([]byte, error)   { return z.enc.EncodeAll(b, nil), nil }
func (z *zstdc) Decompress(b []byte) ([]byte, error) { return z.dec.DecodeAll(b, nil) }
func (*zstdc) Name() string                          { return "zstd" }

// Compressed runs Inner and then C. Decode fails on bytes C did not produce.
type Compressed[V any] struct {
	Inner Codec[V]
	C     Compressor
}

func (c Compressed[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	return c.C.Compress(b)
}

func (c Compressed[V]) Decode(b []byte) (V, error) {
	raw, err := c.C.Decompress(b)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("%s decompress: %w", c.C.Name(), err)
	}
	return c.Inner.Decode(raw)
}
