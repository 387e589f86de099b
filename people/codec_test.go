package people

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/filtercache/codec"
)

func TestCodecsRoundTrip(t *testing.T) {
	rows := Generate(25, 42)
	for _, name := range []string{"json", "msgpack", "cbor", "proto"} {
		for _, comp := range []string{"none", "s2", "zstd"} {
			t.Run(name+"_"+comp, func(t *testing.T) {
				c, err := NewCodec(CodecOptions{Name: name, Compress: comp})
				require.NoError(t, err)
				for _, p := range rows {
					b, err := c.Encode(p)
					require.NoError(t, err)
					got, err := c.Decode(b)
					require.NoError(t, err)
					assert.True(t, p.Birthday.Equal(got.Birthday), "birthday %s != %s", p.Birthday, got.Birthday)
					got.Birthday = p.Birthday
					assert.Equal(t, p, got)
				}
			})
		}
	}
}

func TestNewCodecUnknown(t *testing.T) {
	_, err := NewCodec(CodecOptions{Name: "xml"})
	assert.ErrorIs(t, err, ErrUnknownCodec)
	_, err = NewCodec(CodecOptions{Compress: "lz4"})
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestNewCodecLimit(t *testing.T) {
	c, err := NewCodec(CodecOptions{MaxDecode: 16})
	require.NoError(t, err)
	b, err := c.Encode(Generate(1, 1)[0])
	require.NoError(t, err)
	_, err = c.Decode(b)
	assert.ErrorIs(t, err, codec.ErrTooLarge)
}

func TestProtoRejectsBadDate(t *testing.T) {
	s, err := toStruct(Person{ID: 9})
	require.NoError(t, err)
	s.Fields["birthday"] = nil
	_, err = fromStruct(s)
	assert.Error(t, err)
}

func TestCBORIsDeterministic(t *testing.T) {
	c, err := NewCodec(CodecOptions{Name: "cbor"})
	require.NoError(t, err)
	p := Generate(1, 5)[0]
	a, err := c.Encode(p)
	require.NoError(t, err)
	b, err := c.Encode(p)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
