package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("filtercache: corrupt row envelope")
	magic4     = [...]byte{'F', 'C', 'R', 'W'}
)

// Row: magic(4) | ver(1) | rank(u64 be) | vlen(u32 be) | payload(vlen)
//
// The rank keeps members distinct inside a sorted set even when two payloads are
// equal, and lets readers check that a member sits where it was written.
func EncodeRow(rank uint64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], rank)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// DecodeRow returns the rank and a payload slice aliasing b.
func DecodeRow(b []byte) (rank uint64, payload []byte, err error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return 0, nil, ErrCorrupt
	}
	rank = binary.BigEndian.Uint64(b[5:13])
	vlen := int(binary.BigEndian.Uint32(b[13:17]))
	if vlen != len(b)-hdrLen { // short or trailing bytes
		return 0, nil, ErrCorrupt
	}
	return rank, b[hdrLen:], nil
}
