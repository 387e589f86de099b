package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func TestRowRoundTrip(t *testing.T) {
	cases := []struct {
		rank    uint64
		payload []byte
	}{
		{0, nil},
		{19, []byte(`{"id":20}`)},
		{math.MaxUint64, []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		enc := EncodeRow(tc.rank, tc.payload)
		rank, p, err := DecodeRow(enc)
		if err != nil {
			t.Fatalf("DecodeRow(%d): %v", tc.rank, err)
		}
		if rank != tc.rank {
			t.Fatalf("rank mismatch: got %d want %d", rank, tc.rank)
		}
		if !bytes.Equal(p, tc.payload) {
			t.Fatalf("payload mismatch: got %x want %x", p, tc.payload)
		}
	}
}

func TestSamePayloadDifferentRanksDiffer(t *testing.T) {
	a := EncodeRow(1, []byte("same"))
	b := EncodeRow(2, []byte("same"))
	if bytes.Equal(a, b) {
		t.Fatalf("members at different ranks must differ")
	}
	if !bytes.Equal(a, EncodeRow(1, []byte("same"))) {
		t.Fatalf("encoding must be deterministic")
	}
}

func TestRowRejectsCorruption(t *testing.T) {
	enc := EncodeRow(3, []byte("abc"))

	mutate := func(f func([]byte) []byte) []byte {
		return f(append([]byte(nil), enc...))
	}

	cases := map[string][]byte{
		"empty":     nil,
		"short":     enc[:hdrLen-1],
		"bad_magic": mutate(func(b []byte) []byte { b[0] = 'X'; return b }),
		"bad_ver":   mutate(func(b []byte) []byte { b[4] = version + 1; return b }),
		"trailing":  mutate(func(b []byte) []byte { return append(b, 0xDE, 0xAD) }),
		"truncated": enc[:len(enc)-1],
		"huge_len": mutate(func(b []byte) []byte {
			binary.BigEndian.PutUint32(b[13:17], math.MaxUint32)
			return b
		}),
		"plain_json": []byte(`{"id":1,"email":"a@b.c"}`),
	}
	for name, b := range cases {
		if _, _, err := DecodeRow(b); err != ErrCorrupt {
			t.Fatalf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}
