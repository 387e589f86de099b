// Package codec turns cached rows into bytes and back.
// Every codec must round-trip a value field for field.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
