package codec

import "google.golang.org/protobuf/proto"

// Protobuf encodes proto messages with deterministic field order.
type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message, e.g. func() *structpb.Struct { return &structpb.Struct{} }
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}

// Mapped adapts a Codec[W] into a Codec[V] through a pair of conversions.
// Typical use: a domain struct stored through a generic wire message.
type Mapped[V, W any] struct {
	Inner Codec[W]
	To    func(V) (W, error)
	From  func(W) (V, error)
}

func (c Mapped[V, W]) Encode(v V) ([]byte, error) {
	w, err := c.To(v)
	if err != nil {
		return nil, err
	}
	return c.Inner.Encode(w)
}

func (c Mapped[V, W]) Decode(b []byte) (V, error) {
	w, err := c.Inner.Decode(b)
	if err != nil {
		var zero V
		return zero, err
	}
	return c.From(w)
}
