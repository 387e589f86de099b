package people

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/filtercache/codec"
)

const dateLayout = "2006-01-02"

var ErrUnknownCodec = errors.New("people: unknown codec")

// cborCodec is deterministic so identical rows store identical members.
var cborCodec = codec.MustCBOR[Person](true)

// CodecOptions pick the row encoding and an optional compression step.
type CodecOptions struct {
	Name      string // json | msgpack | cbor | proto; "" => json
	Compress  string // none | s2 | zstd; "" => none
	ZstdLevel int    // 1..4; 0 => 2
	MaxDecode int    // refuse stored rows above this many bytes; 0 => no limit
}

// NewCodec builds the row codec named by opts.
func NewCodec(opts CodecOptions) (codec.Codec[Person], error) {
	var c codec.Codec[Person]
	switch opts.Name {
	case "", "json":
		c = codec.JSON[Person]{}
	case "msgpack":
		c = codec.Msgpack[Person]{}
	case "cbor":
		c = cborCodec
	case "proto":
		c = Proto()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, opts.Name)
	}

	switch opts.Compress {
	case "", "none":
	case "s2":
		c = codec.Compressed[Person]{Inner: c, C: codec.S2()}
	case "zstd":
		level := opts.ZstdLevel
		if level == 0 {
			level = 2
		}
		z, err := codec.Zstd(level)
		if err != nil {
			return nil, err
		}
		c = codec.Compressed[Person]{Inner: c, C: z}
	default:
		return nil, fmt.Errorf("%w: compression %q", ErrUnknownCodec, opts.Compress)
	}

	if opts.MaxDecode > 0 {
		c = codec.Limit[Person]{Inner: c, MaxDecode: opts.MaxDecode}
	}
	return c, nil
}

// Proto stores a Person as a google.protobuf.Struct. The id travels as a string
// so it survives the float64 number value; birthday is a plain date.
func Proto() codec.Codec[Person] {
	return codec.Mapped[Person, *structpb.Struct]{
		Inner: codec.NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} }),
		To:    toStruct,
		From:  fromStruct,
	}
}

func toStruct(p Person) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":        strconv.FormatInt(p.ID, 10),
		"email":     p.Email,
		"full_name": p.FullName,
		"country":   p.Country,
		"birthday":  p.Birthday.Format(dateLayout),
		"phone":     p.Phone,
		"ip":        p.IP,
	})
}

func fromStruct(s *structpb.Struct) (Person, error) {
	f := s.GetFields()
	str := func(name string) string { return f[name].GetStringValue() }

	id, err := strconv.ParseInt(str("id"), 10, 64)
	if err != nil {
		return Person{}, fmt.Errorf("id: %w", err)
	}
	bday, err := time.Parse(dateLayout, str("birthday"))
	if err != nil {
		return Person{}, fmt.Errorf("birthday: %w", err)
	}
	return Person{
		ID:       id,
		Email:    str("email"),
		FullName: str("full_name"),
		Country:  str("country"),
		Birthday: bday,
		Phone:    str("phone"),
		IP:       str("ip"),
	}, nil
}
