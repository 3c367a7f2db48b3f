package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack is a Codec that serializes values using vmihailenco/msgpack/v5.
// The zero value is ready to use. It is the default async tier codec.
//
// Decoding into V=any yields map[string]any / []any / scalars, which is the
// closest thing to "structured data stored natively" that a byte store offers.
// Use `msgpack:"fieldName"` tags if you need explicit control over struct fields.
type Msgpack[V any] struct{}

func (Msgpack[V]) ID() byte { return IDMsgpack }

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
