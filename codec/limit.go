package codec

import "fmt"

// LimitCodec wraps another codec to enforce a maximum payload size at Decode
// time. Encode is forwarded to Inner unchanged. MaxDecode <= 0 disables the check.
//
// Typical use: the async tier is shared (redis) and you don't trust every writer.
type LimitCodec[V any] struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec[V]
	// MaxDecode is the maximum permitted payload length in bytes.
	MaxDecode int
}

func (c LimitCodec[V]) ID() byte                   { return IDOf(c.Inner) }
func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
