package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Protobuf stores a concrete proto message type.
type Protobuf[T proto.Message] struct {
	new func() T // e.g. func() *mypb.Conversation { return &mypb.Conversation{} }
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) ID() byte { return IDProtobuf }

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}

// StructPB stores JSON-shaped values (maps, slices, strings, float64, bool, nil)
// as google.protobuf.Value. Numbers come back as float64, as with JSON.
type StructPB struct{}

var _ Codec[any] = StructPB{}

func (StructPB) ID() byte { return IDStructPB }

func (StructPB) Encode(v any) ([]byte, error) {
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, fmt.Errorf("structpb encode: %w", err)
	}
	return proto.Marshal(pv)
}

func (StructPB) Decode(b []byte) (any, error) {
	var pv structpb.Value
	if err := proto.Unmarshal(b, &pv); err != nil {
		return nil, err
	}
	return pv.AsInterface(), nil
}
