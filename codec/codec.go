// Package codec converts cached values to and from bytes.
//
// The disk tier always stores JSON text. The async tier accepts any Codec[any];
// codecs that implement Identified have their ID recorded next to the payload so
// an entry written with one codec is never silently decoded with another.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Identified is implemented by codecs that carry a stable wire ID.
type Identified interface {
	ID() byte
}

// Codec IDs. 0 is reserved for codecs that don't identify themselves.
const (
	IDUnknown  byte = 0
	IDJSON     byte = 1
	IDMsgpack  byte = 2
	IDCBOR     byte = 3
	IDProtobuf byte = 4
	IDStructPB byte = 5
	IDString   byte = 6
	IDBytes    byte = 7
)

// IDOf returns the wire ID of c, or IDUnknown.
func IDOf(c any) byte {
	if id, ok := c.(Identified); ok {
		return id.ID()
	}
	return IDUnknown
}
