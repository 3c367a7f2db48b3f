// Package wire frames async tier entries.
//
// A frame records which codec produced the payload and when it was written, so
// the cache can tell its own entries apart from foreign bytes sharing the store.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version   byte = 1
	kindValue byte = 1

	// magic(4) | ver(1) | kind(1) | codec(1) | written(u64 be, unix nanos) | vlen(u32 be)
	headerLen = 4 + 1 + 1 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("tiercache: corrupt async entry")
	magic4     = [...]byte{'T', 'I', 'E', 'R'}
)

// Entry is a decoded frame. Payload aliases the input buffer.
type Entry struct {
	Codec     byte
	WrittenAt time.Time
	Payload   []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames payload written with codec id at time at.
func Encode(codecID byte, at time.Time, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindValue)
	buf.WriteByte(codecID)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(at.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode parses a frame produced by Encode. Anything else, including trailing
// bytes after the payload, is ErrCorrupt.
func Decode(b []byte) (Entry, error) {
	if len(b) < headerLen || !hasMagic(b) || b[4] != version || b[5] != kindValue {
		return Entry{}, ErrCorrupt
	}

	off := 6
	codecID := b[off]
	off++

	nanos := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}

	return Entry{
		Codec:     codecID,
		WrittenAt: time.Unix(0, int64(nanos)),
		Payload:   b[off : off+vlen],
	}, nil
}
