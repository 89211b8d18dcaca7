// Package reply parses the fixed-shape map-reduce reply.
//
// The remote always answers with the term [Status, <<Payload>>] behind a
// 9-byte preamble, so only the offsets that are invariant for that shape are
// checked:
//
//	offset  9  0x83  version
//	offset 10  'l'   list tag
//	offset 14  0x02  list arity (low byte)
//	offset 16        status code (i8)
//	offset 18..22    payload length (u32 be)
//	offset 22..      payload, then one list terminator byte
package reply

import (
	"encoding/binary"
	"fmt"

	"github.com/danmuck/riakmr/internal/protocol"
	"github.com/danmuck/riakmr/internal/protocol/etf"
)

const (
	HeaderLen     = 22
	TerminatorLen = 1
	PreambleLen   = 9

	offStatus = 16
	offLength = 18
)

// MsgMapRedResp is the message code the remote places after the length prefix.
const MsgMapRedResp byte = 0x18

var (
	ErrShortHeader    = fmt.Errorf("reply: short header: %w", protocol.ErrProtocolMismatch)
	ErrMarkerMismatch = fmt.Errorf("reply: marker mismatch: %w", protocol.ErrProtocolMismatch)

	// ErrPayloadTooLarge is returned by Encode; the fixed preamble cannot
	// describe the term.
	ErrPayloadTooLarge = fmt.Errorf("reply: payload too large: %w", protocol.ErrEncoding)
)

type marker struct {
	offset int
	want   byte
	name   string
}

// markers is the offset table for the only reply shape the remote produces.
var markers = []marker{
	{offset: 9, want: etf.VersionMagic, name: "version"},
	{offset: 10, want: etf.TagList, name: "list tag"},
	{offset: 14, want: 0x02, name: "list arity"},
}

// Header is the parsed view of the first reply chunk.
type Header struct {
	StatusCode int8
	PayloadLen uint32
	Consumed   int
}

// Parse validates the marker bytes of chunk and extracts status and length.
func Parse(chunk []byte) (Header, error) {
	if len(chunk) < HeaderLen {
		return Header{}, fmt.Errorf("%w: got %d bytes want %d", ErrShortHeader, len(chunk), HeaderLen)
	}
	for _, m := range markers {
		if got := chunk[m.offset]; got != m.want {
			return Header{}, fmt.Errorf("%w: %s at offset %d got %#02x want %#02x",
				ErrMarkerMismatch, m.name, m.offset, got, m.want)
		}
	}
	return Header{
		StatusCode: int8(chunk[offStatus]),
		PayloadLen: binary.BigEndian.Uint32(chunk[offLength : offLength+4]),
		Consumed:   HeaderLen,
	}, nil
}

// termOverhead is the term bytes around the payload: version, list header,
// small int status, binary header, terminator.
const termOverhead = 1 + 5 + 2 + 5 + TerminatorLen

// MaxPayloadLen is the largest payload whose term length fits the fixed
// three byte varint of the preamble.
const MaxPayloadLen = 1<<21 - 1 - termOverhead

// Encode renders a complete reply in the shape Parse expects. The preamble
// carries the message length, the reply code, and the term length as a
// fixed-width three byte varint.
func Encode(status int8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(payload), MaxPayloadLen)
	}
	termLen := termOverhead + len(payload)
	out := make([]byte, 0, PreambleLen+termLen)

	out = binary.BigEndian.AppendUint32(out, uint32(PreambleLen-4+termLen))
	out = append(out, MsgMapRedResp, 0x12)
	out = append(out,
		byte(termLen)|0x80,
		byte(termLen>>7)|0x80,
		byte(termLen>>14),
	)

	out = append(out, etf.VersionMagic, etf.TagList)
	out = binary.BigEndian.AppendUint32(out, 2)
	out = append(out, etf.TagSmallInteger, byte(status), etf.TagBinary)
	out = binary.BigEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	out = append(out, etf.TagNil)
	return out, nil
}

// MustBuild is Encode for fixtures; it panics when Encode fails.
func MustBuild(status int8, payload []byte) []byte {
	out, err := Encode(status, payload)
	if err != nil {
		panic(err)
	}
	return out
}
