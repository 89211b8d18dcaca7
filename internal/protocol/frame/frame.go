package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/danmuck/riakmr/internal/protocol"
)

// Wire constants of the map-reduce request envelope.
//
//	[u32 be inner_len][0x17 0x0A][uvarint payload_len][payload][0x12 0x1B][content type]
const (
	PrefixLen = 4

	MsgMapRedReq     byte = 0x17
	FieldRequest     byte = 0x0A
	FieldContentType byte = 0x12

	ContentType = "application/x-erlang-binary"
)

var contentTypeField = append([]byte{FieldContentType, 0x1B}, ContentType...)

var (
	ErrPayloadTooLarge = fmt.Errorf("frame: payload too large: %w", protocol.ErrEncoding)
	ErrShortPrefix     = fmt.Errorf("frame: short length prefix: %w", protocol.ErrProtocolMismatch)
	ErrMalformed       = fmt.Errorf("frame: malformed request: %w", protocol.ErrProtocolMismatch)
)

// Limits constrains frame encode/decode memory use.
type Limits struct {
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

// InnerLen is the byte count covered by the length prefix for a payload of n bytes.
func InnerLen(n int) int {
	return 2 + uvarintLen(uint64(n)) + n + len(contentTypeField)
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// Build wraps an encoded term payload into a complete length-prefixed frame.
func Build(payload []byte, limits Limits) ([]byte, error) {
	if uint64(len(payload)) > limits.MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}
	inner := InnerLen(len(payload))
	if uint64(inner) > math.MaxUint32 {
		return nil, ErrPayloadTooLarge
	}

	out := make([]byte, PrefixLen, PrefixLen+inner)
	binary.BigEndian.PutUint32(out[0:PrefixLen], uint32(inner))
	out = append(out, MsgMapRedReq, FieldRequest)
	out = binary.AppendUvarint(out, uint64(len(payload)))
	out = append(out, payload...)
	out = append(out, contentTypeField...)
	return out, nil
}

// WriteFrame builds the frame for payload and writes it to w in one call.
func WriteFrame(w io.Writer, payload []byte, limits Limits) (int, error) {
	buf, err := Build(payload, limits)
	if err != nil {
		return 0, err
	}
	return w.Write(buf)
}

// ReadFrame reads one length-prefixed request from r and returns its term payload.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var prefix [PrefixLen]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShortPrefix, err)
	}
	inner := binary.BigEndian.Uint32(prefix[:])
	if uint64(inner) > uint64(InnerLen(int(limits.MaxPayloadBytes))) {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, inner)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return ParseInner(buf)
}

// ParseInner validates the two fixed fields of an inner frame and returns the
// term payload.
func ParseInner(inner []byte) ([]byte, error) {
	if len(inner) < 2 || inner[0] != MsgMapRedReq || inner[1] != FieldRequest {
		return nil, ErrMalformed
	}
	n, used := binary.Uvarint(inner[2:])
	if used <= 0 {
		return nil, ErrMalformed
	}
	start := 2 + used
	if n > uint64(len(inner)-start) {
		return nil, ErrMalformed
	}
	end := start + int(n)
	if !bytes.Equal(inner[end:], contentTypeField) {
		return nil, ErrMalformed
	}
	payload := make([]byte, n)
	copy(payload, inner[start:end])
	return payload, nil
}
