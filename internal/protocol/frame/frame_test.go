package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/danmuck/riakmr/internal/protocol"
	"github.com/danmuck/riakmr/internal/protocol/etf"
)

func TestBuildGoldenFrame(t *testing.T) {
	payload, err := etf.Marshal(etf.Tuple{etf.Atom("timeout"), etf.Integer(5000)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Build(payload, DefaultLimits())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := []byte{
		0x00, 0x00, 0x00, 0x32,
		0x17, 0x0a, 0x12,
		0x83, 'h', 0x02, 'd', 0x00, 0x07, 't', 'i', 'm', 'e', 'o', 'u', 't',
		'b', 0x00, 0x00, 0x13, 0x88,
		0x12, 0x1b,
	}
	want = append(want, "application/x-erlang-binary"...)
	if !bytes.Equal(got, want) {
		t.Fatalf("frame mismatch:\n got=% x\nwant=% x", got, want)
	}
}

func TestBuildMultiByteVarint(t *testing.T) {
	cases := []struct {
		n      int
		varint []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}
	for _, tc := range cases {
		payload := bytes.Repeat([]byte{0xaa}, tc.n)
		got, err := Build(payload, DefaultLimits())
		if err != nil {
			t.Fatalf("n=%d: build: %v", tc.n, err)
		}
		if !bytes.Equal(got[6:6+len(tc.varint)], tc.varint) {
			t.Fatalf("n=%d: varint=% x want % x", tc.n, got[6:6+len(tc.varint)], tc.varint)
		}
		inner := len(got) - PrefixLen
		if inner != InnerLen(tc.n) {
			t.Fatalf("n=%d: inner=%d InnerLen=%d", tc.n, inner, InnerLen(tc.n))
		}
		prefix := int(got[0])<<24 | int(got[1])<<16 | int(got[2])<<8 | int(got[3])
		if prefix != inner {
			t.Fatalf("n=%d: prefix=%d inner=%d", tc.n, prefix, inner)
		}
	}
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	payload := []byte{0x83, 'j'}
	var buf bytes.Buffer
	n, err := WriteFrame(&buf, payload, DefaultLimits())
	if err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if n != buf.Len() {
		t.Fatalf("short write: %d of %d", n, buf.Len())
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("payload mismatch: % x", out)
	}
}

func TestBuildRejectsOversizedPayload(t *testing.T) {
	_, err := Build(make([]byte, 9), Limits{MaxPayloadBytes: 8})
	if !errors.Is(err, ErrPayloadTooLarge) || !errors.Is(err, protocol.ErrEncoding) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReadFrameShortPrefixKeepsCause(t *testing.T) {
	cases := []struct {
		name  string
		input []byte
		cause error
	}{
		{"empty", nil, io.EOF},
		{"partial", []byte{0, 0}, io.ErrUnexpectedEOF},
	}
	for _, tc := range cases {
		_, err := ReadFrame(bytes.NewReader(tc.input), DefaultLimits())
		if !errors.Is(err, ErrShortPrefix) || !errors.Is(err, tc.cause) {
			t.Fatalf("%s: expected ErrShortPrefix wrapping %v, got %v", tc.name, tc.cause, err)
		}
		if !errors.Is(err, protocol.ErrProtocolMismatch) {
			t.Fatalf("%s: short prefix lost its kind: %v", tc.name, err)
		}
	}
}

func TestReadFrameTruncatedBodyKeepsCause(t *testing.T) {
	full, err := Build([]byte{1, 2, 3}, DefaultLimits())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, err = ReadFrame(bytes.NewReader(full[:len(full)-4]), DefaultLimits())
	if !errors.Is(err, ErrMalformed) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrMalformed wrapping io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestParseInnerRejectsWrongContentType(t *testing.T) {
	full, err := Build([]byte{1, 2, 3}, DefaultLimits())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	inner := append([]byte(nil), full[PrefixLen:]...)
	inner[len(inner)-1] = 'X'
	if _, err := ParseInner(inner); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
