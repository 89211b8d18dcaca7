package etf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/danmuck/riakmr/internal/protocol"
)

var (
	ErrNegativeArity  = fmt.Errorf("etf: negative arity: %w", protocol.ErrEncoding)
	ErrInvalidLength  = fmt.Errorf("etf: invalid length: %w", protocol.ErrEncoding)
	ErrBufferOverflow = fmt.Errorf("etf: buffer overflow: %w", protocol.ErrEncoding)
	ErrSizeMismatch   = fmt.Errorf("etf: measured and written sizes differ: %w", protocol.ErrEncoding)
	ErrNilTerm        = fmt.Errorf("etf: nil term: %w", protocol.ErrEncoding)
)

// Mode selects whether an Encoder only counts bytes or writes them.
type Mode int

const (
	Measure Mode = iota
	Write
)

func (m Mode) String() string {
	switch m {
	case Measure:
		return "measure"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Encoder advances a cursor over buf. In Measure mode buf is unused and only
// the cursor moves; the cursor lands on the same offset in both modes.
type Encoder struct {
	mode Mode
	buf  []byte
	n    int
}

// NewMeasurer returns an Encoder that counts bytes without writing.
func NewMeasurer() *Encoder {
	return &Encoder{mode: Measure}
}

// NewWriter returns an Encoder that writes into buf. buf must be large enough.
func NewWriter(buf []byte) *Encoder {
	return &Encoder{mode: Write, buf: buf}
}

func (e *Encoder) Mode() Mode { return e.mode }

// Len reports the bytes counted or written so far.
func (e *Encoder) Len() int { return e.n }

// Bytes returns the written prefix of the destination. Nil in Measure mode.
func (e *Encoder) Bytes() []byte {
	if e.mode != Write {
		return nil
	}
	return e.buf[:e.n]
}

// reserve advances the cursor by size. It returns the destination window in
// Write mode and nil in Measure mode.
func (e *Encoder) reserve(size int) ([]byte, error) {
	if e.mode == Measure {
		e.n += size
		return nil, nil
	}
	if size > len(e.buf)-e.n {
		return nil, ErrBufferOverflow
	}
	dst := e.buf[e.n : e.n+size]
	e.n += size
	return dst, nil
}

// Version writes the format version byte. It belongs once at buffer start.
func (e *Encoder) Version() error {
	dst, err := e.reserve(1)
	if dst == nil {
		return err
	}
	dst[0] = VersionMagic
	return nil
}

// ListHeader writes the header of a list with arity elements. Arity 0 writes
// the Nil marker. A non-empty list must be closed with Nil after its elements.
func (e *Encoder) ListHeader(arity int) error {
	if arity < 0 {
		return ErrNegativeArity
	}
	if arity == 0 {
		return e.Nil()
	}
	if uint64(arity) > math.MaxUint32 {
		return ErrInvalidLength
	}
	dst, err := e.reserve(5)
	if dst == nil {
		return err
	}
	dst[0] = TagList
	binary.BigEndian.PutUint32(dst[1:5], uint32(arity))
	return nil
}

// Nil writes the empty list marker.
func (e *Encoder) Nil() error {
	dst, err := e.reserve(1)
	if dst == nil {
		return err
	}
	dst[0] = TagNil
	return nil
}

// TupleHeader writes the header of a tuple with arity elements.
func (e *Encoder) TupleHeader(arity int) error {
	if arity < 0 {
		return ErrNegativeArity
	}
	if arity <= 0xff {
		dst, err := e.reserve(2)
		if dst == nil {
			return err
		}
		dst[0] = TagSmallTuple
		dst[1] = byte(arity)
		return nil
	}
	if uint64(arity) > math.MaxUint32 {
		return ErrInvalidLength
	}
	dst, err := e.reserve(5)
	if dst == nil {
		return err
	}
	dst[0] = TagLargeTuple
	binary.BigEndian.PutUint32(dst[1:5], uint32(arity))
	return nil
}

// Binary writes p as a length-prefixed binary.
func (e *Encoder) Binary(p []byte) error {
	if uint64(len(p)) > math.MaxUint32 {
		return ErrInvalidLength
	}
	dst, err := e.reserve(5 + len(p))
	if dst == nil {
		return err
	}
	dst[0] = TagBinary
	binary.BigEndian.PutUint32(dst[1:5], uint32(len(p)))
	copy(dst[5:], p)
	return nil
}

// Atom writes s unterminated, truncated to MaxAtomLen bytes.
func (e *Encoder) Atom(s string) error {
	if len(s) > MaxAtomLen {
		s = s[:MaxAtomLen]
	}
	dst, err := e.reserve(3 + len(s))
	if dst == nil {
		return err
	}
	dst[0] = TagAtom
	binary.BigEndian.PutUint16(dst[1:3], uint16(len(s)))
	copy(dst[3:], s)
	return nil
}

// Long writes v using the cheapest integer encoding that holds it.
func (e *Encoder) Long(v int64) error {
	return e.Term(Integer(v))
}

// Term writes t and all of its children.
func (e *Encoder) Term(t Term) error {
	if t == nil {
		return ErrNilTerm
	}
	return t.encodeTo(e)
}

func (e *Encoder) smallInt(v uint8) error {
	dst, err := e.reserve(2)
	if dst == nil {
		return err
	}
	dst[0] = TagSmallInteger
	dst[1] = v
	return nil
}

func (e *Encoder) integer(v int32) error {
	dst, err := e.reserve(5)
	if dst == nil {
		return err
	}
	dst[0] = TagInteger
	binary.BigEndian.PutUint32(dst[1:5], uint32(v))
	return nil
}

func (e *Encoder) smallBig(negative bool, magnitude uint32) error {
	dst, err := e.reserve(7)
	if dst == nil {
		return err
	}
	dst[0] = TagSmallBig
	dst[1] = 4
	dst[2] = 0
	if negative {
		dst[2] = 1
	}
	binary.LittleEndian.PutUint32(dst[3:7], magnitude)
	return nil
}

// Size reports the encoded length of t without the version byte.
func Size(t Term) (int, error) {
	m := NewMeasurer()
	if err := m.Term(t); err != nil {
		return 0, err
	}
	return m.Len(), nil
}

// Marshal encodes t behind a version byte. It measures first, allocates the
// exact size, then writes.
func Marshal(t Term) ([]byte, error) {
	m := NewMeasurer()
	if err := m.Version(); err != nil {
		return nil, err
	}
	if err := m.Term(t); err != nil {
		return nil, err
	}

	w := NewWriter(make([]byte, m.Len()))
	if err := w.Version(); err != nil {
		return nil, err
	}
	if err := w.Term(t); err != nil {
		return nil, err
	}
	if w.Len() != m.Len() {
		return nil, fmt.Errorf("%w: measured=%d written=%d", ErrSizeMismatch, m.Len(), w.Len())
	}
	return w.Bytes(), nil
}
