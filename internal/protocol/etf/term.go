// Package etf encodes the subset of the Erlang external term format used by
// map-reduce requests.
package etf

// Tag bytes and limits of the supported term subset.
const (
	VersionMagic byte = 131

	TagSmallInteger byte = 'a'
	TagInteger      byte = 'b'
	TagSmallBig     byte = 'n'
	TagList         byte = 'l'
	TagNil          byte = 'j'
	TagSmallTuple   byte = 'h'
	TagLargeTuple   byte = 'i'
	TagBinary       byte = 'm'
	TagAtom         byte = 'd'

	MaxAtomLen = 255
	IntMax     = 1<<27 - 1
	IntMin     = -(1 << 27)
)

// Term is one encodable value. Terms are immutable once built.
type Term interface {
	encodeTo(e *Encoder) error
}

// Atom is truncated to MaxAtomLen bytes when encoded.
type Atom string

// SmallInt holds values in [0,256).
type SmallInt uint8

// Int holds values in [IntMin, IntMax].
type Int int32

// BigIntTrunc stores the low 32 bits of a value outside the Int range with the
// sign kept separately. It is not an arbitrary precision integer.
type BigIntTrunc struct {
	Negative  bool
	Magnitude uint32
}

// Binary is a length-prefixed raw byte sequence.
type Binary []byte

// Tuple uses the compact header for arity <= 255.
type Tuple []Term

// List is closed by an explicit Nil marker. An empty List encodes as Nil alone.
type List []Term

// Integer classifies v into the cheapest integer term that holds it.
func Integer(v int64) Term {
	switch {
	case v >= 0 && v < 256:
		return SmallInt(v)
	case v >= IntMin && v <= IntMax:
		return Int(v)
	default:
		return BigIntTrunc{Negative: v < 0, Magnitude: uint32(v)}
	}
}

// String builds a Binary from s.
func String(s string) Binary {
	return Binary(s)
}

func (a Atom) encodeTo(e *Encoder) error        { return e.Atom(string(a)) }
func (b Binary) encodeTo(e *Encoder) error      { return e.Binary(b) }
func (v SmallInt) encodeTo(e *Encoder) error    { return e.smallInt(uint8(v)) }
func (v Int) encodeTo(e *Encoder) error         { return e.integer(int32(v)) }
func (v BigIntTrunc) encodeTo(e *Encoder) error { return e.smallBig(v.Negative, v.Magnitude) }

func (t Tuple) encodeTo(e *Encoder) error {
	if err := e.TupleHeader(len(t)); err != nil {
		return err
	}
	for _, el := range t {
		if err := e.Term(el); err != nil {
			return err
		}
	}
	return nil
}

func (l List) encodeTo(e *Encoder) error {
	if len(l) == 0 {
		return e.Nil()
	}
	if err := e.ListHeader(len(l)); err != nil {
		return err
	}
	for _, el := range l {
		if err := e.Term(el); err != nil {
			return err
		}
	}
	return e.Nil()
}
