// Package value implements the recursive tagged union described by the
// Forkline data model: null, boolean, integer, float, string, byte
// sequence, ordered sequence, and string-keyed mapping. Every payload that
// flows through the canonicalizer, differ, or redaction engine is a Value.
//
// A Value is an immutable, self-contained tree. Construct one with the
// Null/Bool/Int/Float/String/Bytes/Seq/Map constructors or FromAny, and
// read it back with Kind and the typed accessors.
package value

import "fmt"

// Kind identifies which alternative of the tagged union a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindSeq
	KindMap
)

// String renders a Kind for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is the recursive tagged union. The zero Value is KindNull.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	by   []byte
	seq  []Value
	mp   map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps a signed integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a floating-point number (including NaN and +/-Inf).
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a Unicode string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Bytes wraps a raw byte sequence. The slice is not copied; callers must
// not mutate it after handing it to a Value.
func Bytes(b []byte) Value { return Value{kind: KindBytes, by: b} }

// Seq wraps an ordered sequence of Values. The slice is not copied.
func Seq(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSeq, seq: items}
}

// Map wraps a string-keyed mapping of Values. The map is not copied;
// callers must not mutate it after handing it to a Value.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, mp: m}
}

// Kind reports which alternative is held.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null Value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload. Panics if Kind() != KindBool; callers
// in the core packages always check Kind first.
func (v Value) AsBool() bool { v.mustBe(KindBool); return v.b }

// AsInt returns the integer payload.
func (v Value) AsInt() int64 { v.mustBe(KindInt); return v.i }

// AsFloat returns the float payload.
func (v Value) AsFloat() float64 { v.mustBe(KindFloat); return v.f }

// AsString returns the string payload.
func (v Value) AsString() string { v.mustBe(KindString); return v.s }

// AsBytes returns the byte-sequence payload.
func (v Value) AsBytes() []byte { v.mustBe(KindBytes); return v.by }

// AsSeq returns the ordered-sequence payload.
func (v Value) AsSeq() []Value { v.mustBe(KindSeq); return v.seq }

// AsMap returns the mapping payload.
func (v Value) AsMap() map[string]Value { v.mustBe(KindMap); return v.mp }

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("value: AsXxx called on Kind %s, expected %s", v.kind, k))
	}
}
