package canon

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Handle is the remote identity of a resource: the worker that owns it and
// the resource id within that worker.
type Handle struct {
	URI string
	ID  uint64
}

func (h Handle) String() string { return h.URI + "#" + strconv.FormatUint(h.ID, 10) }

// Value is a canonical value. Its kind mirrors the shape algebra exactly; a
// Value never carries a kind that has no corresponding Shape.
//
// The zero Value is bool(false).
type Value struct {
	payload *Value
	str     string
	elems   []Value
	handle  Handle
	bits    uint64
	kind    Kind
	has     bool
}

func Bool(b bool) Value {
	var bits uint64
	if b {
		bits = 1
	}
	return Value{kind: KindBool, bits: bits}
}

func S8(v int8) Value { return Value{kind: KindS8, bits: uint64(int64(v))} }
func S16(v int16) Value { return Value{kind: KindS16, bits: uint64(int64(v))} }
func S32(v int32) Value { return Value{kind: KindS32, bits: uint64(int64(v))} }
func S64(v int64) Value { return Value{kind: KindS64, bits: uint64(v)} }
func U8(v uint8) Value { return Value{kind: KindU8, bits: uint64(v)} }
func U16(v uint16) Value { return Value{kind: KindU16, bits: uint64(v)} }
func U32(v uint32) Value { return Value{kind: KindU32, bits: uint64(v)} }
func U64(v uint64) Value { return Value{kind: KindU64, bits: v} }
func F32(v float32) Value { return Value{kind: KindF32, bits: uint64(math.Float32bits(v))} }
func F64(v float64) Value { return Value{kind: KindF64, bits: math.Float64bits(v)} }
func Char(r rune) Value { return Value{kind: KindChar, bits: uint64(uint32(r))} }
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

func List(elems ...Value) Value { return Value{kind: KindList, elems: elems} }
func Tuple(elems ...Value) Value { return Value{kind: KindTuple, elems: elems} }
func Record(fields ...Value) Value { return Value{kind: KindRecord, elems: fields} }

// Variant builds case i with an optional payload.
func Variant(i uint32, payload ...Value) Value {
	return withPayload(Value{kind: KindVariant, bits: uint64(i)}, payload)
}

func Enum(i uint32) Value { return Value{kind: KindEnum, bits: uint64(i)} }
func Flags(bits uint64) Value { return Value{kind: KindFlags, bits: bits} }

func Some(v Value) Value { return withPayload(Value{kind: KindOption, bits: 1}, []Value{v}) }
func None() Value { return Value{kind: KindOption} }

// Ok builds the ok case of a result with an optional payload.
func Ok(payload ...Value) Value { return withPayload(Value{kind: KindResult}, payload) }

// Err builds the error case of a result with an optional payload.
func Err(payload ...Value) Value { return withPayload(Value{kind: KindResult, bits: 1}, payload) }

func Own(h Handle) Value { return Value{kind: KindOwn, handle: h} }
func Borrow(h Handle) Value { return Value{kind: KindBorrow, handle: h} }

func withPayload(v Value, payload []Value) Value {
	if len(payload) > 0 {
		p := payload[0]
		v.payload = &p
		v.has = true
	}
	return v
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() bool { return v.bits != 0 }

// Int returns signed integer values sign-extended to 64 bits.
func (v Value) Int() int64 { return int64(v.bits) }

// Uint returns unsigned integers, enum and variant indexes and flag bits.
func (v Value) Uint() uint64 { return v.bits }

func (v Value) Float32() float32 { return math.Float32frombits(uint32(v.bits)) }
func (v Value) Float64() float64 { return math.Float64frombits(v.bits) }
func (v Value) Char() rune { return rune(uint32(v.bits)) }
func (v Value) Str() string { return v.str }

// Elems returns list elements, tuple elements or record fields in order.
func (v Value) Elems() []Value { return v.elems }

// Case returns the variant or enum case index.
func (v Value) Case() uint32 { return uint32(v.bits) }

// IsSome reports whether an option holds a value.
func (v Value) IsSome() bool { return v.kind == KindOption && v.bits == 1 }

// IsErr reports whether a result is the error case.
func (v Value) IsErr() bool { return v.kind == KindResult && v.bits == 1 }

// Payload returns the option, result or variant payload if present.
func (v Value) Payload() (Value, bool) {
	if !v.has {
		return Value{}, false
	}
	return *v.payload, true
}

func (v Value) Handle() Handle { return v.handle }

// Equal reports deep equality. Floats compare by bit pattern so NaN payloads
// survive round trips.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.bits != o.bits || v.str != o.str || v.handle != o.handle || v.has != o.has {
		return false
	}
	if len(v.elems) != len(o.elems) {
		return false
	}
	for i := range v.elems {
		if !v.elems[i].Equal(o.elems[i]) {
			return false
		}
	}
	if v.has {
		return v.payload.Equal(*o.payload)
	}
	return true
}

// String renders the value for diagnostics, e.g. s32(5) or some(string("x")).
func (v Value) String() string {
	var b strings.Builder
	v.write(&b)
	return b.String()
}

func (v Value) write(b *strings.Builder) {
	switch v.kind {
	case KindBool:
		fmt.Fprintf(b, "bool(%t)", v.Bool())
	case KindS8, KindS16, KindS32, KindS64:
		fmt.Fprintf(b, "%s(%d)", v.kind, v.Int())
	case KindU8, KindU16, KindU32, KindU64:
		fmt.Fprintf(b, "%s(%d)", v.kind, v.Uint())
	case KindF32:
		fmt.Fprintf(b, "f32(%v)", v.Float32())
	case KindF64:
		fmt.Fprintf(b, "f64(%v)", v.Float64())
	case KindChar:
		fmt.Fprintf(b, "char(%q)", v.Char())
	case KindString:
		fmt.Fprintf(b, "string(%q)", v.str)
	case KindList, KindTuple, KindRecord:
		open, closeCh := "[", "]"
		switch v.kind {
		case KindTuple:
			open, closeCh = "tuple(", ")"
		case KindRecord:
			open, closeCh = "record{", "}"
		}
		b.WriteString(open)
		for i, e := range v.elems {
			if i > 0 {
				b.WriteString(", ")
			}
			e.write(b)
		}
		b.WriteString(closeCh)
	case KindVariant:
		fmt.Fprintf(b, "variant(%d", v.bits)
		if v.has {
			b.WriteString(", ")
			v.payload.write(b)
		}
		b.WriteByte(')')
	case KindEnum:
		fmt.Fprintf(b, "enum(%d)", v.bits)
	case KindFlags:
		fmt.Fprintf(b, "flags(%#x)", v.bits)
	case KindOption:
		if !v.IsSome() {
			b.WriteString("none")
			return
		}
		b.WriteString("some(")
		v.payload.write(b)
		b.WriteByte(')')
	case KindResult:
		if v.IsErr() {
			b.WriteString("err")
		} else {
			b.WriteString("ok")
		}
		if v.has {
			b.WriteByte('(')
			v.payload.write(b)
			b.WriteByte(')')
		}
	case KindOwn, KindBorrow:
		fmt.Fprintf(b, "%s(%s)", v.kind, v.handle)
	}
}
