package canon

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/golemcloud/golem-cloud-cli/errors"
)

// Wire field numbers. A value is one message; nested values are embedded
// messages, so the encoding is self-describing and needs no shape to decode.
const (
	fieldKind    protowire.Number = 1 // varint
	fieldBits    protowire.Number = 2 // varint: scalar bits, case index, handle id
	fieldStr     protowire.Number = 3 // bytes: string or handle uri
	fieldElem    protowire.Number = 4 // repeated message
	fieldPayload protowire.Number = 5 // message
)

// MaxWireDepth bounds nesting accepted by Unmarshal.
const MaxWireDepth = 128

// Marshal encodes v in the canonical wire format exchanged with invokers.
func Marshal(v Value) []byte {
	return appendValue(nil, v)
}

func appendValue(b []byte, v Value) []byte {
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.kind))
	if v.kind == KindOwn || v.kind == KindBorrow {
		b = protowire.AppendTag(b, fieldStr, protowire.BytesType)
		b = protowire.AppendString(b, v.handle.URI)
		b = protowire.AppendTag(b, fieldBits, protowire.VarintType)
		return protowire.AppendVarint(b, v.handle.ID)
	}
	if v.bits != 0 {
		b = protowire.AppendTag(b, fieldBits, protowire.VarintType)
		b = protowire.AppendVarint(b, v.bits)
	}
	if v.kind == KindString {
		b = protowire.AppendTag(b, fieldStr, protowire.BytesType)
		b = protowire.AppendString(b, v.str)
	}
	for _, e := range v.elems {
		b = protowire.AppendTag(b, fieldElem, protowire.BytesType)
		b = protowire.AppendBytes(b, appendValue(nil, e))
	}
	if v.has {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, appendValue(nil, *v.payload))
	}
	return b
}

// Unmarshal decodes a value produced by Marshal.
func Unmarshal(data []byte) (Value, error) {
	return consumeValue(data, 0)
}

func wireError(format string, args ...any) error {
	return errors.InvalidData(errors.PhaseDecode, nil, fmt.Sprintf(format, args...))
}

func consumeValue(data []byte, depth int) (Value, error) {
	if depth > MaxWireDepth {
		return Value{}, wireError("value nesting exceeds %d", MaxWireDepth)
	}
	var v Value
	var sawKind bool
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Value{}, wireError("bad tag: %v", protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == fieldKind && typ == protowire.VarintType:
			k, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Value{}, wireError("bad kind: %v", protowire.ParseError(n))
			}
			if k > uint64(KindBorrow) {
				return Value{}, wireError("unknown kind %d", k)
			}
			v.kind, sawKind = Kind(k), true
			data = data[n:]
		case num == fieldBits && typ == protowire.VarintType:
			bits, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Value{}, wireError("bad bits: %v", protowire.ParseError(n))
			}
			v.bits = bits
			data = data[n:]
		case num == fieldStr && typ == protowire.BytesType:
			s, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Value{}, wireError("bad string: %v", protowire.ParseError(n))
			}
			if !utf8.Valid(s) {
				return Value{}, errors.InvalidUTF8(errors.PhaseDecode, nil, s)
			}
			v.str = string(s)
			data = data[n:]
		case (num == fieldElem || num == fieldPayload) && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Value{}, wireError("bad element: %v", protowire.ParseError(n))
			}
			inner, err := consumeValue(raw, depth+1)
			if err != nil {
				return Value{}, err
			}
			if num == fieldElem {
				v.elems = append(v.elems, inner)
			} else {
				v.payload, v.has = &inner, true
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Value{}, wireError("bad field %d: %v", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	if !sawKind {
		return Value{}, wireError("value has no kind")
	}
	if v.kind == KindOwn || v.kind == KindBorrow {
		v.handle = Handle{URI: v.str, ID: v.bits}
		v.str, v.bits = "", 0
	}
	return v, nil
}
