package canon

import (
	stderrors "errors"
	"math"
	"reflect"
	"testing"

	"github.com/golemcloud/golem-cloud-cli/errors"
)

func TestLowerLiftRoundTrip(t *testing.T) {
	m, iface := mapperFor(t, typesWIT)
	point := defShape(t, m, iface, "point")
	shape := defShape(t, m, iface, "shape")
	color := defShape(t, m, iface, "color")
	perms := defShape(t, m, iface, "perms")
	tree := defShape(t, m, iface, "tree")
	file := defShape(t, m, iface, "file")

	h := Handle{URI: "urn:worker:shop/cart-1", ID: 7}

	tests := []struct {
		name  string
		shape *Shape
		in    any
		want  Value
	}{
		{"bool", Primitive(KindBool), true, Bool(true)},
		{"s8", Primitive(KindS8), int8(-5), S8(-5)},
		{"s16", Primitive(KindS16), int16(-300), S16(-300)},
		{"s32", Primitive(KindS32), int32(5), S32(5)},
		{"s64", Primitive(KindS64), int64(math.MinInt64), S64(math.MinInt64)},
		{"u8", Primitive(KindU8), uint8(255), U8(255)},
		{"u16", Primitive(KindU16), uint16(65535), U16(65535)},
		{"u32", Primitive(KindU32), uint32(1 << 31), U32(1 << 31)},
		{"u64", Primitive(KindU64), uint64(math.MaxUint64), U64(math.MaxUint64)},
		{"f32", Primitive(KindF32), float32(1.5), F32(1.5)},
		{"f64", Primitive(KindF64), -2.25, F64(-2.25)},
		{"char", Primitive(KindChar), 'λ', Char('λ')},
		{"string", Primitive(KindString), "hello", String("hello")},
		{"list", &Shape{Kind: KindList, ID: -1, Elem: Primitive(KindU32)},
			[]any{uint32(1), uint32(2)}, List(U32(1), U32(2))},
		{"empty list", &Shape{Kind: KindList, ID: -1, Elem: Primitive(KindString)},
			[]any{}, List()},
		{"tuple", &Shape{Kind: KindTuple, ID: -1, Elems: []*Shape{Primitive(KindS32), Primitive(KindString)}},
			[]any{int32(1), "a"}, Tuple(S32(1), String("a"))},
		{"record", point, map[string]any{"x": int32(1), "y": int32(-2)}, Record(S32(1), S32(-2))},
		{"variant with payload", shape, map[string]any{"circle": 1.0}, Variant(0, F64(1))},
		{"variant without payload", shape, map[string]any{"empty": nil}, Variant(2)},
		{"enum", color, uint32(2), Enum(2)},
		{"flags", perms, uint64(3), Flags(3)},
		{"option none", &Shape{Kind: KindOption, ID: -1, Elem: Primitive(KindS32)}, nil, None()},
		{"option some", &Shape{Kind: KindOption, ID: -1, Elem: Primitive(KindS32)}, int32(4), Some(S32(4))},
		{"nested option", &Shape{Kind: KindOption, ID: -1,
			Elem: &Shape{Kind: KindOption, ID: -1, Elem: Primitive(KindBool)}},
			Present{Value: nil}, Some(None())},
		{"result ok", &Shape{Kind: KindResult, ID: -1, Ok: Primitive(KindU8), Err: Primitive(KindString)},
			map[string]any{"ok": uint8(1)}, Ok(U8(1))},
		{"result err", &Shape{Kind: KindResult, ID: -1, Ok: Primitive(KindU8), Err: Primitive(KindString)},
			map[string]any{"err": "boom"}, Err(String("boom"))},
		{"unit result", &Shape{Kind: KindResult, ID: -1}, map[string]any{"err": nil}, Err()},
		{"recursive", tree, map[string]any{"node": map[string]any{"trees": []any{
			map[string]any{"leaf": int32(1)},
		}}}, Variant(1, Record(List(Variant(0, S32(1)))))},
		{"own", file, h, Own(h)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lower(tt.shape, tt.in)
			if err != nil {
				t.Fatalf("Lower failed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Lower = %v, want %v", got, tt.want)
			}
			back, err := Lift(tt.shape, got)
			if err != nil {
				t.Fatalf("Lift failed: %v", err)
			}
			if !reflect.DeepEqual(back, tt.in) {
				t.Errorf("Lift = %#v, want %#v", back, tt.in)
			}
		})
	}
}

func TestLowerErrors(t *testing.T) {
	m, iface := mapperFor(t, typesWIT)
	point := defShape(t, m, iface, "point")
	shape := defShape(t, m, iface, "shape")
	color := defShape(t, m, iface, "color")
	perms := defShape(t, m, iface, "perms")

	tests := []struct {
		name  string
		shape *Shape
		in    any
		kind  errors.Kind
	}{
		{"no implicit widening", Primitive(KindS64), int32(1), errors.KindTypeMismatch},
		{"int overflow", Primitive(KindS8), 300, errors.KindOverflow},
		{"negative unsigned", Primitive(KindU32), -1, errors.KindOverflow},
		{"invalid utf8", Primitive(KindString), "\xff", errors.KindInvalidUTF8},
		{"missing field", point, map[string]any{"x": int32(1)}, errors.KindFieldMissing},
		{"unknown field", point, map[string]any{"x": int32(1), "y": int32(2), "z": int32(3)}, errors.KindFieldUnknown},
		{"unknown case", shape, map[string]any{"hexagon": nil}, errors.KindInvalidVariant},
		{"two cases", shape, map[string]any{"circle": 1.0, "empty": nil}, errors.KindInvalidData},
		{"enum range", color, uint32(3), errors.KindInvalidEnum},
		{"enum name", color, "purple", errors.KindInvalidEnum},
		{"flag bits", perms, uint64(4), errors.KindInvalidData},
		{"nested option needs Some", &Shape{Kind: KindOption, ID: -1,
			Elem: &Shape{Kind: KindOption, ID: -1, Elem: Primitive(KindBool)}}, true, errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lower(tt.shape, tt.in)
			if err == nil {
				t.Fatal("Lower should fail")
			}
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("error %T is not *errors.Error", err)
			}
			if e.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v (%v)", e.Kind, tt.kind, err)
			}
			if e.Phase != errors.PhaseEncode {
				t.Errorf("Phase = %v, want %v", e.Phase, errors.PhaseEncode)
			}
		})
	}
}

func TestLiftRejectsMismatch(t *testing.T) {
	tests := []struct {
		name  string
		shape *Shape
		v     Value
	}{
		{"kind", Primitive(KindS32), S64(1)},
		{"tuple arity", &Shape{Kind: KindTuple, ID: -1, Elems: []*Shape{Primitive(KindS32)}}, Tuple()},
		{"missing payload", &Shape{Kind: KindResult, ID: -1, Ok: Primitive(KindS32)}, Ok()},
		{"unexpected payload", &Shape{Kind: KindResult, ID: -1}, Ok(S32(1))},
		{"variant range", &Shape{Kind: KindVariant, ID: 0, Cases: []ShapeCase{{Name: "a"}}}, Variant(4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Check(tt.shape, tt.v); err == nil {
				t.Errorf("Check(%v, %v) should fail", tt.shape, tt.v)
			}
		})
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{S32(5), "s32(5)"},
		{String("x"), `string("x")`},
		{Some(U8(1)), "some(u8(1))"},
		{None(), "none"},
		{Ok(), "ok"},
		{Err(String("e")), `err(string("e"))`},
		{Record(S32(1), Bool(true)), "record{s32(1), bool(true)}"},
		{List(), "[]"},
		{Own(Handle{URI: "w", ID: 3}), "own(w#3)"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestValueEqualFloats(t *testing.T) {
	nan := math.Float64frombits(0x7ff8000000000001)
	if !F64(nan).Equal(F64(nan)) {
		t.Error("identical NaN bit patterns should be equal")
	}
	if F64(0).Equal(F64(math.Copysign(0, -1))) {
		t.Error("+0 and -0 differ by bits")
	}
}
