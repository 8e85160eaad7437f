package main

import (
	"reflect"
	"testing"

	"github.com/golemcloud/golem-cloud-cli/canon"
)

func prim(k canon.Kind) *canon.Shape { return canon.Primitive(k) }

var (
	pointShape = &canon.Shape{Kind: canon.KindRecord, Name: "point", ID: 1, Fields: []canon.ShapeField{
		{Name: "x", Shape: prim(canon.KindS32)},
		{Name: "y", Shape: prim(canon.KindF32)},
	}}
	shapeShape = &canon.Shape{Kind: canon.KindVariant, Name: "figure", ID: 2, Cases: []canon.ShapeCase{
		{Name: "circle", Shape: prim(canon.KindF64)},
		{Name: "empty"},
	}}
	permsShape = &canon.Shape{Kind: canon.KindFlags, Name: "perms", ID: 3, Names: []string{"read", "write", "exec"}}
	colorShape = &canon.Shape{Kind: canon.KindEnum, Name: "color", ID: 4, Names: []string{"red", "green"}}
	cartShape  = &canon.Shape{Kind: canon.KindBorrow, Name: "cart", ID: 5}
)

func TestParseArg(t *testing.T) {
	tests := []struct {
		name  string
		shape *canon.Shape
		text  string
		want  any
	}{
		{"s32", prim(canon.KindS32), "-7", -7},
		{"f32", prim(canon.KindF32), "1.5", float32(1.5)},
		{"f64 from int", prim(canon.KindF64), "3", float64(3)},
		{"string verbatim", prim(canon.KindString), "a: b", "a: b"},
		{"char", prim(canon.KindChar), "λ", 'λ'},
		{"bytes", &canon.Shape{Kind: canon.KindList, ID: -1, Elem: prim(canon.KindU8)}, "[1, 2, 255]", []byte{1, 2, 255}},
		{"list", &canon.Shape{Kind: canon.KindList, ID: -1, Elem: prim(canon.KindString)}, "[a, 1]", []any{"a", "1"}},
		{"tuple", &canon.Shape{Kind: canon.KindTuple, ID: -1, Elems: []*canon.Shape{prim(canon.KindBool), prim(canon.KindF32)}}, "[true, 2]", []any{true, float32(2)}},
		{"record", pointShape, "{x: 1, y: 2}", map[string]any{"x": 1, "y": float32(2)}},
		{"variant payload", shapeShape, "circle: 2", map[string]any{"circle": float64(2)}},
		{"variant bare", shapeShape, "empty", map[string]any{"empty": nil}},
		{"result ok", &canon.Shape{Kind: canon.KindResult, ID: -1, Ok: prim(canon.KindF32)}, "ok: 4", map[string]any{"ok": float32(4)}},
		{"enum name", colorShape, "green", "green"},
		{"enum index", colorShape, "1", uint32(1)},
		{"flags", permsShape, "[read, exec]", uint64(5)},
		{"option empty", &canon.Shape{Kind: canon.KindOption, ID: -1, Elem: prim(canon.KindU8)}, "", nil},
		{"option some", &canon.Shape{Kind: canon.KindOption, ID: -1, Elem: prim(canon.KindU8)}, "3", 3},
		{"nested option", &canon.Shape{Kind: canon.KindOption, ID: -1, Elem: &canon.Shape{Kind: canon.KindOption, ID: -1, Elem: prim(canon.KindU8)}}, "3", canon.Present{Value: 3}},
		{"handle", cartShape, "urn:worker:shop#7", canon.Handle{URI: "urn:worker:shop", ID: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArg(tt.shape, tt.text)
			if err != nil {
				t.Fatalf("parseArg(%s, %q) failed: %v", tt.shape, tt.text, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseArg(%s, %q) = %#v, want %#v", tt.shape, tt.text, got, tt.want)
			}
		})
	}
}

func TestParseArgErrors(t *testing.T) {
	tests := []struct {
		name  string
		shape *canon.Shape
		text  string
	}{
		{"two chars", prim(canon.KindChar), "ab"},
		{"empty char", prim(canon.KindChar), ""},
		{"byte range", &canon.Shape{Kind: canon.KindList, ID: -1, Elem: prim(canon.KindU8)}, "[256]"},
		{"tuple arity", &canon.Shape{Kind: canon.KindTuple, ID: -1, Elems: []*canon.Shape{prim(canon.KindBool)}}, "[true, false]"},
		{"record scalar", pointShape, "5"},
		{"unknown flag", permsShape, "[delete]"},
		{"handle without id", cartShape, "urn:worker:shop"},
		{"handle bad id", cartShape, "urn:worker:shop#x"},
		{"not a number", prim(canon.KindF64), "high"},
		{"malformed yaml", pointShape, "{x: 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, err := parseArg(tt.shape, tt.text); err == nil {
				t.Errorf("parseArg(%s, %q) = %#v, want error", tt.shape, tt.text, got)
			}
		})
	}
}

func TestParseArgLowers(t *testing.T) {
	v, err := parseArg(pointShape, "{x: -3, y: 0.5}")
	if err != nil {
		t.Fatalf("parseArg failed: %v", err)
	}
	got, err := canon.Lower(pointShape, v)
	if err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	want := canon.Record(canon.S32(-3), canon.F32(0.5))
	if !got.Equal(want) {
		t.Errorf("Lower = %v, want %v", got, want)
	}
}
