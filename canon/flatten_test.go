package canon

import (
	"slices"
	"testing"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
)

const (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
	f32 = api.ValueTypeF32
	f64 = api.ValueTypeF64
)

func flagsShape(n int) *Shape {
	s := &Shape{Kind: KindFlags, Name: "f", ID: 0}
	for i := range n {
		s.Names = append(s.Names, string(rune('a'+i%26))+string(rune('a'+i/26)))
	}
	return s
}

func TestFlatten(t *testing.T) {
	m, iface := mapperFor(t, typesWIT)

	tests := []struct {
		name  string
		shape *Shape
		want  []api.ValueType
	}{
		{"s32", Primitive(KindS32), []api.ValueType{i32}},
		{"u64", Primitive(KindU64), []api.ValueType{i64}},
		{"f32", Primitive(KindF32), []api.ValueType{f32}},
		{"string", Primitive(KindString), []api.ValueType{i32, i32}},
		{"list", &Shape{Kind: KindList, ID: -1, Elem: Primitive(KindU8)}, []api.ValueType{i32, i32}},
		{"record", defShape(t, m, iface, "point"), []api.ValueType{i32, i32}},
		{"option f32", &Shape{Kind: KindOption, ID: -1, Elem: Primitive(KindF32)}, []api.ValueType{i32, f32}},
		{"result s32 f32", &Shape{Kind: KindResult, ID: -1, Ok: Primitive(KindS32), Err: Primitive(KindF32)},
			[]api.ValueType{i32, i32}},
		{"result u64 f32", &Shape{Kind: KindResult, ID: -1, Ok: Primitive(KindU64), Err: Primitive(KindF32)},
			[]api.ValueType{i32, i64}},
		{"variant f64 and record", defShape(t, m, iface, "shape"), []api.ValueType{i32, i64, i32}},
		{"enum", defShape(t, m, iface, "color"), []api.ValueType{i32}},
		{"flags 32", flagsShape(32), []api.ValueType{i32}},
		{"flags 33", flagsShape(33), []api.ValueType{i64}},
		{"own", defShape(t, m, iface, "file"), []api.ValueType{i32}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, bounded := Flatten(tt.shape)
			if !bounded {
				t.Fatal("Flatten reported an unbounded shape")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Flatten = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlattenRecursive(t *testing.T) {
	m, iface := mapperFor(t, `
package test:chain;

interface t {
	variant chain { end, link(option<chain>) }
	variant tree { leaf(s32), node(forest) }
	record forest { trees: list<tree> }
}
`)
	chain := defShape(t, m, iface, "chain")
	if _, bounded := Flatten(chain); bounded {
		t.Error("value-recursive shape should be unbounded")
	}
	sig := FlattenFunc([]*Shape{chain}, nil)
	if !sig.IndirectParams || !slices.Equal(sig.Params, []api.ValueType{i32}) {
		t.Errorf("FlattenFunc = %+v, want a single indirect pointer", sig)
	}

	// Recursion through a list is bounded: the list flattens to ptr, len.
	got, bounded := Flatten(defShape(t, m, iface, "tree"))
	if !bounded || !slices.Equal(got, []api.ValueType{i32, i32, i32}) {
		t.Errorf("Flatten(tree) = %v, %t, want [i32 i32 i32], true", got, bounded)
	}
}

func TestFlattenFunc(t *testing.T) {
	s32 := Primitive(KindS32)

	t.Run("calc add", func(t *testing.T) {
		sig := FlattenFunc([]*Shape{s32, s32}, s32)
		if !slices.Equal(sig.Params, []api.ValueType{i32, i32}) || !slices.Equal(sig.Results, []api.ValueType{i32}) {
			t.Errorf("FlattenFunc = %+v", sig)
		}
		if sig.IndirectParams || sig.IndirectResult {
			t.Error("add should be passed directly")
		}
	})

	t.Run("too many params", func(t *testing.T) {
		params := make([]*Shape, MaxFlatParams+1)
		for i := range params {
			params[i] = s32
		}
		sig := FlattenFunc(params, nil)
		if !sig.IndirectParams || len(sig.Params) != 1 {
			t.Errorf("FlattenFunc = %+v, want indirect params", sig)
		}
	})

	t.Run("string result", func(t *testing.T) {
		sig := FlattenFunc([]*Shape{s32}, Primitive(KindString))
		if !sig.IndirectResult || !slices.Equal(sig.Params, []api.ValueType{i32, i32}) || len(sig.Results) != 0 {
			t.Errorf("FlattenFunc = %+v, want a return pointer", sig)
		}
	})

	t.Run("unit", func(t *testing.T) {
		sig := FlattenFunc(nil, nil)
		if len(sig.Params) != 0 || len(sig.Results) != 0 {
			t.Errorf("FlattenFunc = %+v, want empty", sig)
		}
	})
}

func TestNeedsMemory(t *testing.T) {
	m, iface := mapperFor(t, typesWIT)
	tests := []struct {
		shape *Shape
		want  bool
	}{
		{Primitive(KindS32), false},
		{Primitive(KindString), true},
		{defShape(t, m, iface, "point"), false},
		{defShape(t, m, iface, "forest"), true},
		{&Shape{Kind: KindOption, ID: -1, Elem: Primitive(KindString)}, true},
	}
	for _, tt := range tests {
		if got := NeedsMemory(tt.shape); got != tt.want {
			t.Errorf("NeedsMemory(%v) = %v, want %v", tt.shape, got, tt.want)
		}
	}
}

func TestWitType(t *testing.T) {
	m, iface := mapperFor(t, typesWIT)

	if _, ok := WitType(Primitive(KindU32)).(wit.U32); !ok {
		t.Error("u32 should project to wit.U32")
	}

	td, ok := WitType(defShape(t, m, iface, "point")).(*wit.TypeDef)
	if !ok {
		t.Fatal("record should project to a TypeDef")
	}
	rec, ok := td.Kind.(*wit.Record)
	if !ok || len(rec.Fields) != 2 || rec.Fields[0].Name != "x" {
		t.Errorf("record kind = %#v", td.Kind)
	}

	tree := WitType(defShape(t, m, iface, "tree")).(*wit.TypeDef)
	node := tree.Kind.(*wit.Variant).Cases[1].Type.(*wit.TypeDef)
	list := node.Kind.(*wit.Record).Fields[0].Type.(*wit.TypeDef)
	if list.Kind.(*wit.List).Type != tree {
		t.Error("recursive projection should reuse the TypeDef")
	}
}
