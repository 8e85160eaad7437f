package canon

import "testing"

func TestZero(t *testing.T) {
	m, iface := mapperFor(t, typesWIT)
	point := defShape(t, m, iface, "point")
	shape := defShape(t, m, iface, "shape")
	tree := defShape(t, m, iface, "tree")
	file := defShape(t, m, iface, "file")

	tests := []struct {
		name  string
		shape *Shape
		want  Value
	}{
		{"s32", Primitive(KindS32), S32(0)},
		{"string", Primitive(KindString), String("")},
		{"record", point, Record(S32(0), S32(0))},
		{"variant picks payload-free case", shape, Variant(2)},
		{"variant with payload", tree, Variant(0, S32(0))},
		{"enum", defShape(t, m, iface, "color"), Enum(0)},
		{"flags", defShape(t, m, iface, "perms"), Flags(0)},
		{"list", &Shape{Kind: KindList, ID: -1, Elem: point}, List()},
		{"option", &Shape{Kind: KindOption, ID: -1, Elem: point}, None()},
		{"result", &Shape{Kind: KindResult, ID: -1, Ok: point}, Ok(Record(S32(0), S32(0)))},
		{"unit result", &Shape{Kind: KindResult, ID: -1}, Ok()},
		{"tuple", &Shape{Kind: KindTuple, ID: -1, Elems: []*Shape{Primitive(KindBool), Primitive(KindU8)}},
			Tuple(Bool(false), U8(0))},
		{"own", file, Own(Handle{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Zero(tt.shape)
			if !got.Equal(tt.want) {
				t.Errorf("Zero(%s) = %v, want %v", tt.shape, got, tt.want)
			}
			if err := Check(tt.shape, got); err != nil {
				t.Errorf("Check(Zero(%s)) failed: %v", tt.shape, err)
			}
		})
	}
}
