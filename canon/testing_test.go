package canon

import (
	"testing"

	"github.com/golemcloud/golem-cloud-cli/ast"
	"github.com/golemcloud/golem-cloud-cli/parser"
	"github.com/golemcloud/golem-cloud-cli/resolve"
)

const typesWIT = `
package test:types;

interface t {
	record point { x: s32, y: s32 }
	variant shape { circle(f64), square(point), empty }
	enum color { red, green, blue }
	flags perms { read, write }
	resource file {
		constructor(path: string);
		size: func() -> u64;
	}
	variant tree { leaf(s32), node(forest) }
	record forest { trees: list<tree> }
	type where = point;

	locate: func(p: point, w: where) -> option<tree>;
	open: func(f: borrow<file>) -> result<own<file>, string>;
}
`

func mapperFor(t *testing.T, src string) (*Mapper, *resolve.Interface) {
	t.Helper()
	doc, err := parser.ParseFile("types.wit", []byte(src))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	g, err := resolve.Resolve([]*ast.Document{doc})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	iface, ok := g.LookupInterface("t")
	if !ok {
		t.Fatal("interface t not found")
	}
	return NewMapper(g), iface
}

func defShape(t *testing.T, m *Mapper, iface *resolve.Interface, name string) *Shape {
	t.Helper()
	id, ok := iface.Lookup(name)
	if !ok {
		t.Fatalf("type %q not found", name)
	}
	return m.ShapeOfDef(id)
}
