package resolve

import (
	stderrors "errors"
	"slices"
	"strings"
	"testing"

	"github.com/golemcloud/golem-cloud-cli/ast"
	"github.com/golemcloud/golem-cloud-cli/errors"
	"github.com/golemcloud/golem-cloud-cli/parser"
)

func parse(t *testing.T, files ...string) []*ast.Document {
	t.Helper()
	var docs []*ast.Document
	for i := 0; i < len(files); i += 2 {
		doc, err := parser.ParseFile(files[i], []byte(files[i+1]))
		if err != nil {
			t.Fatalf("ParseFile(%s) failed: %v", files[i], err)
		}
		docs = append(docs, doc)
	}
	return docs
}

func mustResolve(t *testing.T, files ...string) *Graph {
	t.Helper()
	g, err := Resolve(parse(t, files...))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return g
}

func TestResolveCalc(t *testing.T) {
	g := mustResolve(t, "calc.wit", `
interface calc {
	add: func(a: s32, b: s32) -> s32;
}
world app {
	import calc;
	export run: func();
}`)
	w, err := g.World("app")
	if err != nil {
		t.Fatalf("World failed: %v", err)
	}
	ifaces := g.ImportedInterfaces(w)
	if len(ifaces) != 1 || ifaces[0].Identity() != "calc" {
		t.Fatalf("imported interfaces = %v", ifaces)
	}
	funcs := g.ImportedFunctions(w)
	if len(funcs) != 1 {
		t.Fatalf("imported functions = %d, want 1", len(funcs))
	}
	if id := g.FuncIdentity(funcs[0]); id != "calc.add" {
		t.Errorf("FuncIdentity = %q, want calc.add", id)
	}
	if sig := g.Signature(funcs[0]); sig != "func(a: s32, b: s32) -> s32" {
		t.Errorf("Signature = %q", sig)
	}
	if len(w.Exports) != 1 || w.Exports[0].Func == nil {
		t.Errorf("exports = %+v", w.Exports)
	}
}

func TestResolveCrossPackage(t *testing.T) {
	g := mustResolve(t,
		"types.wit", `
package golem:types@1.0.0;
interface shapes {
	record point { x: f64, y: f64 }
}`,
		"api.wit", `
package golem:api;
use golem:types/shapes@1.0.0 as sh;
interface api {
	use sh.{point as pt};
	use golem:types/shapes.{point};
	move: func(p: pt) -> point;
}
world app {
	import api;
	import golem:types/shapes@1.0.0;
}`)

	api, ok := g.LookupInterface("golem:api/api")
	if !ok {
		t.Fatal("LookupInterface(golem:api/api) failed")
	}
	pt, _ := api.Lookup("pt")
	point, _ := api.Lookup("point")
	if pt != point {
		t.Errorf("use bindings differ: pt=%d point=%d", pt, point)
	}
	if owner := g.Type(pt).Owner.Identity(); owner != "golem:types/shapes@1.0.0" {
		t.Errorf("owner = %q", owner)
	}
	move := api.Func("move")
	if move.Params[0].Type.ID != move.Result.ID {
		t.Error("param and result should share the same TypeID")
	}
	if id := g.FuncIdentity(move); id != "golem:api/api.move" {
		t.Errorf("FuncIdentity = %q", id)
	}
	w, err := g.World("golem:api/app")
	if err != nil {
		t.Fatalf("World failed: %v", err)
	}
	if names := []string{w.Imports[0].Name, w.Imports[1].Name}; names[1] != "golem:types/shapes@1.0.0" {
		t.Errorf("import names = %v", names)
	}
}

func TestResolveOrderIndependent(t *testing.T) {
	a := []string{
		"b.wit", "package x:b;\ninterface b { use x:a/a.{t}; g: func(v: t); }",
		"a.wit", "package x:a;\ninterface a { record t { v: u8 } f: func(); }",
	}
	b := []string{a[2], a[3], a[0], a[1]}
	g1 := mustResolve(t, a...)
	g2 := mustResolve(t, b...)
	for i := range g1.Interfaces {
		if g1.Interfaces[i].Identity() != g2.Interfaces[i].Identity() {
			t.Errorf("interface %d: %s vs %s", i, g1.Interfaces[i].Identity(), g2.Interfaces[i].Identity())
		}
	}
	if g1.NumTypes() != g2.NumTypes() {
		t.Errorf("NumTypes = %d vs %d", g1.NumTypes(), g2.NumTypes())
	}
}

func TestResolveResources(t *testing.T) {
	g := mustResolve(t, "blob.wit", `
interface store {
	resource blob {
		constructor(data: list<u8>);
		size: func() -> u64;
		merge: static func(a: borrow<blob>, b: blob) -> blob;
	}
	open: func(name: string) -> option<blob>;
}`)
	store, _ := g.LookupInterface("store")
	funcs := g.InterfaceFunctions(store)
	var names []string
	for _, f := range funcs {
		names = append(names, g.FuncIdentity(f))
	}
	want := []string{"store.open", "store.[constructor]blob", "store.[method]blob.size", "store.[static]blob.merge"}
	if !slices.Equal(names, want) {
		t.Errorf("identities = %v, want %v", names, want)
	}

	ctor := funcs[1]
	if ctor.Result == nil || ctor.Result.Kind != Own {
		t.Errorf("constructor result = %+v, want own", ctor.Result)
	}
	size := funcs[2]
	if len(size.Params) != 1 || size.Params[0].Name != "self" || size.Params[0].Type.Kind != Borrow {
		t.Errorf("method params = %+v, want self: borrow<blob>", size.Params)
	}
	merge := funcs[3]
	if merge.Params[1].Type.Kind != Own {
		t.Errorf("bare resource name = %v, want own", merge.Params[1].Type.Kind)
	}
}

func TestResolveMutualTypeRecursionAccepted(t *testing.T) {
	g := mustResolve(t,
		"a.wit", `
package x:y;
interface a {
	use b.{rb};
	resource ra;
	record node-a { peer: option<own<rb>>, next: option<node-a> }
	get-a: func() -> node-a;
}`,
		"b.wit", `
package x:y;
interface b {
	use a.{ra};
	resource rb;
	record node-b { peer: option<own<ra>> }
	get-b: func() -> node-b;
}`)
	a, _ := g.LookupInterface("x:y/a")
	if deps := g.SignatureDeps(a); len(deps) != 0 {
		t.Errorf("SignatureDeps(a) = %v, want none", deps)
	}
}

func TestResolveSignatureCycle(t *testing.T) {
	_, err := Resolve(parse(t,
		"a.wit", `
package x:y;
interface a {
	use b.{tb};
	record ta { v: u8 }
	fa: func(x: tb);
}`,
		"b.wit", `
package x:y;
interface b {
	use a.{ta};
	record tb { v: u8 }
	fb: func() -> list<ta>;
}`))
	var re *errors.ResolutionError
	if !stderrors.As(err, &re) {
		t.Fatalf("err = %v, want ResolutionError", err)
	}
	want := []string{"x:y/a", "x:y/b", "x:y/a"}
	if !slices.Equal(re.Cycle, want) {
		t.Errorf("Cycle = %v, want %v", re.Cycle, want)
	}
	if !strings.Contains(re.Error(), "x:y/a -> x:y/b -> x:y/a") {
		t.Errorf("Error() = %q", re.Error())
	}
}

func TestResolveSignatureCycleThroughAlias(t *testing.T) {
	_, err := Resolve(parse(t, "c.wit", `
interface a {
	use b.{tb};
	type alias-b = option<tb>;
	record ta { v: u8 }
	fa: func() -> alias-b;
}
interface b {
	use a.{ta};
	record tb { inner: ta }
	fb: func(x: ta);
}`))
	var re *errors.ResolutionError
	if !stderrors.As(err, &re) || len(re.Cycle) != 3 {
		t.Fatalf("err = %v, want cycle a -> b -> a", err)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		symbol   string
		contains string
	}{
		{"unknown type", "interface i { f: func(x: missing); }", "missing", "unresolved reference"},
		{"unknown interface", "interface i { use nowhere.{t}; }", "nowhere", "unresolved reference"},
		{"unknown used name", "interface a { record r { v: u8 } }\ninterface b { use a.{s}; }", "a.s", "unresolved reference"},
		{"unknown import", "world w { import ghost; }", "ghost", "unresolved reference"},
		{"unknown include", "world w { include base; }", "base", "unresolved reference"},
		{"own non-resource", "interface i { record r { v: u8 } f: func(x: own<r>); }", "r", "requires a resource"},
		{"borrow through alias", "interface i { type e = u8; f: func(x: borrow<e>); }", "e", "requires a resource"},
		{"alias cycle", "interface i { type a = b; type b = a; }", "a", "refers to itself"},
		{"use cycle", "interface a { use b.{t}; }\ninterface b { use a.{t}; }", "a.t", "never reaches"},
		{"duplicate interface", "interface i {}", "i", "more than once"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := []string{"x.wit", tt.src}
			if tt.name == "duplicate interface" {
				files = append(files, "y.wit", tt.src)
			}
			_, err := Resolve(parse(t, files...))
			var re *errors.ResolutionError
			if !stderrors.As(err, &re) {
				t.Fatalf("err = %v, want ResolutionError", err)
			}
			if re.Symbol != tt.symbol {
				t.Errorf("Symbol = %q, want %q", re.Symbol, tt.symbol)
			}
			if !strings.Contains(re.Error(), tt.contains) {
				t.Errorf("Error() = %q, want %q", re.Error(), tt.contains)
			}
		})
	}
}

func TestResolveIncludeAndInline(t *testing.T) {
	g := mustResolve(t, "w.wit", `
interface base-api { ping: func(); }
world base {
	import base-api;
}
world app {
	type id = u32;
	import logger: interface {
		log: func(who: id, msg: string);
	}
	import now: func() -> u64;
	include base;
}`)
	w, err := g.World("app")
	if err != nil {
		t.Fatalf("World failed: %v", err)
	}
	var names []string
	for _, item := range w.Imports {
		names = append(names, item.Name)
	}
	want := []string{"logger", "now", "base-api"}
	if !slices.Equal(names, want) {
		t.Errorf("imports = %v, want %v", names, want)
	}
	var ids []string
	for _, f := range g.ImportedFunctions(w) {
		ids = append(ids, g.FuncIdentity(f))
	}
	wantIDs := []string{"logger.log", "base-api.ping", "now"}
	if !slices.Equal(ids, wantIDs) {
		t.Errorf("functions = %v, want %v", ids, wantIDs)
	}
}

func TestImportedInterfacesFollowUse(t *testing.T) {
	g := mustResolve(t, "pr.wit", `
package golem:pr@1.0.0;

interface base {
	type id = u64;
}
interface types {
	use base.{id};
	record point { x: s32, y: s32 }
}
interface api {
	use types.{point};
	move: func(p: point) -> point;
}
interface events {
	use types.{point};
	record moved { to: point }
}
world app {
	import api;
	import clock: func() -> u64;
	export events;
}`)
	w, err := g.World("app")
	if err != nil {
		t.Fatalf("World failed: %v", err)
	}
	var ids []string
	for _, iface := range g.ImportedInterfaces(w) {
		ids = append(ids, iface.Identity())
	}
	want := []string{"golem:pr/base@1.0.0", "golem:pr/types@1.0.0", "golem:pr/api@1.0.0"}
	if !slices.Equal(ids, want) {
		t.Errorf("ImportedInterfaces = %v, want %v", ids, want)
	}

	api, _ := g.LookupInterface("api")
	types, _ := g.LookupInterface("types")
	if !g.ImportsExplicitly(w, api) || g.ImportsExplicitly(w, types) {
		t.Error("only api is imported explicitly")
	}
	if deps := g.TypeDeps(api); len(deps) != 1 || deps[0] != types {
		t.Errorf("TypeDeps(api) = %v, want [types]", deps)
	}
	if used := api.Used(); !slices.Equal(used, []string{"point"}) {
		t.Errorf("api.Used() = %v, want [point]", used)
	}
	if used := types.Used(); !slices.Equal(used, []string{"id"}) {
		t.Errorf("types.Used() = %v, want [id]", used)
	}
	if used := w.Used(); len(used) != 0 {
		t.Errorf("w.Used() = %v, want none", used)
	}
}

func TestWorldLookup(t *testing.T) {
	g := mustResolve(t,
		"a.wit", "package x:a@1.0.0;\nworld app {}",
		"b.wit", "package x:b;\nworld app {}")
	if _, err := g.World("app"); err == nil {
		t.Error("bare name matching two worlds should be ambiguous")
	}
	w, err := g.World("x:a/app")
	if err != nil || w.Identity() != "x:a/app@1.0.0" {
		t.Errorf("World(x:a/app) = %v, %v", w, err)
	}
	if _, err := g.World("nope"); !stderrors.Is(err, &errors.ResolutionError{}) {
		t.Errorf("missing world err = %v", err)
	}
}

func TestTypeInvariant(t *testing.T) {
	g := mustResolve(t, "e.wit", "")
	defer func() {
		if _, ok := recover().(*errors.InvariantError); !ok {
			t.Error("out-of-range TypeID should panic with InvariantError")
		}
	}()
	g.Type(42)
}
