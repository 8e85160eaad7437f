// Package resolve links parsed WIT documents into a single frozen graph.
//
// Type declarations live in an arena and every cross reference is a TypeID,
// so mutually recursive records, variants and resources are represented by
// identity rather than nesting. Resolution is independent of input order:
// documents are sorted by package identity and file name first.
package resolve

import (
	"cmp"
	"slices"

	"github.com/golemcloud/golem-cloud-cli/ast"
	"github.com/golemcloud/golem-cloud-cli/errors"
)

type pkgScope struct {
	pkg        *Package
	interfaces map[string]*Interface
	worlds     map[string]*worldDecl
}

type docScope struct {
	doc     *ast.Document
	pkg     *pkgScope
	aliases map[string]ast.Path
}

type ifaceDecl struct {
	iface   *Interface
	node    *ast.Interface
	doc     *docScope
	pending map[string]useRef
}

type worldDecl struct {
	world *World
	node  *ast.World
	doc   *docScope
	state int
}

const (
	unvisited = iota
	visiting
	done
)

type resolver struct {
	g         *Graph
	pkgs      map[string]*pkgScope
	byIface   map[*Interface]*ifaceDecl
	typeDecl  map[TypeID]*ast.TypeDecl
	typeDoc   map[TypeID]*docScope
	visiting  map[nameKey]bool
	ifaces    []*ifaceDecl
	worlds    []*worldDecl
	nameStack []string
}

// Resolve links docs into a Graph. Failures are *errors.ResolutionError.
func Resolve(docs []*ast.Document) (*Graph, error) {
	r := &resolver{
		g:        &Graph{},
		visiting: make(map[nameKey]bool),
		pkgs:     make(map[string]*pkgScope),
		byIface:  make(map[*Interface]*ifaceDecl),
		typeDecl: make(map[TypeID]*ast.TypeDecl),
		typeDoc:  make(map[TypeID]*docScope),
	}

	sorted := slices.Clone(docs)
	slices.SortStableFunc(sorted, func(a, b *ast.Document) int {
		return cmp.Or(
			cmp.Compare(a.Package.String(), b.Package.String()),
			cmp.Compare(a.File, b.File),
		)
	})

	for _, doc := range sorted {
		if err := r.declare(doc); err != nil {
			return nil, err
		}
	}
	for _, d := range r.ifaces {
		if err := r.resolveUses(d); err != nil {
			return nil, err
		}
	}
	for _, w := range r.worlds {
		if err := r.resolveWorldScope(w); err != nil {
			return nil, err
		}
	}
	if err := r.fillTypes(); err != nil {
		return nil, err
	}
	for _, d := range r.ifaces {
		if err := r.fillFuncs(d); err != nil {
			return nil, err
		}
	}
	for _, w := range r.worlds {
		if err := r.resolveWorld(w); err != nil {
			return nil, err
		}
	}
	if err := r.validateTypes(); err != nil {
		return nil, err
	}
	if err := detectSignatureCycles(r.g); err != nil {
		return nil, err
	}
	return r.g, nil
}

func (r *resolver) pkgFor(name *ast.PackageName) *pkgScope {
	key := name.String()
	if ps, ok := r.pkgs[key]; ok {
		return ps
	}
	ps := &pkgScope{interfaces: make(map[string]*Interface), worlds: make(map[string]*worldDecl)}
	if name != nil {
		ps.pkg = &Package{Namespace: name.Namespace, Name: name.Name, Version: name.Version}
		r.g.Packages = append(r.g.Packages, ps.pkg)
	}
	r.pkgs[key] = ps
	return ps
}

func (r *resolver) posErr(file string, pos ast.Pos, symbol, detail string) error {
	return &errors.ResolutionError{
		Pos:    errors.Position{File: file, Line: pos.Line, Column: pos.Column},
		Symbol: symbol,
		Detail: detail,
	}
}

// declare registers interfaces, worlds and type placeholders.
func (r *resolver) declare(doc *ast.Document) error {
	ds := &docScope{doc: doc, pkg: r.pkgFor(doc.Package), aliases: make(map[string]ast.Path)}
	for _, u := range doc.Uses {
		name := u.As
		if name == "" {
			name = u.Path.Name
		}
		ds.aliases[name] = u.Path
	}
	for _, node := range doc.Interfaces {
		if _, dup := ds.pkg.interfaces[node.Name]; dup {
			return r.posErr(doc.File, node.Pos, node.Name, "interface declared more than once in package")
		}
		iface := r.declareInterface(ds, node, false)
		ds.pkg.interfaces[node.Name] = iface
	}
	for _, node := range doc.Worlds {
		if _, dup := ds.pkg.worlds[node.Name]; dup {
			return r.posErr(doc.File, node.Pos, node.Name, "world declared more than once in package")
		}
		w := &World{
			Package: ds.pkg.pkg,
			Name:    node.Name,
			File:    doc.File,
			Pos:     node.Pos,
			names:   make(map[string]TypeID),
		}
		wd := &worldDecl{world: w, node: node, doc: ds}
		ds.pkg.worlds[node.Name] = wd
		r.worlds = append(r.worlds, wd)
		r.g.Worlds = append(r.g.Worlds, w)
		for _, decl := range node.Types {
			id := r.declareType(ds, decl, nil)
			w.Types = append(w.Types, id)
			w.names[decl.Name] = id
		}
		for _, items := range [][]*ast.WorldItem{node.Imports, node.Exports} {
			for _, item := range items {
				if item.Kind == ast.ItemInterface {
					r.declareInterface(ds, item.Interface, true)
				}
			}
		}
	}
	return nil
}

// declareInterface registers an interface. Inline world interfaces have no
// package; their identity is the item label.
func (r *resolver) declareInterface(ds *docScope, node *ast.Interface, inline bool) *Interface {
	pkg := ds.pkg.pkg
	if inline {
		pkg = nil
	}
	iface := &Interface{
		ID:      InterfaceID(len(r.g.Interfaces)),
		Package: pkg,
		Name:    node.Name,
		File:    ds.doc.File,
		Pos:     node.Pos,
		names:   make(map[string]TypeID),
	}
	r.g.Interfaces = append(r.g.Interfaces, iface)
	d := &ifaceDecl{iface: iface, node: node, doc: ds, pending: make(map[string]useRef)}
	for _, u := range node.Uses {
		for _, n := range u.Names {
			d.pending[n.Local()] = useRef{path: u.Path, name: n.Name, pos: n.Pos}
		}
	}
	r.ifaces = append(r.ifaces, d)
	r.byIface[iface] = d
	for _, decl := range node.Types {
		id := r.declareType(ds, decl, iface)
		iface.Types = append(iface.Types, id)
		iface.names[decl.Name] = id
	}
	return iface
}

func (r *resolver) declareType(ds *docScope, decl *ast.TypeDecl, owner *Interface) TypeID {
	id := TypeID(len(r.g.types))
	r.g.types = append(r.g.types, &TypeDef{
		ID:    id,
		Name:  decl.Name,
		Kind:  DefKind(decl.Kind),
		Owner: owner,
		File:  ds.doc.File,
		Pos:   decl.Pos,
	})
	r.typeDecl[id] = decl
	r.typeDoc[id] = ds
	return id
}

// lookupInterface resolves a path relative to a document.
func (r *resolver) lookupInterface(ds *docScope, path ast.Path) (*Interface, error) {
	if !path.Qualified() {
		if alias, ok := ds.aliases[path.Name]; ok {
			alias.Pos = path.Pos
			path = alias
		}
	}
	if !path.Qualified() {
		if iface, ok := ds.pkg.interfaces[path.Name]; ok {
			return iface, nil
		}
		return nil, r.posErr(ds.doc.File, path.Pos, path.String(), "")
	}
	ps := r.lookupPackage(path)
	if ps != nil {
		if iface, ok := ps.interfaces[path.Name]; ok {
			return iface, nil
		}
	}
	return nil, r.posErr(ds.doc.File, path.Pos, path.String(), "")
}

// lookupPackage matches ns:pkg@version exactly, or ns:pkg alone when the
// path carries no version and a single package matches.
func (r *resolver) lookupPackage(path ast.Path) *pkgScope {
	want := &ast.PackageName{Namespace: path.Namespace, Name: path.Package, Version: path.Version}
	if ps, ok := r.pkgs[want.String()]; ok {
		return ps
	}
	if path.Version != "" {
		return nil
	}
	var match *pkgScope
	for _, ps := range r.pkgs {
		if ps.pkg != nil && ps.pkg.Namespace == path.Namespace && ps.pkg.Name == path.Package {
			if match != nil {
				return nil
			}
			match = ps
		}
	}
	return match
}

func (r *resolver) lookupWorld(ds *docScope, path ast.Path) *worldDecl {
	if !path.Qualified() {
		return ds.pkg.worlds[path.Name]
	}
	if ps := r.lookupPackage(path); ps != nil {
		return ps.worlds[path.Name]
	}
	return nil
}

type useRef struct {
	path ast.Path
	name string
	pos  ast.Pos
}

type nameKey struct {
	iface *Interface
	name  string
}

// resolveUses binds every name an interface imports with "use". Interfaces
// may use each other's types freely; only a chain of uses that never reaches
// a declaration is an error.
func (r *resolver) resolveUses(d *ifaceDecl) error {
	for _, u := range d.node.Uses {
		for _, n := range u.Names {
			if _, err := r.resolveName(d, n.Local()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *resolver) resolveName(d *ifaceDecl, name string) (TypeID, error) {
	if id, ok := d.iface.names[name]; ok {
		return id, nil
	}
	ref, ok := d.pending[name]
	if !ok {
		return -1, nil
	}
	key := nameKey{d.iface, name}
	symbol := d.iface.Identity() + "." + name
	if r.visiting[key] {
		start := slices.Index(r.nameStack, symbol)
		return -1, &errors.ResolutionError{
			Pos:    errors.Position{File: d.doc.doc.File, Line: ref.pos.Line, Column: ref.pos.Column},
			Symbol: symbol,
			Cycle:  append(slices.Clone(r.nameStack[start:]), symbol),
			Detail: "use chain never reaches a declaration",
		}
	}
	r.visiting[key] = true
	r.nameStack = append(r.nameStack, symbol)
	defer func() {
		delete(r.visiting, key)
		r.nameStack = r.nameStack[:len(r.nameStack)-1]
	}()

	id, err := r.resolveUse(d.doc, ref)
	if err != nil {
		return -1, err
	}
	d.iface.names[name] = id
	return id, nil
}

func (r *resolver) resolveUse(ds *docScope, ref useRef) (TypeID, error) {
	target, err := r.lookupInterface(ds, ref.path)
	if err != nil {
		return -1, err
	}
	id, err := r.resolveName(r.byIface[target], ref.name)
	if err != nil {
		return -1, err
	}
	if id < 0 {
		return -1, r.posErr(ds.doc.File, ref.pos, ref.path.String()+"."+ref.name, "")
	}
	return id, nil
}

// resolveWorldScope binds world-level uses and makes world-level names
// visible inside the world's inline interfaces.
func (r *resolver) resolveWorldScope(wd *worldDecl) error {
	for _, u := range wd.node.Uses {
		for _, n := range u.Names {
			id, err := r.resolveUse(wd.doc, useRef{path: u.Path, name: n.Name, pos: n.Pos})
			if err != nil {
				return err
			}
			wd.world.names[n.Local()] = id
		}
	}
	for _, items := range [][]*ast.WorldItem{wd.node.Imports, wd.node.Exports} {
		for _, item := range items {
			if item.Kind != ast.ItemInterface {
				continue
			}
			d := r.inlineDecl(item.Interface)
			for name, id := range wd.world.names {
				if _, shadowed := d.iface.names[name]; !shadowed {
					d.iface.names[name] = id
				}
			}
		}
	}
	return nil
}

func (r *resolver) inlineDecl(node *ast.Interface) *ifaceDecl {
	for _, d := range r.ifaces {
		if d.node == node {
			return d
		}
	}
	errors.Invariant(errors.PhaseResolve, "inline interface %q was not declared", node.Name)
	return nil
}

// fillTypes converts every declaration body now that all names are bound.
func (r *resolver) fillTypes() error {
	for id, def := range r.g.types {
		decl := r.typeDecl[TypeID(id)]
		ds := r.typeDoc[TypeID(id)]
		names := r.scopeOf(def)
		conv := &converter{r: r, file: ds.doc.File, names: names}

		switch decl.Kind {
		case ast.DeclAlias:
			t, err := conv.convert(decl.Alias)
			if err != nil {
				return err
			}
			def.Alias = t
		case ast.DeclRecord:
			for _, f := range decl.Fields {
				t, err := conv.convert(f.Type)
				if err != nil {
					return err
				}
				def.Fields = append(def.Fields, Field{Name: f.Name, Type: t})
			}
		case ast.DeclVariant:
			for _, c := range decl.Cases {
				var t *Type
				if c.Type != nil {
					var err error
					if t, err = conv.convert(c.Type); err != nil {
						return err
					}
				}
				def.Cases = append(def.Cases, Case{Name: c.Name, Type: t})
			}
		case ast.DeclEnum, ast.DeclFlags:
			for _, n := range decl.Names {
				def.Names = append(def.Names, n.Name)
			}
		case ast.DeclResource:
			for _, m := range decl.Methods {
				fn, err := conv.function(m, def.Owner)
				if err != nil {
					return err
				}
				fn.Resource = def.ID
				switch fn.Kind {
				case FuncMethod:
					self := Param{Name: "self", Type: &Type{Kind: Borrow, ID: def.ID}}
					fn.Params = append([]Param{self}, fn.Params...)
				case FuncConstructor:
					fn.Result = &Type{Kind: Own, ID: def.ID}
				}
				def.Methods = append(def.Methods, fn)
			}
		}
	}
	return nil
}

func (r *resolver) scopeOf(def *TypeDef) map[string]TypeID {
	if def.Owner != nil {
		return def.Owner.names
	}
	for _, wd := range r.worlds {
		if slices.Contains(wd.world.Types, def.ID) {
			return wd.world.names
		}
	}
	errors.Invariant(errors.PhaseResolve, "type %q has no scope", def.Name)
	return nil
}

func (r *resolver) fillFuncs(d *ifaceDecl) error {
	conv := &converter{r: r, file: d.doc.doc.File, names: d.iface.names}
	for _, node := range d.node.Funcs {
		fn, err := conv.function(node, d.iface)
		if err != nil {
			return err
		}
		fn.Resource = -1
		d.iface.Funcs = append(d.iface.Funcs, fn)
	}
	return nil
}

func (r *resolver) resolveWorld(wd *worldDecl) error {
	switch wd.state {
	case done:
		return nil
	case visiting:
		return r.posErr(wd.doc.doc.File, wd.node.Pos, wd.world.Name, "world includes itself")
	}
	wd.state = visiting
	w := wd.world

	add := func(dst *[]*WorldItem, node *ast.WorldItem) error {
		item, err := r.worldItem(wd, node)
		if err != nil {
			return err
		}
		*dst = append(*dst, item)
		return nil
	}
	for _, node := range wd.node.Imports {
		if err := add(&w.Imports, node); err != nil {
			return err
		}
	}
	for _, node := range wd.node.Exports {
		if err := add(&w.Exports, node); err != nil {
			return err
		}
	}

	for _, inc := range wd.node.Includes {
		other := r.lookupWorld(wd.doc, inc.Path)
		if other == nil {
			return r.posErr(wd.doc.doc.File, inc.Pos, inc.Path.String(), "")
		}
		if err := r.resolveWorld(other); err != nil {
			return err
		}
		w.Imports = mergeItems(w.Imports, other.world.Imports)
		w.Exports = mergeItems(w.Exports, other.world.Exports)
	}
	wd.state = done
	return nil
}

func mergeItems(dst, src []*WorldItem) []*WorldItem {
	for _, item := range src {
		if !slices.ContainsFunc(dst, func(x *WorldItem) bool { return x.Name == item.Name }) {
			dst = append(dst, item)
		}
	}
	return dst
}

func (r *resolver) worldItem(wd *worldDecl, node *ast.WorldItem) (*WorldItem, error) {
	switch node.Kind {
	case ast.ItemFunc:
		conv := &converter{r: r, file: wd.doc.doc.File, names: wd.world.names}
		fn, err := conv.function(node.Func, nil)
		if err != nil {
			return nil, err
		}
		fn.Resource = -1
		return &WorldItem{Name: node.Func.Name, Func: fn}, nil
	case ast.ItemInterface:
		d := r.inlineDecl(node.Interface)
		return &WorldItem{Name: node.Interface.Name, Interface: d.iface}, nil
	}
	iface, err := r.lookupInterface(wd.doc, node.Path)
	if err != nil {
		return nil, err
	}
	return &WorldItem{Name: iface.Identity(), Interface: iface}, nil
}

// validateTypes checks handle targets and rejects alias chains that never
// reach a concrete type.
func (r *resolver) validateTypes() error {
	for _, def := range r.g.types {
		if def.Kind == DefAlias {
			if err := r.checkAliasChain(def); err != nil {
				return err
			}
		}
	}
	var err error
	visit := func(t *Type, file string, pos ast.Pos) {
		walkType(t, func(t *Type) {
			if err != nil || (t.Kind != Own && t.Kind != Borrow) {
				return
			}
			if target := r.g.Underlying(t.ID); target.Kind != DefResource {
				err = r.posErr(file, pos, r.g.Type(t.ID).Name,
					t.Kind.String()+"<...> requires a resource type, found "+target.Kind.String())
			}
		})
	}
	for _, def := range r.g.types {
		visit(def.Alias, def.File, def.Pos)
		for _, f := range def.Fields {
			visit(f.Type, def.File, def.Pos)
		}
		for _, c := range def.Cases {
			visit(c.Type, def.File, def.Pos)
		}
		for _, m := range def.Methods {
			for _, p := range m.Params {
				visit(p.Type, m.File, m.Pos)
			}
			visit(m.Result, m.File, m.Pos)
		}
	}
	visitFunc := func(f *Function) {
		for _, p := range f.Params {
			visit(p.Type, f.File, f.Pos)
		}
		visit(f.Result, f.File, f.Pos)
	}
	for _, iface := range r.g.Interfaces {
		for _, f := range iface.Funcs {
			visitFunc(f)
		}
	}
	for _, w := range r.g.Worlds {
		for _, item := range slices.Concat(w.Imports, w.Exports) {
			if item.Func != nil {
				visitFunc(item.Func)
			}
		}
	}
	return err
}

func (r *resolver) checkAliasChain(def *TypeDef) error {
	index := map[TypeID]int{def.ID: 0}
	path := []string{def.Name}
	cur := def
	for cur.Kind == DefAlias && cur.Alias.Kind == Ref {
		next := r.g.Type(cur.Alias.ID)
		if k, seen := index[next.ID]; seen {
			return &errors.ResolutionError{
				Pos:    errors.Position{File: def.File, Line: def.Pos.Line, Column: def.Pos.Column},
				Symbol: def.Name,
				Cycle:  append(slices.Clone(path[k:]), next.Name),
				Detail: "type alias refers to itself",
			}
		}
		index[next.ID] = len(path)
		path = append(path, next.Name)
		cur = next
	}
	return nil
}

// walkType visits t and every type nested in it without following Ref.
func walkType(t *Type, fn func(*Type)) {
	if t == nil {
		return
	}
	fn(t)
	walkType(t.Elem, fn)
	walkType(t.Ok, fn)
	walkType(t.Err, fn)
	for _, e := range t.Elems {
		walkType(e, fn)
	}
}

type converter struct {
	r     *resolver
	file  string
	names map[string]TypeID
}

func (c *converter) convert(t *ast.Type) (*Type, error) {
	if t == nil {
		return nil, nil
	}
	if t.Kind.Primitive() {
		return &Type{Kind: TypeKind(t.Kind)}, nil
	}
	switch t.Kind {
	case ast.List, ast.Option:
		elem, err := c.convert(t.Elem)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: TypeKind(t.Kind), Elem: elem}, nil
	case ast.Result:
		ok, err := c.convert(t.Ok)
		if err != nil {
			return nil, err
		}
		e, err := c.convert(t.Err)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: Result, Ok: ok, Err: e}, nil
	case ast.Tuple:
		out := &Type{Kind: Tuple}
		for _, e := range t.Elems {
			ct, err := c.convert(e)
			if err != nil {
				return nil, err
			}
			out.Elems = append(out.Elems, ct)
		}
		return out, nil
	}

	id, ok := c.names[t.Name]
	if !ok {
		return nil, c.r.posErr(c.file, t.Pos, t.Name, "")
	}
	switch t.Kind {
	case ast.Own:
		return &Type{Kind: Own, ID: id}, nil
	case ast.Borrow:
		return &Type{Kind: Borrow, ID: id}, nil
	}
	if c.r.g.types[id].Kind == DefResource {
		return &Type{Kind: Own, ID: id}, nil
	}
	return &Type{Kind: Ref, ID: id}, nil
}

func (c *converter) function(node *ast.Func, owner *Interface) (*Function, error) {
	fn := &Function{
		Name:      node.Name,
		Kind:      FuncKind(node.Kind),
		Interface: owner,
		File:      c.file,
		Pos:       node.Pos,
	}
	for _, p := range node.Params {
		t, err := c.convert(p.Type)
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, Param{Name: p.Name, Type: t})
	}
	res, err := c.convert(node.Result)
	if err != nil {
		return nil, err
	}
	fn.Result = res
	return fn, nil
}
