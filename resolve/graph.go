package resolve

import (
	"fmt"
	"slices"
	"strings"

	"github.com/golemcloud/golem-cloud-cli/ast"
	"github.com/golemcloud/golem-cloud-cli/errors"
)

// TypeID indexes a declaration in the graph's type arena.
type TypeID int

// InterfaceID indexes an interface in the graph.
type InterfaceID int

// Package is a namespace of interfaces and worlds.
type Package struct {
	Namespace string
	Name      string
	Version   string
}

// Identity returns "ns:name@version".
func (p *Package) Identity() string {
	if p == nil {
		return ""
	}
	s := p.Namespace + ":" + p.Name
	if p.Version != "" {
		s += "@" + p.Version
	}
	return s
}

// Interface is a resolved collection of types and functions.
type Interface struct {
	ID      InterfaceID
	Package *Package
	Name    string
	File    string
	Pos     ast.Pos
	Types   []TypeID
	Funcs   []*Function

	// names binds every name visible in the interface, including used types.
	names map[string]TypeID
}

// Identity returns "ns:pkg/name@version", or the bare name when the
// interface has no package.
func (i *Interface) Identity() string {
	if i.Package == nil {
		return i.Name
	}
	s := i.Package.Namespace + ":" + i.Package.Name + "/" + i.Name
	if i.Package.Version != "" {
		s += "@" + i.Package.Version
	}
	return s
}

// Lookup returns the type bound to name inside the interface.
func (i *Interface) Lookup(name string) (TypeID, bool) {
	id, ok := i.names[name]
	return id, ok
}

// Used returns the names the interface binds through use, sorted.
func (i *Interface) Used() []string { return usedNames(i.names, i.Types) }

func usedNames(names map[string]TypeID, declared []TypeID) []string {
	var out []string
	for name, id := range names {
		if !slices.Contains(declared, id) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Func returns the named free function.
func (i *Interface) Func(name string) *Function {
	for _, f := range i.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// DefKind is the kind of a named type declaration.
type DefKind int

const (
	DefAlias DefKind = iota
	DefRecord
	DefVariant
	DefEnum
	DefFlags
	DefResource
)

func (k DefKind) String() string { return ast.DeclKind(k).String() }

// TypeDef is a named declaration in the arena. Owner is nil for types
// declared directly in a world.
type TypeDef struct {
	ID      TypeID
	Name    string
	Kind    DefKind
	Owner   *Interface
	File    string
	Pos     ast.Pos
	Alias   *Type
	Fields  []Field
	Cases   []Case
	Names   []string
	Methods []*Function
}

type Field struct {
	Name string
	Type *Type
}

// Case is a variant case; Type is nil for payload-free cases.
type Case struct {
	Name string
	Type *Type
}

// TypeKind discriminates resolved type references.
type TypeKind int

const (
	Bool TypeKind = iota
	S8
	S16
	S32
	S64
	U8
	U16
	U32
	U64
	F32
	F64
	Char
	String
	List
	Option
	Result
	Tuple
	Own
	Borrow
	Ref
)

func (k TypeKind) String() string {
	if k == Ref {
		return "ref"
	}
	return ast.TypeKind(k).String()
}

// Type is a resolved type expression. Named references (Ref, Own, Borrow)
// carry the target's TypeID instead of a name, so recursive declarations are
// represented by identity.
type Type struct {
	Kind  TypeKind
	ID    TypeID
	Elem  *Type
	Ok    *Type
	Err   *Type
	Elems []*Type
}

// FuncKind distinguishes free functions from resource members.
type FuncKind int

const (
	FuncFree FuncKind = iota
	FuncConstructor
	FuncMethod
	FuncStatic
)

func (k FuncKind) String() string { return ast.FuncKind(k).String() }

// Function is a resolved signature. Methods carry an explicit leading
// "self: borrow<r>" parameter and constructors return own<r>.
type Function struct {
	Name      string
	Kind      FuncKind
	Resource  TypeID
	Interface *Interface
	Params    []Param
	Result    *Type
	File      string
	Pos       ast.Pos
}

type Param struct {
	Name string
	Type *Type
}

// Graph is the frozen result of resolution. It owns every package,
// interface, world and type declaration of one build.
type Graph struct {
	Packages   []*Package
	Interfaces []*Interface
	Worlds     []*World
	types      []*TypeDef
}

// World bundles the interfaces and functions a component imports and exports.
type World struct {
	Package *Package
	Name    string
	File    string
	Pos     ast.Pos
	Imports []*WorldItem
	Exports []*WorldItem
	Types   []TypeID

	names map[string]TypeID
}

// Lookup returns the type bound to name at world level.
func (w *World) Lookup(name string) (TypeID, bool) {
	id, ok := w.names[name]
	return id, ok
}

// Used returns the names the world binds through use, sorted.
func (w *World) Used() []string { return usedNames(w.names, w.Types) }

// Identity returns "ns:pkg/name@version" or the bare name.
func (w *World) Identity() string {
	if w.Package == nil {
		return w.Name
	}
	s := w.Package.Namespace + ":" + w.Package.Name + "/" + w.Name
	if w.Package.Version != "" {
		s += "@" + w.Package.Version
	}
	return s
}

// WorldItem is an interface or a function. Name is the item's key in the
// world: the interface identity for path imports, the label otherwise.
type WorldItem struct {
	Name      string
	Interface *Interface
	Func      *Function
}

// Type returns the declaration for id. An out-of-range id is an invariant
// violation.
func (g *Graph) Type(id TypeID) *TypeDef {
	if id < 0 || int(id) >= len(g.types) {
		errors.Invariant(errors.PhaseResolve, "type id %d out of range (%d types)", id, len(g.types))
	}
	return g.types[id]
}

// NumTypes returns the size of the type arena.
func (g *Graph) NumTypes() int { return len(g.types) }

// Interface returns the interface with the given id.
func (g *Graph) Interface(id InterfaceID) *Interface {
	if id < 0 || int(id) >= len(g.Interfaces) {
		errors.Invariant(errors.PhaseResolve, "interface id %d out of range", id)
	}
	return g.Interfaces[id]
}

// LookupInterface finds an interface by qualified identity, or by bare name
// when exactly one interface carries it.
func (g *Graph) LookupInterface(name string) (*Interface, bool) {
	var match *Interface
	for _, i := range g.Interfaces {
		if i.Identity() == name {
			return i, true
		}
		if i.Name == name || trimVersion(i.Identity()) == name {
			if match != nil {
				return nil, false
			}
			match = i
		}
	}
	return match, match != nil
}

// World finds a world by qualified identity or bare name.
func (g *Graph) World(name string) (*World, error) {
	var match *World
	for _, w := range g.Worlds {
		if w.Identity() == name {
			return w, nil
		}
		if w.Name == name || trimVersion(w.Identity()) == name {
			if match != nil {
				return nil, &errors.ResolutionError{Symbol: name, Detail: "ambiguous world name"}
			}
			match = w
		}
	}
	if match == nil {
		return nil, &errors.ResolutionError{Symbol: name, Detail: "no such world"}
	}
	return match, nil
}

// ImportedInterfaces returns the interfaces imported by w in declaration
// order, each preceded by the interfaces it takes types from through use or
// its signatures. Those dependencies are imported implicitly, as are the
// dependencies of exported interfaces and of world-level uses, unless w
// exports them itself.
func (g *Graph) ImportedInterfaces(w *World) []*Interface {
	exported := make(map[InterfaceID]bool)
	for _, item := range w.Exports {
		if item.Interface != nil {
			exported[item.Interface.ID] = true
		}
	}
	seen := make(map[InterfaceID]bool)
	var out []*Interface
	var visit func(iface *Interface)
	visit = func(iface *Interface) {
		if seen[iface.ID] {
			return
		}
		seen[iface.ID] = true
		for _, dep := range g.TypeDeps(iface) {
			if !exported[dep.ID] {
				visit(dep)
			}
		}
		out = append(out, iface)
	}
	for _, item := range w.Imports {
		if item.Interface != nil {
			visit(item.Interface)
		}
	}
	for _, item := range w.Exports {
		if item.Interface == nil {
			continue
		}
		for _, dep := range g.TypeDeps(item.Interface) {
			if !exported[dep.ID] {
				visit(dep)
			}
		}
	}
	for _, dep := range g.ownersOf(w.names, nil) {
		if !exported[dep.ID] {
			visit(dep)
		}
	}
	return out
}

// ImportsExplicitly reports whether w names iface in an import statement.
func (g *Graph) ImportsExplicitly(w *World, iface *Interface) bool {
	for _, item := range w.Imports {
		if item.Interface == iface {
			return true
		}
	}
	return false
}

// TypeDeps returns the interfaces iface takes types from, through use or
// its function signatures, ordered by interface id.
func (g *Graph) TypeDeps(iface *Interface) []*Interface {
	deps := g.ownersOf(iface.names, iface)
	for _, dep := range g.SignatureDeps(iface) {
		if !slices.Contains(deps, dep) {
			deps = append(deps, dep)
		}
	}
	slices.SortFunc(deps, func(a, b *Interface) int { return int(a.ID) - int(b.ID) })
	return deps
}

// ownersOf returns the interfaces other than self declaring the types bound
// in names, ordered by interface id.
func (g *Graph) ownersOf(names map[string]TypeID, self *Interface) []*Interface {
	seen := make(map[InterfaceID]bool)
	var out []*Interface
	for _, id := range names {
		owner := g.Type(id).Owner
		if owner == nil || owner == self || seen[owner.ID] {
			continue
		}
		seen[owner.ID] = true
		out = append(out, owner)
	}
	slices.SortFunc(out, func(a, b *Interface) int { return int(a.ID) - int(b.ID) })
	return out
}

// ImportedFunctions returns every function reachable through w's imports:
// free functions and resource members of imported interfaces, then
// world-level imported functions.
func (g *Graph) ImportedFunctions(w *World) []*Function {
	var out []*Function
	for _, iface := range g.ImportedInterfaces(w) {
		out = append(out, g.InterfaceFunctions(iface)...)
	}
	for _, item := range w.Imports {
		if item.Func != nil {
			out = append(out, item.Func)
		}
	}
	return out
}

// InterfaceFunctions lists the free functions of iface followed by the members
// of each resource it declares, in lexical order.
func (g *Graph) InterfaceFunctions(iface *Interface) []*Function {
	out := append([]*Function(nil), iface.Funcs...)
	for _, id := range iface.Types {
		if def := g.types[id]; def.Kind == DefResource {
			out = append(out, def.Methods...)
		}
	}
	return out
}

// Underlying follows aliases from id to the first non-alias declaration.
func (g *Graph) Underlying(id TypeID) *TypeDef {
	def := g.Type(id)
	for hops := 0; def.Kind == DefAlias; hops++ {
		if hops > len(g.types) || def.Alias == nil || def.Alias.Kind != Ref {
			return def
		}
		def = g.Type(def.Alias.ID)
	}
	return def
}

// WITName returns the canonical import name of f within its interface:
// "name", "[constructor]r", "[method]r.name", "[static]r.name".
func (g *Graph) WITName(f *Function) string {
	switch f.Kind {
	case FuncConstructor:
		return "[constructor]" + g.Type(f.Resource).Name
	case FuncMethod:
		return "[method]" + g.Type(f.Resource).Name + "." + f.Name
	case FuncStatic:
		return "[static]" + g.Type(f.Resource).Name + "." + f.Name
	}
	return f.Name
}

// FuncIdentity returns the fully-qualified identity used for remote
// invocation: "<interface identity>.<WIT name>".
func (g *Graph) FuncIdentity(f *Function) string {
	if f.Interface == nil {
		return g.WITName(f)
	}
	return f.Interface.Identity() + "." + g.WITName(f)
}

// TypeString renders t in WIT syntax using declaration names.
func (g *Graph) TypeString(t *Type) string {
	if t == nil {
		return "_"
	}
	switch t.Kind {
	case List, Option:
		return t.Kind.String() + "<" + g.TypeString(t.Elem) + ">"
	case Result:
		switch {
		case t.Ok == nil && t.Err == nil:
			return "result"
		case t.Err == nil:
			return "result<" + g.TypeString(t.Ok) + ">"
		}
		return "result<" + g.TypeString(t.Ok) + ", " + g.TypeString(t.Err) + ">"
	case Tuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = g.TypeString(e)
		}
		return "tuple<" + strings.Join(parts, ", ") + ">"
	case Own, Borrow:
		return t.Kind.String() + "<" + g.Type(t.ID).Name + ">"
	case Ref:
		return g.Type(t.ID).Name
	}
	return t.Kind.String()
}

// Signature renders f as "func(a: T, ...) -> R".
func (g *Graph) Signature(f *Function) string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = fmt.Sprintf("%s: %s", p.Name, g.TypeString(p.Type))
	}
	s := "func(" + strings.Join(parts, ", ") + ")"
	if f.Result != nil {
		s += " -> " + g.TypeString(f.Result)
	}
	return s
}

func trimVersion(identity string) string {
	if i := strings.LastIndexByte(identity, '@'); i >= 0 {
		return identity[:i]
	}
	return identity
}
