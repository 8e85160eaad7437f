// Package ast defines the syntax tree produced by the WIT parser.
//
// Nodes carry source positions and preserve lexical declaration order. The tree
// is unresolved: type and interface references are plain names that the
// resolve package links into a graph.
package ast

import "fmt"

// Pos is a 1-based source position.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Document is one parsed WIT file.
type Document struct {
	File       string
	Package    *PackageName
	Uses       []*TopUse
	Interfaces []*Interface
	Worlds     []*World
}

// Empty reports whether the document declares nothing.
func (d *Document) Empty() bool {
	return d.Package == nil && len(d.Uses) == 0 && len(d.Interfaces) == 0 && len(d.Worlds) == 0
}

// PackageName is "ns:name@version".
type PackageName struct {
	Pos       Pos
	Namespace string
	Name      string
	Version   string
}

func (p *PackageName) String() string {
	if p == nil {
		return ""
	}
	s := p.Namespace + ":" + p.Name
	if p.Version != "" {
		s += "@" + p.Version
	}
	return s
}

// Path names an interface or world, either local ("api") or
// package-qualified ("ns:pkg/api@1.0.0").
type Path struct {
	Pos       Pos
	Namespace string
	Package   string
	Name      string
	Version   string
}

// Qualified reports whether the path names a foreign package.
func (p Path) Qualified() bool { return p.Namespace != "" }

func (p Path) String() string {
	if !p.Qualified() {
		return p.Name
	}
	s := p.Namespace + ":" + p.Package + "/" + p.Name
	if p.Version != "" {
		s += "@" + p.Version
	}
	return s
}

// TopUse is a document-level "use path [as name];".
type TopUse struct {
	Pos  Pos
	Path Path
	As   string
}

// Use imports named types from another interface: "use path.{a, b as c};".
type Use struct {
	Pos   Pos
	Path  Path
	Names []UseName
}

type UseName struct {
	Pos  Pos
	Name string
	As   string
}

// Local returns the name the imported type is bound to.
func (n UseName) Local() string {
	if n.As != "" {
		return n.As
	}
	return n.Name
}

// Interface is a named or inline interface body.
type Interface struct {
	Pos   Pos
	Name  string
	Uses  []*Use
	Types []*TypeDecl
	Funcs []*Func
}

// World declares the imports and exports of a component.
type World struct {
	Pos      Pos
	Name     string
	Uses     []*Use
	Types    []*TypeDecl
	Imports  []*WorldItem
	Exports  []*WorldItem
	Includes []*Include
}

type ItemKind int

const (
	ItemPath      ItemKind = iota // import ns:pkg/iface;
	ItemInterface                 // import name: interface { ... }
	ItemFunc                      // import name: func(...)
)

// WorldItem is a single import or export of a world.
type WorldItem struct {
	Pos       Pos
	Kind      ItemKind
	Path      Path
	Interface *Interface
	Func      *Func
}

// Name returns the item's key within its world.
func (w *WorldItem) Name() string {
	switch w.Kind {
	case ItemInterface:
		return w.Interface.Name
	case ItemFunc:
		return w.Func.Name
	}
	return w.Path.String()
}

// Include merges another world into this one.
type Include struct {
	Pos  Pos
	Path Path
}
