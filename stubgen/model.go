package stubgen

import (
	"github.com/golemcloud/golem-cloud-cli/canon"
)

// RootModule names the module that holds world-level imported functions.
const RootModule = "$root"

// Output is the result of generating stubs for one world.
type Output struct {
	World       string
	Modules     []*Module
	PassThrough []string
}

// Module returns the module for an interface identity, or nil.
func (o *Output) Module(iface string) *Module {
	for _, m := range o.Modules {
		if m.Interface == iface {
			return m
		}
	}
	return nil
}

// Func finds a stub by function identity across all modules.
func (o *Output) Func(identity string) *Func {
	for _, m := range o.Modules {
		if f := m.Func(identity); f != nil {
			return f
		}
	}
	return nil
}

// Module holds the stubs for one imported interface.
type Module struct {
	Interface string // interface identity, or RootModule
	Name      string // short interface name used for matching imports
	// Implicit marks an interface the world imports only because an
	// imported interface takes types from it.
	Implicit  bool
	GoPackage string
	Funcs     []*Func
	Resources []*Resource
	Types     []TypeDecl
	Source    []byte
}

// TypeDecl is a type name a module exports besides its resources: a
// declaration, or a name bound through use.
type TypeDecl struct {
	Name  string
	Shape *canon.Shape
	Used  bool
}

// Func finds a stub by identity.
func (m *Module) Func(identity string) *Func {
	for _, f := range m.Funcs {
		if f.Identity == identity {
			return f
		}
	}
	return nil
}

// Resource finds a resource by WIT name.
func (m *Module) Resource(name string) *Resource {
	for _, r := range m.Resources {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// FuncKind mirrors the WIT function forms plus the synthesized resource drop.
type FuncKind uint8

const (
	FuncFree FuncKind = iota
	FuncConstructor
	FuncMethod
	FuncStatic
	FuncDrop
)

var funcKindNames = [...]string{
	FuncFree:        "func",
	FuncConstructor: "constructor",
	FuncMethod:      "method",
	FuncStatic:      "static",
	FuncDrop:        "drop",
}

func (k FuncKind) String() string { return funcKindNames[k] }

// Param is one stub parameter.
type Param struct {
	Name  string
	Shape *canon.Shape
}

// Func is the stub for one imported function.
type Func struct {
	Identity     string
	Name         string // WIT import name, e.g. "[method]cart.add-item"
	Kind         FuncKind
	Resource     string
	Params       []Param
	Result       *canon.Shape
	ErrorChannel bool
	Sig          canon.FlatSig
}

// Resource groups the members of a resource declared by the interface.
type Resource struct {
	Name        string
	Handle      *canon.Shape // own<r>
	Constructor *Func
	Methods     []*Func // methods and statics in declaration order
	Drop        *Func
}

// Method finds a method or static by its WIT member name.
func (r *Resource) Method(name string) *Func {
	for _, f := range r.Methods {
		if memberName(f.Name) == name {
			return f
		}
	}
	return nil
}

func memberName(witName string) string {
	for i := len(witName) - 1; i >= 0; i-- {
		if witName[i] == '.' || witName[i] == ']' {
			return witName[i+1:]
		}
	}
	return witName
}
