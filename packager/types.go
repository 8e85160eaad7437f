package packager

import (
	"fmt"

	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/component"
	"github.com/golemcloud/golem-cloud-cli/resolve"
	"github.com/golemcloud/golem-cloud-cli/stubgen"
)

var primCodes = [...]byte{
	canon.KindBool:   component.PrimBool,
	canon.KindS8:     component.PrimS8,
	canon.KindS16:    component.PrimS16,
	canon.KindS32:    component.PrimS32,
	canon.KindS64:    component.PrimS64,
	canon.KindU8:     component.PrimU8,
	canon.KindU16:    component.PrimU16,
	canon.KindU32:    component.PrimU32,
	canon.KindU64:    component.PrimU64,
	canon.KindF32:    component.PrimF32,
	canon.KindF64:    component.PrimF64,
	canon.KindChar:   component.PrimChar,
	canon.KindString: component.PrimString,
}

// typeExport is a type name exported from a scope. Primary exports are the
// declaring export of a named shape or resource; other scopes refer to the
// shape through them.
type typeExport struct {
	name     string
	shape    *canon.Shape
	resource bool
	primary  bool
}

// typeEncoder defines component types for shapes in one scope. Named
// shapes and resources resolve through the scope's own definitions, then
// through the enclosing encoder by outer alias. Anything left is defined
// on demand; a scope that exports types exports named shapes under their
// WIT names as it defines them.
type typeEncoder struct {
	scope     component.TypeScope
	named     map[*canon.Shape]uint32
	resources map[resolve.TypeID]uint32
	anon      map[string]uint32
	active    map[*canon.Shape]bool

	outer      *typeEncoder
	aliasOuter func(index uint32) uint32
	export     func(name string, desc []byte) uint32
	exported   map[string]bool
	exports    []typeExport
}

func newTypeEncoder(scope component.TypeScope) *typeEncoder {
	return &typeEncoder{
		scope:     scope,
		named:     make(map[*canon.Shape]uint32),
		resources: make(map[resolve.TypeID]uint32),
		anon:      make(map[string]uint32),
		active:    make(map[*canon.Shape]bool),
		exported:  make(map[string]bool),
	}
}

// instanceEncoder returns an encoder over an instance type nested one level
// inside outer's scope.
func instanceEncoder(it *component.InstanceType, outer *typeEncoder) *typeEncoder {
	e := exportingEncoder(it)
	e.outer = outer
	e.aliasOuter = func(index uint32) uint32 { return it.AliasOuterType(1, index) }
	return e
}

func exportingEncoder(it *component.InstanceType) *typeEncoder {
	e := newTypeEncoder(it)
	e.export = it.Export
	return e
}

func (e *typeEncoder) define(def []byte) uint32 {
	if idx, ok := e.anon[string(def)]; ok {
		return idx
	}
	idx := e.scope.Type(def)
	e.anon[string(def)] = idx
	return idx
}

func (e *typeEncoder) exportType(name string, shape *canon.Shape, index uint32, resource, primary bool) uint32 {
	e.exported[name] = true
	e.exports = append(e.exports, typeExport{name: name, shape: shape, resource: resource, primary: primary})
	return e.export(name, component.TypeEq(index))
}

// declareResources exports a fresh resource type for each resource of mod.
func (e *typeEncoder) declareResources(mod *stubgen.Module) {
	for _, r := range mod.Resources {
		e.exported[r.Name] = true
		e.exports = append(e.exports, typeExport{name: r.Name, shape: r.Handle, resource: true, primary: true})
		e.resources[r.Handle.ID] = e.export(r.Name, component.SubResource())
	}
}

// declareTypes exports every type name of mod. Used names export the
// enclosing scope's type under the local name and shadow it from then on.
func (e *typeEncoder) declareTypes(mod *stubgen.Module) error {
	for _, decl := range mod.Types {
		if e.exported[decl.Name] {
			continue
		}
		s := decl.Shape
		if s.Kind == canon.KindOwn {
			r, err := e.resource(s)
			if err != nil {
				return err
			}
			e.resources[s.ID] = e.exportType(decl.Name, s, r, true, false)
			continue
		}
		v, err := e.valType(s)
		if err != nil {
			return err
		}
		if e.exported[decl.Name] {
			continue
		}
		idx := v.Index
		if v.Prim != 0 {
			idx = e.define([]byte{v.Prim})
		}
		exp := e.exportType(decl.Name, s, idx, false, false)
		if decl.Used && s.Named() && s.Kind != canon.KindBorrow {
			e.named[s] = exp
		}
	}
	return nil
}

func (e *typeEncoder) resource(s *canon.Shape) (uint32, error) {
	if idx, ok := e.resources[s.ID]; ok {
		return idx, nil
	}
	if e.outer != nil {
		idx, err := e.outer.resource(s)
		if err != nil {
			return 0, err
		}
		local := e.aliasOuter(idx)
		e.resources[s.ID] = local
		return local, nil
	}
	return 0, fmt.Errorf("resource %s has no type in scope", s.Name)
}

// valType returns the value type of s, defining what it needs.
func (e *typeEncoder) valType(s *canon.Shape) (component.ValType, error) {
	if s.Kind.Primitive() {
		return component.PrimType(primCodes[s.Kind]), nil
	}
	switch s.Kind {
	case canon.KindOwn, canon.KindBorrow:
		r, err := e.resource(s)
		if err != nil {
			return component.ValType{}, err
		}
		if s.Kind == canon.KindOwn {
			return component.TypeRef(e.define(component.OwnType(r))), nil
		}
		return component.TypeRef(e.define(component.BorrowType(r))), nil
	case canon.KindRecord, canon.KindVariant, canon.KindEnum, canon.KindFlags:
		return e.namedType(s)
	}

	elems := make([]component.ValType, 0, 2)
	for _, c := range canon.Children(s) {
		if c == nil {
			elems = append(elems, component.ValType{})
			continue
		}
		v, err := e.valType(c)
		if err != nil {
			return component.ValType{}, err
		}
		elems = append(elems, v)
	}
	var def []byte
	switch s.Kind {
	case canon.KindList:
		def = component.ListType(elems[0])
	case canon.KindOption:
		def = component.OptionType(elems[0])
	case canon.KindTuple:
		def = component.TupleType(elems)
	case canon.KindResult:
		def = component.ResultType(optional(s.Ok, elems[0]), optional(s.Err, elems[1]))
	default:
		return component.ValType{}, fmt.Errorf("type %s cannot be encoded", s)
	}
	return component.TypeRef(e.define(def)), nil
}

func optional(s *canon.Shape, v component.ValType) *component.ValType {
	if s == nil {
		return nil
	}
	return &v
}

func (e *typeEncoder) namedType(s *canon.Shape) (component.ValType, error) {
	if idx, ok := e.lookupNamed(s); ok {
		return component.TypeRef(idx), nil
	}
	if e.active[s] {
		return component.ValType{}, fmt.Errorf("recursive type %s", s.Name)
	}
	e.active[s] = true
	defer delete(e.active, s)

	var def []byte
	switch s.Kind {
	case canon.KindRecord:
		fields := make([]component.Labeled, len(s.Fields))
		for i, f := range s.Fields {
			v, err := e.valType(f.Shape)
			if err != nil {
				return component.ValType{}, err
			}
			fields[i] = component.Labeled{Label: f.Name, Type: v}
		}
		def = component.RecordType(fields)
	case canon.KindVariant:
		cases := make([]component.VariantCase, len(s.Cases))
		for i, c := range s.Cases {
			cases[i].Label = c.Name
			if c.Shape == nil {
				continue
			}
			v, err := e.valType(c.Shape)
			if err != nil {
				return component.ValType{}, err
			}
			cases[i].Type = &v
		}
		def = component.VariantType(cases)
	case canon.KindEnum:
		def = component.EnumType(s.Names)
	case canon.KindFlags:
		def = component.FlagsType(s.Names)
	}

	idx := e.scope.Type(def)
	if e.export != nil && !e.exported[s.Name] {
		idx = e.exportType(s.Name, s, idx, false, true)
	}
	e.named[s] = idx
	return component.TypeRef(idx), nil
}

// lookupNamed finds a named shape defined in this scope or, by alias, in
// an enclosing one.
func (e *typeEncoder) lookupNamed(s *canon.Shape) (uint32, bool) {
	if idx, ok := e.named[s]; ok {
		return idx, true
	}
	if e.outer == nil {
		return 0, false
	}
	idx, ok := e.outer.lookupNamed(s)
	if !ok {
		return 0, false
	}
	local := e.aliasOuter(idx)
	e.named[s] = local
	return local, true
}

// funcType defines the component function type of f.
func (e *typeEncoder) funcType(f *stubgen.Func) (uint32, error) {
	params := make([]component.Labeled, len(f.Params))
	for i, p := range f.Params {
		v, err := e.valType(p.Shape)
		if err != nil {
			return 0, err
		}
		params[i] = component.Labeled{Label: p.Name, Type: v}
	}
	var result *component.ValType
	if f.Result != nil {
		v, err := e.valType(f.Result)
		if err != nil {
			return 0, err
		}
		result = &v
	}
	return e.define(component.FuncType(params, result)), nil
}
