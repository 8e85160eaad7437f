package packager

import (
	"fmt"

	"github.com/golemcloud/golem-cloud-cli/component"
	"github.com/golemcloud/golem-cloud-cli/errors"
	"github.com/golemcloud/golem-cloud-cli/resolve"
	"github.com/golemcloud/golem-cloud-cli/stubgen"
)

// binding says how one import of the original is satisfied: by stub
// module Module, or by the host when Module is negative. Name is the
// function identity or type name looked up in the module.
type binding struct {
	imp    component.Import
	module int
	name   string
}

// wrapper assembles the composed component around the original.
type wrapper struct {
	asm  *component.Assembler
	plan *plan
	top  *typeEncoder

	// Per stub module, in plan order.
	exports  [][]typeExport
	source   []uint32
	types    [][]component.Item
	lifted   []map[string]uint32
	supplied []uint32
	modules  []uint32

	memory, realloc uint32
}

func newWrapper(pl *plan) *wrapper {
	asm := component.NewAssembler()
	n := len(pl.modules)
	return &wrapper{
		asm:      asm,
		plan:     pl,
		top:      newTypeEncoder(asm),
		exports:  make([][]typeExport, n),
		source:   make([]uint32, n),
		types:    make([][]component.Item, n),
		lifted:   make([]map[string]uint32, n),
		supplied: make([]uint32, n),
		modules:  make([]uint32, n),
	}
}

// build emits the wrapper: forwarded host imports, the HostModule instance
// import, the allocator, lowered host functions, the stub modules, the
// lifted functions bundled per interface, and finally the original
// instantiated against them with its exports re-exported.
func (w *wrapper) build(orig *component.Component, original []byte, bindings []binding, allowed func(string) bool) error {
	fwd := component.NewForwarder(orig, w.asm, allowed)
	host := make(map[string]component.Item)
	for _, b := range bindings {
		if b.module >= 0 {
			continue
		}
		it, err := fwd.Forward(b.imp.Name)
		if err != nil {
			return &errors.CompositionError{Cause: err, Detail: "forward host import " + b.imp.Name}
		}
		host[b.imp.Name] = it
	}

	hostType, err := w.hostType()
	if err != nil {
		return err
	}
	hostInst := w.asm.Import(HostModule, component.InstanceDesc(hostType))
	w.aliasInterfaces(hostInst)

	if w.plan.memory {
		alloc := w.asm.CoreInstantiate(w.asm.CoreModule(component.AllocatorModule()))
		w.memory = w.asm.AliasCoreExport(alloc, component.AllocMemory, component.CoreSortMemory)
		w.realloc = w.asm.AliasCoreExport(alloc, component.AllocRealloc, component.CoreSortFunc)
		if err := w.stubs(alloc); err != nil {
			return err
		}
	} else if err := w.stubs(0); err != nil {
		return err
	}

	for i, mp := range w.plan.modules {
		if mp.mod.Interface == stubgen.RootModule {
			continue
		}
		items := append([]component.Item(nil), w.types[i]...)
		for _, fp := range mp.funcs {
			items = append(items, component.Item{Name: fp.Name, Sort: component.SortFunc, Index: w.lifted[i][fp.Identity]})
		}
		w.supplied[i] = w.asm.Instance(items...)
	}

	args := make([]component.Item, 0, len(bindings))
	for _, b := range bindings {
		arg, err := w.argument(b, host)
		if err != nil {
			return err
		}
		args = append(args, arg)
	}
	inst := w.asm.Instantiate(w.asm.Component(original), args...)
	for _, e := range orig.Exports {
		idx := w.asm.AliasExport(inst, e.Name, e.Sort, e.CoreSort)
		w.asm.Export(component.Item{Name: e.Name, Sort: e.Sort, CoreSort: e.CoreSort, Index: idx})
	}
	return nil
}

// hostType defines the type of the HostModule import: one nested instance
// per stubbed interface, in dependency order, plus the world-level
// functions and types directly.
func (w *wrapper) hostType() (uint32, error) {
	it := component.NewInstanceType()
	outer := exportingEncoder(it)
	root := -1
	for i, mp := range w.plan.modules {
		if mp.mod.Interface == stubgen.RootModule {
			root = i
			continue
		}
		inner := component.NewInstanceType()
		enc := instanceEncoder(inner, outer)
		enc.declareResources(mp.mod)
		if err := enc.declareTypes(mp.mod); err != nil {
			return 0, typeErr(mp.mod.Interface, err)
		}
		for _, fp := range mp.funcs {
			ft, err := enc.funcType(fp.Func)
			if err != nil {
				return 0, typeErr(fp.Identity, err)
			}
			inner.Export(fp.Name, component.FuncDesc(ft))
		}
		inst := it.Export(mp.mod.Interface, component.InstanceDesc(it.Type(inner.Bytes())))
		for _, te := range enc.exports {
			idx := it.AliasExportType(inst, te.name)
			if te.primary {
				mapType(outer, te, idx)
			}
		}
		w.exports[i] = enc.exports
	}
	if root >= 0 {
		mp := w.plan.modules[root]
		if err := outer.declareTypes(mp.mod); err != nil {
			return 0, typeErr(mp.mod.Interface, err)
		}
		for _, fp := range mp.funcs {
			ft, err := outer.funcType(fp.Func)
			if err != nil {
				return 0, typeErr(fp.Identity, err)
			}
			it.Export(fp.Name, component.FuncDesc(ft))
		}
		w.exports[root] = outer.exports
	}
	return w.asm.Type(it.Bytes()), nil
}

func mapType(e *typeEncoder, te typeExport, idx uint32) {
	if te.resource {
		e.resources[te.shape.ID] = idx
	} else {
		e.named[te.shape] = idx
	}
}

// aliasInterfaces brings each interface instance and its types into the
// top-level scope.
func (w *wrapper) aliasInterfaces(hostInst uint32) {
	for i, mp := range w.plan.modules {
		src := hostInst
		if mp.mod.Interface != stubgen.RootModule {
			src = w.asm.AliasExport(hostInst, mp.mod.Interface, component.SortInstance, 0)
		}
		w.source[i] = src
		for _, te := range w.exports[i] {
			idx := w.asm.AliasExport(src, te.name, component.SortType, 0)
			w.types[i] = append(w.types[i], component.Item{Name: te.name, Sort: component.SortType, Index: idx})
			if te.primary {
				mapType(w.top, te, idx)
			}
		}
	}
}

// stubs lowers every host function, instantiates the stub modules against
// them and lifts their exports.
func (w *wrapper) stubs(alloc uint32) error {
	var hostItems, dropItems []component.CoreItem
	dropped := make(map[resolve.TypeID]bool)
	for i, mp := range w.plan.modules {
		for _, fp := range mp.funcs {
			fn := w.asm.AliasExport(w.source[i], fp.Name, component.SortFunc, 0)
			var opts []component.CanonOpt
			if fp.memory {
				opts = []component.CanonOpt{component.UTF8(), component.Memory(w.memory), component.Realloc(w.realloc)}
			}
			hostItems = append(hostItems, component.CoreItem{
				Name:  fp.Identity,
				Sort:  component.CoreSortFunc,
				Index: w.asm.Lower(fn, opts...),
			})
		}
		for _, ref := range mp.drops {
			if dropped[ref.id] {
				continue
			}
			dropped[ref.id] = true
			r, ok := w.top.resources[ref.id]
			if !ok {
				return &errors.CompositionError{Detail: fmt.Sprintf("resource %s has no type in the wrapper", ref.name)}
			}
			dropItems = append(dropItems, component.CoreItem{
				Name:  ref.dropName(),
				Sort:  component.CoreSortFunc,
				Index: w.asm.ResourceDrop(r),
			})
		}
	}
	hostCore := w.asm.CoreInstance(hostItems...)
	var dropCore uint32
	if len(dropItems) > 0 {
		dropCore = w.asm.CoreInstance(dropItems...)
	}

	for i, mp := range w.plan.modules {
		args := []component.CoreArg{{Name: HostModule, Instance: hostCore}}
		if len(mp.drops) > 0 {
			args = append(args, component.CoreArg{Name: ResourceModule, Instance: dropCore})
		}
		if mp.memory {
			args = append(args, component.CoreArg{Name: AllocatorModule, Instance: alloc})
		}
		w.modules[i] = w.asm.CoreModule(mp.binary)
		inst := w.asm.CoreInstantiate(w.modules[i], args...)

		w.lifted[i] = make(map[string]uint32, len(mp.funcs))
		for _, fp := range mp.funcs {
			core := w.asm.AliasCoreExport(inst, fp.Identity, component.CoreSortFunc)
			var opts []component.CanonOpt
			if fp.memory {
				post := w.asm.AliasCoreExport(inst, component.PostReturnPrefix+fp.Identity, component.CoreSortFunc)
				opts = []component.CanonOpt{
					component.UTF8(), component.Memory(w.memory), component.Realloc(w.realloc), component.PostReturn(post),
				}
			}
			ft, err := w.top.funcType(fp.Func)
			if err != nil {
				return typeErr(fp.Identity, err)
			}
			w.lifted[i][fp.Identity] = w.asm.Lift(core, ft, opts...)
		}
	}
	return nil
}

// argument returns the definition passed to the original for b.
func (w *wrapper) argument(b binding, host map[string]component.Item) (component.Item, error) {
	name := b.imp.Name
	if b.module < 0 {
		it := host[name]
		it.Name = name
		return it, nil
	}
	switch b.imp.ExternKind {
	case component.ExternInstance:
		return component.Item{Name: name, Sort: component.SortInstance, Index: w.supplied[b.module]}, nil
	case component.ExternFunc:
		if idx, ok := w.lifted[b.module][b.name]; ok {
			return component.Item{Name: name, Sort: component.SortFunc, Index: idx}, nil
		}
	case component.ExternType:
		for _, it := range w.types[b.module] {
			if it.Name == b.name {
				return component.Item{Name: name, Sort: component.SortType, Index: it.Index}, nil
			}
		}
	}
	return component.Item{}, &errors.CompositionError{
		Detail: fmt.Sprintf("%s import %s has no definition in the wrapper", b.imp.Kind(), name),
	}
}

func typeErr(where string, err error) error {
	return &errors.CompositionError{Cause: err, Detail: "encode types of " + where}
}
