package stubgen

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/errors"
	"github.com/golemcloud/golem-cloud-cli/resolve"
	"github.com/golemcloud/golem-cloud-cli/rpc"
)

// Options controls code generation.
type Options struct {
	// SkipSource disables Go source emission; only the stub model is built.
	SkipSource bool
}

// Generator builds stubs for the imports of a world in a resolved graph.
type Generator struct {
	g    *resolve.Graph
	m    *canon.Mapper
	opts Options
}

// New creates a generator. m must map types of g.
func New(g *resolve.Graph, m *canon.Mapper, opts Options) *Generator {
	return &Generator{g: g, m: m, opts: opts}
}

// Generate produces one module per imported interface, dependencies
// first, plus a RootModule for world-level imported functions. Interfaces
// pulled in through use get full modules marked Implicit. Exported items
// are listed as pass-through and get no stub.
func (gen *Generator) Generate(world string) (*Output, error) {
	w, err := gen.g.World(world)
	if err != nil {
		return nil, err
	}
	out := &Output{World: w.Identity()}
	pkgs := make(nameSet)

	for _, iface := range gen.g.ImportedInterfaces(w) {
		mod := gen.interfaceModule(iface)
		mod.Implicit = !gen.g.ImportsExplicitly(w, iface)
		mod.GoPackage = pkgs.claim(mod.Interface, packageName(iface.Name), packageName(iface.Package.Identity()))
		out.Modules = append(out.Modules, mod)
	}

	var rootFuncs []*resolve.Function
	for _, item := range w.Imports {
		if item.Func != nil {
			rootFuncs = append(rootFuncs, item.Func)
		}
	}
	if len(rootFuncs) > 0 {
		mod := &Module{Interface: RootModule, Name: RootModule}
		for _, f := range rootFuncs {
			mod.Funcs = append(mod.Funcs, gen.stub(f))
		}
		mod.Types = gen.typeDecls(w.Types, w.Used(), w.Lookup)
		mod.GoPackage = pkgs.claim(RootModule, packageName(w.Name), "imports")
		out.Modules = append(out.Modules, mod)
	}

	for _, item := range w.Exports {
		out.PassThrough = append(out.PassThrough, item.Name)
	}

	if !gen.opts.SkipSource {
		for _, mod := range out.Modules {
			src, err := gen.emit(mod)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidData, err,
					fmt.Sprintf("emit Go source for %s", mod.Interface))
			}
			mod.Source = src
		}
	}

	Logger().Debug("generated stubs",
		zap.String("world", out.World),
		zap.Int("modules", len(out.Modules)),
		zap.Int("pass_through", len(out.PassThrough)))
	return out, nil
}

func (gen *Generator) interfaceModule(iface *resolve.Interface) *Module {
	mod := &Module{Interface: iface.Identity(), Name: iface.Name}
	for _, f := range iface.Funcs {
		mod.Funcs = append(mod.Funcs, gen.stub(f))
	}
	for _, id := range iface.Types {
		def := gen.g.Type(id)
		if def.Kind != resolve.DefResource {
			continue
		}
		res := &Resource{Name: def.Name, Handle: gen.m.ShapeOfDef(id)}
		for _, f := range def.Methods {
			stub := gen.stub(f)
			mod.Funcs = append(mod.Funcs, stub)
			if f.Kind == resolve.FuncConstructor {
				res.Constructor = stub
			} else {
				res.Methods = append(res.Methods, stub)
			}
		}
		res.Drop = gen.dropStub(iface, def, res.Handle)
		mod.Funcs = append(mod.Funcs, res.Drop)
		mod.Resources = append(mod.Resources, res)
	}
	mod.Types = gen.typeDecls(iface.Types, iface.Used(), iface.Lookup)
	return mod
}

// typeDecls lists the non-resource declarations, then the used names.
func (gen *Generator) typeDecls(declared []resolve.TypeID, used []string, lookup func(string) (resolve.TypeID, bool)) []TypeDecl {
	var out []TypeDecl
	for _, id := range declared {
		if def := gen.g.Type(id); def.Kind != resolve.DefResource {
			out = append(out, TypeDecl{Name: def.Name, Shape: gen.m.ShapeOfDef(id)})
		}
	}
	for _, name := range used {
		if id, ok := lookup(name); ok {
			out = append(out, TypeDecl{Name: name, Shape: gen.m.ShapeOfDef(id), Used: true})
		}
	}
	return out
}

func (gen *Generator) stub(f *resolve.Function) *Func {
	stub := &Func{
		Identity: gen.g.FuncIdentity(f),
		Name:     gen.g.WITName(f),
		Kind:     FuncKind(f.Kind),
		Result:   gen.m.ShapeOf(f.Result),
	}
	if f.Resource >= 0 {
		stub.Resource = gen.g.Type(f.Resource).Name
	}
	shapes := gen.m.Params(f)
	for i, p := range f.Params {
		stub.Params = append(stub.Params, Param{Name: p.Name, Shape: shapes[i]})
	}
	stub.ErrorChannel = rpc.HasErrorChannel(stub.Result)
	stub.Sig = canon.FlattenFunc(shapes, stub.Result)
	return stub
}

func (gen *Generator) dropStub(iface *resolve.Interface, def *resolve.TypeDef, own *canon.Shape) *Func {
	name := "[drop]" + def.Name
	params := []*canon.Shape{own}
	return &Func{
		Identity: iface.Identity() + "." + name,
		Name:     name,
		Kind:     FuncDrop,
		Resource: def.Name,
		Params:   []Param{{Name: "self", Shape: own}},
		Sig:      canon.FlattenFunc(params, nil),
	}
}
