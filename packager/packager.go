// Package packager composes a component binary with generated stubs.
//
// The composed artifact is a wrapping component. It nests the original
// unchanged, imports a single HostModule instance in place of every
// stubbed interface and world-level function, and satisfies the
// original's imports with functions lifted from one forwarding core
// module per stub module. Imports the platform provides itself are
// re-imported as they are; the original's exports are re-exported under
// the same names. A YAML manifest and optionally the generated Go sources
// travel in custom sections.
package packager

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/golemcloud/golem-cloud-cli/component"
	"github.com/golemcloud/golem-cloud-cli/errors"
	"github.com/golemcloud/golem-cloud-cli/stubgen"
)

const (
	// HostModule names the instance the wrapper imports in place of the
	// stubbed interfaces, and the core module stub imports resolve against.
	HostModule = "golem:rpc/invoke"
	// AllocatorModule and ResourceModule name the core modules providing
	// linear memory and resource drops to the stub modules.
	AllocatorModule = "golem:stubgen/alloc"
	ResourceModule  = "golem:stubgen/resource"
	// ManifestSection names the custom section holding the manifest.
	ManifestSection = "golem:stubgen/manifest"
	// SourceSectionPrefix prefixes custom sections holding Go sources.
	SourceSectionPrefix = "golem:stubgen/source/"
)

// Options controls composition.
type Options struct {
	// HostImports lists path.Match patterns for imports the platform
	// provides itself, e.g. "wasi:*/*". Matching imports need no stub.
	HostImports []string
	// EmbedSource stores each module's Go source in a custom section.
	EmbedSource bool
}

// Packager composes artifacts. It is safe for concurrent use.
type Packager struct {
	opts Options
}

func New(opts Options) *Packager {
	return &Packager{opts: opts}
}

// Artifact is a composed component.
type Artifact struct {
	Binary   []byte
	Manifest *Manifest
	// Modules holds the synthesized core modules in Manifest entry order.
	Modules [][]byte
}

// Compose wraps original so that every import covered by a stub module is
// served through HostModule. It fails with *errors.CompositionError when an
// import of original is not covered by a stub module or the host, when a
// stub cannot be forwarded, or when the wrapper's surface differs from
// the original's; no artifact is returned in that case.
func (p *Packager) Compose(ctx context.Context, original []byte, out *stubgen.Output) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	comp, err := component.Decode(original)
	if err != nil {
		return nil, &errors.CompositionError{Cause: err, Detail: "original binary is not a valid component"}
	}

	bindings, covers, err := p.coverage(comp, out)
	if err != nil {
		return nil, err
	}

	pl, err := newPlan(out)
	if err != nil {
		return nil, err
	}
	modules, err := synthesize(ctx, pl)
	if err != nil {
		return nil, err
	}

	w := newWrapper(pl)
	if err := w.build(comp, original, bindings, p.hostProvided); err != nil {
		return nil, err
	}

	manifest := &Manifest{
		World:       out.World,
		HostModule:  HostModule,
		PassThrough: out.PassThrough,
	}
	for i, mp := range pl.modules {
		entry := Entry{
			Interface: mp.mod.Interface,
			Imports:   covers[mp.mod],
			Module:    int(w.modules[i]),
			GoPackage: mp.mod.GoPackage,
			Implicit:  mp.mod.Implicit,
		}
		for _, fp := range mp.funcs {
			entry.Functions = append(entry.Functions, Function{
				Identity: fp.Identity,
				Params:   typeNames(fp.Sig.Params),
				Results:  typeNames(fp.Sig.Results),
				Indirect: fp.Sig.IndirectParams || fp.Sig.IndirectResult,
				Memory:   fp.memory,
			})
		}
		manifest.Entries = append(manifest.Entries, entry)
	}
	manifest.BuildID = buildID(original, out, modules)

	manifestData, err := manifest.Marshal()
	if err != nil {
		return nil, &errors.CompositionError{Cause: err, Detail: "encode manifest"}
	}
	w.asm.Custom(ManifestSection, manifestData)
	if p.opts.EmbedSource {
		for _, mod := range out.Modules {
			if len(mod.Source) > 0 {
				w.asm.Custom(SourceSectionPrefix+mod.GoPackage, mod.Source)
			}
		}
	}
	binary := w.asm.Bytes()

	if err := p.checkSurface(comp, original, binary); err != nil {
		return nil, err
	}

	Logger().Info("composed component",
		zap.String("world", out.World),
		zap.String("build_id", manifest.BuildID),
		zap.Int("stub_modules", len(modules)),
		zap.Int("size", len(binary)))
	return &Artifact{Binary: binary, Manifest: manifest, Modules: modules}, nil
}

// coverage decides how each import of the original is satisfied and maps
// each stub module to the instance and function imports it covers. Every
// import neither a stub module nor the host provides is reported.
func (p *Packager) coverage(comp *component.Component, out *stubgen.Output) ([]binding, map[*stubgen.Module][]string, error) {
	covers := make(map[*stubgen.Module][]string)
	var bindings []binding
	var uncovered []errors.UncoveredImport
	for _, imp := range comp.Imports {
		if i, name := coveringModule(imp, out); i >= 0 {
			bindings = append(bindings, binding{imp: imp, module: i, name: name})
			if imp.ExternKind != component.ExternType {
				covers[out.Modules[i]] = append(covers[out.Modules[i]], imp.Name)
			}
			continue
		}
		if p.hostProvided(imp.Name) {
			Logger().Debug("import left to host", zap.String("import", imp.Name))
			bindings = append(bindings, binding{imp: imp, module: -1})
			continue
		}
		uncovered = append(uncovered, errors.UncoveredImport{Name: imp.Name, Kind: imp.Kind()})
	}
	if len(uncovered) > 0 {
		return nil, nil, &errors.CompositionError{Uncovered: uncovered}
	}
	return bindings, covers, nil
}

// coveringModule returns the index of the stub module satisfying imp and
// the name imp is looked up by inside it, or -1.
func coveringModule(imp component.Import, out *stubgen.Output) (int, string) {
	for i, mod := range out.Modules {
		switch imp.ExternKind {
		case component.ExternFunc:
			if mod.Interface == stubgen.RootModule && mod.Func(imp.Name) != nil {
				return i, imp.Name
			}
		case component.ExternInstance:
			if mod.Interface == stubgen.RootModule {
				continue
			}
			if imp.Name == mod.Interface || trimVersion(imp.Name) == trimVersion(mod.Interface) || imp.Name == mod.Name {
				return i, mod.Interface
			}
		case component.ExternType:
			if mod.Interface == stubgen.RootModule {
				for _, decl := range mod.Types {
					if decl.Name == imp.Name {
						return i, imp.Name
					}
				}
			}
			if mod.Resource(imp.Name) != nil {
				return i, imp.Name
			}
		}
	}
	return -1, ""
}

func (p *Packager) hostProvided(name string) bool {
	for _, pattern := range p.opts.HostImports {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// synthesize builds one forwarding core module per stub module and checks
// each compiles, together with the allocator when any stub needs memory.
// Modules are compiled concurrently; the result order follows the plan.
func synthesize(ctx context.Context, pl *plan) ([][]byte, error) {
	modules := make([][]byte, len(pl.modules))
	for i, mp := range pl.modules {
		b := component.NewCoreModuleBuilder(HostModule)
		if mp.memory {
			b.WithAllocator(AllocatorModule)
		}
		if len(mp.drops) > 0 {
			b.WithResources(ResourceModule)
		}
		for _, fp := range mp.funcs {
			b.Add(fp.forward)
		}
		mp.binary = b.Build()
		modules[i] = mp.binary
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	compile := func(gctx context.Context, name string, bin []byte) error {
		compiled, err := rt.CompileModule(gctx, bin)
		if err != nil {
			return &errors.CompositionError{Cause: err, Detail: name + " does not validate"}
		}
		return compiled.Close(gctx)
	}
	g, gctx := errgroup.WithContext(ctx)
	if pl.memory {
		g.Go(func() error { return compile(gctx, "allocator module", component.AllocatorModule()) })
	}
	for i, bin := range modules {
		iface := pl.modules[i].mod.Interface
		g.Go(func() error { return compile(gctx, "stub module for "+iface, bin) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return modules, nil
}

// checkSurface re-decodes the composed binary. Its imports must be
// HostModule or host-provided imports of the original, its exports must
// match the original's by name and sort, and it must nest exactly one
// component: the original, byte for byte. Export sections cannot compare
// byte for byte because the wrapper re-exports aliases, whose indexes
// differ from the original's.
func (p *Packager) checkSurface(orig *component.Component, original, binary []byte) error {
	composed, err := component.Decode(binary)
	if err != nil {
		return &errors.CompositionError{Cause: err, Detail: "composed binary does not decode"}
	}
	for _, imp := range composed.Imports {
		if imp.Name == HostModule {
			continue
		}
		if !p.hostProvided(imp.Name) || !importsName(orig, imp.Name) {
			return &errors.CompositionError{Detail: "composed component imports " + imp.Name}
		}
	}
	if len(composed.Exports) != len(orig.Exports) {
		return &errors.CompositionError{Detail: "export surface changed"}
	}
	for i, e := range composed.Exports {
		want := orig.Exports[i]
		if e.Name != want.Name || e.Sort != want.Sort || (e.Sort == component.SortCore && e.CoreSort != want.CoreSort) {
			return &errors.CompositionError{Detail: "export " + want.Name + " changed"}
		}
	}
	nested := composed.Components()
	if len(nested) != 1 || !bytes.Equal(nested[0], original) {
		return &errors.CompositionError{Detail: "original component is not nested unchanged"}
	}
	return nil
}

func importsName(c *component.Component, name string) bool {
	for _, imp := range c.Imports {
		if imp.Name == name {
			return true
		}
	}
	return false
}

// buildID derives a UUID v5 from everything that determines the artifact.
func buildID(original []byte, out *stubgen.Output, modules [][]byte) string {
	var buf bytes.Buffer
	buf.Write(original)
	buf.WriteString(out.World)
	for i, mod := range out.Modules {
		buf.WriteString(mod.Interface)
		buf.Write(modules[i])
		buf.Write(mod.Source)
	}
	return uuidFor(buf.Bytes()).String()
}

func typeNames(types []api.ValueType) []string {
	if len(types) == 0 {
		return nil
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = api.ValueTypeName(t)
	}
	return out
}

func trimVersion(identity string) string {
	if i := strings.LastIndexByte(identity, '@'); i >= 0 {
		return identity[:i]
	}
	return identity
}
