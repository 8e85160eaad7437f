package component

import (
	"github.com/tetratelabs/wazero/api"
)

// Names exported by the allocator module and by forwarders that use it.
const (
	AllocMemory      = "memory"
	AllocRealloc     = "cabi_realloc"
	AllocReset       = "reset"
	PostReturnPrefix = "cabi_post_"
)

// CoreModuleBuilder builds a core module that imports functions from a
// host module and re-exports each one under the name it was imported by.
// Every export body forwards its parameters to the import unchanged.
type CoreModuleBuilder struct {
	hostModuleName string
	allocator      string
	resources      string
	funcs          []Forward
}

// Forward describes one forwarding function.
type Forward struct {
	Name    string
	Params  []api.ValueType // flat parameters, without a return area pointer
	Results []api.ValueType
	// ReturnArea, when Size is non-zero, makes the import take a trailing
	// pointer to a result area. The export allocates the area and returns
	// the pointer instead of results.
	ReturnArea ReturnArea
	// Release lists parameters holding borrowed handles; each is dropped
	// after the call through an import of the resource module.
	Release []Release
	// PostReturn exports PostReturnPrefix+Name, which resets the allocator.
	PostReturn bool
}

type ReturnArea struct {
	Size  uint32
	Align uint32
}

type Release struct {
	Param int
	Drop  string
}

// NewCoreModuleBuilder creates a builder importing from hostModuleName.
func NewCoreModuleBuilder(hostModuleName string) *CoreModuleBuilder {
	return &CoreModuleBuilder{hostModuleName: hostModuleName}
}

// WithAllocator imports memory, AllocRealloc and AllocReset from module.
func (b *CoreModuleBuilder) WithAllocator(module string) *CoreModuleBuilder {
	b.allocator = module
	return b
}

// WithResources names the module Release drops are imported from.
func (b *CoreModuleBuilder) WithResources(module string) *CoreModuleBuilder {
	b.resources = module
	return b
}

// AddFunc adds a function to import and re-export.
func (b *CoreModuleBuilder) AddFunc(name string, params, results []api.ValueType) {
	b.Add(Forward{Name: name, Params: params, Results: results})
}

// Add adds a forwarding function.
func (b *CoreModuleBuilder) Add(f Forward) {
	b.funcs = append(b.funcs, f)
}

// Len returns the number of functions added.
func (b *CoreModuleBuilder) Len() int { return len(b.funcs) }

// coreLayout assigns type and function indexes. Imported functions come
// first: one per forward, then resource drops, then the allocator's
// realloc and reset. Forwarders and post-return functions follow.
type coreLayout struct {
	types     [][]byte
	typeIndex map[string]uint32
	drops     []string
	dropIndex map[string]uint32
	realloc   uint32
	reset     uint32
	imported  uint32
}

func (l *coreLayout) funcType(params, results []api.ValueType) uint32 {
	t := []byte{0x60}
	t = AppendULEB128(t, uint32(len(params)))
	for _, p := range params {
		t = append(t, valTypeToWasm(p))
	}
	t = AppendULEB128(t, uint32(len(results)))
	for _, r := range results {
		t = append(t, valTypeToWasm(r))
	}
	if idx, ok := l.typeIndex[string(t)]; ok {
		return idx
	}
	idx := uint32(len(l.types))
	l.types = append(l.types, t)
	l.typeIndex[string(t)] = idx
	return idx
}

var i32 = []api.ValueType{api.ValueTypeI32}

func (f *Forward) importSig() (params, results []api.ValueType) {
	if f.ReturnArea.Size == 0 {
		return f.Params, f.Results
	}
	return append(append([]api.ValueType(nil), f.Params...), api.ValueTypeI32), nil
}

func (f *Forward) exportSig() (params, results []api.ValueType) {
	if f.ReturnArea.Size == 0 {
		return f.Params, f.Results
	}
	return f.Params, i32
}

// Build generates the module bytes.
func (b *CoreModuleBuilder) Build() []byte {
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if len(b.funcs) == 0 {
		return wasm
	}

	l := &coreLayout{typeIndex: make(map[string]uint32), dropIndex: make(map[string]uint32)}
	imports := AppendULEB128(nil, 0)
	var nimports uint32
	importFunc := func(module, name string, typeIdx uint32) {
		imports = AppendName(imports, module)
		imports = AppendName(imports, name)
		imports = AppendULEB128(append(imports, 0x00), typeIdx)
		nimports++
		l.imported++
	}
	for i := range b.funcs {
		params, results := b.funcs[i].importSig()
		importFunc(b.hostModuleName, b.funcs[i].Name, l.funcType(params, results))
	}
	for _, f := range b.funcs {
		for _, r := range f.Release {
			if _, ok := l.dropIndex[r.Drop]; ok {
				continue
			}
			l.dropIndex[r.Drop] = l.imported
			l.drops = append(l.drops, r.Drop)
			importFunc(b.resources, r.Drop, l.funcType(i32, nil))
		}
	}
	if b.allocator != "" {
		imports = AppendName(imports, b.allocator)
		imports = AppendName(imports, AllocMemory)
		imports = append(imports, 0x02, 0x00, 0x00)
		nimports++
		l.realloc = l.imported
		importFunc(b.allocator, AllocRealloc, l.funcType([]api.ValueType{
			api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
		}, i32))
		l.reset = l.imported
		importFunc(b.allocator, AllocReset, l.funcType(nil, nil))
	}
	imports = append(AppendULEB128(nil, nimports), imports[1:]...)

	var funcs, exports, code []byte
	var nfuncs, nexports uint32
	define := func(name string, typeIdx uint32, body []byte) {
		funcs = AppendULEB128(funcs, typeIdx)
		exports = AppendName(exports, name)
		exports = AppendULEB128(append(exports, 0x00), l.imported+nfuncs)
		code = AppendULEB128(code, uint32(len(body)))
		code = append(code, body...)
		nfuncs++
		nexports++
	}
	for i, f := range b.funcs {
		params, results := f.exportSig()
		define(f.Name, l.funcType(params, results), b.forwardBody(l, i))
	}
	for _, f := range b.funcs {
		if !f.PostReturn {
			continue
		}
		_, results := f.exportSig()
		body := AppendULEB128([]byte{0x00, 0x10}, l.reset)
		define(PostReturnPrefix+f.Name, l.funcType(results, nil), append(body, 0x0b))
	}

	types := AppendULEB128(nil, uint32(len(l.types)))
	for _, t := range l.types {
		types = append(types, t...)
	}
	wasm = AppendSection(wasm, 0x01, types)
	wasm = AppendSection(wasm, 0x02, imports)
	wasm = AppendSection(wasm, 0x03, append(AppendULEB128(nil, nfuncs), funcs...))
	wasm = AppendSection(wasm, 0x07, append(AppendULEB128(nil, nexports), exports...))
	wasm = AppendSection(wasm, 0x0a, append(AppendULEB128(nil, nfuncs), code...))
	return wasm
}

func (b *CoreModuleBuilder) forwardBody(l *coreLayout, i int) []byte {
	f := b.funcs[i]
	area := uint32(len(f.Params))
	var body []byte
	if f.ReturnArea.Size == 0 {
		body = []byte{0x00}
	} else {
		// One i32 local holds the return area pointer.
		body = []byte{0x01, 0x01, 0x7f}
		body = append(body, 0x41, 0x00, 0x41, 0x00, 0x41)
		body = AppendSLEB128(body, int64(f.ReturnArea.Align))
		body = append(body, 0x41)
		body = AppendSLEB128(body, int64(f.ReturnArea.Size))
		body = AppendULEB128(append(body, 0x10), l.realloc)
		body = AppendULEB128(append(body, 0x21), area)
	}
	for j := range f.Params {
		body = AppendULEB128(append(body, 0x20), uint32(j))
	}
	if f.ReturnArea.Size != 0 {
		body = AppendULEB128(append(body, 0x20), area)
	}
	body = AppendULEB128(append(body, 0x10), uint32(i))
	for _, r := range f.Release {
		body = AppendULEB128(append(body, 0x20), uint32(r.Param))
		body = AppendULEB128(append(body, 0x10), l.dropIndex[r.Drop])
	}
	if f.ReturnArea.Size != 0 {
		body = AppendULEB128(append(body, 0x20), area)
	}
	return append(body, 0x0b)
}

// AllocatorModule returns a core module exporting a memory, a bump
// allocator with the cabi_realloc signature and a reset function that
// frees everything allocated since the previous reset. Address zero is
// never handed out.
func AllocatorModule() []byte {
	const base = 8
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	wasm = AppendSection(wasm, 0x01, []byte{
		0x02,
		0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f,
		0x60, 0x00, 0x00,
	})
	wasm = AppendSection(wasm, 0x03, []byte{0x02, 0x00, 0x01})
	wasm = AppendSection(wasm, 0x05, []byte{0x01, 0x00, 0x01})
	wasm = AppendSection(wasm, 0x06, []byte{0x01, 0x7f, 0x01, 0x41, base, 0x0b})

	exports := []byte{0x03}
	exports = append(AppendName(exports, AllocMemory), 0x02, 0x00)
	exports = append(AppendName(exports, AllocRealloc), 0x00, 0x00)
	exports = append(AppendName(exports, AllocReset), 0x00, 0x01)
	wasm = AppendSection(wasm, 0x07, exports)

	// cabi_realloc(old, oldSize, align, newSize): locals 4 = ptr, 5 = end.
	realloc := []byte{
		0x01, 0x02, 0x7f,
		0x23, 0x00, 0x20, 0x02, 0x6a, 0x41, 0x01, 0x6b, // bump + align - 1
		0x41, 0x00, 0x20, 0x02, 0x6b, 0x71, 0x21, 0x04, // & -align
		0x20, 0x04, 0x20, 0x03, 0x6a, 0x21, 0x05,
		0x02, 0x40,
		0x20, 0x05, 0x3f, 0x00, 0x41, 0x10, 0x74, 0x4d, 0x0d, 0x00,
		0x20, 0x05, 0x3f, 0x00, 0x41, 0x10, 0x74, 0x6b,
		0x41, 0xff, 0xff, 0x03, 0x6a, 0x41, 0x10, 0x76,
		0x40, 0x00, 0x41, 0x7f, 0x47, 0x0d, 0x00,
		0x00,
		0x0b,
		0x20, 0x05, 0x24, 0x00,
		0x20, 0x00,
		0x04, 0x40,
		0x20, 0x04, 0x20, 0x00,
		0x20, 0x01, 0x20, 0x03, 0x20, 0x01, 0x20, 0x03, 0x49, 0x1b, // min(oldSize, newSize)
		0xfc, 0x0a, 0x00, 0x00,
		0x0b,
		0x20, 0x04,
		0x0b,
	}
	reset := []byte{0x00, 0x41, base, 0x24, 0x00, 0x0b}

	code := []byte{0x02}
	code = append(AppendULEB128(code, uint32(len(realloc))), realloc...)
	code = append(AppendULEB128(code, uint32(len(reset))), reset...)
	return AppendSection(wasm, 0x0a, code)
}

func valTypeToWasm(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}
