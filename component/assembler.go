package component

type space uint8

const (
	spaceCoreFunc space = iota
	spaceCoreTable
	spaceCoreMemory
	spaceCoreGlobal
	spaceCoreType
	spaceCoreModule
	spaceCoreInstance
	spaceFunc
	spaceValue
	spaceType
	spaceComponent
	spaceInstance
	numSpaces
)

func sortSpace(sort, coreSort byte) space {
	if sort != SortCore {
		return spaceFunc + space(sort-SortFunc)
	}
	switch coreSort {
	case CoreSortFunc, CoreSortTable, CoreSortMemory, CoreSortGlobal:
		return spaceCoreFunc + space(coreSort)
	case CoreSortType:
		return spaceCoreType
	case CoreSortModule:
		return spaceCoreModule
	}
	return spaceCoreInstance
}

func externSpace(kind byte) space {
	if kind == ExternCoreModule {
		return spaceCoreModule
	}
	return sortSpace(kind, 0)
}

func appendSortIdx(dst []byte, sort, coreSort byte, index uint32) []byte {
	dst = append(dst, sort)
	if sort == SortCore {
		dst = append(dst, coreSort)
	}
	return AppendULEB128(dst, index)
}

// CanonOpt is an encoded canonical ABI option.
type CanonOpt []byte

func UTF8() CanonOpt { return CanonOpt{0x00} }

func Memory(index uint32) CanonOpt { return AppendULEB128([]byte{0x03}, index) }

func Realloc(index uint32) CanonOpt { return AppendULEB128([]byte{0x04}, index) }

func PostReturn(index uint32) CanonOpt { return AppendULEB128([]byte{0x05}, index) }

func appendOpts(dst []byte, opts []CanonOpt) []byte {
	dst = AppendULEB128(dst, uint32(len(opts)))
	for _, o := range opts {
		dst = append(dst, o...)
	}
	return dst
}

// CoreArg passes a core instance to a core module instantiation.
type CoreArg struct {
	Name     string
	Instance uint32
}

// CoreItem is a named core definition.
type CoreItem struct {
	Name  string
	Sort  byte
	Index uint32
}

// Item is a named component-level definition. CoreSort is read only when
// Sort is SortCore.
type Item struct {
	Name     string
	Sort     byte
	CoreSort byte
	Index    uint32
}

// Assembler appends component-level definitions in order and returns the
// index each definition receives in its index space. Consecutive entries
// of the same vector section share one section.
type Assembler struct {
	sections []Section
	open     byte
	count    uint32
	data     []byte
	next     [numSpaces]uint32
}

func NewAssembler() *Assembler {
	return &Assembler{open: SectionCustom}
}

func (a *Assembler) flush() {
	if a.open != SectionCustom {
		data := append(AppendULEB128(nil, a.count), a.data...)
		a.sections = append(a.sections, Section{ID: a.open, Data: data})
	}
	a.open, a.count, a.data = SectionCustom, 0, nil
}

func (a *Assembler) entry(id byte, data []byte) {
	if a.open != id {
		a.flush()
		a.open = id
	}
	a.count++
	a.data = append(a.data, data...)
}

func (a *Assembler) single(id byte, data []byte) {
	a.flush()
	a.sections = append(a.sections, Section{ID: id, Data: data})
}

func (a *Assembler) alloc(s space) uint32 {
	a.next[s]++
	return a.next[s] - 1
}

// Type defines a type and returns its index.
func (a *Assembler) Type(def []byte) uint32 {
	a.entry(SectionType, def)
	return a.alloc(spaceType)
}

// Import declares an import described by desc.
func (a *Assembler) Import(name string, desc []byte) uint32 {
	a.entry(SectionImport, append(AppendName([]byte{0x00}, name), desc...))
	return a.alloc(externSpace(desc[0]))
}

// AliasExport aliases an export of a component instance.
func (a *Assembler) AliasExport(instance uint32, name string, sort, coreSort byte) uint32 {
	data := []byte{sort}
	if sort == SortCore {
		data = append(data, coreSort)
	}
	data = AppendULEB128(append(data, 0x00), instance)
	a.entry(SectionAlias, AppendName(data, name))
	return a.alloc(sortSpace(sort, coreSort))
}

// AliasCoreExport aliases an export of a core instance.
func (a *Assembler) AliasCoreExport(instance uint32, name string, coreSort byte) uint32 {
	data := AppendULEB128([]byte{SortCore, coreSort, 0x01}, instance)
	a.entry(SectionAlias, AppendName(data, name))
	return a.alloc(sortSpace(SortCore, coreSort))
}

// CoreModule embeds a core module.
func (a *Assembler) CoreModule(module []byte) uint32 {
	a.single(SectionCoreModule, module)
	return a.alloc(spaceCoreModule)
}

// CoreInstantiate instantiates a core module.
func (a *Assembler) CoreInstantiate(module uint32, args ...CoreArg) uint32 {
	data := AppendULEB128([]byte{0x00}, module)
	data = AppendULEB128(data, uint32(len(args)))
	for _, arg := range args {
		data = AppendName(data, arg.Name)
		data = AppendULEB128(append(data, CoreSortInstance), arg.Instance)
	}
	a.entry(SectionCoreInstance, data)
	return a.alloc(spaceCoreInstance)
}

// CoreInstance bundles core definitions into a core instance.
func (a *Assembler) CoreInstance(items ...CoreItem) uint32 {
	data := AppendULEB128([]byte{0x01}, uint32(len(items)))
	for _, it := range items {
		data = AppendName(data, it.Name)
		data = AppendULEB128(append(data, it.Sort), it.Index)
	}
	a.entry(SectionCoreInstance, data)
	return a.alloc(spaceCoreInstance)
}

// Lower lowers a component function into a core function.
func (a *Assembler) Lower(fn uint32, opts ...CanonOpt) uint32 {
	data := AppendULEB128([]byte{0x01, 0x00}, fn)
	a.entry(SectionCanon, appendOpts(data, opts))
	return a.alloc(spaceCoreFunc)
}

// Lift lifts a core function to the component function type at typeIndex.
func (a *Assembler) Lift(coreFn, typeIndex uint32, opts ...CanonOpt) uint32 {
	data := AppendULEB128([]byte{0x00, 0x00}, coreFn)
	data = appendOpts(data, opts)
	a.entry(SectionCanon, AppendULEB128(data, typeIndex))
	return a.alloc(spaceFunc)
}

// ResourceDrop defines the core function dropping handles of resource.
func (a *Assembler) ResourceDrop(resource uint32) uint32 {
	a.entry(SectionCanon, AppendULEB128([]byte{0x03}, resource))
	return a.alloc(spaceCoreFunc)
}

// Component embeds a nested component.
func (a *Assembler) Component(binary []byte) uint32 {
	a.single(SectionComponent, binary)
	return a.alloc(spaceComponent)
}

// Instantiate instantiates a nested component with named arguments.
func (a *Assembler) Instantiate(component uint32, args ...Item) uint32 {
	data := AppendULEB128([]byte{0x00}, component)
	data = AppendULEB128(data, uint32(len(args)))
	for _, arg := range args {
		data = AppendName(data, arg.Name)
		data = appendSortIdx(data, arg.Sort, arg.CoreSort, arg.Index)
	}
	a.entry(SectionInstance, data)
	return a.alloc(spaceInstance)
}

// Instance bundles definitions into a component instance.
func (a *Assembler) Instance(items ...Item) uint32 {
	data := AppendULEB128([]byte{0x01}, uint32(len(items)))
	for _, it := range items {
		data = AppendName(append(data, 0x00), it.Name)
		data = appendSortIdx(data, it.Sort, it.CoreSort, it.Index)
	}
	a.entry(SectionInstance, data)
	return a.alloc(spaceInstance)
}

// Export exports a definition without a type ascription.
func (a *Assembler) Export(it Item) uint32 {
	data := AppendName([]byte{0x00}, it.Name)
	data = appendSortIdx(data, it.Sort, it.CoreSort, it.Index)
	a.entry(SectionExport, append(data, 0x00))
	return a.alloc(sortSpace(it.Sort, it.CoreSort))
}

// Custom adds a custom section.
func (a *Assembler) Custom(name string, data []byte) {
	a.single(SectionCustom, append(AppendName(nil, name), data...))
}

// Bytes returns the binary: Preamble followed by every section.
func (a *Assembler) Bytes() []byte {
	a.flush()
	out := append([]byte(nil), Preamble[:]...)
	for _, s := range a.sections {
		out = AppendSection(out, s.ID, s.Data)
	}
	return out
}
