package component

// AppendULEB128 appends v in unsigned LEB128 form.
func AppendULEB128(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// AppendSLEB128 appends v in signed LEB128 form, as used by var_s33 value
// type indexes.
func AppendSLEB128(dst []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// AppendName appends a length-prefixed UTF-8 name.
func AppendName(dst []byte, name string) []byte {
	dst = AppendULEB128(dst, uint32(len(name)))
	return append(dst, name...)
}

// AppendSection appends a section with its id and size prefix.
func AppendSection(dst []byte, id byte, data []byte) []byte {
	dst = append(dst, id)
	dst = AppendULEB128(dst, uint32(len(data)))
	return append(dst, data...)
}

// AppendCustomSection appends a custom section named name.
func AppendCustomSection(dst []byte, name string, data []byte) []byte {
	return AppendSection(dst, SectionCustom, append(AppendName(nil, name), data...))
}

func appendExternDesc(dst []byte, kind byte, index uint32) []byte {
	dst = append(dst, kind)
	switch kind {
	case ExternCoreModule:
		dst = append(dst, 0x11)
	case ExternType, ExternValue:
		dst = append(dst, 0x00)
	}
	return AppendULEB128(dst, index)
}

// Builder assembles a component binary section by section. Sections are
// written in the order they are added.
type Builder struct {
	sections []Section
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Section adds a raw section.
func (b *Builder) Section(id byte, data []byte) *Builder {
	b.sections = append(b.sections, Section{ID: id, Data: data})
	return b
}

// CoreModule embeds a core module binary.
func (b *Builder) CoreModule(module []byte) *Builder {
	return b.Section(SectionCoreModule, module)
}

// Component embeds a nested component binary.
func (b *Builder) Component(binary []byte) *Builder {
	return b.Section(SectionComponent, binary)
}

// Custom adds a custom section.
func (b *Builder) Custom(name string, data []byte) *Builder {
	return b.Section(SectionCustom, append(AppendName(nil, name), data...))
}

// Types adds one type section holding the encoded type definitions.
func (b *Builder) Types(defs ...[]byte) *Builder {
	data := AppendULEB128(nil, uint32(len(defs)))
	for _, def := range defs {
		data = append(data, def...)
	}
	return b.Section(SectionType, data)
}

// Imports adds one import section holding imports.
func (b *Builder) Imports(imports ...Import) *Builder {
	data := AppendULEB128(nil, uint32(len(imports)))
	for _, imp := range imports {
		if imp.Versioned {
			data = append(data, 0x01)
		} else {
			data = append(data, 0x00)
		}
		data = AppendName(data, imp.Name)
		data = appendExternDesc(data, imp.ExternKind, imp.TypeIndex)
	}
	return b.Section(SectionImport, data)
}

// Exports adds one export section holding exports.
func (b *Builder) Exports(exports ...Export) *Builder {
	data := AppendULEB128(nil, uint32(len(exports)))
	for _, exp := range exports {
		data = append(data, 0x00)
		data = AppendName(data, exp.Name)
		data = append(data, exp.Sort)
		if exp.Sort == SortCore {
			data = append(data, exp.CoreSort)
		}
		data = AppendULEB128(data, exp.SortIndex)
		if exp.HasType {
			data = append(data, 0x01)
			data = appendExternDesc(data, exp.ExternKind, exp.TypeIndex)
		} else {
			data = append(data, 0x00)
		}
	}
	return b.Section(SectionExport, data)
}

// Bytes returns the binary: Preamble followed by every section.
func (b *Builder) Bytes() []byte {
	out := append([]byte(nil), Preamble[:]...)
	for _, s := range b.sections {
		out = AppendSection(out, s.ID, s.Data)
	}
	return out
}
