package component

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/golemcloud/golem-cloud-cli/errors"
)

// maxSections bounds the section loop for malformed binaries.
const maxSections = 100000

// Decode parses a component binary. Section payloads alias data.
func Decode(data []byte) (*Component, error) {
	comp, err := decode(data)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCompose, errors.KindInvalidData, err, "decode component")
	}
	return comp, nil
}

func decode(data []byte) (*Component, error) {
	if !IsComponent(data) {
		return nil, fmt.Errorf("not a component")
	}
	comp := &Component{}
	copy(comp.Header[:], data[:8])

	r := getReader(data[8:])
	defer putReader(r)

	for sectionCount := 1; ; sectionCount++ {
		if sectionCount > maxSections {
			return nil, fmt.Errorf("exceeded maximum section count %d", maxSections)
		}

		sectionID, err := r.ReadByte()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read section ID: %w", err)
		}

		size, err := readLEB128(r)
		if err != nil {
			return nil, fmt.Errorf("read section size: %w", err)
		}
		if int(size) > r.Len() {
			return nil, fmt.Errorf("section %d size %d exceeds remaining %d bytes", sectionCount, size, r.Len())
		}

		start := len(data) - r.Len()
		sectionData := data[start : start+int(size)]
		if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("skip section data: %w", err)
		}
		comp.Sections = append(comp.Sections, Section{ID: sectionID, Data: sectionData})

		switch sectionID {
		case SectionCustom:
			custom, err := decodeCustomSection(sectionData)
			if err != nil {
				return nil, fmt.Errorf("decode custom section: %w", err)
			}
			comp.CustomSections = append(comp.CustomSections, custom)
		case SectionImport:
			imports, err := decodeImports(sectionData)
			if err != nil {
				return nil, fmt.Errorf("decode imports: %w", err)
			}
			comp.Imports = append(comp.Imports, imports...)
		case SectionExport:
			exports, err := decodeExports(sectionData)
			if err != nil {
				return nil, fmt.Errorf("decode exports: %w", err)
			}
			comp.Exports = append(comp.Exports, exports...)
		case SectionCoreModule, SectionCoreInstance, SectionCoreType, SectionComponent,
			SectionInstance, SectionAlias, SectionType, SectionCanon, SectionStart:
		default:
			return nil, fmt.Errorf("unknown section id 0x%02x", sectionID)
		}
	}

	return comp, nil
}

func decodeCustomSection(data []byte) (CustomSection, error) {
	r := getReader(data)
	defer putReader(r)

	name, err := readName(r)
	if err != nil {
		return CustomSection{}, fmt.Errorf("read custom section name: %w", err)
	}
	return CustomSection{
		Name: name,
		Data: data[len(data)-r.Len():],
	}, nil
}

func decodeImports(data []byte) ([]Import, error) {
	r := getReader(data)
	defer putReader(r)

	count, err := readLEB128(r)
	if err != nil {
		return nil, err
	}
	if int(count) > len(data) {
		return nil, fmt.Errorf("import count %d exceeds section size", count)
	}

	imports := make([]Import, 0, count)
	for i := range count {
		name, versioned, err := readExternName(r)
		if err != nil {
			return nil, fmt.Errorf("import %d: read name: %w", i, err)
		}
		kind, index, err := readExternDesc(r)
		if err != nil {
			return nil, fmt.Errorf("import %d (%s): %w", i, name, err)
		}
		imports = append(imports, Import{
			Name:       name,
			ExternKind: kind,
			TypeIndex:  index,
			Versioned:  versioned,
		})
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after imports", r.Len())
	}
	return imports, nil
}

func decodeExports(data []byte) ([]Export, error) {
	r := getReader(data)
	defer putReader(r)

	count, err := readLEB128(r)
	if err != nil {
		return nil, err
	}
	if int(count) > len(data) {
		return nil, fmt.Errorf("export count %d exceeds section size", count)
	}

	exports := make([]Export, 0, count)
	for i := range count {
		name, _, err := readExternName(r)
		if err != nil {
			return nil, fmt.Errorf("export %d: read name: %w", i, err)
		}
		exp := Export{Name: name}

		if exp.Sort, err = r.ReadByte(); err != nil {
			return nil, fmt.Errorf("export %d: read sort: %w", i, err)
		}
		if exp.Sort == SortCore {
			if exp.CoreSort, err = r.ReadByte(); err != nil {
				return nil, fmt.Errorf("export %d: read core sort: %w", i, err)
			}
		}
		if exp.SortIndex, err = readLEB128(r); err != nil {
			return nil, fmt.Errorf("export %d: read sort index: %w", i, err)
		}

		ascribed, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("export %d: read type ascription: %w", i, err)
		}
		switch ascribed {
		case 0x00:
		case 0x01:
			exp.HasType = true
			if exp.ExternKind, exp.TypeIndex, err = readExternDesc(r); err != nil {
				return nil, fmt.Errorf("export %d (%s): %w", i, name, err)
			}
		default:
			return nil, fmt.Errorf("export %d: invalid type ascription 0x%02x", i, ascribed)
		}
		exports = append(exports, exp)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after exports", r.Len())
	}
	return exports, nil
}
