package component

import (
	"encoding/binary"
)

// Preamble is the magic, version and layer of a component binary.
var Preamble = [8]byte{0x00, 0x61, 0x73, 0x6d, 0x0d, 0x00, 0x01, 0x00}

// Section ids
const (
	SectionCustom       byte = 0x00
	SectionCoreModule   byte = 0x01
	SectionCoreInstance byte = 0x02
	SectionCoreType     byte = 0x03
	SectionComponent    byte = 0x04
	SectionInstance     byte = 0x05
	SectionAlias        byte = 0x06
	SectionType         byte = 0x07
	SectionCanon        byte = 0x08
	SectionStart        byte = 0x09
	SectionImport       byte = 0x0a
	SectionExport       byte = 0x0b
)

// externDesc kinds
const (
	ExternCoreModule byte = 0x00
	ExternFunc       byte = 0x01
	ExternValue      byte = 0x02
	ExternType       byte = 0x03
	ExternComponent  byte = 0x04
	ExternInstance   byte = 0x05
)

// Sort kinds
const (
	SortCore      byte = 0x00
	SortFunc      byte = 0x01
	SortValue     byte = 0x02
	SortType      byte = 0x03
	SortComponent byte = 0x04
	SortInstance  byte = 0x05
)

// Core sorts
const (
	CoreSortFunc     byte = 0x00
	CoreSortTable    byte = 0x01
	CoreSortMemory   byte = 0x02
	CoreSortGlobal   byte = 0x03
	CoreSortType     byte = 0x10
	CoreSortModule   byte = 0x11
	CoreSortInstance byte = 0x12
)

var externNames = [...]string{
	ExternCoreModule: "module",
	ExternFunc:       "func",
	ExternValue:      "value",
	ExternType:       "type",
	ExternComponent:  "component",
	ExternInstance:   "instance",
}

// ExternName returns the text-format keyword for an externDesc or sort kind.
func ExternName(kind byte) string {
	if int(kind) < len(externNames) {
		return externNames[kind]
	}
	return "unknown"
}

// Component holds the decoded surface of a component binary. Sections
// holds every section in binary order, including the ones also parsed into
// Imports, Exports and CustomSections.
type Component struct {
	Header         [8]byte
	Sections       []Section
	Imports        []Import
	Exports        []Export
	CustomSections []CustomSection
}

// Section is one raw section.
type Section struct {
	ID   byte
	Data []byte
}

// Import is a component-level import. TypeIndex is zero for type imports
// bounded by sub resource.
type Import struct {
	Name       string
	ExternKind byte
	TypeIndex  uint32
	Versioned  bool
}

// Kind names the import's extern kind, e.g. "instance".
func (i Import) Kind() string { return ExternName(i.ExternKind) }

// Export is a component-level export. HasType reports whether the export
// carries an explicit type ascription.
type Export struct {
	Name       string
	Sort       byte
	CoreSort   byte
	SortIndex  uint32
	HasType    bool
	ExternKind byte
	TypeIndex  uint32
}

type CustomSection struct {
	Name string
	Data []byte
}

// CoreModules returns the number of embedded core module sections.
func (c *Component) CoreModules() int {
	n := 0
	for _, s := range c.Sections {
		if s.ID == SectionCoreModule {
			n++
		}
	}
	return n
}

// Components returns the payloads of the nested component sections.
func (c *Component) Components() [][]byte {
	var out [][]byte
	for _, s := range c.Sections {
		if s.ID == SectionComponent {
			out = append(out, s.Data)
		}
	}
	return out
}

// Custom returns the first custom section with the given name.
func (c *Component) Custom(name string) (CustomSection, bool) {
	for _, s := range c.CustomSections {
		if s.Name == name {
			return s, true
		}
	}
	return CustomSection{}, false
}

// Encode reassembles the binary from Header and Sections.
func (c *Component) Encode() []byte {
	out := append([]byte(nil), c.Header[:]...)
	for _, s := range c.Sections {
		out = AppendSection(out, s.ID, s.Data)
	}
	return out
}

// IsComponent reports whether data starts with a component preamble, as
// opposed to a core module (layer 0).
func IsComponent(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	if data[0] != 0x00 || data[1] != 0x61 || data[2] != 0x73 || data[3] != 0x6D {
		return false
	}
	return binary.LittleEndian.Uint16(data[6:8]) == 1
}
