package component

// Primitive value type codes
const (
	PrimBool   byte = 0x7f
	PrimS8     byte = 0x7e
	PrimU8     byte = 0x7d
	PrimS16    byte = 0x7c
	PrimU16    byte = 0x7b
	PrimS32    byte = 0x7a
	PrimU32    byte = 0x79
	PrimS64    byte = 0x78
	PrimU64    byte = 0x77
	PrimF32    byte = 0x76
	PrimF64    byte = 0x75
	PrimChar   byte = 0x74
	PrimString byte = 0x73
)

// ValType is a component value type: a primitive code, or an index into
// the enclosing type index space when Prim is zero.
type ValType struct {
	Prim  byte
	Index uint32
}

func PrimType(code byte) ValType { return ValType{Prim: code} }

func TypeRef(index uint32) ValType { return ValType{Index: index} }

// AppendValType encodes v. Indexes use the var_s33 form so they never
// collide with primitive codes.
func AppendValType(dst []byte, v ValType) []byte {
	if v.Prim != 0 {
		return append(dst, v.Prim)
	}
	return AppendSLEB128(dst, int64(v.Index))
}

// Labeled is a record field or function parameter.
type Labeled struct {
	Label string
	Type  ValType
}

// VariantCase is a variant case; Type is nil for payload-free cases.
type VariantCase struct {
	Label string
	Type  *ValType
}

func appendOptValType(dst []byte, v *ValType) []byte {
	if v == nil {
		return append(dst, 0x00)
	}
	return AppendValType(append(dst, 0x01), *v)
}

func appendLabels(dst []byte, labels []string) []byte {
	dst = AppendULEB128(dst, uint32(len(labels)))
	for _, l := range labels {
		dst = AppendName(dst, l)
	}
	return dst
}

func appendLabeled(dst []byte, fields []Labeled) []byte {
	dst = AppendULEB128(dst, uint32(len(fields)))
	for _, f := range fields {
		dst = AppendName(dst, f.Label)
		dst = AppendValType(dst, f.Type)
	}
	return dst
}

func RecordType(fields []Labeled) []byte {
	return appendLabeled([]byte{0x72}, fields)
}

func VariantType(cases []VariantCase) []byte {
	dst := AppendULEB128([]byte{0x71}, uint32(len(cases)))
	for _, c := range cases {
		dst = AppendName(dst, c.Label)
		dst = appendOptValType(dst, c.Type)
		dst = append(dst, 0x00)
	}
	return dst
}

func ListType(elem ValType) []byte { return AppendValType([]byte{0x70}, elem) }

func TupleType(elems []ValType) []byte {
	dst := AppendULEB128([]byte{0x6f}, uint32(len(elems)))
	for _, e := range elems {
		dst = AppendValType(dst, e)
	}
	return dst
}

func FlagsType(names []string) []byte { return appendLabels([]byte{0x6e}, names) }

func EnumType(names []string) []byte { return appendLabels([]byte{0x6d}, names) }

func OptionType(elem ValType) []byte { return AppendValType([]byte{0x6b}, elem) }

func ResultType(ok, err *ValType) []byte {
	return appendOptValType(appendOptValType([]byte{0x6a}, ok), err)
}

func OwnType(resource uint32) []byte { return AppendULEB128([]byte{0x69}, resource) }

func BorrowType(resource uint32) []byte { return AppendULEB128([]byte{0x68}, resource) }

// FuncType encodes a component function type; result is nil for none.
func FuncType(params []Labeled, result *ValType) []byte {
	dst := appendLabeled([]byte{0x40}, params)
	if result == nil {
		return append(dst, 0x01, 0x00)
	}
	return AppendValType(append(dst, 0x00), *result)
}

// Extern descriptors for imports and instance type exports.

func FuncDesc(typeIndex uint32) []byte { return AppendULEB128([]byte{ExternFunc}, typeIndex) }

func InstanceDesc(typeIndex uint32) []byte {
	return AppendULEB128([]byte{ExternInstance}, typeIndex)
}

// TypeEq describes a type export equal to the type at index.
func TypeEq(index uint32) []byte { return AppendULEB128([]byte{ExternType, 0x00}, index) }

// SubResource describes a fresh abstract resource type.
func SubResource() []byte { return []byte{ExternType, 0x01} }

// TypeScope is a type index space definitions can be appended to.
type TypeScope interface {
	Type(def []byte) uint32
}

// InstanceType assembles an instancetype declaration by declaration and
// tracks the indexes local to it.
type InstanceType struct {
	decls     [][]byte
	types     uint32
	funcs     uint32
	instances uint32
}

func NewInstanceType() *InstanceType {
	return &InstanceType{}
}

// Type declares a local type and returns its index.
func (t *InstanceType) Type(def []byte) uint32 {
	t.decls = append(t.decls, append([]byte{0x01}, def...))
	t.types++
	return t.types - 1
}

// AliasOuterType brings type index of the scope count levels up into
// this one.
func (t *InstanceType) AliasOuterType(count, index uint32) uint32 {
	decl := []byte{0x02, SortType, 0x02}
	decl = AppendULEB128(decl, count)
	t.decls = append(t.decls, AppendULEB128(decl, index))
	t.types++
	return t.types - 1
}

// AliasExportType aliases a type exported by a local instance.
func (t *InstanceType) AliasExportType(instance uint32, name string) uint32 {
	decl := AppendULEB128([]byte{0x02, SortType, 0x00}, instance)
	t.decls = append(t.decls, AppendName(decl, name))
	t.types++
	return t.types - 1
}

// Export declares an export and returns the index it introduces in the
// space of its kind.
func (t *InstanceType) Export(name string, desc []byte) uint32 {
	decl := AppendName([]byte{0x04, 0x00}, name)
	t.decls = append(t.decls, append(decl, desc...))
	var n *uint32
	switch desc[0] {
	case ExternType:
		n = &t.types
	case ExternInstance:
		n = &t.instances
	default:
		n = &t.funcs
	}
	*n++
	return *n - 1
}

// Bytes returns the instancetype encoding.
func (t *InstanceType) Bytes() []byte {
	out := AppendULEB128([]byte{0x42}, uint32(len(t.decls)))
	for _, d := range t.decls {
		out = append(out, d...)
	}
	return out
}
