package component

import (
	"bytes"
	"fmt"
)

// Forwarder re-declares imports of a decoded component in an Assembler,
// copying every type definition an import depends on and renumbering its
// references. Only the import prefix of the source is indexed: the type,
// import and alias sections that precede its first definition.
type Forwarder struct {
	dst     *Assembler
	allowed func(name string) bool

	types   []origin
	insts   []origin
	imports map[string]importEntry

	typeMap map[uint32]uint32
	instMap map[uint32]uint32
	done    map[string]Item
	err     error
}

// origin records where an index of the source came from. Exactly one of
// def, importName or the alias fields is set.
type origin struct {
	def        []byte
	importName string
	aliasInst  uint32
	aliasName  string
	alias      bool
}

type importEntry struct {
	kind  byte
	bound byte
	index uint32
}

// NewForwarder indexes src. allowed reports whether an import of src may
// be re-declared; dependencies on other imports must be allowed as well.
// A malformed import prefix is reported by the first Forward.
func NewForwarder(src *Component, dst *Assembler, allowed func(name string) bool) *Forwarder {
	f := &Forwarder{
		dst:     dst,
		allowed: allowed,
		imports: make(map[string]importEntry),
		typeMap: make(map[uint32]uint32),
		instMap: make(map[uint32]uint32),
		done:    make(map[string]Item),
	}
	for _, s := range src.Sections {
		var err error
		switch s.ID {
		case SectionCustom:
			continue
		case SectionType:
			err = f.indexTypes(s.Data)
		case SectionImport:
			err = f.indexImports(s.Data)
		case SectionAlias:
			err = f.indexAliases(s.Data)
		default:
			return f
		}
		if err != nil {
			f.err = fmt.Errorf("index imports: %w", err)
			return f
		}
	}
	return f
}

func (f *Forwarder) indexTypes(data []byte) error {
	r := getReader(data)
	defer putReader(r)
	count, err := readLEB128(r)
	if err != nil {
		return err
	}
	for range count {
		start := len(data) - r.Len()
		if err := copyDefType(r, nil, 0, nil); err != nil {
			return fmt.Errorf("type %d: %w", len(f.types), err)
		}
		f.types = append(f.types, origin{def: data[start : len(data)-r.Len()]})
	}
	return nil
}

func (f *Forwarder) indexImports(data []byte) error {
	r := getReader(data)
	defer putReader(r)
	count, err := readLEB128(r)
	if err != nil {
		return err
	}
	for range count {
		name, _, err := readExternName(r)
		if err != nil {
			return err
		}
		e, err := readImportDesc(r)
		if err != nil {
			return fmt.Errorf("import %s: %w", name, err)
		}
		f.imports[name] = e
		switch e.kind {
		case ExternType:
			f.types = append(f.types, origin{importName: name})
		case ExternInstance:
			f.insts = append(f.insts, origin{importName: name})
		}
	}
	return nil
}

func (f *Forwarder) indexAliases(data []byte) error {
	r := getReader(data)
	defer putReader(r)
	count, err := readLEB128(r)
	if err != nil {
		return err
	}
	for range count {
		sort, err := r.ReadByte()
		if err != nil {
			return err
		}
		if sort == SortCore {
			if _, err := r.ReadByte(); err != nil {
				return err
			}
		}
		target, err := r.ReadByte()
		if err != nil {
			return err
		}
		o := origin{alias: true}
		switch target {
		case 0x00:
			if o.aliasInst, err = readLEB128(r); err != nil {
				return err
			}
			if o.aliasName, err = readName(r); err != nil {
				return err
			}
		case 0x01:
			if _, err = readLEB128(r); err == nil {
				_, err = readName(r)
			}
			if err != nil {
				return err
			}
			continue
		default:
			return fmt.Errorf("unsupported alias target 0x%02x in import prefix", target)
		}
		switch sort {
		case SortType:
			f.types = append(f.types, o)
		case SortInstance:
			f.insts = append(f.insts, o)
		}
	}
	return nil
}

func readImportDesc(r *bytes.Reader) (importEntry, error) {
	var e importEntry
	var err error
	if e.kind, err = r.ReadByte(); err != nil {
		return e, err
	}
	switch e.kind {
	case ExternFunc, ExternComponent, ExternInstance:
		e.index, err = readLEB128(r)
	case ExternType:
		if e.bound, err = r.ReadByte(); err != nil {
			return e, err
		}
		switch e.bound {
		case 0x00:
			e.index, err = readLEB128(r)
		case 0x01:
		default:
			err = fmt.Errorf("unknown type bound 0x%02x", e.bound)
		}
	default:
		if err = r.UnreadByte(); err == nil {
			_, _, err = readExternDesc(r)
		}
	}
	return e, err
}

// Forward declares the import called name in the destination, along with
// everything it depends on, and returns the definition it introduces.
// Forwarding the same name twice returns the first definition.
func (f *Forwarder) Forward(name string) (Item, error) {
	if f.err != nil {
		return Item{}, f.err
	}
	if it, ok := f.done[name]; ok {
		return it, nil
	}
	e, ok := f.imports[name]
	if !ok {
		return Item{}, fmt.Errorf("import %s is not declared before the first definition", name)
	}
	if !f.allowed(name) {
		return Item{}, fmt.Errorf("import %s is not provided by the host", name)
	}
	desc := []byte{e.kind}
	switch {
	case e.kind == ExternCoreModule || e.kind == ExternValue:
		return Item{}, fmt.Errorf("%s import %s cannot be forwarded", ExternName(e.kind), name)
	case e.kind == ExternType && e.bound == 0x01:
		desc = append(desc, 0x01)
	default:
		idx, err := f.needType(e.index)
		if err != nil {
			return Item{}, fmt.Errorf("import %s: %w", name, err)
		}
		if e.kind == ExternType {
			desc = append(desc, 0x00)
		}
		desc = AppendULEB128(desc, idx)
	}
	it := Item{Name: name, Sort: e.kind, Index: f.dst.Import(name, desc)}
	f.done[name] = it
	return it, nil
}

func (f *Forwarder) needType(idx uint32) (uint32, error) {
	if out, ok := f.typeMap[idx]; ok {
		return out, nil
	}
	if int(idx) >= len(f.types) {
		return 0, fmt.Errorf("type index %d is not defined in the import prefix", idx)
	}
	o := f.types[idx]
	var out uint32
	switch {
	case o.def != nil:
		r := getReader(o.def)
		defer putReader(r)
		var buf []byte
		if err := copyDefType(r, &buf, 0, f.needType); err != nil {
			return 0, err
		}
		out = f.dst.Type(buf)
	case o.alias:
		inst, err := f.needInstance(o.aliasInst)
		if err != nil {
			return 0, err
		}
		out = f.dst.AliasExport(inst, o.aliasName, SortType, 0)
	default:
		it, err := f.Forward(o.importName)
		if err != nil {
			return 0, err
		}
		out = it.Index
	}
	f.typeMap[idx] = out
	return out, nil
}

func (f *Forwarder) needInstance(idx uint32) (uint32, error) {
	if out, ok := f.instMap[idx]; ok {
		return out, nil
	}
	if int(idx) >= len(f.insts) {
		return 0, fmt.Errorf("instance index %d is not defined in the import prefix", idx)
	}
	o := f.insts[idx]
	var out uint32
	if o.alias {
		inst, err := f.needInstance(o.aliasInst)
		if err != nil {
			return 0, err
		}
		out = f.dst.AliasExport(inst, o.aliasName, SortInstance, 0)
	} else {
		it, err := f.Forward(o.importName)
		if err != nil {
			return 0, err
		}
		out = it.Index
	}
	f.instMap[idx] = out
	return out, nil
}

// typeRemap maps a type index of the outermost scope to the destination.
type typeRemap func(uint32) (uint32, error)

// copyDefType reads one deftype from r. When out is non-nil the type is
// re-encoded into it, with references to the outermost scope (depth 0)
// passed through remap.
func copyDefType(r *bytes.Reader, out *[]byte, depth uint32, remap typeRemap) error {
	c := &typeCopier{r: r, out: out, remap: remap}
	return c.defType(depth)
}

type typeCopier struct {
	r     *bytes.Reader
	out   *[]byte
	remap typeRemap
}

func (c *typeCopier) emit(b ...byte) {
	if c.out != nil {
		*c.out = append(*c.out, b...)
	}
}

func (c *typeCopier) next() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.emit(b)
	}
	return b, err
}

func (c *typeCopier) u32() (uint32, error) {
	v, err := readLEB128(c.r)
	if err == nil && c.out != nil {
		*c.out = AppendULEB128(*c.out, v)
	}
	return v, err
}

func (c *typeCopier) name() error {
	s, err := readName(c.r)
	if err == nil && c.out != nil {
		*c.out = AppendName(*c.out, s)
	}
	return err
}

func (c *typeCopier) vec(fn func() error) error {
	n, err := c.u32()
	if err != nil {
		return err
	}
	for range n {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// index copies a type index, renumbering it when it refers to the
// outermost scope.
func (c *typeCopier) index(depth uint32, signed bool) error {
	var v uint32
	if signed {
		s, err := readSLEB128(c.r)
		if err != nil {
			return err
		}
		if s < 0 {
			c.emit(byte(s & 0x7f))
			return nil
		}
		v = uint32(s)
	} else {
		var err error
		if v, err = readLEB128(c.r); err != nil {
			return err
		}
	}
	if depth == 0 && c.remap != nil {
		var err error
		if v, err = c.remap(v); err != nil {
			return err
		}
	}
	if c.out != nil {
		if signed {
			*c.out = AppendSLEB128(*c.out, int64(v))
		} else {
			*c.out = AppendULEB128(*c.out, v)
		}
	}
	return nil
}

func (c *typeCopier) valType(depth uint32) error { return c.index(depth, true) }

func (c *typeCopier) optValType(depth uint32) error {
	b, err := c.next()
	if err != nil || b == 0x00 {
		return err
	}
	if b != 0x01 {
		return fmt.Errorf("invalid option tag 0x%02x", b)
	}
	return c.valType(depth)
}

func (c *typeCopier) defType(depth uint32) error {
	b, err := c.r.ReadByte()
	if err != nil {
		return err
	}
	if b >= PrimString && b <= PrimBool {
		c.emit(b)
		return nil
	}
	c.emit(b)
	switch b {
	case 0x72: // record
		return c.vec(func() error {
			if err := c.name(); err != nil {
				return err
			}
			return c.valType(depth)
		})
	case 0x71: // variant
		return c.vec(func() error {
			if err := c.name(); err != nil {
				return err
			}
			if err := c.optValType(depth); err != nil {
				return err
			}
			refines, err := c.next()
			if err == nil && refines != 0x00 {
				err = fmt.Errorf("unsupported variant case refinement")
			}
			return err
		})
	case 0x70, 0x6b: // list, option
		return c.valType(depth)
	case 0x6f: // tuple
		return c.vec(func() error { return c.valType(depth) })
	case 0x6e, 0x6d: // flags, enum
		return c.vec(c.name)
	case 0x6a: // result
		if err := c.optValType(depth); err != nil {
			return err
		}
		return c.optValType(depth)
	case 0x69, 0x68: // own, borrow
		return c.index(depth, false)
	case 0x40: // func
		if err := c.vec(func() error {
			if err := c.name(); err != nil {
				return err
			}
			return c.valType(depth)
		}); err != nil {
			return err
		}
		tag, err := c.next()
		if err != nil {
			return err
		}
		switch tag {
		case 0x00:
			return c.valType(depth)
		case 0x01:
			_, err := c.next()
			return err
		}
		return fmt.Errorf("invalid result list tag 0x%02x", tag)
	case 0x41, 0x42: // component, instance
		return c.vec(func() error { return c.decl(depth + 1) })
	}
	return fmt.Errorf("unsupported type definition 0x%02x", b)
}

// decl copies one component or instance type declaration at depth.
func (c *typeCopier) decl(depth uint32) error {
	tag, err := c.next()
	if err != nil {
		return err
	}
	switch tag {
	case 0x01:
		return c.defType(depth)
	case 0x02:
		return c.alias(depth)
	case 0x03, 0x04: // import, export
		if err := c.externName(); err != nil {
			return err
		}
		return c.externDesc(depth)
	}
	return fmt.Errorf("unsupported type declaration 0x%02x", tag)
}

func (c *typeCopier) externName() error {
	if _, err := c.next(); err != nil {
		return err
	}
	return c.name()
}

func (c *typeCopier) alias(depth uint32) error {
	sort, err := c.next()
	if err != nil {
		return err
	}
	if sort == SortCore {
		if _, err := c.next(); err != nil {
			return err
		}
	}
	target, err := c.next()
	if err != nil {
		return err
	}
	switch target {
	case 0x00, 0x01: // export of a local instance
		if _, err := c.u32(); err != nil {
			return err
		}
		return c.name()
	case 0x02: // outer
		count, err := c.u32()
		if err != nil {
			return err
		}
		if count > depth {
			return fmt.Errorf("outer alias count %d exceeds depth %d", count, depth)
		}
		if sort != SortType {
			_, err := c.u32()
			return err
		}
		return c.index(depth-count, false)
	}
	return fmt.Errorf("invalid alias target 0x%02x", target)
}

func (c *typeCopier) externDesc(depth uint32) error {
	kind, err := c.next()
	if err != nil {
		return err
	}
	switch kind {
	case ExternCoreModule:
		if _, err := c.next(); err != nil {
			return err
		}
		_, err = c.u32()
	case ExternFunc, ExternComponent, ExternInstance:
		_, err = c.u32()
	case ExternValue:
		var bound byte
		if bound, err = c.next(); err != nil {
			return err
		}
		if bound == 0x00 {
			_, err = c.u32()
		} else {
			err = c.valType(depth)
		}
	case ExternType:
		var bound byte
		if bound, err = c.next(); err != nil {
			return err
		}
		if bound == 0x00 {
			_, err = c.u32()
		}
	default:
		err = fmt.Errorf("unknown extern kind 0x%02x", kind)
	}
	return err
}
