package canon

import (
	"sync"

	"github.com/golemcloud/golem-cloud-cli/errors"
	"github.com/golemcloud/golem-cloud-cli/resolve"
)

// Mapper assigns a canonical shape to every type in a resolved graph.
// Mapping is total for a successfully resolved graph; an inconsistency panics
// with *errors.InvariantError. Shapes are cached by identity, so the same
// declaration always maps to the same *Shape.
type Mapper struct {
	g         *resolve.Graph
	byDef     map[resolve.TypeID]*Shape
	byType    map[*resolve.Type]*Shape
	handles   map[handleKey]*Shape
	recursive map[*Shape]bool
	mu        sync.Mutex
}

type handleKey struct {
	kind Kind
	id   resolve.TypeID
}

// NewMapper creates a mapper over g.
func NewMapper(g *resolve.Graph) *Mapper {
	return &Mapper{
		g:       g,
		byDef:   make(map[resolve.TypeID]*Shape),
		byType:  make(map[*resolve.Type]*Shape),
		handles: make(map[handleKey]*Shape),
	}
}

// Graph returns the graph the mapper reads.
func (m *Mapper) Graph() *resolve.Graph { return m.g }

// ShapeOf maps a type reference. A nil type (unit) maps to nil.
func (m *Mapper) ShapeOf(t *resolve.Type) *Shape {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shapeOf(t)
}

// ShapeOfDef maps a named declaration. A resource maps to its own handle.
func (m *Mapper) ShapeOfDef(id resolve.TypeID) *Shape {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shapeOfDef(id)
}

// Params returns the shapes of f's parameters in order.
func (m *Mapper) Params(f *resolve.Function) []*Shape {
	out := make([]*Shape, len(f.Params))
	for i, p := range f.Params {
		out[i] = m.ShapeOf(p.Type)
	}
	return out
}

func (m *Mapper) shapeOf(t *resolve.Type) *Shape {
	if t == nil {
		return nil
	}
	if s, ok := m.byType[t]; ok {
		return s
	}
	var s *Shape
	switch t.Kind {
	case resolve.Bool, resolve.S8, resolve.S16, resolve.S32, resolve.S64,
		resolve.U8, resolve.U16, resolve.U32, resolve.U64,
		resolve.F32, resolve.F64, resolve.Char, resolve.String:
		s = primitiveShapes[Kind(t.Kind)]
	case resolve.List:
		s = &Shape{Kind: KindList, ID: -1, Elem: m.shapeOf(t.Elem)}
	case resolve.Option:
		s = &Shape{Kind: KindOption, ID: -1, Elem: m.shapeOf(t.Elem)}
	case resolve.Result:
		s = &Shape{Kind: KindResult, ID: -1, Ok: m.shapeOf(t.Ok), Err: m.shapeOf(t.Err)}
	case resolve.Tuple:
		s = &Shape{Kind: KindTuple, ID: -1, Elems: make([]*Shape, len(t.Elems))}
		for i, e := range t.Elems {
			s.Elems[i] = m.shapeOf(e)
		}
	case resolve.Own:
		s = m.handle(KindOwn, t.ID)
	case resolve.Borrow:
		s = m.handle(KindBorrow, t.ID)
	case resolve.Ref:
		s = m.shapeOfDef(t.ID)
	default:
		errors.Invariant(errors.PhaseMap, "type reference with unknown kind %d", t.Kind)
	}
	m.byType[t] = s
	return s
}

func (m *Mapper) handle(kind Kind, id resolve.TypeID) *Shape {
	res := m.g.Underlying(id)
	if res.Kind != resolve.DefResource {
		errors.Invariant(errors.PhaseMap, "%s<%s> targets a %s", kind, m.g.Type(id).Name, res.Kind)
	}
	key := handleKey{kind, res.ID}
	if s, ok := m.handles[key]; ok {
		return s
	}
	s := &Shape{Kind: kind, Name: res.Name, ID: res.ID}
	m.handles[key] = s
	return s
}

func (m *Mapper) shapeOfDef(id resolve.TypeID) *Shape {
	if s, ok := m.byDef[id]; ok {
		return s
	}
	def := m.g.Type(id)

	switch def.Kind {
	case resolve.DefAlias:
		if def.Alias == nil {
			errors.Invariant(errors.PhaseMap, "alias %q has no target", def.Name)
		}
		s := m.shapeOf(def.Alias)
		m.byDef[id] = s
		return s
	case resolve.DefResource:
		s := m.handle(KindOwn, id)
		m.byDef[id] = s
		return s
	}

	// Register before descending so recursive references share the pointer.
	s := &Shape{Name: def.Name, ID: id}
	m.byDef[id] = s
	switch def.Kind {
	case resolve.DefRecord:
		s.Kind = KindRecord
		s.Fields = make([]ShapeField, len(def.Fields))
		for i, f := range def.Fields {
			s.Fields[i] = ShapeField{Name: f.Name, Shape: m.shapeOf(f.Type)}
		}
	case resolve.DefVariant:
		s.Kind = KindVariant
		if len(def.Cases) == 0 {
			errors.Invariant(errors.PhaseMap, "variant %q has no cases", def.Name)
		}
		s.Cases = make([]ShapeCase, len(def.Cases))
		for i, c := range def.Cases {
			s.Cases[i] = ShapeCase{Name: c.Name, Shape: m.shapeOf(c.Type)}
		}
	case resolve.DefEnum:
		s.Kind = KindEnum
		s.Names = append([]string(nil), def.Names...)
	case resolve.DefFlags:
		s.Kind = KindFlags
		if len(def.Names) > 64 {
			errors.Invariant(errors.PhaseMap, "flags %q has %d members", def.Name, len(def.Names))
		}
		s.Names = append([]string(nil), def.Names...)
	default:
		errors.Invariant(errors.PhaseMap, "declaration %q has unknown kind %d", def.Name, def.Kind)
	}
	return s
}

// Recursive reports whether values of s can contain values of s, which
// happens only for mutually recursive records and variants.
func (m *Mapper) Recursive(s *Shape) bool {
	if s == nil || !s.Named() || s.Kind == KindOwn || s.Kind == KindBorrow {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recursive == nil {
		m.recursive = make(map[*Shape]bool)
	}
	if r, ok := m.recursive[s]; ok {
		return r
	}
	seen := make(map[*Shape]bool)
	var reaches func(cur *Shape) bool
	reaches = func(cur *Shape) bool {
		for _, child := range Children(cur) {
			if child == s {
				return true
			}
			if child == nil || seen[child] {
				continue
			}
			seen[child] = true
			if reaches(child) {
				return true
			}
		}
		return false
	}
	r := reaches(s)
	m.recursive[s] = r
	return r
}

// Children returns the shapes s is built from. Absent result payloads are nil.
func Children(s *Shape) []*Shape {
	switch s.Kind {
	case KindList, KindOption:
		return []*Shape{s.Elem}
	case KindResult:
		return []*Shape{s.Ok, s.Err}
	case KindTuple:
		return s.Elems
	case KindRecord:
		out := make([]*Shape, len(s.Fields))
		for i, f := range s.Fields {
			out[i] = f.Shape
		}
		return out
	case KindVariant:
		out := make([]*Shape, len(s.Cases))
		for i, c := range s.Cases {
			out[i] = c.Shape
		}
		return out
	}
	return nil
}
