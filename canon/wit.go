package canon

import (
	"go.bytecodealliance.org/wit"
)

// WitType projects a shape into the go.bytecodealliance.org/wit type model.
// Named shapes become shared *wit.TypeDef values, so recursive shapes project
// to cyclic type definitions.
func WitType(s *Shape) wit.Type {
	return (&witProjector{defs: make(map[*Shape]*wit.TypeDef)}).project(s)
}

type witProjector struct {
	defs      map[*Shape]*wit.TypeDef
	resources map[string]*wit.TypeDef
}

func (p *witProjector) project(s *Shape) wit.Type {
	if s == nil {
		return nil
	}
	switch s.Kind {
	case KindBool:
		return wit.Bool{}
	case KindS8:
		return wit.S8{}
	case KindS16:
		return wit.S16{}
	case KindS32:
		return wit.S32{}
	case KindS64:
		return wit.S64{}
	case KindU8:
		return wit.U8{}
	case KindU16:
		return wit.U16{}
	case KindU32:
		return wit.U32{}
	case KindU64:
		return wit.U64{}
	case KindF32:
		return wit.F32{}
	case KindF64:
		return wit.F64{}
	case KindChar:
		return wit.Char{}
	case KindString:
		return wit.String{}
	}

	if td, ok := p.defs[s]; ok {
		return td
	}
	td := &wit.TypeDef{}
	p.defs[s] = td

	switch s.Kind {
	case KindList:
		td.Kind = &wit.List{Type: p.project(s.Elem)}
	case KindOption:
		td.Kind = &wit.Option{Type: p.project(s.Elem)}
	case KindResult:
		td.Kind = &wit.Result{OK: p.project(s.Ok), Err: p.project(s.Err)}
	case KindTuple:
		types := make([]wit.Type, len(s.Elems))
		for i, e := range s.Elems {
			types[i] = p.project(e)
		}
		td.Kind = &wit.Tuple{Types: types}
	case KindRecord:
		fields := make([]wit.Field, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = wit.Field{Name: f.Name, Type: p.project(f.Shape)}
		}
		td.Kind = &wit.Record{Fields: fields}
	case KindVariant:
		cases := make([]wit.Case, len(s.Cases))
		for i, c := range s.Cases {
			cases[i] = wit.Case{Name: c.Name, Type: p.project(c.Shape)}
		}
		td.Kind = &wit.Variant{Cases: cases}
	case KindEnum:
		cases := make([]wit.EnumCase, len(s.Names))
		for i, n := range s.Names {
			cases[i] = wit.EnumCase{Name: n}
		}
		td.Kind = &wit.Enum{Cases: cases}
	case KindFlags:
		flags := make([]wit.Flag, len(s.Names))
		for i, n := range s.Names {
			flags[i] = wit.Flag{Name: n}
		}
		td.Kind = &wit.Flags{Flags: flags}
	case KindOwn:
		td.Kind = &wit.Own{Type: p.resource(s.Name)}
	case KindBorrow:
		td.Kind = &wit.Borrow{Type: p.resource(s.Name)}
	}
	return td
}

func (p *witProjector) resource(name string) *wit.TypeDef {
	if p.resources == nil {
		p.resources = make(map[string]*wit.TypeDef)
	}
	if td, ok := p.resources[name]; ok {
		return td
	}
	td := &wit.TypeDef{Kind: &wit.Resource{}}
	p.resources[name] = td
	return td
}
