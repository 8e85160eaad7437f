package canon

// Zero returns the zero value of s: false, 0, empty string and list, none,
// ok with a zero payload, a record of zero fields, the first payload-free
// variant case (else the first case) and handles with an empty identity.
func Zero(s *Shape) Value {
	return zero(s, make(map[*Shape]bool))
}

func zero(s *Shape, visiting map[*Shape]bool) Value {
	if visiting[s] {
		// A value-recursive shape with no terminating case has no finite
		// zero; stop at the bare kind.
		return Value{kind: s.Kind}
	}
	switch s.Kind {
	case KindList:
		return List()
	case KindOption:
		return None()
	case KindOwn:
		return Own(Handle{})
	case KindBorrow:
		return Borrow(Handle{})
	}
	if s.Kind.Primitive() || s.Kind == KindEnum || s.Kind == KindFlags {
		return Value{kind: s.Kind}
	}

	visiting[s] = true
	defer delete(visiting, s)

	switch s.Kind {
	case KindResult:
		if s.Ok == nil {
			return Ok()
		}
		return Ok(zero(s.Ok, visiting))
	case KindTuple:
		elems := make([]Value, len(s.Elems))
		for i, e := range s.Elems {
			elems[i] = zero(e, visiting)
		}
		return Tuple(elems...)
	case KindRecord:
		elems := make([]Value, len(s.Fields))
		for i, f := range s.Fields {
			elems[i] = zero(f.Shape, visiting)
		}
		return Record(elems...)
	case KindVariant:
		for i, c := range s.Cases {
			if c.Shape == nil {
				return Variant(uint32(i))
			}
		}
		return Variant(0, zero(s.Cases[0].Shape, visiting))
	}
	return Value{kind: s.Kind}
}
