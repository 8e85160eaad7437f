package canon

import (
	"math"

	"github.com/golemcloud/golem-cloud-cli/errors"
)

// HandleTable translates between remote handles and the i32 handle indexes a
// guest sees on its core wasm stack.
type HandleTable interface {
	Export(kind Kind, h Handle) (uint32, error)
	Import(kind Kind, idx uint32) (Handle, error)
}

// LowerFlat writes v onto a core wasm value stack using the layout from
// Flatten. Only memory-free shapes are supported.
func LowerFlat(s *Shape, v Value, ht HandleTable) ([]uint64, error) {
	if NeedsMemory(s) {
		return nil, errors.Unsupported(errors.PhaseBind, s.String()+" requires linear memory")
	}
	if _, bounded := Flatten(s); !bounded {
		return nil, errors.Unsupported(errors.PhaseBind, s.String()+" is recursive")
	}
	if err := Check(s, v); err != nil {
		return nil, err
	}
	return lowerFlat(nil, s, v, ht)
}

func lowerFlat(out []uint64, s *Shape, v Value, ht HandleTable) ([]uint64, error) {
	switch s.Kind {
	case KindBool, KindU8, KindU16, KindU32, KindChar, KindEnum, KindF32:
		return append(out, uint64(uint32(v.bits))), nil
	case KindS8, KindS16, KindS32:
		return append(out, uint64(uint32(int32(v.Int())))), nil
	case KindS64, KindU64, KindF64, KindFlags:
		return append(out, v.bits), nil
	case KindTuple, KindRecord:
		var err error
		for i, e := range v.elems {
			if out, err = lowerFlat(out, elemShape(s, i), e, ht); err != nil {
				return nil, err
			}
		}
		return out, nil
	case KindOption:
		var payload *Shape
		if v.IsSome() {
			payload = s.Elem
		}
		return lowerFlatCase(out, v.bits, payload, v, flatLen(s)-1, ht)
	case KindResult:
		payload := s.Ok
		if v.IsErr() {
			payload = s.Err
		}
		return lowerFlatCase(out, v.bits, payload, v, flatLen(s)-1, ht)
	case KindVariant:
		return lowerFlatCase(out, v.bits, s.Cases[v.bits].Shape, v, flatLen(s)-1, ht)
	case KindOwn, KindBorrow:
		idx, err := ht.Export(s.Kind, v.handle)
		if err != nil {
			return nil, err
		}
		return append(out, uint64(idx)), nil
	}
	return nil, errors.Unsupported(errors.PhaseBind, s.String()+" cannot be passed on the stack")
}

// lowerFlatCase writes a discriminant and the case payload padded with zeros
// to the joined payload width.
func lowerFlatCase(out []uint64, disc uint64, payload *Shape, v Value, width int, ht HandleTable) ([]uint64, error) {
	out = append(out, uint64(uint32(disc)))
	start := len(out)
	if payload != nil && v.has {
		var err error
		if out, err = lowerFlat(out, payload, *v.payload, ht); err != nil {
			return nil, err
		}
	}
	for len(out)-start < width {
		out = append(out, 0)
	}
	return out, nil
}

// LiftFlat reads a value of shape s from the front of stack and returns the
// remaining slots.
func LiftFlat(s *Shape, stack []uint64, ht HandleTable) (Value, []uint64, error) {
	if NeedsMemory(s) {
		return Value{}, nil, errors.Unsupported(errors.PhaseBind, s.String()+" requires linear memory")
	}
	n := flatLen(s)
	if len(stack) < n {
		return Value{}, nil, errors.OutOfBounds(errors.PhaseDecode, nil, n, len(stack))
	}
	v, err := liftFlat(s, stack[:n], ht)
	if err != nil {
		return Value{}, nil, err
	}
	return v, stack[n:], nil
}

func liftFlat(s *Shape, stack []uint64, ht HandleTable) (Value, error) {
	switch s.Kind {
	case KindBool:
		return Bool(uint32(stack[0]) != 0), nil
	case KindS8:
		return S8(int8(stack[0])), nil
	case KindS16:
		return S16(int16(stack[0])), nil
	case KindS32:
		return S32(int32(stack[0])), nil
	case KindS64:
		return S64(int64(stack[0])), nil
	case KindU8:
		return U8(uint8(stack[0])), nil
	case KindU16:
		return U16(uint16(stack[0])), nil
	case KindU32:
		return U32(uint32(stack[0])), nil
	case KindU64:
		return U64(stack[0]), nil
	case KindF32:
		return F32(math.Float32frombits(uint32(stack[0]))), nil
	case KindF64:
		return F64(math.Float64frombits(stack[0])), nil
	case KindChar:
		return Char(rune(uint32(stack[0]))), nil
	case KindEnum:
		if int(uint32(stack[0])) >= len(s.Names) {
			return Value{}, errors.InvalidEnum(errors.PhaseDecode, nil, uint32(stack[0]), s.Name)
		}
		return Enum(uint32(stack[0])), nil
	case KindFlags:
		return Flags(stack[0]), nil
	case KindTuple, KindRecord:
		n := len(s.Elems) + len(s.Fields)
		elems := make([]Value, n)
		for i := range n {
			es := elemShape(s, i)
			w := flatLen(es)
			e, err := liftFlat(es, stack[:w], ht)
			if err != nil {
				return Value{}, err
			}
			elems[i] = e
			stack = stack[w:]
		}
		if s.Kind == KindTuple {
			return Tuple(elems...), nil
		}
		return Record(elems...), nil
	case KindOption:
		switch uint32(stack[0]) {
		case 0:
			return None(), nil
		case 1:
			inner, err := liftFlat(s.Elem, stack[1:1+flatLen(s.Elem)], ht)
			if err != nil {
				return Value{}, err
			}
			return Some(inner), nil
		}
		return Value{}, errors.InvalidDiscriminant(errors.PhaseDecode, nil, uint32(stack[0]), 1)
	case KindResult:
		disc := uint32(stack[0])
		if disc > 1 {
			return Value{}, errors.InvalidDiscriminant(errors.PhaseDecode, nil, disc, 1)
		}
		payload := s.Ok
		if disc == 1 {
			payload = s.Err
		}
		var args []Value
		if payload != nil {
			p, err := liftFlat(payload, stack[1:1+flatLen(payload)], ht)
			if err != nil {
				return Value{}, err
			}
			args = append(args, p)
		}
		if disc == 1 {
			return Err(args...), nil
		}
		return Ok(args...), nil
	case KindVariant:
		disc := uint32(stack[0])
		if int(disc) >= len(s.Cases) {
			return Value{}, errors.InvalidDiscriminant(errors.PhaseDecode, nil, disc, uint32(len(s.Cases)-1))
		}
		c := s.Cases[disc]
		if c.Shape == nil {
			return Variant(disc), nil
		}
		p, err := liftFlat(c.Shape, stack[1:1+flatLen(c.Shape)], ht)
		if err != nil {
			return Value{}, err
		}
		return Variant(disc, p), nil
	case KindOwn, KindBorrow:
		h, err := ht.Import(s.Kind, uint32(stack[0]))
		if err != nil {
			return Value{}, err
		}
		if s.Kind == KindOwn {
			return Own(h), nil
		}
		return Borrow(h), nil
	}
	return Value{}, errors.Unsupported(errors.PhaseBind, s.String()+" cannot be read from the stack")
}

func elemShape(s *Shape, i int) *Shape {
	if s.Kind == KindTuple {
		return s.Elems[i]
	}
	return s.Fields[i].Shape
}

func flatLen(s *Shape) int {
	flat, _ := Flatten(s)
	return len(flat)
}
