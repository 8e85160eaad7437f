package canon

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/golemcloud/golem-cloud-cli/errors"
)

// Present marks a present value of an option whose element is itself an
// option, where nil alone would be ambiguous.
type Present struct {
	Value any
}

// Lower converts a dynamic Go value into a canonical value of shape s.
//
// Go conventions: primitives use their exact Go width (int is accepted when
// it fits), char is rune, list is []any ([]byte for list<u8>), record is
// map[string]any, variant is map[string]any{case: payload}, result is
// map[string]any{"ok"|"err": payload}, enum is uint32 (or the case name),
// flags is uint64, tuple is []any, option is nil or the value, and handles
// are Handle.
func Lower(s *Shape, v any) (Value, error) {
	return lower(s, v, nil)
}

func goTypeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}

func mismatch(path []string, v any, s *Shape) error {
	return errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(v), s.String())
}

func lower(s *Shape, v any, path []string) (Value, error) {
	if s == nil {
		return Value{}, errors.InvalidInput(errors.PhaseEncode, "cannot lower into unit type")
	}
	switch s.Kind {
	case KindBool:
		if b, ok := v.(bool); ok {
			return Bool(b), nil
		}
	case KindS8, KindS16, KindS32, KindS64:
		return lowerSigned(s, v, path)
	case KindU8, KindU16, KindU32, KindU64:
		return lowerUnsigned(s, v, path)
	case KindF32:
		if f, ok := v.(float32); ok {
			return F32(f), nil
		}
	case KindF64:
		if f, ok := v.(float64); ok {
			return F64(f), nil
		}
	case KindChar:
		if r, ok := v.(rune); ok {
			if !utf8.ValidRune(r) {
				return Value{}, errors.InvalidData(errors.PhaseEncode, path, fmt.Sprintf("invalid char %#x", r))
			}
			return Char(r), nil
		}
	case KindString:
		if str, ok := v.(string); ok {
			if !utf8.ValidString(str) {
				return Value{}, errors.InvalidUTF8(errors.PhaseEncode, path, []byte(str))
			}
			return String(str), nil
		}
	case KindList:
		return lowerList(s, v, path)
	case KindTuple:
		elems, ok := v.([]any)
		if !ok {
			break
		}
		if len(elems) != len(s.Elems) {
			return Value{}, errors.InvalidData(errors.PhaseEncode, path,
				fmt.Sprintf("tuple has %d elements, want %d", len(elems), len(s.Elems)))
		}
		out := make([]Value, len(elems))
		for i, e := range elems {
			lv, err := lower(s.Elems[i], e, appendPath(path, fmt.Sprintf("%d", i)))
			if err != nil {
				return Value{}, err
			}
			out[i] = lv
		}
		return Tuple(out...), nil
	case KindRecord:
		return lowerRecord(s, v, path)
	case KindVariant:
		return lowerVariant(s, v, path)
	case KindEnum:
		switch e := v.(type) {
		case uint32:
			if int(e) >= len(s.Names) {
				return Value{}, errors.InvalidEnum(errors.PhaseEncode, path, e, s.Name)
			}
			return Enum(e), nil
		case string:
			i := s.Case(e)
			if i < 0 {
				return Value{}, errors.InvalidEnum(errors.PhaseEncode, path, e, s.Name)
			}
			return Enum(uint32(i)), nil
		}
	case KindFlags:
		if bits, ok := v.(uint64); ok {
			if len(s.Names) < 64 && bits>>uint(len(s.Names)) != 0 {
				return Value{}, errors.InvalidData(errors.PhaseEncode, path,
					fmt.Sprintf("flag bits %#x exceed %d flags", bits, len(s.Names)))
			}
			return Flags(bits), nil
		}
	case KindOption:
		if v == nil {
			return None(), nil
		}
		if sv, ok := v.(Present); ok {
			v = sv.Value
		} else if s.Elem.Kind == KindOption {
			return Value{}, errors.InvalidInput(errors.PhaseEncode,
				"nested option requires canon.Present for a present value")
		}
		inner, err := lower(s.Elem, v, path)
		if err != nil {
			return Value{}, err
		}
		return Some(inner), nil
	case KindResult:
		return lowerResult(s, v, path)
	case KindOwn:
		if h, ok := v.(Handle); ok {
			return Own(h), nil
		}
	case KindBorrow:
		if h, ok := v.(Handle); ok {
			return Borrow(h), nil
		}
	}
	return Value{}, mismatch(path, v, s)
}

func appendPath(path []string, elem string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, elem)
}

func lowerSigned(s *Shape, v any, path []string) (Value, error) {
	var n int64
	switch x := v.(type) {
	case int8:
		if s.Kind == KindS8 {
			return S8(x), nil
		}
	case int16:
		if s.Kind == KindS16 {
			return S16(x), nil
		}
	case int32:
		if s.Kind == KindS32 {
			return S32(x), nil
		}
	case int64:
		if s.Kind == KindS64 {
			return S64(x), nil
		}
	case int:
		n = int64(x)
		switch s.Kind {
		case KindS8:
			if n >= math.MinInt8 && n <= math.MaxInt8 {
				return S8(int8(n)), nil
			}
		case KindS16:
			if n >= math.MinInt16 && n <= math.MaxInt16 {
				return S16(int16(n)), nil
			}
		case KindS32:
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return S32(int32(n)), nil
			}
		case KindS64:
			return S64(n), nil
		}
		return Value{}, errors.Overflow(errors.PhaseEncode, path, x, s.Kind.String())
	}
	return Value{}, mismatch(path, v, s)
}

func lowerUnsigned(s *Shape, v any, path []string) (Value, error) {
	switch x := v.(type) {
	case uint8:
		if s.Kind == KindU8 {
			return U8(x), nil
		}
	case uint16:
		if s.Kind == KindU16 {
			return U16(x), nil
		}
	case uint32:
		if s.Kind == KindU32 {
			return U32(x), nil
		}
	case uint64:
		if s.Kind == KindU64 {
			return U64(x), nil
		}
	case int:
		if x < 0 {
			return Value{}, errors.Overflow(errors.PhaseEncode, path, x, s.Kind.String())
		}
		n := uint64(x)
		switch s.Kind {
		case KindU8:
			if n <= math.MaxUint8 {
				return U8(uint8(n)), nil
			}
		case KindU16:
			if n <= math.MaxUint16 {
				return U16(uint16(n)), nil
			}
		case KindU32:
			if n <= math.MaxUint32 {
				return U32(uint32(n)), nil
			}
		case KindU64:
			return U64(n), nil
		}
		return Value{}, errors.Overflow(errors.PhaseEncode, path, x, s.Kind.String())
	}
	return Value{}, mismatch(path, v, s)
}

func lowerList(s *Shape, v any, path []string) (Value, error) {
	if b, ok := v.([]byte); ok && s.Elem.Kind == KindU8 {
		out := make([]Value, len(b))
		for i, x := range b {
			out[i] = U8(x)
		}
		return List(out...), nil
	}
	elems, ok := v.([]any)
	if !ok {
		return Value{}, mismatch(path, v, s)
	}
	out := make([]Value, len(elems))
	for i, e := range elems {
		lv, err := lower(s.Elem, e, appendPath(path, fmt.Sprintf("[%d]", i)))
		if err != nil {
			return Value{}, err
		}
		out[i] = lv
	}
	return List(out...), nil
}

func lowerRecord(s *Shape, v any, path []string) (Value, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Value{}, mismatch(path, v, s)
	}
	for k := range m {
		if s.Field(k) < 0 {
			return Value{}, errors.FieldUnknown(errors.PhaseEncode, path, k)
		}
	}
	out := make([]Value, len(s.Fields))
	for i, f := range s.Fields {
		fv, present := m[f.Name]
		if !present && f.Shape.Kind != KindOption {
			return Value{}, errors.FieldMissing(errors.PhaseEncode, path, f.Name)
		}
		lv, err := lower(f.Shape, fv, appendPath(path, f.Name))
		if err != nil {
			return Value{}, err
		}
		out[i] = lv
	}
	return Record(out...), nil
}

func lowerVariant(s *Shape, v any, path []string) (Value, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		if ok {
			return Value{}, errors.InvalidData(errors.PhaseEncode, path,
				fmt.Sprintf("variant map must have exactly one key, got %d", len(m)))
		}
		return Value{}, mismatch(path, v, s)
	}
	for name, payload := range m {
		i := s.Case(name)
		if i < 0 {
			return Value{}, errors.New(errors.PhaseEncode, errors.KindInvalidVariant).
				Path(path...).WitType(s.Name).Detail("unknown case %q", name).Build()
		}
		c := s.Cases[i]
		if c.Shape == nil {
			if payload != nil {
				return Value{}, errors.InvalidData(errors.PhaseEncode, appendPath(path, name), "case has no payload")
			}
			return Variant(uint32(i)), nil
		}
		pv, err := lower(c.Shape, payload, appendPath(path, name))
		if err != nil {
			return Value{}, err
		}
		return Variant(uint32(i), pv), nil
	}
	panic("unreachable")
}

func lowerResult(s *Shape, v any, path []string) (Value, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return Value{}, mismatch(path, v, s)
	}
	if payload, ok := m["ok"]; ok {
		if s.Ok == nil {
			if payload != nil {
				return Value{}, errors.InvalidData(errors.PhaseEncode, path, "result has no ok payload")
			}
			return Ok(), nil
		}
		pv, err := lower(s.Ok, payload, appendPath(path, "ok"))
		if err != nil {
			return Value{}, err
		}
		return Ok(pv), nil
	}
	if payload, ok := m["err"]; ok {
		if s.Err == nil {
			if payload != nil {
				return Value{}, errors.InvalidData(errors.PhaseEncode, path, "result has no err payload")
			}
			return Err(), nil
		}
		pv, err := lower(s.Err, payload, appendPath(path, "err"))
		if err != nil {
			return Value{}, err
		}
		return Err(pv), nil
	}
	return Value{}, mismatch(path, v, s)
}

// Lift converts a canonical value of shape s back to the dynamic Go form
// accepted by Lower. A value that does not match s is rejected.
func Lift(s *Shape, v Value) (any, error) {
	return lift(s, v, nil)
}

func liftMismatch(path []string, v Value, s *Shape) error {
	return errors.TypeMismatch(errors.PhaseDecode, path, v.kind.String(), s.String())
}

func lift(s *Shape, v Value, path []string) (any, error) {
	if s == nil {
		return nil, errors.InvalidInput(errors.PhaseDecode, "cannot lift a unit type")
	}
	if v.kind != s.Kind {
		return nil, liftMismatch(path, v, s)
	}
	switch s.Kind {
	case KindBool:
		return v.Bool(), nil
	case KindS8:
		return int8(v.Int()), nil
	case KindS16:
		return int16(v.Int()), nil
	case KindS32:
		return int32(v.Int()), nil
	case KindS64:
		return v.Int(), nil
	case KindU8:
		return uint8(v.bits), nil
	case KindU16:
		return uint16(v.bits), nil
	case KindU32:
		return uint32(v.bits), nil
	case KindU64:
		return v.bits, nil
	case KindF32:
		return v.Float32(), nil
	case KindF64:
		return v.Float64(), nil
	case KindChar:
		if !utf8.ValidRune(v.Char()) {
			return nil, errors.InvalidData(errors.PhaseDecode, path, fmt.Sprintf("invalid char %#x", v.bits))
		}
		return v.Char(), nil
	case KindString:
		if !utf8.ValidString(v.str) {
			return nil, errors.InvalidUTF8(errors.PhaseDecode, path, []byte(v.str))
		}
		return v.str, nil
	case KindList:
		out := make([]any, len(v.elems))
		for i, e := range v.elems {
			x, err := lift(s.Elem, e, appendPath(path, fmt.Sprintf("[%d]", i)))
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case KindTuple:
		if len(v.elems) != len(s.Elems) {
			return nil, errors.InvalidData(errors.PhaseDecode, path,
				fmt.Sprintf("tuple has %d elements, want %d", len(v.elems), len(s.Elems)))
		}
		out := make([]any, len(v.elems))
		for i, e := range v.elems {
			x, err := lift(s.Elems[i], e, appendPath(path, fmt.Sprintf("%d", i)))
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case KindRecord:
		if len(v.elems) != len(s.Fields) {
			return nil, errors.InvalidData(errors.PhaseDecode, path,
				fmt.Sprintf("record has %d fields, want %d", len(v.elems), len(s.Fields)))
		}
		out := make(map[string]any, len(s.Fields))
		for i, f := range s.Fields {
			x, err := lift(f.Shape, v.elems[i], appendPath(path, f.Name))
			if err != nil {
				return nil, err
			}
			out[f.Name] = x
		}
		return out, nil
	case KindVariant:
		if int(v.bits) >= len(s.Cases) {
			return nil, errors.InvalidDiscriminant(errors.PhaseDecode, path, uint32(v.bits), uint32(len(s.Cases)-1))
		}
		c := s.Cases[v.bits]
		payload, err := liftPayload(c.Shape, v, appendPath(path, c.Name))
		if err != nil {
			return nil, err
		}
		return map[string]any{c.Name: payload}, nil
	case KindEnum:
		if int(v.bits) >= len(s.Names) {
			return nil, errors.InvalidEnum(errors.PhaseDecode, path, v.bits, s.Name)
		}
		return uint32(v.bits), nil
	case KindFlags:
		if len(s.Names) < 64 && v.bits>>uint(len(s.Names)) != 0 {
			return nil, errors.InvalidData(errors.PhaseDecode, path,
				fmt.Sprintf("flag bits %#x exceed %d flags", v.bits, len(s.Names)))
		}
		return v.bits, nil
	case KindOption:
		if !v.IsSome() {
			if v.has {
				return nil, errors.InvalidData(errors.PhaseDecode, path, "none carries a payload")
			}
			return nil, nil
		}
		if !v.has {
			return nil, errors.InvalidData(errors.PhaseDecode, path, "some without a value")
		}
		x, err := lift(s.Elem, *v.payload, path)
		if err != nil {
			return nil, err
		}
		if s.Elem.Kind == KindOption {
			return Present{Value: x}, nil
		}
		return x, nil
	case KindResult:
		key, ps := "ok", s.Ok
		if v.IsErr() {
			key, ps = "err", s.Err
		}
		payload, err := liftPayload(ps, v, appendPath(path, key))
		if err != nil {
			return nil, err
		}
		return map[string]any{key: payload}, nil
	case KindOwn, KindBorrow:
		return v.handle, nil
	}
	return nil, liftMismatch(path, v, s)
}

func liftPayload(s *Shape, v Value, path []string) (any, error) {
	if s == nil {
		if v.has {
			return nil, errors.InvalidData(errors.PhaseDecode, path, "unexpected payload")
		}
		return nil, nil
	}
	if !v.has {
		return nil, errors.InvalidData(errors.PhaseDecode, path, "missing payload")
	}
	return lift(s, *v.payload, path)
}

// Check validates that v is a well-formed value of shape s.
func Check(s *Shape, v Value) error {
	_, err := lift(s, v, nil)
	return err
}
