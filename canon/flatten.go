package canon

import (
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
)

// Canonical ABI flattening limits
const (
	MaxFlatParams  = 16
	MaxFlatResults = 1
)

// FlatSig is the core wasm signature of a lowered function import.
// IndirectParams means parameters are passed through a single pointer into
// linear memory; IndirectResult means the caller passes a return-area
// pointer as an extra trailing parameter.
type FlatSig struct {
	Params         []api.ValueType
	Results        []api.ValueType
	IndirectParams bool
	IndirectResult bool
}

// Flatten returns the core value types for s. bounded is false when s is
// value-recursive and therefore has no finite flat form.
func Flatten(s *Shape) (flat []api.ValueType, bounded bool) {
	f := &flattener{visiting: make(map[*wit.TypeDef]bool)}
	flat = f.flatten(WitType(s))
	return flat, !f.unbounded
}

// FlattenFunc computes the import signature for params and result, applying
// MaxFlatParams and MaxFlatResults.
func FlattenFunc(params []*Shape, result *Shape) FlatSig {
	var sig FlatSig
	bounded := true
	for _, p := range params {
		flat, ok := Flatten(p)
		bounded = bounded && ok
		sig.Params = append(sig.Params, flat...)
	}
	if !bounded || len(sig.Params) > MaxFlatParams {
		sig.Params = []api.ValueType{api.ValueTypeI32}
		sig.IndirectParams = true
	}
	if result != nil {
		flat, ok := Flatten(result)
		if !ok || len(flat) > MaxFlatResults {
			sig.Params = append(sig.Params, api.ValueTypeI32)
			sig.IndirectResult = true
		} else {
			sig.Results = flat
		}
	}
	return sig
}

// NeedsMemory reports whether values of s live in linear memory.
func NeedsMemory(s *Shape) bool {
	seen := make(map[*Shape]bool)
	var walk func(*Shape) bool
	walk = func(s *Shape) bool {
		if s == nil || seen[s] {
			return false
		}
		seen[s] = true
		if s.Kind == KindString || s.Kind == KindList {
			return true
		}
		for _, c := range Children(s) {
			if walk(c) {
				return true
			}
		}
		return false
	}
	return walk(s)
}

type flattener struct {
	visiting  map[*wit.TypeDef]bool
	unbounded bool
}

func (f *flattener) flatten(t wit.Type) []api.ValueType {
	switch v := t.(type) {
	case nil:
		return nil
	case wit.Bool, wit.U8, wit.U16, wit.U32, wit.S8, wit.S16, wit.S32, wit.Char:
		return []api.ValueType{api.ValueTypeI32}
	case wit.U64, wit.S64:
		return []api.ValueType{api.ValueTypeI64}
	case wit.F32:
		return []api.ValueType{api.ValueTypeF32}
	case wit.F64:
		return []api.ValueType{api.ValueTypeF64}
	case wit.String:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32} // ptr, len
	case *wit.TypeDef:
		if f.visiting[v] {
			f.unbounded = true
			return nil
		}
		f.visiting[v] = true
		defer delete(f.visiting, v)
		return f.flattenDef(v)
	}
	return []api.ValueType{api.ValueTypeI32}
}

func (f *flattener) flattenDef(td *wit.TypeDef) []api.ValueType {
	switch kind := td.Kind.(type) {
	case *wit.Record:
		var flat []api.ValueType
		for _, field := range kind.Fields {
			flat = append(flat, f.flatten(field.Type)...)
		}
		return flat
	case *wit.List:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	case *wit.Tuple:
		var flat []api.ValueType
		for _, elem := range kind.Types {
			flat = append(flat, f.flatten(elem)...)
		}
		return flat
	case *wit.Variant:
		var payload []api.ValueType
		for _, c := range kind.Cases {
			payload = join(payload, f.flatten(c.Type))
		}
		return append([]api.ValueType{api.ValueTypeI32}, payload...)
	case *wit.Enum:
		return []api.ValueType{api.ValueTypeI32}
	case *wit.Option:
		return append([]api.ValueType{api.ValueTypeI32}, f.flatten(kind.Type)...)
	case *wit.Result:
		payload := join(f.flatten(kind.OK), f.flatten(kind.Err))
		return append([]api.ValueType{api.ValueTypeI32}, payload...)
	case *wit.Flags:
		if len(kind.Flags) > 32 {
			return []api.ValueType{api.ValueTypeI64}
		}
		return []api.ValueType{api.ValueTypeI32}
	case *wit.Own, *wit.Borrow:
		return []api.ValueType{api.ValueTypeI32} // handle index
	}
	return []api.ValueType{api.ValueTypeI32}
}

// join merges a case's flat types into the shared payload slots.
func join(payload, caseFlat []api.ValueType) []api.ValueType {
	for i, ft := range caseFlat {
		if i < len(payload) {
			payload[i] = joinTypes(payload[i], ft)
		} else {
			payload = append(payload, ft)
		}
	}
	return payload
}

// joinTypes unions two core types for variant payloads
func joinTypes(a, b api.ValueType) api.ValueType {
	if a == b {
		return a
	}
	// 32-bit types can share storage
	if (a == api.ValueTypeI32 && b == api.ValueTypeF32) ||
		(a == api.ValueTypeF32 && b == api.ValueTypeI32) {
		return api.ValueTypeI32
	}
	return api.ValueTypeI64
}
