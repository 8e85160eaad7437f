package canon

import (
	"strconv"
	"strings"

	"github.com/golemcloud/golem-cloud-cli/resolve"
)

// Kind enumerates the closed canonical type algebra.
type Kind uint8

const (
	KindBool Kind = iota
	KindS8
	KindS16
	KindS32
	KindS64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindChar
	KindString
	KindList
	KindOption
	KindResult
	KindTuple
	KindRecord
	KindVariant
	KindEnum
	KindFlags
	KindOwn
	KindBorrow
)

var kindNames = [...]string{
	KindBool:    "bool",
	KindS8:      "s8",
	KindS16:     "s16",
	KindS32:     "s32",
	KindS64:     "s64",
	KindU8:      "u8",
	KindU16:     "u16",
	KindU32:     "u32",
	KindU64:     "u64",
	KindF32:     "f32",
	KindF64:     "f64",
	KindChar:    "char",
	KindString:  "string",
	KindList:    "list",
	KindOption:  "option",
	KindResult:  "result",
	KindTuple:   "tuple",
	KindRecord:  "record",
	KindVariant: "variant",
	KindEnum:    "enum",
	KindFlags:   "flags",
	KindOwn:     "own",
	KindBorrow:  "borrow",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Primitive reports whether k has no component shapes.
func (k Kind) Primitive() bool { return k <= KindString }

// Shape is the canonical form of a WIT type. Named shapes (record, variant,
// enum, flags) and handles carry the declaring TypeID; anonymous shapes have
// ID -1. Recursive declarations are represented by shared *Shape pointers.
//
//	list, option:  Elem
//	result:        Ok, Err (nil when absent)
//	tuple:         Elems
//	record:        Fields
//	variant:       Cases
//	enum, flags:   Names
//	own, borrow:   Name and ID of the resource
type Shape struct {
	Kind   Kind
	Name   string
	ID     resolve.TypeID
	Elem   *Shape
	Ok     *Shape
	Err    *Shape
	Elems  []*Shape
	Fields []ShapeField
	Cases  []ShapeCase
	Names  []string
}

type ShapeField struct {
	Name  string
	Shape *Shape
}

// ShapeCase is a variant case; Shape is nil for payload-free cases.
type ShapeCase struct {
	Name  string
	Shape *Shape
}

// Named reports whether the shape comes from a named declaration.
func (s *Shape) Named() bool { return s.ID >= 0 }

// String renders the shape in WIT syntax. Named shapes print their name.
func (s *Shape) String() string {
	if s == nil {
		return "_"
	}
	switch s.Kind {
	case KindRecord, KindVariant, KindEnum, KindFlags:
		return s.Name
	case KindOwn, KindBorrow:
		return s.Kind.String() + "<" + s.Name + ">"
	case KindList, KindOption:
		return s.Kind.String() + "<" + s.Elem.String() + ">"
	case KindResult:
		switch {
		case s.Ok == nil && s.Err == nil:
			return "result"
		case s.Err == nil:
			return "result<" + s.Ok.String() + ">"
		}
		return "result<" + s.Ok.String() + ", " + s.Err.String() + ">"
	case KindTuple:
		parts := make([]string, len(s.Elems))
		for i, e := range s.Elems {
			parts[i] = e.String()
		}
		return "tuple<" + strings.Join(parts, ", ") + ">"
	}
	return s.Kind.String()
}

// Field returns the index of the named record field, or -1.
func (s *Shape) Field(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Case returns the index of the named variant case or enum case, or -1.
func (s *Shape) Case(name string) int {
	if s.Kind == KindEnum {
		for i, n := range s.Names {
			if n == name {
				return i
			}
		}
		return -1
	}
	for i, c := range s.Cases {
		if c.Name == name {
			return i
		}
	}
	return -1
}

var primitiveShapes = func() [KindString + 1]*Shape {
	var out [KindString + 1]*Shape
	for k := KindBool; k <= KindString; k++ {
		out[k] = &Shape{Kind: k, ID: -1}
	}
	return out
}()

// Primitive returns the shared shape for a primitive kind.
func Primitive(k Kind) *Shape {
	if !k.Primitive() {
		return nil
	}
	return primitiveShapes[k]
}
