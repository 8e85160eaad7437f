package ast

// DeclKind is the kind of a named type declaration.
type DeclKind int

const (
	DeclAlias DeclKind = iota
	DeclRecord
	DeclVariant
	DeclEnum
	DeclFlags
	DeclResource
)

func (k DeclKind) String() string {
	switch k {
	case DeclAlias:
		return "type"
	case DeclRecord:
		return "record"
	case DeclVariant:
		return "variant"
	case DeclEnum:
		return "enum"
	case DeclFlags:
		return "flags"
	case DeclResource:
		return "resource"
	}
	return "unknown"
}

// TypeDecl is a named type declaration. Which fields are populated depends on
// Kind: Alias for type aliases, Fields for records, Cases for variants, Names
// for enums and flags, Methods for resources.
type TypeDecl struct {
	Pos     Pos
	Name    string
	Kind    DeclKind
	Alias   *Type
	Fields  []*Field
	Cases   []*Case
	Names   []*Ident
	Methods []*Func
}

type Field struct {
	Pos  Pos
	Name string
	Type *Type
}

// Case is a variant case; Type is nil when the case has no payload.
type Case struct {
	Pos  Pos
	Name string
	Type *Type
}

type Ident struct {
	Pos  Pos
	Name string
}

type FuncKind int

const (
	FuncFree FuncKind = iota
	FuncConstructor
	FuncMethod
	FuncStatic
)

func (k FuncKind) String() string {
	switch k {
	case FuncConstructor:
		return "constructor"
	case FuncMethod:
		return "method"
	case FuncStatic:
		return "static"
	}
	return "func"
}

// Func is a function signature. Result is nil for functions returning nothing.
type Func struct {
	Pos    Pos
	Name   string
	Kind   FuncKind
	Params []*Param
	Result *Type
}

type Param struct {
	Pos  Pos
	Name string
	Type *Type
}

// TypeKind discriminates type expressions.
type TypeKind int

const (
	Bool TypeKind = iota
	S8
	S16
	S32
	S64
	U8
	U16
	U32
	U64
	F32
	F64
	Char
	String
	List
	Option
	Result
	Tuple
	Own
	Borrow
	Named
)

var typeKindNames = [...]string{
	Bool:   "bool",
	S8:     "s8",
	S16:    "s16",
	S32:    "s32",
	S64:    "s64",
	U8:     "u8",
	U16:    "u16",
	U32:    "u32",
	U64:    "u64",
	F32:    "f32",
	F64:    "f64",
	Char:   "char",
	String: "string",
	List:   "list",
	Option: "option",
	Result: "result",
	Tuple:  "tuple",
	Own:    "own",
	Borrow: "borrow",
	Named:  "named",
}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return "unknown"
}

// Primitive reports whether k carries no type arguments.
func (k TypeKind) Primitive() bool { return k <= String }

// Type is a type expression.
//
//	List, Option: Elem
//	Result:       Ok, Err (either may be nil)
//	Tuple:        Elems
//	Own, Borrow, Named: Name
type Type struct {
	Pos   Pos
	Kind  TypeKind
	Name  string
	Elem  *Type
	Ok    *Type
	Err   *Type
	Elems []*Type
}

// String renders the expression in WIT syntax.
func (t *Type) String() string {
	if t == nil {
		return "_"
	}
	switch t.Kind {
	case List, Option:
		return t.Kind.String() + "<" + t.Elem.String() + ">"
	case Result:
		switch {
		case t.Ok == nil && t.Err == nil:
			return "result"
		case t.Err == nil:
			return "result<" + t.Ok.String() + ">"
		}
		return "result<" + t.Ok.String() + ", " + t.Err.String() + ">"
	case Tuple:
		s := "tuple<"
		for i, e := range t.Elems {
			if i > 0 {
				s += ", "
			}
			s += e.String()
		}
		return s + ">"
	case Own, Borrow:
		return t.Kind.String() + "<" + t.Name + ">"
	case Named:
		return t.Name
	}
	return t.Kind.String()
}
