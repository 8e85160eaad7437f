package errors

import (
	"fmt"
	"strings"
)

// Phase names the pipeline stage, or the value conversion, that failed.
type Phase string

const (
	PhaseParse    Phase = "parse"    // WIT text to syntax tree
	PhaseResolve  Phase = "resolve"  // syntax trees to interface graph
	PhaseMap      Phase = "map"      // graph types to canonical shapes
	PhaseGenerate Phase = "generate" // stub modules and Go sources
	PhaseCompose  Phase = "compose"  // stubs into the component binary
	PhaseEncode   Phase = "encode"   // Go value or wire bytes from a canonical value
	PhaseDecode   Phase = "decode"   // canonical value from Go value or wire bytes
	PhaseInvoke   Phase = "invoke"   // remote invocation
	PhaseBind     Phase = "bind"     // host binding of stub core modules
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindFieldMissing   Kind = "field_missing"
	KindFieldUnknown   Kind = "field_unknown"
	KindInvalidUTF8    Kind = "invalid_utf8"
	KindOverflow       Kind = "overflow"
	KindInvalidEnum    Kind = "invalid_enum"
	KindInvalidVariant Kind = "invalid_variant"
	KindNotFound       Kind = "not_found"
	KindInvalidInput   Kind = "invalid_input"
	KindArity          Kind = "arity"
)

// Error is the structured error shared by every stage. Path locates the
// offending value inside a canonical value (field, case and index names);
// GoType and WitType name the two sides of a failed conversion.
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	WitType string
	Detail  string
	Path    []string
}

// Error renders "[phase] kind at a.b: Go type T, WIT type U - detail (caused by: ...)".
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Phase, e.Kind)
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	var types []string
	if e.GoType != "" {
		types = append(types, "Go type "+e.GoType)
	}
	if e.WitType != "" {
		types = append(types, "WIT type "+e.WitType)
	}
	sep := ": "
	if len(types) > 0 {
		b.WriteString(sep)
		b.WriteString(strings.Join(types, ", "))
		sep = " - "
	}
	if e.Detail != "" {
		b.WriteString(sep)
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error with the same phase and kind; callers compare
// against New(phase, kind).Build().
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder assembles an Error field by field.
type Builder struct {
	err Error
}

func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

func (b *Builder) WitType(t string) *Builder {
	b.err.WitType = t
	return b
}

func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the message, formatting it when args are given.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	b.err.Detail = msg
	return b
}

func (b *Builder) Build() *Error {
	return &b.err
}

// Value conversion errors. path is the location inside the canonical value.

func TypeMismatch(phase Phase, path []string, goType, witType string) *Error {
	return New(phase, KindTypeMismatch).Path(path...).GoType(goType).WitType(witType).Build()
}

func Overflow(phase Phase, path []string, value any, witType string) *Error {
	return New(phase, KindOverflow).Path(path...).WitType(witType).Value(value).
		Detail("value %v overflows %s", value, witType).Build()
}

// InvalidUTF8 shows at most the first 32 bytes of data.
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data[:min(len(data), 32)]
	return New(phase, KindInvalidUTF8).Path(path...).
		Detail("invalid UTF-8 sequence: %x", preview).Build()
}

func FieldMissing(phase Phase, path []string, field string) *Error {
	return New(phase, KindFieldMissing).Path(path...).
		Detail("required field %q not found", field).Build()
}

func FieldUnknown(phase Phase, path []string, field string) *Error {
	return New(phase, KindFieldUnknown).Path(path...).
		Detail("unknown field %q", field).Build()
}

// InvalidDiscriminant reports a variant or enum case index past maxValid.
func InvalidDiscriminant(phase Phase, path []string, disc, maxValid uint32) *Error {
	return New(phase, KindInvalidVariant).Path(path...).Value(disc).
		Detail("discriminant %d out of range (max %d)", disc, maxValid).Build()
}

func InvalidEnum(phase Phase, path []string, value any, enumType string) *Error {
	return New(phase, KindInvalidEnum).Path(path...).WitType(enumType).Value(value).
		Detail("invalid enum value %v for %s", value, enumType).Build()
}

func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return New(phase, KindOutOfBounds).Path(path...).Value(index).
		Detail("index %d out of bounds (length %d)", index, length).Build()
}

func InvalidData(phase Phase, path []string, detail string) *Error {
	return New(phase, KindInvalidData).Path(path...).Detail(detail).Build()
}

// Arity reports a call with the wrong number of arguments.
func Arity(phase Phase, what string, want, got int) *Error {
	return New(phase, KindArity).
		Detail("%s expects %d argument(s), got %d", what, want, got).Build()
}

// Stage errors.

func Unsupported(phase Phase, what string) *Error {
	return New(phase, KindUnsupported).Detail(what).Build()
}

func NotFound(phase Phase, what, name string) *Error {
	return New(phase, KindNotFound).Detail("%s %q not found", what, name).Build()
}

func InvalidInput(phase Phase, detail string) *Error {
	return New(phase, KindInvalidInput).Detail(detail).Build()
}

// Wrap attaches a phase and kind to cause.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return New(phase, kind).Cause(cause).Detail(detail).Build()
}
