package errors

import (
	"fmt"
	"strings"
)

// Position locates a construct in a WIT source file. Line and Column are 1-based.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// ParseError reports malformed WIT text.
type ParseError struct {
	Pos      Position
	Expected string
	Found    string
	Detail   string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Pos.String())
	b.WriteString(": ")
	switch {
	case e.Expected != "" && e.Found != "":
		fmt.Fprintf(&b, "expected %s, found %s", e.Expected, e.Found)
	case e.Expected != "":
		fmt.Fprintf(&b, "expected %s", e.Expected)
	}
	if e.Detail != "" {
		if e.Expected != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Stage names the pipeline stage that produced the error.
func (e *ParseError) Stage() Phase { return PhaseParse }

// Is reports whether target is a ParseError.
func (e *ParseError) Is(target error) bool {
	_, ok := target.(*ParseError)
	return ok
}

// ResolutionError reports an unresolved reference, an illegal import cycle, or
// a reference that resolves to the wrong kind of declaration. Cycle is set only
// for cycles; Detail replaces the default "unresolved reference" wording.
type ResolutionError struct {
	Pos    Position
	Symbol string
	Cycle  []string
	Detail string
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	if e.Pos.Line > 0 {
		b.WriteString(e.Pos.String())
		b.WriteString(": ")
	}
	switch {
	case len(e.Cycle) > 0:
		if e.Detail != "" {
			b.WriteString(e.Detail)
		} else {
			b.WriteString("import cycle through function signatures")
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Cycle, " -> "))
	case e.Detail != "":
		fmt.Fprintf(&b, "%q: %s", e.Symbol, e.Detail)
	default:
		fmt.Fprintf(&b, "unresolved reference %q", e.Symbol)
	}
	return b.String()
}

// Stage names the pipeline stage that produced the error.
func (e *ResolutionError) Stage() Phase { return PhaseResolve }

// Is reports whether target is a ResolutionError.
func (e *ResolutionError) Is(target error) bool {
	_, ok := target.(*ResolutionError)
	return ok
}

// UncoveredImport is a component import that no stub module satisfies.
type UncoveredImport struct {
	Name string // e.g. "golem:it/api@1.0.0"
	Kind string // "instance" or "func"
}

// CompositionError reports that generated stubs do not satisfy the component's
// import surface, or that its export surface could not be preserved.
type CompositionError struct {
	Cause     error
	Detail    string
	Uncovered []UncoveredImport
}

func (e *CompositionError) Error() string {
	var b strings.Builder
	if len(e.Uncovered) > 0 {
		fmt.Fprintf(&b, "%d import(s) not covered by generated stubs:", len(e.Uncovered))
		for _, imp := range e.Uncovered {
			b.WriteString("\n  - ")
			b.WriteString(imp.Name)
			if imp.Kind != "" {
				b.WriteString(" (")
				b.WriteString(imp.Kind)
				b.WriteByte(')')
			}
		}
	}
	if e.Detail != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	if b.Len() == 0 {
		return "composition failed"
	}
	return b.String()
}

func (e *CompositionError) Unwrap() error { return e.Cause }

// Stage names the pipeline stage that produced the error.
func (e *CompositionError) Stage() Phase { return PhaseCompose }

// Is reports whether target is a CompositionError.
func (e *CompositionError) Is(target error) bool {
	_, ok := target.(*CompositionError)
	return ok
}

// InvariantError signals an internal defect: a stage received input that an
// earlier stage should have rejected.
type InvariantError struct {
	Phase  Phase
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("internal invariant violated in %s: %s", e.Phase, e.Detail)
}

// Is reports whether target is an InvariantError.
func (e *InvariantError) Is(target error) bool {
	_, ok := target.(*InvariantError)
	return ok
}

// Invariant panics with an InvariantError. Used where a resolved graph is
// inconsistent; such panics are recovered only at the pipeline boundary.
func Invariant(phase Phase, format string, args ...any) {
	panic(&InvariantError{Phase: phase, Detail: fmt.Sprintf(format, args...)})
}

// Staged is implemented by terminal errors that name their pipeline stage.
type Staged interface {
	error
	Stage() Phase
}
