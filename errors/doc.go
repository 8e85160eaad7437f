// Package errors provides structured error types for the stub generator.
//
// Errors are categorized by Phase (which pipeline stage produced them) and Kind
// (error category). The Error type carries a value path, WIT type name, detail
// text and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("user", "age").
//		GoType("string").
//		WitType("u32").
//		Detail("cannot convert string to integer").
//		Build()
//
// Three terminal, user-facing failures end a build: ParseError (malformed WIT
// text), ResolutionError (unresolved reference or illegal import cycle) and
// CompositionError (stubs do not cover the component's imports, or its exports
// could not be preserved). InvariantError marks a defect in the tool itself and
// is never formatted as user guidance.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
