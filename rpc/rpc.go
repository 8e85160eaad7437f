// Package rpc defines the remote-invocation contract consumed by generated
// stubs. The platform implements Invoker; stubs only call it.
package rpc

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/golemcloud/golem-cloud-cli/canon"
)

// Invoker performs one synchronous remote call. function is the fully
// qualified identity of the callee, e.g. "golem:shop/cart@1.0.0.add-item" or
// "calc.add". A function without a result returns an unspecified Value that
// callers ignore.
type Invoker interface {
	Invoke(ctx context.Context, function string, args []canon.Value) (canon.Value, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, function string, args []canon.Value) (canon.Value, error)

func (f InvokerFunc) Invoke(ctx context.Context, function string, args []canon.Value) (canon.Value, error) {
	return f(ctx, function, args)
}

// FailureKind classifies an invocation-layer failure.
type FailureKind uint8

const (
	// FailureTransport covers connection and delivery errors.
	FailureTransport FailureKind = iota
	// FailureRemote means the callee ran and failed.
	FailureRemote
	// FailureNotFound means the callee does not export the function.
	FailureNotFound
	// FailureCanceled means the context ended before a response arrived.
	FailureCanceled
	// FailureProtocol means the response could not be decoded against the
	// declared result shape.
	FailureProtocol
)

var failureNames = [...]string{
	FailureTransport: "transport",
	FailureRemote:    "remote",
	FailureNotFound:  "not found",
	FailureCanceled:  "canceled",
	FailureProtocol:  "protocol",
}

func (k FailureKind) String() string {
	if int(k) < len(failureNames) {
		return failureNames[k]
	}
	return fmt.Sprintf("failure(%d)", k)
}

// InvocationFailure is an error produced below the callee's own error
// taxonomy. Stubs map it into the callee's error channel or trap.
type InvocationFailure struct {
	Cause    error
	Function string
	Message  string
	Kind     FailureKind
}

func (f *InvocationFailure) Error() string {
	msg := f.Message
	if msg == "" && f.Cause != nil {
		msg = f.Cause.Error()
	}
	if msg == "" {
		msg = f.Kind.String() + " failure"
	}
	if f.Function == "" {
		return "invoke: " + msg
	}
	return "invoke " + f.Function + ": " + msg
}

func (f *InvocationFailure) Unwrap() error { return f.Cause }

// AsFailure normalizes any error returned by an Invoker into an
// InvocationFailure for function.
func AsFailure(function string, err error) *InvocationFailure {
	var f *InvocationFailure
	if stderrors.As(err, &f) {
		if f.Function == "" {
			cp := *f
			cp.Function = function
			return &cp
		}
		return f
	}
	kind := FailureTransport
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		kind = FailureCanceled
	}
	return &InvocationFailure{Function: function, Kind: kind, Cause: err}
}

// Trap reports an invocation failure on a function that has no error
// channel. It is never converted into a zero result.
type Trap struct {
	Failure *InvocationFailure
}

func (t *Trap) Error() string {
	return "trap: " + t.Failure.Error()
}

func (t *Trap) Unwrap() error { return t.Failure }

// Call invokes function and checks the response against result, which is
// nil for a function without one. A response of the wrong shape is a
// FailureProtocol failure.
func Call(ctx context.Context, inv Invoker, function string, result *canon.Shape, args []canon.Value) (canon.Value, *InvocationFailure) {
	r, err := inv.Invoke(ctx, function, args)
	if err == nil && result != nil {
		if cerr := canon.Check(result, r); cerr != nil {
			err = &InvocationFailure{Function: function, Kind: FailureProtocol, Message: "malformed result", Cause: cerr}
		}
	}
	if err != nil {
		return canon.Value{}, AsFailure(function, err)
	}
	if result == nil {
		return canon.Value{}, nil
	}
	return r, nil
}

// Must is Call for a function without an error channel. Failures panic
// with *Trap.
func Must(ctx context.Context, inv Invoker, function string, result *canon.Shape, args []canon.Value) canon.Value {
	r, f := Call(ctx, inv, function, result, args)
	if f != nil {
		panic(&Trap{Failure: f})
	}
	return r
}

// Try is Call for a function returning result<Ok, Err>. Failures are
// returned as the error case.
func Try(ctx context.Context, inv Invoker, function string, result *canon.Shape, args []canon.Value) canon.Value {
	r, f := Call(ctx, inv, function, result, args)
	if f != nil {
		return ErrorResult(result, f)
	}
	return r
}

// Result is the Go rendering of a WIT result<T, E> used by generated code.
type Result[T, E any] struct {
	OK    T
	Err   E
	IsErr bool
}

// Ok returns the ok case.
func Ok[T, E any](v T) Result[T, E] { return Result[T, E]{OK: v} }

// Fail returns the error case.
func Fail[T, E any](e E) Result[T, E] { return Result[T, E]{Err: e, IsErr: true} }

// Unwrap returns the ok value, or the error case wrapped in *ResultError.
func (r Result[T, E]) Unwrap() (T, error) {
	if r.IsErr {
		var zero T
		return zero, &ResultError{Value: r.Err}
	}
	return r.OK, nil
}

// ResultError carries the error case of a Result through a Go error.
type ResultError struct {
	Value any
}

func (e *ResultError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", e.Value)
}
