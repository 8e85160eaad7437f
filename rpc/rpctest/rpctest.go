// Package rpctest provides an in-memory Invoker for tests of generated stubs.
package rpctest

import (
	"context"
	"sync"

	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/rpc"
)

// Call is one recorded invocation.
type Call struct {
	Function string
	Args     []canon.Value
}

// Handler answers a call.
type Handler func(ctx context.Context, args []canon.Value) (canon.Value, error)

// Recorder is an Invoker that records every call and answers from
// registered handlers. Calls to functions without a handler fail with
// rpc.FailureNotFound.
type Recorder struct {
	handlers map[string]Handler
	calls    []Call
	mu       sync.Mutex
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{handlers: make(map[string]Handler)}
}

// Handle registers h for function.
func (r *Recorder) Handle(function string, h Handler) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[function] = h
	return r
}

// Return registers a handler that always returns v.
func (r *Recorder) Return(function string, v canon.Value) *Recorder {
	return r.Handle(function, func(context.Context, []canon.Value) (canon.Value, error) {
		return v, nil
	})
}

// Fail registers a handler that always fails with a remote failure.
func (r *Recorder) Fail(function, message string) *Recorder {
	return r.Handle(function, func(context.Context, []canon.Value) (canon.Value, error) {
		return canon.Value{}, &rpc.InvocationFailure{Function: function, Kind: rpc.FailureRemote, Message: message}
	})
}

func (r *Recorder) Invoke(ctx context.Context, function string, args []canon.Value) (canon.Value, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Function: function, Args: append([]canon.Value(nil), args...)})
	h := r.handlers[function]
	r.mu.Unlock()

	if h == nil {
		return canon.Value{}, &rpc.InvocationFailure{Function: function, Kind: rpc.FailureNotFound,
			Message: "no handler for " + function}
	}
	return h(ctx, args)
}

// Calls returns a copy of the recorded calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Reset forgets recorded calls but keeps handlers.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
