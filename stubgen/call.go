package stubgen

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/errors"
	"github.com/golemcloud/golem-cloud-cli/rpc"
)

// Call executes the stub with dynamic Go arguments (see canon.Lower for the
// conventions). The declared result is returned in the canon.Lift form; a
// function without a result returns nil.
//
// An invocation failure on a function whose result is result<Ok, Err>
// becomes the Err case; otherwise Call returns *rpc.Trap. Errors lowering
// the arguments are returned as-is and nothing is invoked.
func (f *Func) Call(ctx context.Context, inv rpc.Invoker, args ...any) (any, error) {
	if len(args) != len(f.Params) {
		return nil, errors.Arity(errors.PhaseEncode, f.Identity, len(f.Params), len(args))
	}
	values := make([]canon.Value, len(args))
	for i, a := range args {
		v, err := canon.Lower(f.Params[i].Shape, a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %q: %w", f.Identity, f.Params[i].Name, err)
		}
		values[i] = v
	}

	r, err := f.Invoke(ctx, inv, values)
	if err != nil || f.Result == nil {
		return nil, err
	}
	return canon.Lift(f.Result, r)
}

// Invoke executes the stub on canonical values. It applies the same failure
// mapping as Call: a returned error is always *rpc.Trap or an argument error.
func (f *Func) Invoke(ctx context.Context, inv rpc.Invoker, args []canon.Value) (canon.Value, error) {
	if len(args) != len(f.Params) {
		return canon.Value{}, errors.Arity(errors.PhaseEncode, f.Identity, len(f.Params), len(args))
	}
	for i, a := range args {
		if err := canon.Check(f.Params[i].Shape, a); err != nil {
			return canon.Value{}, fmt.Errorf("%s: argument %q: %w", f.Identity, f.Params[i].Name, err)
		}
	}

	r, failure := rpc.Call(ctx, inv, f.Identity, f.Result, args)
	if failure == nil {
		return r, nil
	}

	if f.ErrorChannel {
		Logger().Debug("invocation failure mapped to error case",
			zap.String("function", f.Identity),
			zap.Stringer("kind", failure.Kind),
			zap.Error(failure))
		return rpc.ErrorResult(f.Result, failure), nil
	}
	Logger().Debug("invocation failure trapped",
		zap.String("function", f.Identity),
		zap.Stringer("kind", failure.Kind),
		zap.Error(failure))
	return canon.Value{}, &rpc.Trap{Failure: failure}
}

// Proxy is a local stand-in for a remote resource. It never dereferences the
// handle; every call forwards the remote identity through the invoker.
type Proxy struct {
	Resource *Resource
	Handle   canon.Handle
}

// Proxy wraps an existing remote handle.
func (r *Resource) Proxy(h canon.Handle) *Proxy {
	return &Proxy{Resource: r, Handle: h}
}

// New calls the resource constructor and wraps the returned handle.
func (r *Resource) New(ctx context.Context, inv rpc.Invoker, args ...any) (*Proxy, error) {
	if r.Constructor == nil {
		return nil, errors.NotFound(errors.PhaseInvoke, "constructor of resource", r.Name)
	}
	out, err := r.Constructor.Call(ctx, inv, args...)
	if err != nil {
		return nil, err
	}
	h, ok := out.(canon.Handle)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseDecode, []string{r.Name}, fmt.Sprintf("%T", out), "own<"+r.Name+">")
	}
	return r.Proxy(h), nil
}

// Call invokes a method (with the proxy's handle as self) or a static
// function of the resource.
func (p *Proxy) Call(ctx context.Context, inv rpc.Invoker, method string, args ...any) (any, error) {
	f := p.Resource.Method(method)
	if f == nil {
		return nil, errors.NotFound(errors.PhaseInvoke, "method", p.Resource.Name+"."+method)
	}
	if f.Kind == FuncMethod {
		args = append([]any{p.Handle}, args...)
	}
	return f.Call(ctx, inv, args...)
}

// Drop releases the remote resource.
func (p *Proxy) Drop(ctx context.Context, inv rpc.Invoker) error {
	if p.Resource.Drop == nil {
		return nil
	}
	_, err := p.Resource.Drop.Call(ctx, inv, p.Handle)
	return err
}
