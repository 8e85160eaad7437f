package bridge

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/golemcloud/golem-cloud-cli/ast"
	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/errors"
	"github.com/golemcloud/golem-cloud-cli/parser"
	"github.com/golemcloud/golem-cloud-cli/resolve"
	"github.com/golemcloud/golem-cloud-cli/resource"
	"github.com/golemcloud/golem-cloud-cli/rpc"
	"github.com/golemcloud/golem-cloud-cli/rpc/rpctest"
	"github.com/golemcloud/golem-cloud-cli/stubgen"
)

const calcWIT = `
package golem:calc@1.0.0;

interface api {
	resource acc {
		constructor(start: s64);
		add: func(n: s64) -> s64;
	}
	add: func(a: s32, b: s32) -> s32;
	half: func(x: f64) -> f64;
}

world app {
	import api;
	import log: func(level: u8);
}
`

const (
	fnAdd    = "golem:calc/api@1.0.0.add"
	fnHalf   = "golem:calc/api@1.0.0.half"
	fnNew    = "golem:calc/api@1.0.0.[constructor]acc"
	fnAccAdd = "golem:calc/api@1.0.0.[method]acc.add"
	fnDrop   = "golem:calc/api@1.0.0.[drop]acc"
)

var accHandle = canon.Handle{URI: "urn:worker:calc-1", ID: 7}

func generate(t *testing.T, src string) *stubgen.Output {
	t.Helper()
	doc, err := parser.ParseFile("calc.wit", []byte(src))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	g, err := resolve.Resolve([]*ast.Document{doc})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	out, err := stubgen.New(g, canon.NewMapper(g), stubgen.Options{}).Generate("app")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return out
}

func setup(t *testing.T, rec *rpctest.Recorder) (*Bridge, api.Module) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	out := generate(t, calcWIT)
	b := New(rt, rec)
	if err := b.Bind(ctx, out.Modules); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	mod, err := b.Instantiate(ctx, out.Module("golem:calc/api@1.0.0"))
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	return b, mod
}

func call(t *testing.T, mod api.Module, name string, args ...uint64) []uint64 {
	t.Helper()
	fn := mod.ExportedFunction(name)
	if fn == nil {
		t.Fatalf("export %q missing", name)
	}
	res, err := fn.Call(context.Background(), args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

func TestScalarCalls(t *testing.T) {
	rec := rpctest.NewRecorder().
		Handle(fnAdd, func(_ context.Context, args []canon.Value) (canon.Value, error) {
			return canon.S32(int32(args[0].Int() + args[1].Int())), nil
		}).
		Handle(fnHalf, func(_ context.Context, args []canon.Value) (canon.Value, error) {
			return canon.F64(args[0].Float64() / 2), nil
		})
	_, mod := setup(t, rec)

	if got := api.DecodeI32(call(t, mod, fnAdd, api.EncodeI32(40), api.EncodeI32(2))[0]); got != 42 {
		t.Errorf("add(40, 2) = %d, want 42", got)
	}
	if got := api.DecodeI32(call(t, mod, fnAdd, api.EncodeI32(-5), api.EncodeI32(2))[0]); got != -3 {
		t.Errorf("add(-5, 2) = %d, want -3", got)
	}
	if got := api.DecodeF64(call(t, mod, fnHalf, api.EncodeF64(9))[0]); got != 4.5 {
		t.Errorf("half(9) = %v, want 4.5", got)
	}

	calls := rec.Calls()
	if len(calls) != 3 {
		t.Fatalf("len(Calls) = %d, want 3", len(calls))
	}
	if !calls[1].Args[0].Equal(canon.S32(-5)) {
		t.Errorf("Args[0] = %v, want s32(-5)", calls[1].Args[0])
	}
}

func TestResourceLifecycle(t *testing.T) {
	rec := rpctest.NewRecorder().
		Return(fnNew, canon.Own(accHandle)).
		Handle(fnAccAdd, func(_ context.Context, args []canon.Value) (canon.Value, error) {
			return canon.S64(100 + args[1].Int()), nil
		}).
		Return(fnDrop, canon.Value{})
	b, mod := setup(t, rec)

	idx := call(t, mod, fnNew, api.EncodeI64(5))[0]
	if idx == 0 {
		t.Fatal("constructor returned the reserved index")
	}
	if remote, ok := b.Table().Get(resource.Handle(uint32(idx))); !ok || remote != accHandle {
		t.Fatalf("Table().Get(%d) = %v, %t, want %v", idx, remote, ok, accHandle)
	}

	if got := call(t, mod, fnAccAdd, idx, api.EncodeI64(3))[0]; int64(got) != 103 {
		t.Errorf("acc.add = %d, want 103", int64(got))
	}
	if b.Table().Len() != 1 {
		t.Errorf("Len after method call = %d, want 1", b.Table().Len())
	}

	call(t, mod, fnDrop, idx)
	if b.Table().Len() != 0 {
		t.Errorf("Len after drop = %d, want 0", b.Table().Len())
	}

	calls := rec.Calls()
	if len(calls) != 3 {
		t.Fatalf("len(Calls) = %d, want 3", len(calls))
	}
	if !calls[1].Args[0].Equal(canon.Borrow(accHandle)) {
		t.Errorf("method self = %v, want %v", calls[1].Args[0], canon.Borrow(accHandle))
	}
	if !calls[2].Args[0].Equal(canon.Own(accHandle)) {
		t.Errorf("drop self = %v, want %v", calls[2].Args[0], canon.Own(accHandle))
	}

	if _, err := mod.ExportedFunction(fnDrop).Call(context.Background(), idx); err == nil {
		t.Error("second drop should fail")
	}
	if len(rec.Calls()) != 3 {
		t.Error("second drop reached the invoker")
	}
}

func TestTrap(t *testing.T) {
	rec := rpctest.NewRecorder().Fail(fnAdd, "worker crashed")
	_, mod := setup(t, rec)

	_, err := mod.ExportedFunction(fnAdd).Call(context.Background(), 1, 2)
	if err == nil {
		t.Fatal("Call succeeded, want trap")
	}
	var trap *rpc.Trap
	if !stderrors.As(err, &trap) {
		t.Fatalf("error %v is not a trap", err)
	}
	if trap.Failure.Kind != rpc.FailureRemote || trap.Failure.Function != fnAdd {
		t.Errorf("trap = %+v", trap.Failure)
	}
}

func TestUnknownHandle(t *testing.T) {
	rec := rpctest.NewRecorder()
	_, mod := setup(t, rec)

	if _, err := mod.ExportedFunction(fnAccAdd).Call(context.Background(), 9, 1); err == nil {
		t.Error("method on unknown handle succeeded")
	}
	if len(rec.Calls()) != 0 {
		t.Error("unknown handle reached the invoker")
	}
}

func TestBindRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("linear memory", func(t *testing.T) {
		rt := wazero.NewRuntime(ctx)
		defer rt.Close(ctx)

		out := generate(t, `
package golem:it@1.0.0;

interface api {
	greet: func(name: string) -> string;
}

world app {
	import api;
}
`)
		err := New(rt, rpctest.NewRecorder()).Bind(ctx, out.Modules)
		if !stderrors.Is(err, errors.New(errors.PhaseBind, errors.KindUnsupported).Build()) {
			t.Errorf("Bind error = %v, want bind unsupported", err)
		}
	})

	t.Run("bound twice", func(t *testing.T) {
		rt := wazero.NewRuntime(ctx)
		defer rt.Close(ctx)

		out := generate(t, calcWIT)
		b := New(rt, rpctest.NewRecorder())
		if err := b.Bind(ctx, out.Modules); err != nil {
			t.Fatalf("Bind failed: %v", err)
		}
		if err := b.Bind(ctx, out.Modules); err == nil {
			t.Error("second Bind succeeded")
		}
		if err := b.Close(ctx); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
}
