// Package bridge runs synthesized stub modules locally. It implements the
// host module the stubs import from, forwarding every call through an
// rpc.Invoker and keeping the guest's resource handles in a table.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/component"
	"github.com/golemcloud/golem-cloud-cli/errors"
	"github.com/golemcloud/golem-cloud-cli/packager"
	"github.com/golemcloud/golem-cloud-cli/resource"
	"github.com/golemcloud/golem-cloud-cli/rpc"
	"github.com/golemcloud/golem-cloud-cli/stubgen"
)

// Bridge binds stub modules to a wazero runtime.
type Bridge struct {
	rt    wazero.Runtime
	inv   rpc.Invoker
	table *resource.Table
	host  api.Module
	funcs map[string]*stubgen.Func
	mu    sync.Mutex
}

// New creates a bridge that forwards calls to inv.
func New(rt wazero.Runtime, inv rpc.Invoker) *Bridge {
	return &Bridge{
		rt:    rt,
		inv:   inv,
		table: resource.NewTable(),
		funcs: make(map[string]*stubgen.Func),
	}
}

// Table returns the guest resource table.
func (b *Bridge) Table() *resource.Table { return b.table }

// Bind instantiates the host module for every function of modules. It may
// be called once; functions whose flat signature needs linear memory are
// rejected because the stubs forward only core stack values.
func (b *Bridge) Bind(ctx context.Context, modules []*stubgen.Module) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.host != nil {
		return errors.InvalidInput(errors.PhaseBind, "host module already bound")
	}

	builder := b.rt.NewHostModuleBuilder(packager.HostModule)
	for _, mod := range modules {
		for _, f := range mod.Funcs {
			if err := bindable(f); err != nil {
				return err
			}
			if _, dup := b.funcs[f.Identity]; dup {
				return errors.InvalidInput(errors.PhaseBind, "duplicate function "+f.Identity)
			}
			b.funcs[f.Identity] = f
			builder.NewFunctionBuilder().
				WithGoModuleFunction(b.hostFunc(f), f.Sig.Params, f.Sig.Results).
				Export(f.Identity)
		}
	}

	host, err := builder.Instantiate(ctx)
	if err != nil {
		return errors.Wrap(errors.PhaseBind, errors.KindInvalidData, err, "instantiate host module")
	}
	b.host = host
	Logger().Debug("host module bound",
		zap.String("module", packager.HostModule),
		zap.Int("functions", len(b.funcs)))
	return nil
}

// Instantiate builds the forwarding core module for mod and instantiates it
// under its interface identity. Bind must have been called first.
func (b *Bridge) Instantiate(ctx context.Context, mod *stubgen.Module) (api.Module, error) {
	cb := component.NewCoreModuleBuilder(packager.HostModule)
	for _, f := range mod.Funcs {
		cb.AddFunc(f.Identity, f.Sig.Params, f.Sig.Results)
	}
	inst, err := b.rt.InstantiateWithConfig(ctx, cb.Build(),
		wazero.NewModuleConfig().WithName(mod.Interface))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBind, errors.KindInvalidData, err, "instantiate stub module "+mod.Interface)
	}
	return inst, nil
}

// Close closes the host module and releases the resource table. Handles
// the guest still holds are logged, not dropped remotely.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if live := b.table.Live(); len(live) > 0 {
		Logger().Warn("closing with live resource handles", zap.Int("count", len(live)))
	}
	var err error
	if b.host != nil {
		err = b.host.Close(ctx)
		b.host = nil
	}
	if cerr := b.table.Close(); err == nil {
		err = cerr
	}
	return err
}

func bindable(f *stubgen.Func) error {
	for _, p := range f.Params {
		if canon.NeedsMemory(p.Shape) {
			return errors.Unsupported(errors.PhaseBind,
				fmt.Sprintf("%s: parameter %q of type %s needs linear memory", f.Identity, p.Name, p.Shape))
		}
	}
	if f.Result != nil && canon.NeedsMemory(f.Result) {
		return errors.Unsupported(errors.PhaseBind,
			fmt.Sprintf("%s: result type %s needs linear memory", f.Identity, f.Result))
	}
	if f.Sig.IndirectParams || f.Sig.IndirectResult {
		return errors.Unsupported(errors.PhaseBind, f.Identity+": flat signature is passed indirectly")
	}
	return nil
}

// hostFunc lifts the guest's flat arguments, invokes the remote function
// and lowers the result back onto the stack. Failures that cannot reach an
// error channel panic with *rpc.Trap; wazero turns the panic into the
// guest call's error.
func (b *Bridge) hostFunc(f *stubgen.Func) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		call := &callTable{table: b.table}
		defer call.release()

		args, err := b.lift(f, stack[:len(f.Sig.Params)], call)
		if err != nil {
			panic(err)
		}

		res, err := f.Invoke(ctx, b.inv, args)
		if err != nil {
			panic(err)
		}
		if f.Result == nil {
			return
		}

		flat, err := canon.LowerFlat(f.Result, res, b.table)
		if err != nil {
			panic(err)
		}
		copy(stack, flat)
	}
}

func (b *Bridge) lift(f *stubgen.Func, flat []uint64, ht canon.HandleTable) ([]canon.Value, error) {
	if f.Kind == stubgen.FuncDrop {
		// The guest gives up its index; the remote side owns the release.
		remote, err := b.table.Remove(resource.Handle(uint32(flat[0])))
		if err != nil {
			return nil, errors.Wrap(errors.PhaseBind, errors.KindInvalidData, err, f.Identity)
		}
		return []canon.Value{canon.Own(remote)}, nil
	}

	args := make([]canon.Value, len(f.Params))
	for i, p := range f.Params {
		var err error
		if args[i], flat, err = canon.LiftFlat(p.Shape, flat, ht); err != nil {
			return nil, fmt.Errorf("%s: argument %q: %w", f.Identity, p.Name, err)
		}
	}
	return args, nil
}

// callTable pins borrowed handles for the duration of one call so the guest
// cannot drop them while the remote call is in flight.
type callTable struct {
	table    *resource.Table
	borrowed []resource.Handle
}

func (c *callTable) Export(kind canon.Kind, h canon.Handle) (uint32, error) {
	return c.table.Export(kind, h)
}

func (c *callTable) Import(kind canon.Kind, idx uint32) (canon.Handle, error) {
	h, err := c.table.Import(kind, idx)
	if err == nil && kind == canon.KindBorrow && c.table.Borrow(resource.Handle(idx)) {
		c.borrowed = append(c.borrowed, resource.Handle(idx))
	}
	return h, err
}

func (c *callTable) release() {
	for _, h := range c.borrowed {
		c.table.ReturnBorrow(h)
	}
}
