package packager

import (
	"fmt"

	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/component"
	"github.com/golemcloud/golem-cloud-cli/errors"
	"github.com/golemcloud/golem-cloud-cli/resolve"
	"github.com/golemcloud/golem-cloud-cli/stubgen"
)

// plan is the forwarding layout of every stub module, computed before
// anything is assembled.
type plan struct {
	modules   []*modulePlan
	resources map[resolve.TypeID]resourceRef
	memory    bool
}

type modulePlan struct {
	mod    *stubgen.Module
	funcs  []funcPlan
	drops  []resourceRef
	memory bool
	binary []byte
}

// funcPlan is one stubbed function. Resource drops are not part of the
// plan: the original drops imported handles itself.
type funcPlan struct {
	*stubgen.Func
	memory  bool
	forward component.Forward
	drops   []resourceRef // one per forward.Release
}

// resourceRef names a resource by the module declaring it.
type resourceRef struct {
	id     resolve.TypeID
	module int
	name   string
	iface  string
}

func (r resourceRef) dropName() string {
	return r.iface + ".[resource-drop]" + r.name
}

func newPlan(out *stubgen.Output) (*plan, error) {
	p := &plan{resources: make(map[resolve.TypeID]resourceRef)}
	for i, mod := range out.Modules {
		for _, r := range mod.Resources {
			p.resources[r.Handle.ID] = resourceRef{id: r.Handle.ID, module: i, name: r.Name, iface: mod.Interface}
		}
	}
	for i, mod := range out.Modules {
		mp := &modulePlan{mod: mod}
		for _, decl := range mod.Types {
			if err := p.check(i, mod.Interface+"."+decl.Name, decl.Shape); err != nil {
				return nil, err
			}
		}
		seen := make(map[resolve.TypeID]bool)
		for _, f := range mod.Funcs {
			if f.Kind == stubgen.FuncDrop {
				continue
			}
			fp, err := p.function(i, f)
			if err != nil {
				return nil, err
			}
			for _, ref := range fp.drops {
				if !seen[ref.id] {
					seen[ref.id] = true
					mp.drops = append(mp.drops, ref)
				}
			}
			mp.memory = mp.memory || fp.memory
			mp.funcs = append(mp.funcs, fp)
		}
		p.memory = p.memory || mp.memory
		p.modules = append(p.modules, mp)
	}
	return p, nil
}

// check rejects recursive shapes and handles to resources no earlier
// module declares.
func (p *plan) check(module int, where string, s *canon.Shape) error {
	active := make(map[*canon.Shape]bool)
	done := make(map[*canon.Shape]bool)
	var walk func(s *canon.Shape) error
	walk = func(s *canon.Shape) error {
		if s == nil || done[s] {
			return nil
		}
		if active[s] {
			return unsupported("%s: recursive type %s", where, s.Name)
		}
		if s.Kind == canon.KindOwn || s.Kind == canon.KindBorrow {
			if ref, ok := p.resources[s.ID]; !ok || ref.module > module {
				return &errors.CompositionError{
					Detail: fmt.Sprintf("%s: resource %s is not declared by an earlier stub module", where, s.Name),
				}
			}
		}
		active[s] = true
		for _, c := range canon.Children(s) {
			if err := walk(c); err != nil {
				return err
			}
		}
		delete(active, s)
		done[s] = true
		return nil
	}
	return walk(s)
}

func (p *plan) function(module int, f *stubgen.Func) (funcPlan, error) {
	fp := funcPlan{Func: f}
	if err := p.check(module, f.Identity, f.Result); err != nil {
		return fp, err
	}
	fp.memory = canon.NeedsMemory(f.Result) || f.Sig.IndirectParams || f.Sig.IndirectResult
	for _, prm := range f.Params {
		if err := p.check(module, f.Identity, prm.Shape); err != nil {
			return fp, err
		}
		fp.memory = fp.memory || canon.NeedsMemory(prm.Shape)
	}

	fwd := component.Forward{
		Name:       f.Identity,
		Params:     f.Sig.Params,
		Results:    f.Sig.Results,
		PostReturn: fp.memory,
	}
	if f.Sig.IndirectResult {
		fwd.Params = f.Sig.Params[:len(f.Sig.Params)-1]
		t := canon.WitType(f.Result)
		fwd.ReturnArea = component.ReturnArea{Size: uint32(t.Size()), Align: uint32(t.Align())}
	}

	pos := 0
	for _, prm := range f.Params {
		slots, fixed := borrowSlots(prm.Shape, pos)
		if !fixed || (f.Sig.IndirectParams && len(slots) > 0) {
			return fp, unsupported("%s: borrowed handle in parameter %s has no fixed flat position", f.Identity, prm.Name)
		}
		for _, s := range slots {
			ref := p.resources[s.id]
			fwd.Release = append(fwd.Release, component.Release{Param: s.pos, Drop: ref.dropName()})
			fp.drops = append(fp.drops, ref)
		}
		flat, _ := canon.Flatten(prm.Shape)
		pos += len(flat)
	}
	fp.forward = fwd
	return fp, nil
}

type borrowSlot struct {
	pos int
	id  resolve.TypeID
}

// borrowSlots returns the flat positions of the borrowed handles in s,
// offset by base. Borrows under a variant, option, result or list have no
// fixed position; fixed is false when s holds any.
func borrowSlots(s *canon.Shape, base int) (slots []borrowSlot, fixed bool) {
	if s == nil {
		return nil, true
	}
	switch s.Kind {
	case canon.KindBorrow:
		return []borrowSlot{{pos: base, id: s.ID}}, true
	case canon.KindRecord, canon.KindTuple:
		for _, c := range canon.Children(s) {
			inner, ok := borrowSlots(c, base)
			if !ok {
				return nil, false
			}
			slots = append(slots, inner...)
			flat, _ := canon.Flatten(c)
			base += len(flat)
		}
		return slots, true
	}
	return nil, !holdsBorrow(s)
}

func holdsBorrow(s *canon.Shape) bool {
	seen := make(map[*canon.Shape]bool)
	var walk func(s *canon.Shape) bool
	walk = func(s *canon.Shape) bool {
		if s == nil || seen[s] {
			return false
		}
		seen[s] = true
		if s.Kind == canon.KindBorrow {
			return true
		}
		for _, c := range canon.Children(s) {
			if walk(c) {
				return true
			}
		}
		return false
	}
	return walk(s)
}

func unsupported(format string, args ...any) error {
	return &errors.CompositionError{Cause: errors.Unsupported(errors.PhaseCompose, fmt.Sprintf(format, args...))}
}
