package resolve

import (
	"slices"

	"github.com/golemcloud/golem-cloud-cli/errors"
)

// SignatureDeps returns the interfaces whose named types appear in the
// function signatures of iface, ordered by interface id. References are
// followed through anonymous constructors and aliases, but not into record
// fields or variant payloads: those are ordinary type edges and may cycle.
func (g *Graph) SignatureDeps(iface *Interface) []*Interface {
	seen := make(map[InterfaceID]bool)
	var visit func(t *Type)
	visit = func(t *Type) {
		walkType(t, func(t *Type) {
			if t.Kind != Ref && t.Kind != Own && t.Kind != Borrow {
				return
			}
			def := g.Type(t.ID)
			if def.Owner != nil && def.Owner != iface {
				seen[def.Owner.ID] = true
			}
			if def.Kind == DefAlias {
				visit(def.Alias)
			}
		})
	}
	for _, fn := range g.InterfaceFunctions(iface) {
		for _, p := range fn.Params {
			visit(p.Type)
		}
		visit(fn.Result)
	}

	ids := make([]InterfaceID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*Interface, len(ids))
	for i, id := range ids {
		out[i] = g.Interfaces[id]
	}
	return out
}

// detectSignatureCycles runs a depth-first search over signature
// dependencies in interface order and reports the first cycle with its full
// path.
func detectSignatureCycles(g *Graph) error {
	state := make([]int, len(g.Interfaces))
	var stack []*Interface

	var dfs func(iface *Interface) error
	dfs = func(iface *Interface) error {
		state[iface.ID] = visiting
		stack = append(stack, iface)
		for _, dep := range g.SignatureDeps(iface) {
			switch state[dep.ID] {
			case visiting:
				start := slices.Index(stack, dep)
				cycle := make([]string, 0, len(stack)-start+1)
				for _, s := range stack[start:] {
					cycle = append(cycle, s.Identity())
				}
				cycle = append(cycle, dep.Identity())
				return &errors.ResolutionError{
					Pos:    errors.Position{File: dep.File, Line: dep.Pos.Line, Column: dep.Pos.Column},
					Symbol: dep.Identity(),
					Cycle:  cycle,
				}
			case unvisited:
				if err := dfs(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[iface.ID] = done
		return nil
	}

	for _, iface := range g.Interfaces {
		if state[iface.ID] == unvisited {
			if err := dfs(iface); err != nil {
				return err
			}
		}
	}
	return nil
}
