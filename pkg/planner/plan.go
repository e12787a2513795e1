package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/tree"
)

// Step is a set of operations touching pairwise unrelated paths. They may
// run concurrently.
type Step struct {
	Name string
	Ops  []Operation
}

// Plan schedules operations into steps. An operation lands in a later step
// than every operation whose paths it depends on:
//
//   - a move runs before the removal of the subtree it leaves, and after
//     the removal of whatever occupies its destination
//   - a package is placed before anything nested inside it
//   - removals nested in a removed subtree are folded into that removal
//
// Paths that cannot be ordered yield an INTERNAL error.
func Plan(ops []Operation) ([]Step, error) {
	ops = collapseRemoves(ops)
	g := newOrderGraph(ops)
	layers, stuck := g.layers()

	if len(stuck) > 0 {
		names := make([]string, 0, len(stuck))
		for _, i := range stuck {
			names = append(names, ops[i].String())
		}
		return nil, errors.Newf(errors.ErrInternal,
			"cannot order %d operations", len(stuck)).
			WithDetail("operations", names)
	}

	steps := make([]Step, 0, len(layers))
	for _, layer := range layers {
		sortOps(layer)
		steps = append(steps, Step{Name: stepName(layer, len(steps)), Ops: layer})
	}
	return steps, nil
}

// orderGraph holds the precedence edges between operations.
type orderGraph struct {
	ops  []Operation
	succ [][]int
}

func newOrderGraph(ops []Operation) *orderGraph {
	g := &orderGraph{ops: ops, succ: make([][]int, len(ops))}
	for i := range ops {
		for j := i + 1; j < len(ops); j++ {
			if precedes(ops[i], ops[j]) {
				g.succ[i] = append(g.succ[i], j)
			}
			if precedes(ops[j], ops[i]) {
				g.succ[j] = append(g.succ[j], i)
			}
		}
	}
	return g
}

// layers runs Kahn's algorithm, one layer per round. stuck lists the
// operations left over when a cycle blocks progress.
func (g *orderGraph) layers() (out [][]Operation, stuck []int) {
	indeg := make([]int, len(g.ops))
	for _, next := range g.succ {
		for _, j := range next {
			indeg[j]++
		}
	}

	var ready []int
	for i := range g.ops {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		layer := make([]Operation, 0, len(ready))
		var next []int
		for _, i := range ready {
			layer = append(layer, g.ops[i])
			for _, j := range g.succ[i] {
				indeg[j]--
				if indeg[j] == 0 {
					next = append(next, j)
				}
			}
		}
		out = append(out, layer)
		ready = next
	}

	for i := range g.ops {
		if indeg[i] > 0 {
			stuck = append(stuck, i)
		}
	}
	return out, stuck
}

// cycleCore narrows stuck operations to those lying on or between cycles by
// peeling off, repeatedly, every operation with no stuck successor.
func (g *orderGraph) cycleCore(stuck []int) []int {
	in := make(map[int]bool, len(stuck))
	for _, i := range stuck {
		in[i] = true
	}
	for changed := true; changed; {
		changed = false
		for i := range in {
			blocked := false
			for _, j := range g.succ[i] {
				if in[j] {
					blocked = true
					break
				}
			}
			if !blocked {
				delete(in, i)
				changed = true
			}
		}
	}

	out := make([]int, 0, len(in))
	for _, i := range stuck {
		if in[i] {
			out = append(out, i)
		}
	}
	return out
}

// Flatten returns the operations of steps in execution order.
func Flatten(steps []Step) []Operation {
	var out []Operation
	for _, s := range steps {
		out = append(out, s.Ops...)
	}
	return out
}

func precedes(a, b Operation) bool {
	switch {
	case a.Kind == KindRemove && b.Kind == KindRemove:
		return false
	case a.Kind == KindRemove && b.Kind == KindMove:
		return within(b.Location, a.Location) || below(a.Location, b.From)
	case a.Kind == KindRemove:
		return within(b.Location, a.Location) || within(a.Location, b.Location)
	case a.Kind == KindMove && b.Kind == KindRemove:
		return below(a.From, b.Location)
	case a.Kind == KindMove && b.Kind == KindMove:
		return within(b.Location, a.From) ||
			below(b.Location, a.Location) ||
			below(a.From, b.From) ||
			below(a.From, b.Location)
	case a.Kind == KindMove && b.Kind == KindUpdate:
		return related(b.Location, a.Location) || related(b.Location, a.From)
	case a.Kind == KindMove:
		return below(b.Location, a.Location) || within(b.Location, a.From)
	case b.Kind == KindRemove:
		return false
	case b.Kind == KindMove:
		return a.Kind == KindAdd && below(b.Location, a.Location)
	default:
		return below(b.Location, a.Location)
	}
}

// collapseRemoves drops removals already covered by a removed ancestor.
// A removal below a move source stays, since the move carries the
// subtree away before the ancestor is removed.
func collapseRemoves(ops []Operation) []Operation {
	removed := make(map[string]bool)
	sources := make(map[string]bool)
	for _, op := range ops {
		switch op.Kind {
		case KindRemove:
			removed[op.Location] = true
		case KindMove:
			sources[op.From] = true
		}
	}

	out := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if op.Kind == KindRemove && covered(op.Location, removed, sources) {
			continue
		}
		out = append(out, op)
	}
	return out
}

func covered(loc string, removed, sources map[string]bool) bool {
	for p := parentLocation(loc); p != ""; p = parentLocation(p) {
		if sources[p] {
			return false
		}
		if removed[p] {
			return true
		}
	}
	return false
}

func parentLocation(loc string) string {
	idx := strings.LastIndex(loc, "/"+tree.ModulesDir+"/")
	if idx < 0 {
		return ""
	}
	return loc[:idx]
}

// within reports whether p is anc or lies below it.
func within(p, anc string) bool {
	return p == anc || below(p, anc)
}

func below(p, anc string) bool {
	return strings.HasPrefix(p, anc+"/")
}

func related(a, b string) bool {
	return within(a, b) || within(b, a)
}

func sortOps(ops []Operation) {
	sort.SliceStable(ops, func(i, j int) bool {
		ri, rj := kindRank(ops[i].Kind), kindRank(ops[j].Kind)
		if ri != rj {
			return ri < rj
		}
		return ops[i].Location < ops[j].Location
	})
}

func stepName(ops []Operation, idx int) string {
	var kinds []string
	seen := make(map[Kind]bool)
	for _, op := range ops {
		if !seen[op.Kind] {
			seen[op.Kind] = true
			kinds = append(kinds, string(op.Kind))
		}
	}
	return fmt.Sprintf("%s-%d", strings.Join(kinds, "+"), idx+1)
}
