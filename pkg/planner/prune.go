package planner

import (
	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/extraneous"
	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/arthur-debert/arbor/pkg/tree"
)

// Selection is the set of top-level nodes a prune excises.
type Selection struct {
	Nodes []*tree.Node
	// Requested are the names the sweep starts from
	Requested []string
	// Scoped is set when the user named packages. A scoped prune only
	// removes what the named packages kept alive.
	Scoped bool
}

// SelectPrunable picks the extraneous top-level nodes to excise. An empty
// filter selects every extraneous top-level node. A filter name must exist
// somewhere in the tree; a name that only exists nested is accepted and
// selects nothing, since nested packages are never directly prunable.
func SelectPrunable(t *tree.PackageTree, requested, filter []string) (Selection, error) {
	logger := logging.GetLogger("planner")

	classes := extraneous.Classify(t, requested)
	sel := Selection{Requested: requested, Scoped: len(filter) > 0}

	if !sel.Scoped {
		for _, top := range t.TopLevel() {
			if classes[top.ID] {
				sel.Nodes = append(sel.Nodes, top)
			}
		}
		logger.Debug().Int("selected", len(sel.Nodes)).Msg("Selected all extraneous packages")
		return sel, nil
	}

	seen := make(map[string]bool, len(filter))
	for _, name := range filter {
		if seen[name] {
			continue
		}
		seen[name] = true

		if len(t.ByName(name)) == 0 {
			return Selection{}, errors.Newf(errors.ErrInvalidSelector,
				"package %q is not installed", name).
				WithDetail("selector", name)
		}
		top := t.FindChild(t.Root(), name)
		switch {
		case top == nil:
			logger.Debug().Str("selector", name).Msg("Selector only matches nested packages")
		case !classes[top.ID]:
			logger.Debug().Str("selector", name).Msg("Selector is still required")
		default:
			sel.Nodes = append(sel.Nodes, top)
		}
	}
	return sel, nil
}

// Removal records what RemoveDeps did and what LoadExtraneous may still
// touch.
type Removal struct {
	Selected []*tree.Node
	Removed  []*tree.Node
	Rehomed  []*tree.Node

	// Roots are the requested nodes. Everything they reach survives.
	Roots []tree.NodeID
	// Scope limits the cascade to nodes the selection reached through
	// requires or ownership. Nil means the whole tree.
	Scope map[tree.NodeID]bool
}

// RemoveDeps excises each selected node with its owned subtree. A
// descendant the surviving roots still reach without passing through a
// selected node is re-homed first: to the top level when the name is free
// there, under a surviving requirer or one of its ancestors otherwise.
func RemoveDeps(t *tree.PackageTree, sel Selection) (*Removal, error) {
	logger := logging.GetLogger("planner")

	r := &Removal{Selected: sel.Nodes}
	selected := make(map[tree.NodeID]bool, len(sel.Nodes))
	for _, n := range sel.Nodes {
		if !t.Has(n) || t.Parent(n) != t.Root() {
			return nil, errors.Newf(errors.ErrInvalidInput, "%s is not a top-level package", n.Key())
		}
		selected[n.ID] = true
	}
	for _, root := range extraneous.Roots(t, sel.Requested) {
		if !selected[root.ID] {
			r.Roots = append(r.Roots, root.ID)
		}
	}
	if sel.Scoped {
		r.Scope = cascadeScope(t, sel.Nodes)
	}

	doomed := make(map[tree.NodeID]bool)
	for _, n := range sel.Nodes {
		for _, s := range t.Subtree(n) {
			doomed[s.ID] = true
		}
	}

	live := liveSet(t, r, selected)
	moved, err := evacuate(t, sel.Nodes, doomed,
		func(s *tree.Node) bool { return live[s.ID] && !selected[s.ID] },
		func(h *tree.Node) bool { return live[h.ID] }, nil)
	if err != nil {
		return nil, err
	}
	r.Rehomed = append(r.Rehomed, moved...)

	for _, n := range sel.Nodes {
		removed, err := t.Remove(n)
		if err != nil {
			return nil, err
		}
		r.Removed = append(r.Removed, removed...)
	}

	logger.Debug().
		Int("selected", len(sel.Nodes)).
		Int("removed", len(r.Removed)).
		Int("rehomed", len(r.Rehomed)).
		Msg("Removed selected packages")
	return r, nil
}

// LoadExtraneous removes, in a single pass, every node of the removal
// scope that the surviving roots no longer reach. Returns the removed nodes.
func LoadExtraneous(t *tree.PackageTree, r *Removal) ([]*tree.Node, error) {
	live := liveSet(t, r, nil)
	victims := make(map[tree.NodeID]bool)
	for _, n := range t.Nodes() {
		if isVictim(n, live, r.Scope) {
			victims[n.ID] = true
		}
	}
	survives := func(s *tree.Node) bool { return !victims[s.ID] }

	var out []*tree.Node
	for {
		v := firstVictim(t, victims)
		if v == nil {
			break
		}
		removed, moved, err := excise(t, v, survives)
		if err != nil {
			return nil, err
		}
		for _, n := range removed {
			delete(victims, n.ID)
		}
		out = append(out, removed...)
		r.Rehomed = append(r.Rehomed, moved...)
	}
	r.Removed = append(r.Removed, out...)

	logger := logging.GetLogger("planner")
	logger.Debug().
		Int("removed", len(out)).
		Bool("scoped", r.Scope != nil).
		Msg("Removed orphaned packages")
	return out, nil
}

// Fixpoint reaches the same tree as LoadExtraneous by repeatedly
// reclassifying and removing the first unreachable node until none is
// left. It is slower and exists to cross-check the single pass.
func Fixpoint(t *tree.PackageTree, r *Removal) ([]*tree.Node, error) {
	var out []*tree.Node
	for {
		live := liveSet(t, r, nil)
		var victim *tree.Node
		for _, n := range t.Nodes() {
			if isVictim(n, live, r.Scope) {
				victim = n
				break
			}
		}
		if victim == nil {
			break
		}
		removed, moved, err := excise(t, victim, func(s *tree.Node) bool {
			return !isVictim(s, live, r.Scope)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, removed...)
		r.Rehomed = append(r.Rehomed, moved...)
	}
	r.Removed = append(r.Removed, out...)
	return out, nil
}

func isVictim(n *tree.Node, live, scope map[tree.NodeID]bool) bool {
	if n.IsRoot() || live[n.ID] {
		return false
	}
	return scope == nil || scope[n.ID]
}

// liveSet is everything reachable from the surviving roots without
// passing through a blocked node. Under a scope, nodes outside it survive
// regardless and keep their dependencies alive.
func liveSet(t *tree.PackageTree, r *Removal, blocked map[tree.NodeID]bool) map[tree.NodeID]bool {
	var starts []*tree.Node
	for _, id := range r.Roots {
		if n := t.Node(id); n != nil && !blocked[n.ID] {
			starts = append(starts, n)
		}
	}
	if r.Scope != nil {
		t.Walk(func(n *tree.Node) bool {
			if !r.Scope[n.ID] && !blocked[n.ID] {
				starts = append(starts, n)
			}
			return true
		})
	}
	if len(blocked) == 0 {
		return extraneous.ReachableFrom(t, starts)
	}

	live := make(map[tree.NodeID]bool, t.Len())
	queue := append([]*tree.Node(nil), starts...)
	for _, s := range starts {
		live[s.ID] = true
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, dep := range t.Requires(n) {
			if live[dep.ID] || blocked[dep.ID] {
				continue
			}
			live[dep.ID] = true
			queue = append(queue, dep)
		}
	}
	return live
}

// cascadeScope is everything the selected nodes reach through requires
// edges or ownership.
func cascadeScope(t *tree.PackageTree, selected []*tree.Node) map[tree.NodeID]bool {
	scope := make(map[tree.NodeID]bool)
	queue := append([]*tree.Node(nil), selected...)
	for _, n := range selected {
		scope[n.ID] = true
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		next := t.Children(n)
		for _, dep := range t.Requires(n) {
			next = append(next, dep)
		}
		for _, m := range next {
			if !scope[m.ID] {
				scope[m.ID] = true
				queue = append(queue, m)
			}
		}
	}
	return scope
}

func firstVictim(t *tree.PackageTree, victims map[tree.NodeID]bool) *tree.Node {
	var found *tree.Node
	t.Walk(func(n *tree.Node) bool {
		if found != nil {
			return false
		}
		if victims[n.ID] {
			found = n
			return false
		}
		return true
	})
	return found
}

// excise removes v after evacuating the descendants that survive. Only a
// surviving node may host an evacuated one.
func excise(t *tree.PackageTree, v *tree.Node, survives func(*tree.Node) bool) (removed, moved []*tree.Node, err error) {
	doomed := make(map[tree.NodeID]bool)
	for _, s := range t.Subtree(v) {
		doomed[s.ID] = true
	}
	moved, err = evacuate(t, []*tree.Node{v}, doomed, survives, survives)
	if err != nil {
		return nil, nil, err
	}
	removed, err = t.Remove(v)
	return removed, moved, err
}

// evacuate moves every topmost descendant of the containers that keep
// selects out of the doomed region. Hosts are tried in order; a nil host
// accepts any node outside the doomed region. Moved subtrees are dropped
// from doomed.
func evacuate(t *tree.PackageTree, containers []*tree.Node, doomed map[tree.NodeID]bool,
	keep func(*tree.Node) bool, hosts ...func(*tree.Node) bool) ([]*tree.Node, error) {

	var moved []*tree.Node
	for {
		target := nextEvacuee(t, containers, keep)
		if target == nil {
			return moved, nil
		}
		requirers := reverseEdges(t)[target.ID]
		var dest *tree.Node
		for _, host := range hosts {
			if dest = placement(t, target, requirers, doomed, host); dest != nil {
				break
			}
		}
		if dest == nil {
			return moved, errors.Newf(errors.ErrInternal,
				"cannot keep %s: no free location outside the removed packages", target.Key()).
				WithDetail("package", target.Key())
		}
		if err := t.Move(target, dest); err != nil {
			return moved, err
		}
		for _, s := range t.Subtree(target) {
			delete(doomed, s.ID)
		}
		moved = append(moved, target)
	}
}

func nextEvacuee(t *tree.PackageTree, containers []*tree.Node, keep func(*tree.Node) bool) *tree.Node {
	var target *tree.Node
	for _, c := range containers {
		t.WalkFrom(c, func(s *tree.Node) bool {
			if target != nil {
				return false
			}
			if s.ID != c.ID && keep(s) {
				target = s
				return false
			}
			return true
		})
		if target != nil {
			return target
		}
	}
	return nil
}

// placement picks the new owner of target. Preference order: the root,
// a requirer, an ancestor of a requirer, then any surviving node with the
// name free. Requires edges follow the node, so any free slot keeps them.
func placement(t *tree.PackageTree, target *tree.Node, requirers []*tree.Node,
	doomed map[tree.NodeID]bool, host func(*tree.Node) bool) *tree.Node {

	usable := func(h *tree.Node) bool {
		if doomed[h.ID] || h.ID == target.ID || t.IsAncestor(target, h) {
			return false
		}
		if t.FindChild(h, target.Name) != nil {
			return false
		}
		return h.IsRoot() || host == nil || host(h)
	}

	if root := t.Root(); usable(root) {
		return root
	}
	for _, req := range requirers {
		if usable(req) {
			return req
		}
	}
	for _, req := range requirers {
		for a := t.Parent(req); a != nil && !a.IsRoot(); a = t.Parent(a) {
			if usable(a) {
				return a
			}
		}
	}

	var found *tree.Node
	t.Walk(func(h *tree.Node) bool {
		if found != nil || doomed[h.ID] {
			return false
		}
		if usable(h) {
			found = h
			return false
		}
		return true
	})
	return found
}

func reverseEdges(t *tree.PackageTree) map[tree.NodeID][]*tree.Node {
	out := make(map[tree.NodeID][]*tree.Node)
	t.Walk(func(n *tree.Node) bool {
		for _, name := range t.RequiredNames(n) {
			dep, _ := t.Resolve(n, name)
			out[dep.ID] = append(out[dep.ID], n)
		}
		return true
	})
	return out
}
