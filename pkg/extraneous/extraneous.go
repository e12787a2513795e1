// Package extraneous decides which installed nodes nothing requested needs.
//
// Classification is a mark-and-sweep over requires edges starting at the
// root children the project asked for. It is recomputed from the tree on
// every call: removing a node can orphan its exclusive dependencies, so a
// result is only valid for the tree state it was computed from.
package extraneous

import (
	"sort"

	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/arthur-debert/arbor/pkg/tree"
)

// RequestedNames returns the names of root children the project manifest
// asks for. In production mode dev-only requests are left out so that
// development dependencies classify as extraneous.
func RequestedNames(t *tree.PackageTree, production bool) []string {
	var out []string
	for _, n := range t.TopLevel() {
		if !n.Requested {
			continue
		}
		if production && n.Dev {
			continue
		}
		out = append(out, n.Name)
	}
	return out
}

// Roots resolves requested names to the nodes the sweep starts from. A
// root requires edge wins over a plain top-level child of the same name.
func Roots(t *tree.PackageTree, requested []string) []*tree.Node {
	root := t.Root()
	seen := make(map[tree.NodeID]bool)
	var out []*tree.Node
	for _, name := range requested {
		n, ok := t.Resolve(root, name)
		if !ok {
			n = t.FindChild(root, name)
		}
		if n == nil || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return out
}

// ReachableFrom marks every node reachable from starts via requires edges.
func ReachableFrom(t *tree.PackageTree, starts []*tree.Node) map[tree.NodeID]bool {
	marked := make(map[tree.NodeID]bool, t.Len())
	queue := append([]*tree.Node(nil), starts...)
	for _, s := range starts {
		marked[s.ID] = true
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, dep := range t.Requires(n) {
			if marked[dep.ID] {
				continue
			}
			marked[dep.ID] = true
			queue = append(queue, dep)
		}
	}
	return marked
}

// Reachable is ReachableFrom the requested roots.
func Reachable(t *tree.PackageTree, requested []string) map[tree.NodeID]bool {
	return ReachableFrom(t, Roots(t, requested))
}

// Classify reports, for every non-root node, whether it is extraneous.
func Classify(t *tree.PackageTree, requested []string) map[tree.NodeID]bool {
	reached := Reachable(t, requested)
	out := make(map[tree.NodeID]bool)
	for _, n := range t.Nodes() {
		out[n.ID] = !reached[n.ID]
	}
	return out
}

// Apply classifies the tree and writes the result into the node flags.
// It returns the extraneous nodes in walk order.
func Apply(t *tree.PackageTree, requested []string) []*tree.Node {
	logger := logging.GetLogger("extraneous")

	classes := Classify(t, requested)
	var out []*tree.Node
	for _, n := range t.Nodes() {
		if classes[n.ID] {
			t.MarkExtraneous(n)
			out = append(out, n)
		} else {
			t.UnmarkExtraneous(n)
		}
	}

	logger.Debug().
		Strs("requested", sorted(requested)).
		Int("nodes", t.Len()-1).
		Int("extraneous", len(out)).
		Msg("Classified tree")
	return out
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
