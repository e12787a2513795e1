package planner_test

import (
	"sort"
	"testing"

	"github.com/arthur-debert/arbor/pkg/planner"
	"github.com/arthur-debert/arbor/pkg/tree"
	"github.com/stretchr/testify/require"
)

// builder assembles trees by location for readable tests.
type builder struct {
	t  *testing.T
	pt *tree.PackageTree
}

func newBuilder(t *testing.T) *builder {
	t.Helper()
	return &builder{t: t, pt: tree.New("/project", "app", "1.0.0")}
}

// add places name@version under the node at parent ("" is the root).
func (b *builder) add(parent, name, version string) *tree.Node {
	b.t.Helper()
	p := b.pt.Lookup(parent)
	require.NotNil(b.t, p, "no node at %q", parent)
	n, err := b.pt.AddChild(p, name, version)
	require.NoError(b.t, err)
	return n
}

// request adds a top-level package the manifest asks for.
func (b *builder) request(name, version string) *tree.Node {
	b.t.Helper()
	n := b.add("", name, version)
	n.Requested = true
	require.NoError(b.t, b.pt.Link(b.pt.Root(), name, n))
	return n
}

func (b *builder) link(from, to string) {
	b.t.Helper()
	f, dst := b.pt.Lookup(from), b.pt.Lookup(to)
	require.NotNil(b.t, f, "no node at %q", from)
	require.NotNil(b.t, dst, "no node at %q", to)
	require.NoError(b.t, b.pt.Link(f, dst.Name, dst))
}

// scenario: a requested and requiring hoisted c; b installed but no longer
// requested, owning its private dependency d.
func scenario(t *testing.T) *tree.PackageTree {
	b := newBuilder(t)
	b.request("a", "1.0.0")
	b.add("", "b", "1.0.0")
	b.add("", "c", "1.0.0")
	b.add("node_modules/b", "d", "1.0.0")
	b.link("node_modules/a", "node_modules/c")
	b.link("node_modules/b", "node_modules/b/node_modules/d")
	return b.pt
}

type pruneResult struct {
	ideal   *tree.PackageTree
	removal *planner.Removal
	ops     []planner.Operation
}

func prune(t *testing.T, current *tree.PackageTree, requested, filter []string) (*pruneResult, error) {
	t.Helper()
	ideal := current.Clone()
	sel, err := planner.SelectPrunable(ideal, requested, filter)
	if err != nil {
		return nil, err
	}
	removal, err := planner.RemoveDeps(ideal, sel)
	require.NoError(t, err)
	_, err = planner.LoadExtraneous(ideal, removal)
	require.NoError(t, err)
	return &pruneResult{ideal: ideal, removal: removal, ops: planner.Diff(current, ideal)}, nil
}

// removedNames lists, sorted, the names of every node current has and
// ideal lacks.
func removedNames(current, ideal *tree.PackageTree) []string {
	var out []string
	for _, n := range current.Nodes() {
		if ideal.Node(n.ID) == nil {
			out = append(out, n.Name)
		}
	}
	sort.Strings(out)
	return out
}

func locations(pt *tree.PackageTree) []string {
	var out []string
	for _, n := range pt.Nodes() {
		out = append(out, pt.Location(n)+"@"+n.Version)
	}
	return out
}

func opsOfKind(ops []planner.Operation, kind planner.Kind) []string {
	var out []string
	for _, op := range ops {
		if op.Kind == kind {
			out = append(out, op.Location)
		}
	}
	sort.Strings(out)
	return out
}
