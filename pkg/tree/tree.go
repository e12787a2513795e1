package tree

import (
	"path"
	"path/filepath"
	"sort"
)

// ModulesDir is the directory a node's owned children are nested in.
const ModulesDir = "node_modules"

// PackageTree is a root node plus flat indexes for lookup by location and
// by name. It represents either the current (on-disk) or ideal state.
type PackageTree struct {
	// Dir is the absolute project directory the root lives in
	Dir string

	nodes      []*Node
	root       NodeID
	byLocation map[string]NodeID
	byName     map[string][]NodeID
}

// New creates a tree holding only the root project node.
func New(dir, name, version string) *PackageTree {
	t := &PackageTree{
		Dir:        dir,
		byLocation: make(map[string]NodeID),
		byName:     make(map[string][]NodeID),
	}
	root := &Node{
		ID:       0,
		Name:     name,
		Version:  version,
		parent:   NoNode,
		requires: make(map[string]NodeID),
	}
	t.nodes = append(t.nodes, root)
	t.root = root.ID
	t.byLocation[""] = root.ID
	return t
}

// Root returns the project node.
func (t *PackageTree) Root() *Node {
	return t.nodes[t.root]
}

// Node returns the node with the given id, or nil when it was removed.
func (t *PackageTree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Has reports whether n is still part of this tree.
func (t *PackageTree) Has(n *Node) bool {
	return n != nil && t.Node(n.ID) == n
}

// Len returns the number of live nodes, root included.
func (t *PackageTree) Len() int {
	count := 0
	for _, n := range t.nodes {
		if n != nil {
			count++
		}
	}
	return count
}

// Parent returns the owning parent, or nil for the root.
func (t *PackageTree) Parent(n *Node) *Node {
	if n.parent == NoNode {
		return nil
	}
	return t.Node(n.parent)
}

// Children returns the owned children of n ordered by name.
func (t *PackageTree) Children(n *Node) []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, id := range n.children {
		out = append(out, t.nodes[id])
	}
	return out
}

// TopLevel returns the children of the root.
func (t *PackageTree) TopLevel() []*Node {
	return t.Children(t.Root())
}

// FindChild returns the child of n called name, or nil.
func (t *PackageTree) FindChild(n *Node, name string) *Node {
	idx := sort.Search(len(n.children), func(i int) bool {
		return t.nodes[n.children[i]].Name >= name
	})
	if idx < len(n.children) && t.nodes[n.children[idx]].Name == name {
		return t.nodes[n.children[idx]]
	}
	return nil
}

// Requires returns a copy of n's requires edges.
func (t *PackageTree) Requires(n *Node) map[string]*Node {
	out := make(map[string]*Node, len(n.requires))
	for name, id := range n.requires {
		out[name] = t.nodes[id]
	}
	return out
}

// RequiredNames returns the names n has requires edges for, sorted.
func (t *PackageTree) RequiredNames(n *Node) []string {
	names := make([]string, 0, len(n.requires))
	for name := range n.requires {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve follows n's requires edge for name.
func (t *PackageTree) Resolve(n *Node, name string) (*Node, bool) {
	id, ok := n.requires[name]
	if !ok {
		return nil, false
	}
	return t.nodes[id], true
}

// Dependents returns every live node with a requires edge to target.
func (t *PackageTree) Dependents(target *Node) []*Node {
	var out []*Node
	t.Walk(func(n *Node) bool {
		for _, id := range n.requires {
			if id == target.ID {
				out = append(out, n)
				break
			}
		}
		return true
	})
	return out
}

// ResolveVisible performs node_modules lookup for name starting at from:
// from's own children first, then each ancestor's children up to the root.
func (t *PackageTree) ResolveVisible(from *Node, name string) *Node {
	for cur := from; cur != nil; cur = t.Parent(cur) {
		if child := t.FindChild(cur, name); child != nil {
			return child
		}
	}
	return nil
}

// Location returns the slash separated path of n relative to the project
// directory. The root's location is "".
func (t *PackageTree) Location(n *Node) string {
	if n.parent == NoNode {
		return ""
	}
	return path.Join(t.Location(t.nodes[n.parent]), ModulesDir, n.Name)
}

// Path returns the filesystem path of n.
func (t *PackageTree) Path(n *Node) string {
	return filepath.Join(t.Dir, filepath.FromSlash(t.Location(n)))
}

// Depth returns the number of ownership edges between n and the root.
func (t *PackageTree) Depth(n *Node) int {
	depth := 0
	for cur := n; cur.parent != NoNode; cur = t.nodes[cur.parent] {
		depth++
	}
	return depth
}

// IsAncestor reports whether a owns b directly or transitively.
func (t *PackageTree) IsAncestor(a, b *Node) bool {
	for cur := t.Parent(b); cur != nil; cur = t.Parent(cur) {
		if cur.ID == a.ID {
			return true
		}
	}
	return false
}

// Lookup returns the node installed at location, or nil.
func (t *PackageTree) Lookup(location string) *Node {
	id, ok := t.byLocation[location]
	if !ok {
		return nil
	}
	return t.nodes[id]
}

// ByName returns every node called name, in walk order.
func (t *PackageTree) ByName(name string) []*Node {
	ids := t.byName[name]
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.nodes[id])
	}
	sort.Slice(out, func(i, j int) bool {
		return t.Location(out[i]) < t.Location(out[j])
	})
	return out
}

// Walk visits the tree depth first, parents before children, children in
// name order. Returning false from fn skips the node's subtree.
func (t *PackageTree) Walk(fn func(n *Node) bool) {
	t.walkFrom(t.Root(), fn)
}

// WalkFrom is Walk rooted at n.
func (t *PackageTree) WalkFrom(n *Node, fn func(n *Node) bool) {
	t.walkFrom(n, fn)
}

func (t *PackageTree) walkFrom(n *Node, fn func(n *Node) bool) {
	if !fn(n) {
		return
	}
	for _, id := range n.children {
		t.walkFrom(t.nodes[id], fn)
	}
}

// Nodes returns every live node except the root in walk order.
func (t *PackageTree) Nodes() []*Node {
	var out []*Node
	t.Walk(func(n *Node) bool {
		if !n.IsRoot() {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Subtree returns n and everything it owns, in walk order.
func (t *PackageTree) Subtree(n *Node) []*Node {
	var out []*Node
	t.walkFrom(n, func(c *Node) bool {
		out = append(out, c)
		return true
	})
	return out
}

// MarkExtraneous flags n as unneeded.
func (t *PackageTree) MarkExtraneous(n *Node) {
	n.Extraneous = true
}

// UnmarkExtraneous clears the extraneous flag.
func (t *PackageTree) UnmarkExtraneous(n *Node) {
	n.Extraneous = false
}

// Extraneous returns every node currently flagged extraneous.
func (t *PackageTree) Extraneous() []*Node {
	var out []*Node
	for _, n := range t.Nodes() {
		if n.Extraneous {
			out = append(out, n)
		}
	}
	return out
}

// Clone returns a deep copy. Node ids are preserved.
func (t *PackageTree) Clone() *PackageTree {
	c := &PackageTree{
		Dir:        t.Dir,
		nodes:      make([]*Node, len(t.nodes)),
		root:       t.root,
		byLocation: make(map[string]NodeID, len(t.byLocation)),
		byName:     make(map[string][]NodeID, len(t.byName)),
	}
	for i, n := range t.nodes {
		if n != nil {
			c.nodes[i] = n.clone()
		}
	}
	for k, v := range t.byLocation {
		c.byLocation[k] = v
	}
	for k, v := range t.byName {
		c.byName[k] = append([]NodeID(nil), v...)
	}
	return c
}
