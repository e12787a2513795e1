package tree

import (
	"sort"

	"github.com/arthur-debert/arbor/pkg/errors"
)

// AddChild creates a node owned by parent. A parent owns at most one child
// per name.
func (t *PackageTree) AddChild(parent *Node, name, version string) (*Node, error) {
	if !t.Has(parent) {
		return nil, errors.Newf(errors.ErrInvalidInput, "cannot add %s@%s under a removed node", name, version)
	}
	if name == "" {
		return nil, errors.New(errors.ErrInvalidInput, "package name is required")
	}
	if existing := t.FindChild(parent, name); existing != nil {
		return nil, errors.Newf(errors.ErrInvalidInput, "%s already contains %s",
			t.describe(parent), existing.Key())
	}

	n := &Node{
		ID:       NodeID(len(t.nodes)),
		Name:     name,
		Version:  version,
		parent:   parent.ID,
		requires: make(map[string]NodeID),
	}
	t.nodes = append(t.nodes, n)
	t.insertChild(parent, n)
	t.index(n)
	return n, nil
}

// Link sets from's requires edge for name to target.
func (t *PackageTree) Link(from *Node, name string, target *Node) error {
	if !t.Has(from) || !t.Has(target) {
		return errors.Newf(errors.ErrInvalidInput, "cannot link %s to a node outside the tree", name)
	}
	from.requires[name] = target.ID
	return nil
}

// Unlink drops from's requires edge for name.
func (t *PackageTree) Unlink(from *Node, name string) {
	delete(from.requires, name)
}

// Remove excises n and its owned subtree. Requires edges from surviving
// nodes into the removed region are dropped so no edge ever targets a
// removed node. The removed nodes are returned in walk order.
func (t *PackageTree) Remove(n *Node) ([]*Node, error) {
	if !t.Has(n) {
		return nil, errors.Newf(errors.ErrInvalidInput, "%s is not part of the tree", n.Key())
	}
	if n.IsRoot() {
		return nil, errors.New(errors.ErrInvalidInput, "cannot remove the project root")
	}

	removed := t.Subtree(n)
	gone := make(map[NodeID]bool, len(removed))
	for _, r := range removed {
		gone[r.ID] = true
	}

	for _, r := range removed {
		t.unindex(r)
	}
	t.detachChild(t.nodes[n.parent], n)
	for _, r := range removed {
		t.nodes[r.ID] = nil
	}

	for _, survivor := range t.nodes {
		if survivor == nil {
			continue
		}
		for name, id := range survivor.requires {
			if gone[id] {
				delete(survivor.requires, name)
			}
		}
	}
	return removed, nil
}

// Move re-owns n under newParent, keeping its subtree and every requires
// edge intact.
func (t *PackageTree) Move(n, newParent *Node) error {
	if !t.Has(n) || !t.Has(newParent) {
		return errors.New(errors.ErrInvalidInput, "cannot move a node outside the tree")
	}
	if n.IsRoot() {
		return errors.New(errors.ErrInvalidInput, "cannot move the project root")
	}
	if newParent.ID == n.ID || t.IsAncestor(n, newParent) {
		return errors.Newf(errors.ErrInvalidInput, "cannot move %s into its own subtree", n.Key())
	}
	if n.parent == newParent.ID {
		return nil
	}
	if existing := t.FindChild(newParent, n.Name); existing != nil {
		return errors.Newf(errors.ErrInvalidInput, "%s already contains %s",
			t.describe(newParent), existing.Key())
	}

	subtree := t.Subtree(n)
	for _, s := range subtree {
		t.unindex(s)
	}
	t.detachChild(t.nodes[n.parent], n)
	n.parent = newParent.ID
	t.insertChild(newParent, n)
	for _, s := range subtree {
		t.index(s)
	}
	return nil
}

func (t *PackageTree) insertChild(parent, child *Node) {
	idx := sort.Search(len(parent.children), func(i int) bool {
		return t.nodes[parent.children[i]].Name >= child.Name
	})
	parent.children = append(parent.children, 0)
	copy(parent.children[idx+1:], parent.children[idx:])
	parent.children[idx] = child.ID
}

func (t *PackageTree) detachChild(parent, child *Node) {
	for i, id := range parent.children {
		if id == child.ID {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			return
		}
	}
}

func (t *PackageTree) index(n *Node) {
	t.byLocation[t.Location(n)] = n.ID
	t.byName[n.Name] = append(t.byName[n.Name], n.ID)
}

func (t *PackageTree) unindex(n *Node) {
	delete(t.byLocation, t.Location(n))
	ids := t.byName[n.Name]
	for i, id := range ids {
		if id == n.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(t.byName, n.Name)
	} else {
		t.byName[n.Name] = ids
	}
}

func (t *PackageTree) describe(n *Node) string {
	if n.IsRoot() {
		return "the project root"
	}
	return t.Location(n)
}
