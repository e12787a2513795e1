package planner

import (
	"strings"

	"github.com/arthur-debert/arbor/pkg/tree"
)

// Diff compares the current tree with an ideal one. Nodes are matched by
// location; an ideal tree derived from the current one through Clone also
// carries node lineage, which turns a re-owned node into a Move rather
// than a Remove plus Add.
//
// Operations for ideal nodes come first in ideal walk order, followed by
// removes in current walk order.
//
// Moves that cannot be ordered against each other and the removals around
// them are given up one at a time, deepest destination first, and that
// node's ideal subtree is diffed by location instead.
func Diff(current, ideal *tree.PackageTree) []Operation {
	broken := brokenLineage(current, ideal)
	for {
		ops := diff(current, ideal, broken)
		victim := unorderableMove(ops)
		if victim == nil {
			return ops
		}
		for _, s := range ideal.Subtree(victim) {
			broken[s.ID] = true
		}
	}
}

// unorderableMove returns the ideal node of the deepest move caught in an
// ordering cycle, or nil when the operations can be planned.
func unorderableMove(ops []Operation) *tree.Node {
	g := newOrderGraph(collapseRemoves(ops))
	_, stuck := g.layers()
	if len(stuck) == 0 {
		return nil
	}

	var pick *Operation
	for _, i := range g.cycleCore(stuck) {
		op := &g.ops[i]
		if op.Kind != KindMove || op.Node == nil {
			continue
		}
		if pick == nil || deeper(op.Location, pick.Location) {
			pick = op
		}
	}
	if pick == nil {
		return nil
	}
	return pick.Node
}

func deeper(a, b string) bool {
	da, db := strings.Count(a, "/"), strings.Count(b, "/")
	if da != db {
		return da > db
	}
	return a < b
}

func diff(current, ideal *tree.PackageTree, broken map[tree.NodeID]bool) []Operation {
	lineage := func(n *tree.Node) *tree.Node {
		if broken[n.ID] {
			return nil
		}
		c := current.Node(n.ID)
		if c == nil || c.IsRoot() || c.Name != n.Name {
			return nil
		}
		return c
	}
	movedAway := func(c *tree.Node) bool {
		n := ideal.Node(c.ID)
		return n != nil && !n.IsRoot() && lineage(n) != nil
	}

	var ops []Operation
	consumed := make(map[tree.NodeID]bool)
	for _, n := range ideal.Nodes() {
		loc := ideal.Location(n)

		if c := lineage(n); c != nil {
			consumed[c.ID] = true
			if current.Parent(c).ID != ideal.Parent(n).ID {
				ops = append(ops, Operation{
					Kind:     KindMove,
					Name:     n.Name,
					Version:  c.Version,
					From:     current.Location(c),
					Location: loc,
					Node:     n,
				})
			}
			if c.Version != n.Version {
				ops = append(ops, update(c, n, loc))
			}
			continue
		}

		if c := current.Lookup(loc); c != nil && !movedAway(c) {
			consumed[c.ID] = true
			if !tree.Equal(c, n) {
				ops = append(ops, update(c, n, loc))
			}
			continue
		}

		ops = append(ops, Operation{
			Kind:     KindAdd,
			Name:     n.Name,
			Version:  n.Version,
			Location: loc,
			Node:     n,
		})
	}

	for _, c := range current.Nodes() {
		if consumed[c.ID] {
			continue
		}
		ops = append(ops, Operation{
			Kind:     KindRemove,
			Name:     c.Name,
			Version:  c.Version,
			Location: current.Location(c),
			Node:     c,
		})
	}
	return ops
}

func update(c, n *tree.Node, loc string) Operation {
	return Operation{
		Kind:            KindUpdate,
		Name:            n.Name,
		Version:         n.Version,
		PreviousVersion: c.Version,
		Location:        loc,
		Node:            n,
	}
}

// brokenLineage finds re-owned nodes whose destination is held by one of
// their own current ancestors. Such a move cannot be ordered against the
// removal of that ancestor, so the node and its ideal subtree are diffed by
// location instead.
func brokenLineage(current, ideal *tree.PackageTree) map[tree.NodeID]bool {
	broken := make(map[tree.NodeID]bool)
	for _, n := range ideal.Nodes() {
		if broken[n.ID] {
			continue
		}
		c := current.Node(n.ID)
		if c == nil || c.IsRoot() || c.Name != n.Name {
			continue
		}
		if current.Parent(c).ID == ideal.Parent(n).ID {
			continue
		}
		occupant := current.Lookup(ideal.Location(n))
		if occupant == nil || occupant.ID == c.ID || !current.IsAncestor(occupant, c) {
			continue
		}
		for _, s := range ideal.Subtree(n) {
			broken[s.ID] = true
		}
	}
	return broken
}
