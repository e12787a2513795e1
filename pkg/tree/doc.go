// Package tree holds the in-memory model of an installed (or desired)
// package tree.
//
// Nodes live in an arena owned by a PackageTree and are addressed by a
// stable NodeID. Two kinds of edges connect them:
//
//   - ownership: each non-root node has exactly one parent, whose
//     node_modules directory physically contains it. Ownership is a tree.
//   - requires: a node's named dependency resolved to the node that
//     satisfies it. The target may live anywhere in the tree (usually a
//     child of an ancestor, once hoisted), so requires edges are stored as
//     name -> NodeID and never imply ownership.
//
// A tree may be cloned; clones keep NodeIDs so the current and ideal trees
// of a single run can be compared node by node.
package tree
