package tree

import "fmt"

// NodeID addresses a node inside its PackageTree arena.
type NodeID int

// NoNode is the parent of the root node.
const NoNode NodeID = -1

// Node is a single installed package.
type Node struct {
	ID      NodeID
	Name    string
	Version string

	// Extraneous is set by the classifier when nothing requested needs the node
	Extraneous bool
	// Dev marks a node only needed by development dependencies of the root
	Dev bool
	// Optional marks a node whose failure to install is not fatal
	Optional bool
	// Requested marks root children named directly by the project manifest
	Requested bool

	// Dependencies are the declared dependency specs (name -> range)
	Dependencies map[string]string
	// OptionalDependencies may fail to resolve without failing the install
	OptionalDependencies map[string]string
	// PeerDependencies must be satisfied by a node visible from the parent
	PeerDependencies map[string]string
	// Scripts maps lifecycle events to commands
	Scripts map[string]string

	parent   NodeID
	children []NodeID
	requires map[string]NodeID
}

// Key returns name@version.
func (n *Node) Key() string {
	if n.Version == "" {
		return n.Name
	}
	return fmt.Sprintf("%s@%s", n.Name, n.Version)
}

// IsRoot reports whether n is the project itself.
func (n *Node) IsRoot() bool {
	return n.parent == NoNode
}

// Equal is the structural identity used when diffing two trees.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name && a.Version == b.Version
}

func (n *Node) clone() *Node {
	c := *n
	c.Dependencies = copyStrings(n.Dependencies)
	c.OptionalDependencies = copyStrings(n.OptionalDependencies)
	c.PeerDependencies = copyStrings(n.PeerDependencies)
	c.Scripts = copyStrings(n.Scripts)
	c.children = append([]NodeID(nil), n.children...)
	c.requires = make(map[string]NodeID, len(n.requires))
	for k, v := range n.requires {
		c.requires[k] = v
	}
	return &c
}

func copyStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
