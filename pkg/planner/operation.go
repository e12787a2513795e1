package planner

import (
	"fmt"

	"github.com/arthur-debert/arbor/pkg/tree"
)

// Kind tags an operation.
type Kind string

const (
	KindAdd    Kind = "add"
	KindRemove Kind = "remove"
	KindUpdate Kind = "update"
	KindMove   Kind = "move"
)

// Operation is one change to the installed tree. Locations are relative to
// the project directory, slash separated.
type Operation struct {
	Kind    Kind
	Name    string
	Version string
	// PreviousVersion is the version being replaced by an update
	PreviousVersion string
	// Location is where the package ends up; for a remove, where it was
	Location string
	// From is the location a moved package leaves
	From string
	// Node is the ideal node, or the current node for a remove
	Node *tree.Node
}

func (o Operation) String() string {
	switch o.Kind {
	case KindUpdate:
		return fmt.Sprintf("update %s %s -> %s at %s", o.Name, o.PreviousVersion, o.Version, o.Location)
	case KindMove:
		return fmt.Sprintf("move %s@%s %s -> %s", o.Name, o.Version, o.From, o.Location)
	default:
		return fmt.Sprintf("%s %s@%s at %s", o.Kind, o.Name, o.Version, o.Location)
	}
}

func kindRank(k Kind) int {
	switch k {
	case KindMove:
		return 0
	case KindRemove:
		return 1
	case KindUpdate:
		return 2
	default:
		return 3
	}
}
