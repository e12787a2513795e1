package orchestrator

import (
	"github.com/arthur-debert/arbor/pkg/pipeline"
	"github.com/arthur-debert/arbor/pkg/planner"
	"github.com/arthur-debert/arbor/pkg/tree"
)

// Result summarizes a run. Package lists hold name@version in execution
// order; an update lists the new version.
type Result struct {
	RunID   string
	Command string
	DryRun  bool

	Added   []string
	Removed []string
	Updated []string
	Moved   []string

	Operations []planner.Operation
	// Report describes executed steps; nil when planning failed
	Report *pipeline.Report
	// Ideal is the tree the run produced; nil on failure
	Ideal *tree.PackageTree
}

// Changed reports whether the run planned any operation.
func (r *Result) Changed() bool {
	return len(r.Operations) > 0
}

func (r *Result) summarize(s *State) {
	r.Operations = s.Operations
	for _, op := range s.Operations {
		key := op.Name + "@" + op.Version
		switch op.Kind {
		case planner.KindAdd:
			r.Added = append(r.Added, key)
		case planner.KindRemove:
			r.Removed = append(r.Removed, key)
		case planner.KindUpdate:
			r.Updated = append(r.Updated, key)
		case planner.KindMove:
			r.Moved = append(r.Moved, key)
		}
	}
}
