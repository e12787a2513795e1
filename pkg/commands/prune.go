package commands

import (
	"context"

	"github.com/arthur-debert/arbor/pkg/extraneous"
	"github.com/arthur-debert/arbor/pkg/orchestrator"
	"github.com/arthur-debert/arbor/pkg/planner"
	"github.com/arthur-debert/arbor/pkg/progress"
	"github.com/arthur-debert/arbor/pkg/tree"
)

// Progress groups opened under loadIdealTree by prune.
const (
	GroupRemoveDeps     = "removeDeps"
	GroupLoadExtraneous = "loadExtraneous"
)

// Prune removes extraneous packages. With no selectors every extraneous
// top-level package goes, along with whatever only it kept alive; named
// selectors limit the removal to those packages and their exclusive
// dependencies. Prune runs no lifecycle scripts.
func Prune(opts Options) orchestrator.Strategy {
	selectors := append([]string(nil), opts.Args...)
	production := opts.Production

	return orchestrator.Strategy{
		Name: string(CommandPrune),
		ComputeIdeal: func(ctx context.Context, s *orchestrator.State, g *progress.Group) (*tree.PackageTree, error) {
			ideal := s.Current.Clone()
			requested := extraneous.RequestedNames(ideal, production)

			removeGroup := g.NewGroup(GroupRemoveDeps)
			sel, err := planner.SelectPrunable(ideal, requested, selectors)
			if err != nil {
				removeGroup.Start(0)
				removeGroup.Finish(err)
				return nil, err
			}
			removal, err := planner.RemoveDeps(ideal, sel)
			removeGroup.Start(len(sel.Nodes))
			if err == nil {
				for _, n := range removal.Selected {
					removeGroup.Complete(n.Key())
				}
			}
			removeGroup.Finish(err)
			if err != nil {
				return nil, err
			}

			extraneousGroup := g.NewGroup(GroupLoadExtraneous)
			orphans, err := planner.LoadExtraneous(ideal, removal)
			extraneousGroup.Start(len(orphans))
			for _, n := range orphans {
				extraneousGroup.Complete(n.Key())
			}
			extraneousGroup.Finish(err)
			if err != nil {
				return nil, err
			}

			g.Complete(string(CommandPrune))
			return ideal, nil
		},
	}
}
