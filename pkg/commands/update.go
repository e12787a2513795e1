package commands

import (
	"context"

	"github.com/arthur-debert/arbor/pkg/orchestrator"
	"github.com/arthur-debert/arbor/pkg/progress"
	"github.com/arthur-debert/arbor/pkg/tree"
)

// Update re-resolves the named packages, or every package when none is
// named, to the newest versions their declared ranges allow.
func Update(opts Options) (orchestrator.Strategy, error) {
	if err := requireBuild(CommandUpdate, opts); err != nil {
		return orchestrator.Strategy{}, err
	}
	names := append([]string(nil), opts.Args...)

	return orchestrator.Strategy{
		Name: string(CommandUpdate),
		ComputeIdeal: func(ctx context.Context, s *orchestrator.State, g *progress.Group) (*tree.PackageTree, error) {
			req := opts.Project.Manifest().Request()
			req.Update = names
			req.UpdateAll = len(names) == 0

			ideal, err := opts.Builder.Build(ctx, s.Current, req)
			if err != nil {
				return nil, err
			}
			g.Complete(string(CommandUpdate))
			return ideal, nil
		},
		Lifecycle: lifecycleStage(opts.Runner),
	}, nil
}
