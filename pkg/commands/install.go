package commands

import (
	"context"

	"github.com/arthur-debert/arbor/pkg/lifecycle"
	"github.com/arthur-debert/arbor/pkg/manifest"
	"github.com/arthur-debert/arbor/pkg/orchestrator"
	"github.com/arthur-debert/arbor/pkg/progress"
	"github.com/arthur-debert/arbor/pkg/tree"
)

// Progress groups opened under runTopLevelLifecycles.
const (
	GroupPackageScripts = "packageScripts"
	GroupProjectScripts = "projectScripts"
)

type dependency struct {
	name string
	spec string
}

// Install brings the installed tree in line with the manifest. Package
// arguments are added to the manifest first; one given without a range is
// resolved to its newest version and saved as ^version.
func Install(opts Options) (orchestrator.Strategy, error) {
	if err := requireBuild(CommandInstall, opts); err != nil {
		return orchestrator.Strategy{}, err
	}
	var deps []dependency
	for _, arg := range opts.Args {
		name, spec, err := ParseSpec(arg)
		if err != nil {
			return orchestrator.Strategy{}, err
		}
		deps = append(deps, dependency{name: name, spec: spec})
	}

	return orchestrator.Strategy{
		Name: string(CommandInstall),
		ComputeIdeal: func(ctx context.Context, s *orchestrator.State, g *progress.Group) (*tree.PackageTree, error) {
			if len(deps) > 0 {
				err := opts.Project.EditManifest(func(m *manifest.Manifest) {
					for _, d := range deps {
						spec := d.spec
						if spec == "" {
							spec = "latest"
						}
						m.AddDependency(d.name, spec, opts.SaveDev, opts.SaveOptional)
					}
				})
				if err != nil {
					return nil, err
				}
			}

			ideal, err := opts.Builder.Build(ctx, s.Current, opts.Project.Manifest().Request())
			if err != nil {
				return nil, err
			}

			if err := pinResolved(opts, ideal, deps); err != nil {
				return nil, err
			}
			g.Complete(string(CommandInstall))
			return ideal, nil
		},
		Lifecycle: lifecycleStage(opts.Runner),
	}, nil
}

// pinResolved replaces the placeholder range of arguments given without
// one by a caret range on the version that was placed.
func pinResolved(opts Options, ideal *tree.PackageTree, deps []dependency) error {
	var pins []dependency
	for _, d := range deps {
		if d.spec != "" {
			continue
		}
		if n, ok := ideal.Resolve(ideal.Root(), d.name); ok {
			pins = append(pins, dependency{name: d.name, spec: "^" + n.Version})
		}
	}
	if len(pins) == 0 {
		return nil
	}
	return opts.Project.EditManifest(func(m *manifest.Manifest) {
		for _, p := range pins {
			m.AddDependency(p.name, p.spec, opts.SaveDev, opts.SaveOptional)
		}
	})
}

// lifecycleStage runs install scripts of every added or updated package,
// deepest first, then the project's own scripts.
func lifecycleStage(runner lifecycle.Runner) func(ctx context.Context, s *orchestrator.State, g *progress.Group) error {
	if runner == nil {
		return nil
	}
	return func(ctx context.Context, s *orchestrator.State, g *progress.Group) error {
		targets := lifecycle.ChangedTargets(s.Ideal, s.Operations)
		scripts := lifecycle.Scripts(targets, lifecycle.InstallEvents)
		if err := lifecycle.Run(ctx, runner, scripts, g.NewGroup(GroupPackageScripts)); err != nil {
			return err
		}

		root := lifecycle.Scripts([]lifecycle.Target{lifecycle.RootTarget(s.Ideal)}, lifecycle.RootEvents)
		if err := lifecycle.Run(ctx, runner, root, g.NewGroup(GroupProjectScripts)); err != nil {
			return err
		}
		g.Complete(lifecycle.RootTarget(s.Ideal).Name)
		return nil
	}
}
