package orchestrator

import (
	"context"
	"time"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/arthur-debert/arbor/pkg/pipeline"
	"github.com/arthur-debert/arbor/pkg/planner"
	"github.com/arthur-debert/arbor/pkg/progress"
	"github.com/arthur-debert/arbor/pkg/tree"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Stage names double as progress group names.
const (
	StageLoadCurrent = "loadCurrentTree"
	StageLoadIdeal   = "loadIdealTree"
	StageDiff        = "diffTrees"
	StageExecute     = "executeActions"
	StageLifecycle   = "runTopLevelLifecycles"
	StageSave        = "saveState"
)

// Loader reads the installed tree of a project. requested are the
// project's direct dependency names.
type Loader interface {
	Load(ctx context.Context, root string) (t *tree.PackageTree, requested []string, err error)
}

// Saver persists the tree a run produced.
type Saver interface {
	Save(ctx context.Context, t *tree.PackageTree) error
}

// Applier turns a planned operation into an executable action.
type Applier interface {
	Action(dir string, op planner.Operation) pipeline.Action
}

// State is shared by the stages of one run and handed to strategy hooks.
type State struct {
	RunID     string
	Root      string
	DryRun    bool
	Current   *tree.PackageTree
	Requested []string
	Ideal     *tree.PackageTree
	// Operations lists every difference between the two trees
	Operations []planner.Operation
	// Steps orders the operations for execution; removes nested under a
	// removed package are folded into their ancestor's
	Steps []planner.Step
}

// Strategy is the command specific part of a run.
type Strategy struct {
	Name string
	// ComputeIdeal derives the ideal tree from s.Current. It must not
	// touch the disk.
	ComputeIdeal func(ctx context.Context, s *State, group *progress.Group) (*tree.PackageTree, error)
	// Lifecycle runs scripts once the tree is in place; nil skips the stage
	Lifecycle func(ctx context.Context, s *State, group *progress.Group) error
}

// Options contains configuration for the orchestrator
type Options struct {
	Loader  Loader
	Saver   Saver
	Applier Applier

	DryRun      bool
	Concurrency int
	Emitters    []progress.Emitter
	Logger      zerolog.Logger
}

// Orchestrator runs strategies through the stage sequence.
type Orchestrator struct {
	loader      Loader
	saver       Saver
	applier     Applier
	dryRun      bool
	concurrency int
	emitters    []progress.Emitter
	logger      zerolog.Logger
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = logging.GetLogger("orchestrator")
	}
	return &Orchestrator{
		loader:      opts.Loader,
		saver:       opts.Saver,
		applier:     opts.Applier,
		dryRun:      opts.DryRun,
		concurrency: opts.Concurrency,
		emitters:    opts.Emitters,
		logger:      logger,
	}
}

// Run executes strategy against the project at root. On an execution
// failure the result still describes what was planned and what completed.
func (o *Orchestrator) Run(ctx context.Context, root string, strategy Strategy) (*Result, error) {
	if strategy.ComputeIdeal == nil {
		return nil, errors.Newf(errors.ErrInvalidInput, "strategy %q computes no ideal tree", strategy.Name)
	}

	s := &State{RunID: uuid.NewString(), Root: root, DryRun: o.dryRun}
	logger := logging.ForRun(o.logger, s.RunID, strategy.Name, o.dryRun)
	start := time.Now()
	logger.Info().Str("root", root).Msg("Starting run")

	progressRoot := progress.NewRoot(strategy.Name, o.emitters...)
	progressRoot.Start(6)
	result := &Result{RunID: s.RunID, Command: strategy.Name, DryRun: o.dryRun}

	fail := func(stage string, err error) (*Result, error) {
		logger.Error().Err(err).Str("stage", stage).Msg("Run failed")
		progressRoot.Finish(err)
		return result, err
	}

	// 1. current tree
	err := o.stage(logger, progressRoot, StageLoadCurrent, func(g *progress.Group) error {
		current, requested, err := o.loader.Load(ctx, root)
		if err != nil {
			return err
		}
		s.Current, s.Requested = current, requested
		g.Complete(root)
		return nil
	})
	if err != nil {
		return fail(StageLoadCurrent, err)
	}

	// 2. ideal tree
	err = o.stage(logger, progressRoot, StageLoadIdeal, func(g *progress.Group) error {
		ideal, err := strategy.ComputeIdeal(ctx, s, g)
		if err != nil {
			return err
		}
		if ideal == nil {
			return errors.Newf(errors.ErrInternal, "strategy %q produced no ideal tree", strategy.Name)
		}
		s.Ideal = ideal
		return nil
	})
	if err != nil {
		return fail(StageLoadIdeal, err)
	}

	// 3. diff
	err = o.stage(logger, progressRoot, StageDiff, func(g *progress.Group) error {
		ops := planner.Diff(s.Current, s.Ideal)
		steps, err := planner.Plan(ops)
		if err != nil {
			return err
		}
		s.Operations = ops
		s.Steps = steps
		g.Complete(s.Root)
		return nil
	})
	if err != nil {
		return fail(StageDiff, err)
	}
	result.summarize(s)

	logger.Debug().
		Int("operations", len(s.Operations)).
		Int("steps", len(s.Steps)).
		Msg("Planned operations")

	// 4. execute
	err = o.stage(logger, progressRoot, StageExecute, func(g *progress.Group) error {
		exec := pipeline.New(pipeline.Options{
			DryRun:      o.dryRun,
			Concurrency: o.concurrency,
			Progress:    g,
			Logger:      logger,
		})
		report, err := exec.Run(ctx, o.pipelineSteps(s))
		result.Report = report
		return err
	})
	if err != nil {
		return fail(StageExecute, err)
	}

	// 5. lifecycle
	err = o.stage(logger, progressRoot, StageLifecycle, func(g *progress.Group) error {
		if strategy.Lifecycle == nil {
			return nil
		}
		if o.dryRun {
			logger.Info().Msg("Dry run - lifecycle scripts would run")
			return nil
		}
		return strategy.Lifecycle(ctx, s, g)
	})
	if err != nil {
		return fail(StageLifecycle, err)
	}

	// 6. persist
	err = o.stage(logger, progressRoot, StageSave, func(g *progress.Group) error {
		if o.dryRun || o.saver == nil {
			return nil
		}
		if err := o.saver.Save(ctx, s.Ideal); err != nil {
			return err
		}
		g.Complete(s.Root)
		return nil
	})
	if err != nil {
		return fail(StageSave, err)
	}

	// 7. summary
	result.Ideal = s.Ideal
	progressRoot.Finish(nil)
	logger.Info().
		Int("added", len(result.Added)).
		Int("removed", len(result.Removed)).
		Int("updated", len(result.Updated)).
		Int("moved", len(result.Moved)).
		Dur("duration", time.Since(start)).
		Msg("Run finished")
	return result, nil
}

func (o *Orchestrator) stage(logger zerolog.Logger, parent *progress.Group, name string, fn func(g *progress.Group) error) error {
	done := logging.Stage(logger, name)
	g := parent.NewGroup(name)
	g.Start(1)
	err := fn(g)
	g.Finish(err)
	done(err)
	parent.Complete(name)
	return err
}

func (o *Orchestrator) pipelineSteps(s *State) []pipeline.Step {
	steps := make([]pipeline.Step, 0, len(s.Steps))
	for _, step := range s.Steps {
		actions := make([]pipeline.Action, 0, len(step.Ops))
		for _, op := range step.Ops {
			actions = append(actions, o.applier.Action(s.Root, op))
		}
		steps = append(steps, pipeline.FanOut(step.Name, actions...))
	}
	return steps
}
