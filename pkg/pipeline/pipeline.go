package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/arthur-debert/arbor/pkg/progress"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RunContext is handed to every action.
type RunContext struct {
	// Step is the name of the step the action belongs to
	Step string
	// Progress is the step's progress group; may be nil
	Progress *progress.Group
}

// ActionFunc performs one unit of work.
type ActionFunc func(ctx context.Context, rc RunContext) error

// Action is a named unit of work.
type Action struct {
	Name string
	Run  ActionFunc
}

// Step is a single action or a group of actions safe to run in parallel.
type Step struct {
	Name    string
	Actions []Action
}

// Single creates a step holding one action.
func Single(name string, fn ActionFunc) Step {
	return Step{Name: name, Actions: []Action{{Name: name, Run: fn}}}
}

// FanOut creates a step whose actions run concurrently.
func FanOut(name string, actions ...Action) Step {
	return Step{Name: name, Actions: actions}
}

// Options contains configuration for the executor
type Options struct {
	DryRun bool
	// Concurrency bounds parallel actions within a step; 0 means unbounded
	Concurrency int
	// Progress is the parent group step groups are opened under
	Progress *progress.Group
	Logger   zerolog.Logger
}

// Executor runs steps in order.
type Executor struct {
	dryRun      bool
	concurrency int
	progress    *progress.Group
	logger      zerolog.Logger
}

// New creates a new executor instance
func New(opts Options) *Executor {
	logger := opts.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = logging.GetLogger("pipeline")
	}
	return &Executor{
		dryRun:      opts.DryRun,
		concurrency: opts.Concurrency,
		progress:    opts.Progress,
		logger:      logger,
	}
}

// DryRun reports whether actions are simulated.
func (e *Executor) DryRun() bool {
	return e.dryRun
}

// ActionResult records how one action ended.
type ActionResult struct {
	Action   string
	Skipped  bool
	Err      error
	Duration time.Duration
}

// StepReport lists the results of one step.
type StepReport struct {
	Name    string
	Actions []ActionResult
}

// Report describes a run. Steps that never started are absent.
type Report struct {
	DryRun bool
	Steps  []StepReport
}

// Completed returns, in step order, the actions that finished successfully
// or were simulated.
func (r *Report) Completed() []string {
	var out []string
	for _, s := range r.Steps {
		for _, a := range s.Actions {
			if a.Err == nil {
				out = append(out, a.Action)
			}
		}
	}
	return out
}

// Run executes steps strictly in sequence. The returned report is never nil
// and describes completed work even when an error is returned.
func (e *Executor) Run(ctx context.Context, steps []Step) (*Report, error) {
	report := &Report{DryRun: e.dryRun}

	e.logger.Debug().
		Int("steps", len(steps)).
		Bool("dry_run", e.dryRun).
		Msg("Running pipeline")

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return report, errors.Wrapf(err, errors.ErrPipelineAborted,
				"pipeline canceled before step %q", step.Name).
				WithDetail("step", step.Name).
				WithDetail("stepIndex", i)
		}

		stepReport, failed, err := e.runStep(ctx, step)
		report.Steps = append(report.Steps, stepReport)
		if err != nil {
			e.logger.Error().
				Err(err).
				Str("step", step.Name).
				Str("action", failed).
				Int("remainingSteps", len(steps)-i-1).
				Msg("Pipeline aborted")
			return report, errors.Wrapf(err, errors.ErrPipelineAborted,
				"step %q failed at %q", step.Name, failed).
				WithDetail("step", step.Name).
				WithDetail("action", failed).
				WithDetail("stepIndex", i)
		}
	}

	return report, nil
}

func (e *Executor) runStep(ctx context.Context, step Step) (StepReport, string, error) {
	group := e.progress.NewGroup(step.Name)
	group.Start(len(step.Actions))

	results := make([]ActionResult, len(step.Actions))
	rc := RunContext{Step: step.Name, Progress: group}

	if e.dryRun {
		for i, action := range step.Actions {
			e.logger.Info().
				Str("step", step.Name).
				Str("action", action.Name).
				Msg("Dry run - would execute")
			results[i] = ActionResult{Action: action.Name, Skipped: true}
			group.Complete(action.Name)
		}
		group.Finish(nil)
		return StepReport{Name: step.Name, Actions: results}, "", nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}

	var (
		once       sync.Once
		failed     string
		dispatched int
	)
	for i, action := range step.Actions {
		// stop handing out work once the step has failed or been canceled
		if gctx.Err() != nil {
			break
		}
		dispatched++
		g.Go(func() error {
			start := time.Now()
			err := action.Run(gctx, rc)
			results[i] = ActionResult{Action: action.Name, Err: err, Duration: time.Since(start)}
			if err != nil {
				once.Do(func() { failed = action.Name })
				return err
			}
			group.Complete(action.Name)
			return nil
		})
	}
	err := g.Wait()
	if err == nil && dispatched < len(step.Actions) {
		err = ctx.Err()
	}
	group.Finish(err)

	return StepReport{Name: step.Name, Actions: results[:dispatched]}, failed, err
}
