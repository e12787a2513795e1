package arbor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/arthur-debert/arbor/pkg/commands"
	"github.com/arthur-debert/arbor/pkg/config"
	"github.com/arthur-debert/arbor/pkg/filesystem"
	"github.com/arthur-debert/arbor/pkg/ideal"
	"github.com/arthur-debert/arbor/pkg/lifecycle"
	"github.com/arthur-debert/arbor/pkg/lockfile"
	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/arthur-debert/arbor/pkg/orchestrator"
	"github.com/arthur-debert/arbor/pkg/paths"
	"github.com/arthur-debert/arbor/pkg/progress"
	"github.com/arthur-debert/arbor/pkg/registry"
	"github.com/arthur-debert/arbor/pkg/style"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// globals are the persistent flags shared by every command.
type globals struct {
	verbosity     int
	dryRun        bool
	dir           string
	registry      string
	jobs          int
	ignoreScripts bool
	format        string
	trace         bool
}

// app is everything a command needs for one project.
type app struct {
	cfg    *config.Config
	fs     filesystem.FS
	store  *lockfile.Store
	render *style.Renderer
	out    io.Writer
	errOut io.Writer
	logger zerolog.Logger
}

// overrides maps explicitly set flags onto configuration keys so that
// unset flags never mask file or environment values.
func overrides(cmd *cobra.Command, g *globals) map[string]interface{} {
	out := make(map[string]interface{})
	flags := cmd.Flags()
	set := func(flag, key string, value interface{}) {
		if flags.Changed(flag) {
			out[key] = value
		}
	}
	set("dry-run", "pipeline.dry_run", g.dryRun)
	set("jobs", "pipeline.concurrency", g.jobs)
	set("registry", "registry.path", g.registry)
	set("ignore-scripts", "lifecycle.ignore_scripts", g.ignoreScripts)
	set("trace", "progress.trace", g.trace)
	if f := flags.Lookup("production"); f != nil && f.Changed {
		out["project.production"] = f.Value.String() == "true"
	}
	return out
}

func newApp(cmd *cobra.Command, g *globals) (*app, error) {
	root, err := projectRoot(g.dir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.Options{Root: root, Overrides: overrides(cmd, g)})
	if err != nil {
		return nil, err
	}

	format, err := style.ParseFormat(g.format)
	if err != nil {
		return nil, err
	}

	fsys := filesystem.NewOS()
	return &app{
		cfg:    cfg,
		fs:     fsys,
		store:  lockfile.NewStore(fsys),
		render: style.NewRenderer(format),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		logger: logging.GetLogger("cmd"),
	}, nil
}

// projectRoot resolves -C when given and otherwise discovers the project
// from the working directory.
func projectRoot(dir string) (string, error) {
	if dir != "" {
		root, err := filepath.Abs(paths.ExpandHome(dir))
		if err != nil {
			return "", fmt.Errorf(MsgErrProjectDir, err)
		}
		return root, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf(MsgErrProjectDir, err)
	}
	root, fallback, err := paths.FindProjectRoot(cwd)
	if err != nil {
		return "", err
	}
	if fallback {
		logger := logging.GetLogger("cmd")
		logger.Debug().Str("dir", root).Msg("No manifest found above the working directory")
	}
	return root, nil
}

// run executes one reconciliation command against the project.
func (a *app) run(ctx context.Context, command commands.Command, opts commands.Options) (*orchestrator.Result, error) {
	opts.Production = a.cfg.Project.Production
	opts.Project = a.store

	var fetcher filesystem.Fetcher
	if command != commands.CommandPrune {
		index, err := registry.LoadDir(a.fs, a.cfg.Registry.Path)
		if err != nil {
			return nil, err
		}
		a.logger.Debug().
			Str("registry", a.cfg.Registry.Path).
			Int("packages", index.Count()).
			Msg("Loaded registry")
		opts.Builder = ideal.NewBuilder(registry.NewResolver(index))
		fetcher = registry.NewFetcher(index, a.fs)
	}
	if !a.cfg.Lifecycle.IgnoreScripts {
		opts.Runner = lifecycle.NewShellRunner(lifecycle.ShellOptions{
			Shell:   a.cfg.Lifecycle.Shell,
			Timeout: a.cfg.Lifecycle.Timeout,
			Stdout:  a.errOut,
			Stderr:  a.errOut,
		})
	}

	strategy, err := commands.For(command, opts)
	if err != nil {
		return nil, err
	}

	emitters, shutdown, err := a.emitters(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Warn().Err(err).Msg(MsgErrFlushTraces)
		}
	}()

	o := orchestrator.New(orchestrator.Options{
		Loader:      a.store,
		Saver:       a.store,
		Applier:     filesystem.NewApplier(a.fs, fetcher),
		DryRun:      a.cfg.Pipeline.DryRun,
		Concurrency: a.cfg.Pipeline.Concurrency,
		Emitters:    emitters,
		Logger:      logging.GetLogger("orchestrator"),
	})
	return o.Run(ctx, a.cfg.Project.Root, strategy)
}

func (a *app) emitters(ctx context.Context) ([]progress.Emitter, func(context.Context) error, error) {
	var emitters []progress.Emitter
	if a.cfg.Progress.Log {
		emitters = append(emitters, progress.NewLogEmitter(logging.GetLogger("progress")))
	}
	if !a.cfg.Progress.Trace {
		return emitters, func(context.Context) error { return nil }, nil
	}
	tracer, shutdown, err := setupTracing(a.errOut)
	if err != nil {
		return nil, nil, fmt.Errorf(MsgErrTracing, err)
	}
	return append(emitters, progress.NewTraceEmitter(ctx, tracer)), shutdown, nil
}

// report prints the outcome of run. The summary is printed even when the
// run failed part way, since some operations may already be applied.
func (a *app) report(result *orchestrator.Result, showPlan bool) {
	if result == nil {
		return
	}
	if showPlan {
		fmt.Fprintln(a.out, MsgPlanHeader)
		fmt.Fprintln(a.out, a.render.RenderOperations(result.Operations))
		fmt.Fprintln(a.out)
	}
	fmt.Fprintln(a.out, a.render.RenderSummary(result))
}
