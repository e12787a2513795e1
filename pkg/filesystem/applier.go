package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/arthur-debert/arbor/pkg/pipeline"
	"github.com/arthur-debert/arbor/pkg/planner"
	"github.com/arthur-debert/arbor/pkg/tree"
	"github.com/arthur-debert/synthfs/pkg/synthfs"
	sfsys "github.com/arthur-debert/synthfs/pkg/synthfs/filesystem"
	"github.com/rs/zerolog"
)

// Fetcher downloads name@version and extracts it into dest. dest exists
// when Fetch is called and holds at most a node_modules directory.
type Fetcher interface {
	Fetch(ctx context.Context, name, version, dest string) error
}

// Applier performs planner operations against a project directory.
type Applier struct {
	logger  zerolog.Logger
	fs      FS
	fetcher Fetcher
	runner  sfsys.FullFileSystem
}

// NewApplier creates an applier that inspects the project through fsys,
// mutates it through synthfs operations and obtains package contents from
// fetcher.
func NewApplier(fsys FS, fetcher Fetcher) *Applier {
	if fsys == nil {
		fsys = NewOS()
	}
	osfs := sfsys.NewOSFileSystem("/")
	return &Applier{
		logger:  logging.GetLogger("filesystem.applier"),
		fs:      fsys,
		fetcher: fetcher,
		runner:  synthfs.NewPathAwareFileSystem(osfs, "/").WithAbsolutePaths(),
	}
}

// Action wraps op as a pipeline action for the project rooted at dir.
func (a *Applier) Action(dir string, op planner.Operation) pipeline.Action {
	return pipeline.Action{
		Name: op.String(),
		Run: func(ctx context.Context, rc pipeline.RunContext) error {
			return a.Apply(ctx, dir, op)
		},
	}
}

// Apply performs a single operation. Failures carry the FILESYSTEM code.
func (a *Applier) Apply(ctx context.Context, dir string, op planner.Operation) error {
	a.logger.Debug().
		Str("operation", string(op.Kind)).
		Str("package", op.Name).
		Str("location", op.Location).
		Msg("Applying operation")

	ops, err := a.operations(dir, op)
	if err == nil && len(ops) > 0 {
		options := synthfs.DefaultPipelineOptions()
		options.RollbackOnError = false
		_, err = synthfs.RunWithOptions(ctx, a.runner, options, ops...)
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "failed to %s", op).
			WithDetail("operation", string(op.Kind)).
			WithDetail("package", op.Name).
			WithDetail("location", op.Location)
	}
	return nil
}

// operations converts op into synthfs operations. Removing a missing
// package yields none.
func (a *Applier) operations(dir string, op planner.Operation) ([]synthfs.Operation, error) {
	sfs := synthfs.New()
	target := resolve(dir, op.Location)

	switch op.Kind {
	case planner.KindRemove:
		if _, err := a.fs.Lstat(target); os.IsNotExist(err) {
			return nil, nil
		} else if err != nil {
			return nil, err
		}
		return []synthfs.Operation{sfs.DeleteWithID(opID("delete", target), target)}, nil

	case planner.KindMove:
		parent := filepath.Dir(target)
		return []synthfs.Operation{
			sfs.CreateDirWithID(opID("mkdir", parent), parent, 0755),
			sfs.MoveWithID(opID("move", target), resolve(dir, op.From), target),
		}, nil

	case planner.KindAdd:
		return []synthfs.Operation{
			sfs.CreateDirWithID(opID("mkdir", target), target, 0755),
			a.fetchOp(sfs, op, target),
		}, nil

	case planner.KindUpdate:
		clearOp := sfs.CustomOperationWithID(opID("clear", target), func(ctx context.Context, fsys sfsys.FileSystem) error {
			return clearPackage(fsys, target)
		})
		return []synthfs.Operation{clearOp, a.fetchOp(sfs, op, target)}, nil

	default:
		return nil, errors.Newf(errors.ErrInternal, "unknown operation kind %q", op.Kind)
	}
}

func (a *Applier) fetchOp(sfs *synthfs.SynthFS, op planner.Operation, target string) synthfs.Operation {
	return sfs.CustomOperationWithID(opID("fetch", target), func(ctx context.Context, _ sfsys.FileSystem) error {
		return a.fetch(ctx, op, target)
	})
}

// clearPackage empties a package directory except for its nested
// node_modules, which holds children owned by separate operations.
func clearPackage(fsys sfsys.FileSystem, target string) error {
	entries, err := fs.ReadDir(fsys, target)
	if os.IsNotExist(err) {
		return fsys.MkdirAll(target, 0755)
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == tree.ModulesDir {
			continue
		}
		if err := fsys.RemoveAll(filepath.Join(target, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) fetch(ctx context.Context, op planner.Operation, target string) error {
	if a.fetcher == nil {
		return errors.Newf(errors.ErrInternal, "no fetcher configured for %s@%s", op.Name, op.Version)
	}
	return a.fetcher.Fetch(ctx, op.Name, op.Version, target)
}

func opID(kind, path string) string {
	return fmt.Sprintf("%s_%s_%d", kind, filepath.Base(path), time.Now().UnixNano())
}

func resolve(dir, location string) string {
	return filepath.Join(dir, filepath.FromSlash(location))
}
