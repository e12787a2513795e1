package registry

import (
	"context"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/filesystem"
	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/arthur-debert/arbor/pkg/tree"
	"github.com/rs/zerolog"
)

// Fetcher copies published package contents into install locations.
type Fetcher struct {
	index  *Index
	fs     filesystem.FS
	logger zerolog.Logger
}

// NewFetcher creates a fetcher reading from index and writing through fsys.
func NewFetcher(index *Index, fsys filesystem.FS) *Fetcher {
	if fsys == nil {
		fsys = filesystem.NewOS()
	}
	return &Fetcher{index: index, fs: fsys, logger: logging.GetLogger("registry.fetcher")}
}

// Fetch writes name@version into dest. A node_modules directory shipped
// inside the package is never copied.
func (f *Fetcher) Fetch(ctx context.Context, name, version, dest string) error {
	p, err := f.index.Get(name, version)
	if err != nil {
		return err
	}

	f.logger.Debug().
		Str("package", name).
		Str("version", version).
		Str("dest", dest).
		Msg("Fetching package")

	if p.Dir != "" {
		return f.copyDir(ctx, p.Dir, dest, true)
	}
	return f.writeFiles(ctx, p.Files, dest)
}

func (f *Fetcher) copyDir(ctx context.Context, src, dest string, top bool) error {
	entries, err := f.fs.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "failed to read %s", src)
	}
	if err := f.fs.MkdirAll(dest, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "failed to create %s", dest)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if top && e.Name() == tree.ModulesDir {
			continue
		}
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dest, e.Name())
		if e.IsDir() {
			if err := f.copyDir(ctx, from, to, false); err != nil {
				return err
			}
			continue
		}
		info, err := e.Info()
		if err != nil {
			return errors.Wrapf(err, errors.ErrFilesystem, "failed to stat %s", from)
		}
		data, err := f.fs.ReadFile(from)
		if err != nil {
			return errors.Wrapf(err, errors.ErrFilesystem, "failed to read %s", from)
		}
		if err := f.fs.WriteFile(to, data, info.Mode().Perm()); err != nil {
			return errors.Wrapf(err, errors.ErrFilesystem, "failed to write %s", to)
		}
	}
	return nil
}

func (f *Fetcher) writeFiles(ctx context.Context, files map[string][]byte, dest string) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		clean := path.Clean("/" + name)[1:]
		if clean == "" || clean == tree.ModulesDir || strings.HasPrefix(clean, tree.ModulesDir+"/") {
			continue
		}
		to := filepath.Join(dest, filepath.FromSlash(clean))
		if err := f.fs.MkdirAll(filepath.Dir(to), 0755); err != nil {
			return errors.Wrapf(err, errors.ErrFilesystem, "failed to create %s", filepath.Dir(to))
		}
		if err := f.fs.WriteFile(to, files[name], 0644); err != nil {
			return errors.Wrapf(err, errors.ErrFilesystem, "failed to write %s", to)
		}
	}
	return nil
}
