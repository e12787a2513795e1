package registry

import (
	"path/filepath"
	"strings"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/filesystem"
	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/arthur-debert/arbor/pkg/manifest"
)

// LoadDir indexes every package version found under root. A version
// directory without an arbor.toml is skipped; one whose manifest
// disagrees with its location is an error.
func LoadDir(fsys filesystem.FS, root string) (*Index, error) {
	logger := logging.GetLogger("registry.loader").With().Str("root", root).Logger()

	entries, err := fsys.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "failed to read registry %s", root).
			WithDetail("path", root)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !strings.HasPrefix(e.Name(), "@") {
			names = append(names, e.Name())
			continue
		}
		scoped, err := fsys.ReadDir(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrFilesystem, "failed to read scope %s", e.Name())
		}
		for _, s := range scoped {
			if s.IsDir() {
				names = append(names, e.Name()+"/"+s.Name())
			}
		}
	}

	index := NewIndex()
	for _, name := range names {
		pkgDir := filepath.Join(root, filepath.FromSlash(name))
		versions, err := fsys.ReadDir(pkgDir)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrFilesystem, "failed to read %s", pkgDir)
		}
		for _, v := range versions {
			if !v.IsDir() {
				continue
			}
			dir := filepath.Join(pkgDir, v.Name())
			m, err := manifest.Load(fsys, dir)
			if errors.IsErrorCode(err, errors.ErrNotFound) {
				logger.Debug().Str("dir", dir).Msg("Skipping directory without manifest")
				continue
			}
			if err != nil {
				return nil, err
			}
			if m.Name != name || m.Version != v.Name() {
				return nil, errors.Newf(errors.ErrManifestParse,
					"%s declares %s@%s but is stored as %s@%s", dir, m.Name, m.Version, name, v.Name()).
					WithDetail("path", dir)
			}
			if err := index.Publish(Package{Manifest: m.Package(), Dir: dir}); err != nil {
				return nil, err
			}
		}
	}

	logger.Debug().
		Int("packages", len(index.Names())).
		Int("versions", index.Count()).
		Msg("Loaded registry")
	return index, nil
}
