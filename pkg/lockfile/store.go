package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/filesystem"
	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/arthur-debert/arbor/pkg/manifest"
	"github.com/arthur-debert/arbor/pkg/tree"
	"github.com/rs/zerolog"
)

// Store loads the current tree of a project and persists the result of a
// run. It keeps the manifest it loaded so commands can edit the
// project's declarations before saving.
type Store struct {
	fs     filesystem.FS
	logger zerolog.Logger

	mu       sync.Mutex
	dir      string
	manifest *manifest.Manifest
	dirty    bool
}

// NewStore creates a store reading and writing through fsys.
func NewStore(fsys filesystem.FS) *Store {
	if fsys == nil {
		fsys = filesystem.NewOS()
	}
	return &Store{fs: fsys, logger: logging.GetLogger("lockfile")}
}

// Load reads the manifest and lockfile under root. A project without a
// lockfile has nothing installed. The returned names are the project's
// direct dependencies.
func (s *Store) Load(ctx context.Context, root string) (*tree.PackageTree, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	m, err := manifest.Load(s.fs, root)
	if err != nil {
		return nil, nil, err
	}

	path := filepath.Join(root, FileName)
	var t *tree.PackageTree
	data, err := s.fs.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		s.logger.Debug().Str("path", path).Msg("No lockfile, starting from an empty tree")
		t = tree.New(root, m.Name, m.Version)
	case err != nil:
		return nil, nil, errors.Wrapf(err, errors.ErrFilesystem, "failed to read %s", path)
	default:
		t, err = Unmarshal(data, root)
		if err != nil {
			return nil, nil, errors.Wrapf(err, errors.ErrLockfileParse, "invalid lockfile %s", path).
				WithDetail("path", path)
		}
	}

	applyManifest(t, m)

	s.mu.Lock()
	s.dir = root
	s.manifest = m
	s.dirty = false
	s.mu.Unlock()

	s.logger.Debug().
		Str("root", root).
		Int("packages", t.Len()-1).
		Msg("Loaded current tree")
	return t, m.DependencyNames(), nil
}

// Manifest returns the manifest read by the last Load, or nil.
func (s *Store) Manifest() *manifest.Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest
}

// EditManifest changes the loaded manifest; Save writes it back.
func (s *Store) EditManifest(fn func(m *manifest.Manifest)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manifest == nil {
		return errors.New(errors.ErrInvalidInput, "no manifest loaded")
	}
	fn(s.manifest)
	s.dirty = true
	return nil
}

// Save writes the lockfile for t, and the manifest when it was edited.
func (s *Store) Save(ctx context.Context, t *tree.PackageTree) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Marshal(t)
	if err != nil {
		return err
	}
	path := filepath.Join(t.Dir, FileName)
	if err := s.fs.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "failed to write %s", path).
			WithDetail("path", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty && s.manifest != nil {
		if err := s.manifest.Save(s.fs, s.dir); err != nil {
			return err
		}
		s.dirty = false
	}
	s.logger.Debug().Str("path", path).Int("packages", t.Len()-1).Msg("Saved lockfile")
	return nil
}

// applyManifest sets the flags the lockfile does not store.
func applyManifest(t *tree.PackageTree, m *manifest.Manifest) {
	root := t.Root()
	root.Name = m.Name
	root.Version = m.Version
	root.Scripts = m.Scripts

	for _, n := range t.TopLevel() {
		_, prod := m.Dependencies[n.Name]
		_, dev := m.DevDependencies[n.Name]
		_, opt := m.OptionalDependencies[n.Name]
		n.Requested = prod || dev || opt
		if n.Requested {
			n.Dev = dev && !prod && !opt
		}
	}
}
