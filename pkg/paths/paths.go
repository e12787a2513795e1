package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/manifest"
)

const (
	// EnvProject overrides project discovery.
	EnvProject = "ARBOR_PROJECT"

	// EnvHome is the fallback for the home directory.
	EnvHome = "HOME"
)

// FindProjectRoot returns the project directory for work started in start.
// ARBOR_PROJECT wins when set. Otherwise the nearest ancestor of start
// (start included) holding a manifest is returned. When no ancestor holds
// one, start itself is returned with fallback set, so that commands can
// report the missing manifest against the directory the user is in.
func FindProjectRoot(start string) (root string, fallback bool, err error) {
	if env := os.Getenv(EnvProject); env != "" {
		root, err := filepath.Abs(ExpandHome(env))
		if err != nil {
			return "", false, errors.Wrapf(err, errors.ErrInvalidInput, "invalid %s %q", EnvProject, env)
		}
		return root, false, nil
	}

	abs, err := filepath.Abs(ExpandHome(start))
	if err != nil {
		return "", false, errors.Wrapf(err, errors.ErrInvalidInput, "invalid project directory %q", start)
	}

	for dir := abs; ; {
		info, err := os.Stat(filepath.Join(dir, manifest.FileName))
		if err == nil && !info.IsDir() {
			return dir, false, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return abs, true, nil
}

// ExpandHome expands a leading ~ to the home directory. ~user forms are
// returned unchanged.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv(EnvHome)
		if home == "" {
			return path
		}
	}

	if len(path) == 1 {
		return home
	}
	if path[1] == '/' || path[1] == filepath.Separator {
		return filepath.Join(home, strings.TrimLeft(path[2:], `/\`))
	}
	return path
}
