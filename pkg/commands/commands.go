package commands

import (
	"strings"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/ideal"
	"github.com/arthur-debert/arbor/pkg/lifecycle"
	"github.com/arthur-debert/arbor/pkg/manifest"
	"github.com/arthur-debert/arbor/pkg/orchestrator"
)

// Command tags a strategy bundle.
type Command string

const (
	CommandInstall Command = "install"
	CommandPrune   Command = "prune"
	CommandUpdate  Command = "update"
)

// Project gives install and update access to the manifest the loader read.
type Project interface {
	Manifest() *manifest.Manifest
	EditManifest(fn func(m *manifest.Manifest)) error
}

// Options is the input shared by every bundle. Fields a command does not
// use are ignored.
type Options struct {
	// Args are the package arguments: selectors for prune and update,
	// name[@range] specs for install
	Args []string
	// Production treats dev dependencies as unrequested when pruning
	Production bool
	// SaveDev and SaveOptional choose the manifest section for installs
	SaveDev      bool
	SaveOptional bool

	Builder *ideal.Builder
	Project Project
	// Runner executes lifecycle scripts; nil runs none
	Runner lifecycle.Runner
}

// For returns the strategy bundle for cmd.
func For(cmd Command, opts Options) (orchestrator.Strategy, error) {
	switch cmd {
	case CommandInstall:
		return Install(opts)
	case CommandPrune:
		return Prune(opts), nil
	case CommandUpdate:
		return Update(opts)
	default:
		return orchestrator.Strategy{}, errors.Newf(errors.ErrInvalidInput, "unknown command %q", cmd).
			WithDetail("command", string(cmd))
	}
}

// ParseSpec splits name[@range]. Scoped names keep their leading @.
func ParseSpec(arg string) (name, spec string, err error) {
	name = arg
	if i := strings.LastIndex(arg, "@"); i > 0 {
		name, spec = arg[:i], arg[i+1:]
	}
	if name == "" || name == "@" || strings.HasSuffix(name, "/") ||
		(strings.HasPrefix(name, "@") && !strings.Contains(name, "/")) {
		return "", "", errors.Newf(errors.ErrInvalidInput, "invalid package argument %q", arg).
			WithDetail("argument", arg)
	}
	return name, spec, nil
}

func requireBuild(cmd Command, opts Options) error {
	if opts.Builder == nil || opts.Project == nil {
		return errors.Newf(errors.ErrInvalidInput, "%s needs a resolver and a loaded project", cmd)
	}
	return nil
}
