// Package lifecycle runs package scripts around an install.
package lifecycle

import (
	"context"
	"fmt"
	"sort"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/planner"
	"github.com/arthur-debert/arbor/pkg/progress"
	"github.com/arthur-debert/arbor/pkg/tree"
)

// InstallEvents are the scripts run for a freshly placed package, in order.
var InstallEvents = []string{"preinstall", "install", "postinstall"}

// RootEvents are the project's own scripts run after the tree is in place.
var RootEvents = []string{"preinstall", "install", "postinstall", "prepare"}

// Runner executes one script in dir.
type Runner interface {
	Run(ctx context.Context, script Script) error
}

// Script is one lifecycle command bound to a package directory.
type Script struct {
	Package string
	Event   string
	Dir     string
	Command string
}

func (s Script) String() string {
	return fmt.Sprintf("%s %s", s.Package, s.Event)
}

// Target is a package whose scripts should run.
type Target struct {
	Name    string
	Dir     string
	Scripts map[string]string
}

// Scripts expands targets into the commands to run: target by target, and
// within a target in event order. Events a target does not define are
// skipped.
func Scripts(targets []Target, events []string) []Script {
	var out []Script
	for _, t := range targets {
		for _, ev := range events {
			cmd, ok := t.Scripts[ev]
			if !ok || cmd == "" {
				continue
			}
			out = append(out, Script{Package: t.Name, Event: ev, Dir: t.Dir, Command: cmd})
		}
	}
	return out
}

// Run executes scripts one at a time and stops at the first failure,
// reporting each finished script to group.
func Run(ctx context.Context, runner Runner, scripts []Script, group *progress.Group) error {
	group.Start(len(scripts))
	for _, s := range scripts {
		if err := ctx.Err(); err != nil {
			group.Finish(err)
			return err
		}
		if err := runner.Run(ctx, s); err != nil {
			if !errors.IsErrorCode(err, errors.ErrLifecycle) {
				err = errors.Wrapf(err, errors.ErrLifecycle, "%s script of %s failed", s.Event, s.Package)
			}
			group.Finish(err)
			return err
		}
		group.Complete(s.String())
	}
	group.Finish(nil)
	return nil
}

// ChangedTargets returns the packages an operation list added or updated,
// deepest first so dependencies build before their dependents.
func ChangedTargets(t *tree.PackageTree, ops []planner.Operation) []Target {
	var nodes []*tree.Node
	for _, op := range ops {
		if op.Kind != planner.KindAdd && op.Kind != planner.KindUpdate {
			continue
		}
		if n := t.Lookup(op.Location); n != nil && len(n.Scripts) > 0 {
			nodes = append(nodes, n)
		}
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		di, dj := t.Depth(nodes[i]), t.Depth(nodes[j])
		if di != dj {
			return di > dj
		}
		return t.Location(nodes[i]) < t.Location(nodes[j])
	})

	out := make([]Target, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Target{Name: n.Key(), Dir: t.Path(n), Scripts: n.Scripts})
	}
	return out
}

// RootTarget returns the project itself.
func RootTarget(t *tree.PackageTree) Target {
	root := t.Root()
	return Target{Name: root.Key(), Dir: t.Dir, Scripts: root.Scripts}
}

// Nop never runs anything.
type Nop struct{}

// Run implements Runner.
func (Nop) Run(context.Context, Script) error { return nil }
