package commands_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/arthur-debert/arbor/pkg/ideal"
	"github.com/arthur-debert/arbor/pkg/manifest"
	"github.com/arthur-debert/arbor/pkg/orchestrator"
	"github.com/arthur-debert/arbor/pkg/pipeline"
	"github.com/arthur-debert/arbor/pkg/planner"
	"github.com/arthur-debert/arbor/pkg/progress"
	"github.com/arthur-debert/arbor/pkg/registry"
	"github.com/arthur-debert/arbor/pkg/tree"
	"github.com/stretchr/testify/require"
)

type staticLoader struct {
	tree *tree.PackageTree
}

func (l *staticLoader) Load(ctx context.Context, root string) (*tree.PackageTree, []string, error) {
	var requested []string
	for _, n := range l.tree.TopLevel() {
		if n.Requested {
			requested = append(requested, n.Name)
		}
	}
	return l.tree, requested, nil
}

type nullSaver struct {
	saved *tree.PackageTree
}

func (s *nullSaver) Save(ctx context.Context, t *tree.PackageTree) error {
	s.saved = t
	return nil
}

type recordingApplier struct {
	mu  sync.Mutex
	ops []planner.Operation
}

func (a *recordingApplier) Action(dir string, op planner.Operation) pipeline.Action {
	return pipeline.Action{
		Name: op.String(),
		Run: func(context.Context, pipeline.RunContext) error {
			a.mu.Lock()
			a.ops = append(a.ops, op)
			a.mu.Unlock()
			return nil
		},
	}
}

// project is an in-memory manifest holder.
type project struct {
	m *manifest.Manifest
}

func newProject(deps map[string]string) *project {
	return &project{m: &manifest.Manifest{Name: "app", Version: "1.0.0", Dependencies: deps}}
}

func (p *project) Manifest() *manifest.Manifest { return p.m }

func (p *project) EditManifest(fn func(m *manifest.Manifest)) error {
	fn(p.m)
	return nil
}

type harness struct {
	applier  *recordingApplier
	saver    *nullSaver
	recorder *progress.Recorder
}

func run(t *testing.T, current *tree.PackageTree, dryRun bool, strategy orchestrator.Strategy) (*orchestrator.Result, *harness, error) {
	t.Helper()
	h := &harness{applier: &recordingApplier{}, saver: &nullSaver{}, recorder: progress.NewRecorder()}
	o := orchestrator.New(orchestrator.Options{
		Loader:   &staticLoader{tree: current},
		Saver:    h.saver,
		Applier:  h.applier,
		DryRun:   dryRun,
		Emitters: []progress.Emitter{h.recorder},
	})
	result, err := o.Run(context.Background(), current.Dir, strategy)
	return result, h, err
}

// treeBuilder assembles trees by location.
type treeBuilder struct {
	t  *testing.T
	pt *tree.PackageTree
}

func newTree(t *testing.T) *treeBuilder {
	return &treeBuilder{t: t, pt: tree.New("/project", "app", "1.0.0")}
}

func (b *treeBuilder) add(parent, name, version string) *tree.Node {
	b.t.Helper()
	p := b.pt.Lookup(parent)
	require.NotNil(b.t, p, "no node at %q", parent)
	n, err := b.pt.AddChild(p, name, version)
	require.NoError(b.t, err)
	return n
}

func (b *treeBuilder) request(name, version string) *tree.Node {
	b.t.Helper()
	n := b.add("", name, version)
	n.Requested = true
	require.NoError(b.t, b.pt.Link(b.pt.Root(), name, n))
	return n
}

func (b *treeBuilder) link(from, to string) {
	b.t.Helper()
	f, dst := b.pt.Lookup(from), b.pt.Lookup(to)
	require.NotNil(b.t, f)
	require.NotNil(b.t, dst)
	require.NoError(b.t, b.pt.Link(f, dst.Name, dst))
}

// scenario: a is requested and requires hoisted c; b is no longer
// requested and owns its private dependency d.
func scenario(t *testing.T) *tree.PackageTree {
	b := newTree(t)
	b.request("a", "1.0.0")
	b.add("", "b", "1.0.0")
	b.add("", "c", "1.0.0")
	b.add("node_modules/b", "d", "1.0.0")
	b.link("node_modules/a", "node_modules/c")
	b.link("node_modules/b", "node_modules/b/node_modules/d")
	return b.pt
}

func names(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k[:lastAt(k)])
	}
	sort.Strings(out)
	return out
}

func lastAt(key string) int {
	for i := len(key) - 1; i > 0; i-- {
		if key[i] == '@' {
			return i
		}
	}
	return len(key)
}

func newIndex(t *testing.T, pkgs ...ideal.Manifest) *registry.Index {
	t.Helper()
	index := registry.NewIndex()
	for _, m := range pkgs {
		require.NoError(t, index.Publish(registry.Package{Manifest: m}))
	}
	return index
}

func manifestOf(name, version string, deps map[string]string) ideal.Manifest {
	return ideal.Manifest{Name: name, Version: version, Dependencies: deps}
}
