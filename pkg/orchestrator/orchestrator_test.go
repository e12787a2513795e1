package orchestrator_test

import (
	"context"
	"sync"
	"testing"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/orchestrator"
	"github.com/arthur-debert/arbor/pkg/pipeline"
	"github.com/arthur-debert/arbor/pkg/planner"
	"github.com/arthur-debert/arbor/pkg/progress"
	"github.com/arthur-debert/arbor/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticLoader struct {
	tree      *tree.PackageTree
	requested []string
	err       error
}

func (l *staticLoader) Load(ctx context.Context, root string) (*tree.PackageTree, []string, error) {
	return l.tree, l.requested, l.err
}

type mockSaver struct {
	mock.Mock
}

func (m *mockSaver) Save(ctx context.Context, t *tree.PackageTree) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

// recordingApplier records applied operations and fails the ones named
// in failOn.
type recordingApplier struct {
	mu      sync.Mutex
	applied []string
	failOn  map[string]bool
}

func (a *recordingApplier) Action(dir string, op planner.Operation) pipeline.Action {
	return pipeline.Action{
		Name: op.String(),
		Run: func(ctx context.Context, rc pipeline.RunContext) error {
			if a.failOn[op.Name] {
				return errors.Newf(errors.ErrFilesystem, "cannot touch %s", op.Location)
			}
			a.mu.Lock()
			a.applied = append(a.applied, string(op.Kind)+" "+op.Name)
			a.mu.Unlock()
			return nil
		},
	}
}

// installed builds app with requested a, plus b kept alive by nothing.
func installed(t *testing.T) *tree.PackageTree {
	t.Helper()
	pt := tree.New("/proj", "app", "1.0.0")
	a, err := pt.AddChild(pt.Root(), "a", "1.0.0")
	require.NoError(t, err)
	a.Requested = true
	require.NoError(t, pt.Link(pt.Root(), "a", a))
	_, err = pt.AddChild(pt.Root(), "b", "1.0.0")
	require.NoError(t, err)
	return pt
}

// dropB removes b and adds c with its dependency d nested under it.
func dropB(ctx context.Context, s *orchestrator.State, g *progress.Group) (*tree.PackageTree, error) {
	ideal := s.Current.Clone()
	if _, err := ideal.Remove(ideal.Lookup("node_modules/b")); err != nil {
		return nil, err
	}
	a := ideal.Lookup("node_modules/a")
	c, err := ideal.AddChild(ideal.Root(), "c", "2.0.0")
	if err != nil {
		return nil, err
	}
	d, err := ideal.AddChild(c, "d", "1.0.0")
	if err != nil {
		return nil, err
	}
	if err := ideal.Link(a, "c", c); err != nil {
		return nil, err
	}
	if err := ideal.Link(c, "d", d); err != nil {
		return nil, err
	}
	g.Complete("dropB")
	return ideal, nil
}

func newOrchestrator(t *testing.T, dryRun bool, applier orchestrator.Applier, saver orchestrator.Saver, rec *progress.Recorder) *orchestrator.Orchestrator {
	t.Helper()
	return orchestrator.New(orchestrator.Options{
		Loader:   &staticLoader{tree: installed(t), requested: []string{"a"}},
		Saver:    saver,
		Applier:  applier,
		DryRun:   dryRun,
		Emitters: []progress.Emitter{rec},
	})
}

func TestRun_StagesInOrder(t *testing.T) {
	applier := &recordingApplier{}
	saver := &mockSaver{}
	saver.On("Save", mock.Anything, mock.Anything).Return(nil)
	rec := progress.NewRecorder()

	var lifecycleSaw []string
	strategy := orchestrator.Strategy{
		Name:         "test",
		ComputeIdeal: dropB,
		Lifecycle: func(ctx context.Context, s *orchestrator.State, g *progress.Group) error {
			applier.mu.Lock()
			lifecycleSaw = append([]string(nil), applier.applied...)
			applier.mu.Unlock()
			return nil
		},
	}

	result, err := newOrchestrator(t, false, applier, saver, rec).Run(context.Background(), "/proj", strategy)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"test",
		"test/loadCurrentTree",
		"test/loadIdealTree",
		"test/diffTrees",
		"test/executeActions",
		"test/executeActions/remove+add-1",
		"test/executeActions/add-2",
		"test/runTopLevelLifecycles",
		"test/saveState",
	}, rec.Groups())

	require.Len(t, applier.applied, 3)
	assert.ElementsMatch(t, []string{"remove b", "add c"}, applier.applied[:2])
	assert.Equal(t, "add d", applier.applied[2], "nested add waits for its parent")
	assert.Equal(t, applier.applied, lifecycleSaw, "lifecycle runs after every action")
	assert.Equal(t, []string{"b@1.0.0"}, result.Removed)
	assert.Equal(t, []string{"c@2.0.0", "d@1.0.0"}, result.Added)
	assert.Empty(t, result.Updated)
	assert.NotEmpty(t, result.RunID)
	assert.True(t, result.Changed())
	assert.False(t, result.DryRun)

	saver.AssertCalled(t, "Save", mock.Anything, result.Ideal)
}

func TestRun_DryRunMatchesRealRun(t *testing.T) {
	realRec := progress.NewRecorder()
	saver := &mockSaver{}
	saver.On("Save", mock.Anything, mock.Anything).Return(nil)
	strategy := orchestrator.Strategy{Name: "test", ComputeIdeal: dropB}

	real, err := newOrchestrator(t, false, &recordingApplier{}, saver, realRec).
		Run(context.Background(), "/proj", strategy)
	require.NoError(t, err)

	dryApplier := &recordingApplier{}
	drySaver := &mockSaver{}
	dryRec := progress.NewRecorder()
	called := false
	strategy.Lifecycle = func(context.Context, *orchestrator.State, *progress.Group) error {
		called = true
		return nil
	}

	dry, err := newOrchestrator(t, true, dryApplier, drySaver, dryRec).
		Run(context.Background(), "/proj", strategy)
	require.NoError(t, err)

	assert.True(t, dry.DryRun)
	assert.Equal(t, real.Added, dry.Added)
	assert.Equal(t, real.Removed, dry.Removed)
	assert.Equal(t, real.Updated, dry.Updated)
	assert.Equal(t, real.Moved, dry.Moved)
	assert.Equal(t, realRec.Groups(), dryRec.Groups())
	assert.Equal(t, real.Report.Completed(), dry.Report.Completed())

	assert.Empty(t, dryApplier.applied)
	assert.False(t, called, "lifecycle scripts never run in dry-run")
	drySaver.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRun_PlanningErrorTouchesNothing(t *testing.T) {
	applier := &recordingApplier{}
	saver := &mockSaver{}
	rec := progress.NewRecorder()

	strategy := orchestrator.Strategy{
		Name: "test",
		ComputeIdeal: func(context.Context, *orchestrator.State, *progress.Group) (*tree.PackageTree, error) {
			return nil, errors.New(errors.ErrInvalidSelector, "package \"zzz\" is not installed")
		},
	}

	result, err := newOrchestrator(t, false, applier, saver, rec).Run(context.Background(), "/proj", strategy)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidSelector))
	assert.Nil(t, result.Report)
	assert.Empty(t, applier.applied)
	saver.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.NotContains(t, rec.Groups(), "test/executeActions")
}

func TestRun_ExecutionFailureAbortsWithoutSaving(t *testing.T) {
	applier := &recordingApplier{failOn: map[string]bool{"c": true}}
	saver := &mockSaver{}
	rec := progress.NewRecorder()

	result, err := newOrchestrator(t, false, applier, saver, rec).
		Run(context.Background(), "/proj", orchestrator.Strategy{Name: "test", ComputeIdeal: dropB})
	require.Error(t, err)

	assert.True(t, errors.IsErrorCode(err, errors.ErrPipelineAborted))
	assert.True(t, errors.IsErrorCode(err, errors.ErrFilesystem))
	assert.NotContains(t, applier.applied, "add d", "later steps never start")
	require.NotNil(t, result.Report)
	require.Len(t, result.Report.Steps, 1)
	saver.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, []string{"b@1.0.0"}, result.Removed, "the plan is still reported")
}

func TestRun_LoaderError(t *testing.T) {
	o := orchestrator.New(orchestrator.Options{
		Loader:  &staticLoader{err: errors.New(errors.ErrLockfileParse, "bad lockfile")},
		Applier: &recordingApplier{},
	})
	_, err := o.Run(context.Background(), "/proj", orchestrator.Strategy{Name: "test", ComputeIdeal: dropB})
	assert.True(t, errors.IsErrorCode(err, errors.ErrLockfileParse))
}

func TestRun_NothingToDo(t *testing.T) {
	saver := &mockSaver{}
	saver.On("Save", mock.Anything, mock.Anything).Return(nil)
	identity := func(ctx context.Context, s *orchestrator.State, g *progress.Group) (*tree.PackageTree, error) {
		return s.Current.Clone(), nil
	}

	result, err := newOrchestrator(t, false, &recordingApplier{}, saver, progress.NewRecorder()).
		Run(context.Background(), "/proj", orchestrator.Strategy{Name: "test", ComputeIdeal: identity})
	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Empty(t, result.Report.Steps)
}

func TestRun_RequiresComputeIdeal(t *testing.T) {
	_, err := orchestrator.New(orchestrator.Options{}).Run(context.Background(), "/proj", orchestrator.Strategy{Name: "broken"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}
