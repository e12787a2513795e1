package arbor_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arthur-debert/arbor/cmd/arbor"
	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	project  string
	registry string
}

func newFixture(t *testing.T, manifest string) *fixture {
	t.Helper()
	f := &fixture{project: t.TempDir(), registry: t.TempDir()}
	testutil.WriteFile(t, filepath.Join(f.project, "arbor.toml"), manifest)

	f.publish(t, "left", "1.0.0", "", "")
	f.publish(t, "left", "1.1.0", `pad = "^0.1.0"`, "")
	f.publish(t, "pad", "0.1.2", "", `install = "echo built > built.txt"`)
	return f
}

func (f *fixture) publish(t *testing.T, name, version, deps, scripts string) {
	t.Helper()
	dir := filepath.Join(f.registry, name, version)
	content := "name = \"" + name + "\"\nversion = \"" + version + "\"\n"
	if deps != "" {
		content += "\n[dependencies]\n" + deps + "\n"
	}
	if scripts != "" {
		content += "\n[scripts]\n" + scripts + "\n"
	}
	testutil.WriteFile(t, filepath.Join(dir, "arbor.toml"), content)
	testutil.WriteFile(t, filepath.Join(dir, "index.js"), name+"@"+version)
}

func (f *fixture) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return run(t, append([]string{"-C", f.project, "--registry", f.registry, "--format", "text"}, args...)...)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := arbor.NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func (f *fixture) path(parts ...string) string {
	return filepath.Join(append([]string{f.project}, parts...)...)
}

const appManifest = `name = "app"
version = "1.0.0"

[dependencies]
left = "^1.0.0"
`

func TestInstallPruneCycle(t *testing.T) {
	f := newFixture(t, appManifest)

	out, err := f.exec(t, "install")
	require.NoError(t, err)
	assert.Contains(t, out, "+ left@1.1.0")
	assert.Contains(t, out, "+ pad@0.1.2")
	assert.Contains(t, out, "install changed: 2 added, 0 removed")

	assert.Equal(t, "left@1.1.0", testutil.ReadFile(t, f.path("node_modules", "left", "index.js")))
	assert.FileExists(t, f.path("node_modules", "pad", "built.txt"), "install script ran in the package dir")
	assert.FileExists(t, f.path("arbor-lock.toml"))

	out, err = f.exec(t, "install")
	require.NoError(t, err)
	assert.Equal(t, "Up to date\n", out)

	out, err = f.exec(t, "ls")
	require.NoError(t, err)
	assert.Equal(t, "app@1.0.0\n├── left@1.1.0\n└── pad@0.1.2\n", out)

	testutil.WriteFile(t, f.path("arbor.toml"), "name = \"app\"\nversion = \"1.0.0\"\n")

	out, err = f.exec(t, "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "left@1.1.0 extraneous")

	out, err = f.exec(t, "prune", "--dry-run")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Dry run: nothing was changed\n"))
	assert.Contains(t, out, "- left@1.1.0")
	assert.DirExists(t, f.path("node_modules", "left"))

	out, err = f.exec(t, "prune", "--plan")
	require.NoError(t, err)
	assert.Contains(t, out, "Planned operations:")
	assert.Contains(t, out, "prune changed: 0 added, 2 removed")
	assert.NoDirExists(t, f.path("node_modules", "left"))
	assert.NoDirExists(t, f.path("node_modules", "pad"))
}

func TestPruneCompletesTopLevelPackages(t *testing.T) {
	f := newFixture(t, appManifest)
	_, err := f.exec(t, "--ignore-scripts", "install")
	require.NoError(t, err)

	out, err := run(t, "__complete", "prune", "-C", f.project, "left", "")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(t, lines, "pad")
	assert.NotContains(t, lines, "left")
}

func TestInstallArgumentPinsManifest(t *testing.T) {
	f := newFixture(t, "name = \"app\"\nversion = \"1.0.0\"\n")

	_, err := f.exec(t, "--ignore-scripts", "install", "--save-dev", "left")
	require.NoError(t, err)

	manifest := testutil.ReadFile(t, f.path("arbor.toml"))
	assert.Contains(t, manifest, "[dev-dependencies]")
	assert.Regexp(t, `left = ['"]\^1\.1\.0['"]`, manifest)
	assert.NoFileExists(t, f.path("node_modules", "pad", "built.txt"))
}

func TestProjectDiscoveryFromSubdirectory(t *testing.T) {
	t.Setenv("ARBOR_PROJECT", "")
	f := newFixture(t, appManifest)
	sub := f.path("src", "lib")
	require.NoError(t, os.MkdirAll(sub, 0755))
	testutil.Chdir(t, sub)

	_, err := run(t, "--registry", f.registry, "--format", "text", "--ignore-scripts", "install")
	require.NoError(t, err)
	assert.FileExists(t, f.path("node_modules", "left", "index.js"))
	assert.NoDirExists(t, filepath.Join(sub, "node_modules"))
}

func TestProjectFallsBackToWorkingDirectory(t *testing.T) {
	t.Setenv("ARBOR_PROJECT", "")
	testutil.Chdir(t, t.TempDir())
	cwd, err := os.Getwd()
	require.NoError(t, err)

	_, err = run(t, "--format", "text", "ls")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
	assert.Equal(t, filepath.Join(cwd, "arbor.toml"), errors.GetErrorDetails(err)["path"])
}

func TestUpdateWithinRange(t *testing.T) {
	f := newFixture(t, appManifest)
	_, err := f.exec(t, "--ignore-scripts", "install", "left@1.0.0")
	require.NoError(t, err)

	testutil.WriteFile(t, f.path("arbor.toml"), appManifest)
	out, err := f.exec(t, "--ignore-scripts", "update", "left")
	require.NoError(t, err)
	assert.Contains(t, out, "~ left@1.1.0")
}

func TestPruneUnknownSelector(t *testing.T) {
	f := newFixture(t, appManifest)

	_, err := f.exec(t, "prune", "nothing")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidSelector))
	assert.NoFileExists(t, f.path("arbor-lock.toml"))
}

func TestMissingManifest(t *testing.T) {
	f := &fixture{project: t.TempDir(), registry: t.TempDir()}
	_, err := f.exec(t, "ls")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestVersionAndCompletion(t *testing.T) {
	f := &fixture{project: t.TempDir(), registry: t.TempDir()}

	out, err := f.exec(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "arbor version dev"))

	out, err = f.exec(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "arbor")
}

func TestManPages(t *testing.T) {
	f := &fixture{project: t.TempDir(), registry: t.TempDir()}
	dir := filepath.Join(t.TempDir(), "man")

	_, err := f.exec(t, "man", dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "arbor.1"))
	assert.FileExists(t, filepath.Join(dir, "arbor-prune.1"))
}

func TestHelpTopics(t *testing.T) {
	out, err := run(t, "--format", "text", "help", "topics")
	require.NoError(t, err)
	for _, name := range []string{"configuration", "dry-run", "lifecycle", "lockfile", "selectors"} {
		assert.Contains(t, out, "  "+name+"\n")
	}

	out, err = run(t, "--format", "text", "help", "selectors")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Selectors\n"))

	out, err = run(t, "--format", "text", "help", "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "Prune removes extraneous packages")
}
