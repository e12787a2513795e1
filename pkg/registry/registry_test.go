package registry_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/filesystem"
	"github.com/arthur-debert/arbor/pkg/ideal"
	"github.com/arthur-debert/arbor/pkg/registry"
	"github.com/arthur-debert/arbor/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pkg(name, version string, deps map[string]string) registry.Package {
	return registry.Package{Manifest: ideal.Manifest{Name: name, Version: version, Dependencies: deps}}
}

func TestIndex_Publish(t *testing.T) {
	index := registry.NewIndex()

	t.Run("valid package", func(t *testing.T) {
		require.NoError(t, index.Publish(pkg("a", "1.0.0", nil)))
		assert.True(t, index.Has("a"))
		assert.Equal(t, 1, index.Count())
	})

	t.Run("empty name", func(t *testing.T) {
		err := index.Publish(pkg("", "1.0.0", nil))
		assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	})

	t.Run("invalid version", func(t *testing.T) {
		err := index.Publish(pkg("a", "^1.0.0", nil))
		assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	})

	t.Run("duplicate", func(t *testing.T) {
		err := index.Publish(pkg("a", "1.0.0", nil))
		assert.True(t, errors.IsErrorCode(err, errors.ErrAlreadyExists))
	})
}

func TestIndex_Lookup(t *testing.T) {
	index := registry.NewIndex()
	registry.MustPublish(index, pkg("b", "1.10.0", nil))
	registry.MustPublish(index, pkg("b", "1.2.0", nil))
	registry.MustPublish(index, pkg("a", "0.1.0", nil))

	assert.Equal(t, []string{"a", "b"}, index.Names())
	assert.Equal(t, []string{"1.2.0", "1.10.0"}, index.Versions("b"))
	assert.Empty(t, index.Versions("missing"))

	got, err := index.Get("b", "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Name)

	_, err = index.Get("b", "9.9.9")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))

	require.NoError(t, index.Unpublish("a", "0.1.0"))
	assert.False(t, index.Has("a"))
	assert.True(t, errors.IsErrorCode(index.Unpublish("a", "0.1.0"), errors.ErrNotFound))
}

func TestIndex_ConcurrentPublish(t *testing.T) {
	index := registry.NewIndex()
	versions := []string{"1.0.0", "1.0.1", "1.0.2", "1.1.0", "2.0.0"}

	var wg sync.WaitGroup
	for _, v := range versions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, index.Publish(pkg("a", v, nil)))
			_ = index.Versions("a")
		}()
	}
	wg.Wait()

	assert.Equal(t, versions, index.Versions("a"))
}

func TestMustPublish_Panics(t *testing.T) {
	index := registry.NewIndex()
	assert.Panics(t, func() { registry.MustPublish(index, pkg("", "1.0.0", nil)) })
}

func TestResolver(t *testing.T) {
	index := registry.NewIndex()
	registry.MustPublish(index, pkg("a", "1.0.0", nil))
	registry.MustPublish(index, pkg("a", "1.4.0", map[string]string{"b": "^2.0.0"}))
	registry.MustPublish(index, pkg("a", "2.0.0", nil))
	resolver := registry.NewResolver(index)
	ctx := context.Background()

	m, err := resolver.Resolve(ctx, "a", "^1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", m.Version)
	assert.Equal(t, map[string]string{"b": "^2.0.0"}, m.Dependencies)

	m, err = resolver.Resolve(ctx, "a", "latest")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", m.Version)

	_, err = resolver.Resolve(ctx, "a", "^3.0.0")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
	assert.Equal(t, "^3.0.0", errors.GetErrorDetails(err)["range"])

	_, err = resolver.Resolve(ctx, "missing", "*")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))

	_, err = resolver.Resolve(ctx, "a", "banana")
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))

	assert.True(t, resolver.Satisfies("1.4.0", "~1.4.0"))
	assert.False(t, resolver.Satisfies("1.5.0", "~1.4.0"))
}

func TestResolver_CanceledContext(t *testing.T) {
	index := registry.NewIndex()
	registry.MustPublish(index, pkg("a", "1.0.0", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := registry.NewResolver(index).Resolve(ctx, "a", "*")
	assert.ErrorIs(t, err, context.Canceled)
}

func publishDir(t *testing.T, root, name, version, body string) string {
	t.Helper()
	dir := filepath.Join(root, filepath.FromSlash(name), version)
	testutil.WriteFile(t, filepath.Join(dir, "arbor.toml"),
		"name = \""+name+"\"\nversion = \""+version+"\"\n"+body)
	return dir
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	publishDir(t, root, "a", "1.0.0", "[dependencies]\nb = \"^1.0.0\"\n")
	publishDir(t, root, "a", "1.1.0", "[scripts]\ninstall = \"echo a\"\n")
	publishDir(t, root, "@scope/b", "1.0.0", "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "scratch"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cache"), 0755))

	index, err := registry.LoadDir(filesystem.NewOS(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"@scope/b", "a"}, index.Names())
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, index.Versions("a"))

	a, err := index.Get("a", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "^1.0.0"}, a.Dependencies)
	assert.Equal(t, filepath.Join(root, "a", "1.0.0"), a.Dir)

	latest, err := index.Get("a", "1.1.0")
	require.NoError(t, err)
	assert.Equal(t, "echo a", latest.Scripts["install"])
}

func TestLoadDir_MismatchedManifest(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a", "1.0.0")
	testutil.WriteFile(t, filepath.Join(dir, "arbor.toml"), "name = \"not-a\"\nversion = \"1.0.0\"\n")

	_, err := registry.LoadDir(filesystem.NewOS(), root)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrManifestParse))
}

func TestLoadDir_MissingRoot(t *testing.T) {
	_, err := registry.LoadDir(filesystem.NewOS(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFilesystem))
}

func TestFetcher_CopiesDirectory(t *testing.T) {
	root := t.TempDir()
	src := publishDir(t, root, "a", "1.0.0", "")
	testutil.WriteFile(t, filepath.Join(src, "lib", "index.js"), "module.exports = 1")
	testutil.WriteFile(t, filepath.Join(src, "node_modules", "junk", "index.js"), "junk")

	index, err := registry.LoadDir(filesystem.NewOS(), root)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "node_modules", "a")
	require.NoError(t, os.MkdirAll(dest, 0755))
	fetcher := registry.NewFetcher(index, filesystem.NewOS())
	require.NoError(t, fetcher.Fetch(context.Background(), "a", "1.0.0", dest))

	assert.FileExists(t, filepath.Join(dest, "arbor.toml"))
	data, err := os.ReadFile(filepath.Join(dest, "lib", "index.js"))
	require.NoError(t, err)
	assert.Equal(t, "module.exports = 1", string(data))
	assert.NoDirExists(t, filepath.Join(dest, "node_modules"))
}

func TestFetcher_WritesInMemoryFiles(t *testing.T) {
	index := registry.NewIndex()
	p := pkg("a", "1.0.0", nil)
	p.Files = map[string][]byte{
		"index.js":                  []byte("a"),
		"lib/util.js":               []byte("util"),
		"../escape.js":              []byte("nope"),
		"node_modules/dep/index.js": []byte("nope"),
	}
	registry.MustPublish(index, p)

	dest := t.TempDir()
	fetcher := registry.NewFetcher(index, nil)
	require.NoError(t, fetcher.Fetch(context.Background(), "a", "1.0.0", dest))

	assert.FileExists(t, filepath.Join(dest, "index.js"))
	assert.FileExists(t, filepath.Join(dest, "lib", "util.js"))
	assert.FileExists(t, filepath.Join(dest, "escape.js"), "paths are confined to the destination")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "escape.js"))
	assert.NoDirExists(t, filepath.Join(dest, "node_modules"))
}

func TestFetcher_UnknownVersion(t *testing.T) {
	fetcher := registry.NewFetcher(registry.NewIndex(), nil)
	err := fetcher.Fetch(context.Background(), "a", "1.0.0", t.TempDir())
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}
