package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/arthur-debert/arbor/pkg/config"
	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolated returns options that never read the real user config.
func isolated(t *testing.T, root string) config.Options {
	return config.Options{Root: root, UserFile: filepath.Join(t.TempDir(), "config.toml")}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(isolated(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.False(t, cfg.Pipeline.DryRun)
	assert.True(t, cfg.Progress.Log)
	assert.False(t, cfg.Progress.Trace)
	assert.Equal(t, "sh", cfg.Lifecycle.Shell)
	assert.Equal(t, 10*time.Minute, cfg.Lifecycle.Timeout)
	assert.Equal(t, config.DefaultRegistryPath(), cfg.Registry.Path)
	assert.NotEmpty(t, config.DefaultsContent())
}

func TestLoad_Layers(t *testing.T) {
	root := t.TempDir()
	opts := isolated(t, root)

	testutil.WriteFile(t, opts.UserFile, `
[pipeline]
concurrency = 2

[lifecycle]
shell = "bash"
`)
	testutil.WriteFile(t, filepath.Join(root, config.ProjectFile), `
[pipeline]
concurrency = 4

[registry]
path = "vendor/registry"
`)

	t.Run("project file overrides user file", func(t *testing.T) {
		cfg, err := config.Load(opts)
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Pipeline.Concurrency)
		assert.Equal(t, "bash", cfg.Lifecycle.Shell)
		assert.Equal(t, filepath.Join(root, "vendor", "registry"), cfg.Registry.Path)
		assert.Equal(t, root, cfg.Project.Root)
	})

	t.Run("environment overrides files", func(t *testing.T) {
		t.Setenv("ARBOR_PIPELINE_CONCURRENCY", "16")
		t.Setenv("ARBOR_LIFECYCLE_IGNORE_SCRIPTS", "true")
		t.Setenv("ARBOR_LIFECYCLE_TIMEOUT", "30s")

		cfg, err := config.Load(opts)
		require.NoError(t, err)
		assert.Equal(t, 16, cfg.Pipeline.Concurrency)
		assert.True(t, cfg.Lifecycle.IgnoreScripts)
		assert.Equal(t, 30*time.Second, cfg.Lifecycle.Timeout)
	})

	t.Run("flags override everything", func(t *testing.T) {
		t.Setenv("ARBOR_PIPELINE_CONCURRENCY", "16")
		withFlags := opts
		withFlags.Overrides = map[string]interface{}{
			"pipeline.concurrency": 1,
			"pipeline.dry_run":     true,
			"project.production":   true,
		}

		cfg, err := config.Load(withFlags)
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Pipeline.Concurrency)
		assert.True(t, cfg.Pipeline.DryRun)
		assert.True(t, cfg.Project.Production)
	})
}

func TestLoad_DiscoveryVariableIsNotConfig(t *testing.T) {
	t.Setenv("ARBOR_PROJECT", t.TempDir())

	cfg, err := config.Load(isolated(t, t.TempDir()))
	require.NoError(t, err)
	assert.False(t, cfg.Project.Production)
}

func TestLoad_RegistryPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"relative to project", "vendor/registry", filepath.Join(root, "vendor", "registry")},
		{"home", "~/registry", filepath.Join(home, "registry")},
		{"absolute", "/srv/registry", "/srv/registry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := isolated(t, root)
			opts.Overrides = map[string]interface{}{"registry.path": tt.value}
			cfg, err := config.Load(opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Registry.Path)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("malformed project file", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, config.ProjectFile)
		testutil.WriteFile(t, path, "[pipeline\nconcurrency = ")

		_, err := config.Load(isolated(t, root))
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
		assert.Equal(t, path, errors.GetErrorDetails(err)["path"])
	})

	t.Run("negative concurrency", func(t *testing.T) {
		opts := isolated(t, "")
		opts.Overrides = map[string]interface{}{"pipeline.concurrency": -1}

		_, err := config.Load(opts)
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("ARBOR_LIFECYCLE_TIMEOUT", "soon")
		_, err := config.Load(isolated(t, ""))
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
	})
}
