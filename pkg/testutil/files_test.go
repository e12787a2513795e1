package testutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/arbor/pkg/testutil"
	"github.com/stretchr/testify/assert"
)

func TestWriteAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c.txt")
	assert.Equal(t, path, testutil.WriteFile(t, path, "hello"))
	assert.Equal(t, "hello", testutil.ReadFile(t, path))
}

func TestChdir(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	assert.NoError(t, err)

	t.Run("inside", func(t *testing.T) {
		testutil.Chdir(t, dir)
		wd, err := os.Getwd()
		assert.NoError(t, err)
		assert.Equal(t, dir, wd)
	})

	wd, err := os.Getwd()
	assert.NoError(t, err)
	assert.NotEqual(t, dir, wd)
}
