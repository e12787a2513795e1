package registry_test

import (
	"testing"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSatisfies(t *testing.T) {
	tests := []struct {
		spec    string
		version string
		want    bool
	}{
		{"1.2.3", "1.2.3", true},
		{"1.2.3", "1.2.4", false},
		{"=1.2.3", "1.2.3", true},
		{"v1.2.3", "1.2.3", true},
		{"*", "3.0.0", true},
		{"", "0.0.1", true},
		{"latest", "9.9.9", true},
		{"*", "1.0.0-beta.1", false},
		{"1", "1.9.0", true},
		{"1", "2.0.0", false},
		{"1.2", "1.2.9", true},
		{"1.2.x", "1.3.0", false},
		{"^1.2.3", "1.9.9", true},
		{"^1.2.3", "1.2.2", false},
		{"^1.2.3", "2.0.0", false},
		{"^0.2.3", "0.2.9", true},
		{"^0.2.3", "0.3.0", false},
		{"^0.0.3", "0.0.3", true},
		{"^0.0.3", "0.0.4", false},
		{"~1.2.3", "1.2.9", true},
		{"~1.2.3", "1.3.0", false},
		{"~1", "1.5.0", true},
		{">=1.0.0 <2.0.0", "1.5.0", true},
		{">= 1.0.0 < 2.0.0", "2.0.0", false},
		{">1.2", "1.2.9", false},
		{">1.2", "1.3.0", true},
		{"<=1.2", "1.2.9", true},
		{"<=1.2", "1.3.0", false},
		{"1.0.0 - 2.1", "2.1.5", true},
		{"1.0.0 - 2.1", "2.2.0", false},
		{"^1.0.0 || ^3.0.0", "3.1.0", true},
		{"^1.0.0 || ^3.0.0", "2.1.0", false},
		{"^1.0.0-beta.1", "1.0.0-beta.2", true},
		{"^1.0.0-beta.1", "1.1.0-beta.1", false},
		{"^1.0.0-beta.1", "1.0.0", true},
		{"^1.0.0", "not-a-version", false},
		{"banana", "1.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.spec+"/"+tt.version, func(t *testing.T) {
			assert.Equal(t, tt.want, registry.Satisfies(tt.version, tt.spec))
		})
	}
}

func TestParseRange_Invalid(t *testing.T) {
	for _, spec := range []string{"banana", "1.2.3.4", "^1.x-beta", ">*", "1.0.0 - "} {
		t.Run(spec, func(t *testing.T) {
			_, err := registry.ParseRange(spec)
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
		})
	}
}

func TestMaxSatisfying(t *testing.T) {
	versions := []string{"1.0.0", "1.10.0", "1.2.0", "2.0.0", "2.1.0-rc.1", "bogus"}

	got, ok := registry.MaxSatisfying(versions, "^1.0.0")
	require.True(t, ok)
	assert.Equal(t, "1.10.0", got, "versions compare numerically")

	got, ok = registry.MaxSatisfying(versions, "*")
	require.True(t, ok)
	assert.Equal(t, "2.0.0", got, "prereleases are not picked by open ranges")

	_, ok = registry.MaxSatisfying(versions, "^3.0.0")
	assert.False(t, ok)
}

func TestSortVersions(t *testing.T) {
	got := registry.SortVersions([]string{"1.2.0", "1.2.0-alpha", "0.9.1", "x"})
	assert.Equal(t, []string{"0.9.1", "1.2.0-alpha", "1.2.0"}, got)
}

func TestValidVersion(t *testing.T) {
	assert.True(t, registry.ValidVersion("1.2.3"))
	assert.True(t, registry.ValidVersion("1.2.3-rc.1+build.5"))
	assert.False(t, registry.ValidVersion("1.2"))
	assert.False(t, registry.ValidVersion("^1.2.3"))
	assert.False(t, registry.ValidVersion(""))
}
