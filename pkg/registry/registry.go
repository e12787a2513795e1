package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/ideal"
)

// Package is one published version.
type Package struct {
	ideal.Manifest

	// Dir holds the package contents when the index was loaded from disk
	Dir string
	// Files are the contents of an in-memory package, keyed by slash path
	Files map[string][]byte
}

// Index is a thread-safe store of published package versions.
type Index struct {
	mu       sync.RWMutex
	packages map[string]map[string]Package
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{packages: make(map[string]map[string]Package)}
}

// Publish adds a package version to the index
func (x *Index) Publish(p Package) error {
	if p.Name == "" {
		return errors.New(errors.ErrInvalidInput, "package name cannot be empty")
	}
	if !ValidVersion(p.Version) {
		return errors.Newf(errors.ErrInvalidInput, "package %s has invalid version %q", p.Name, p.Version).
			WithDetail("package", p.Name).
			WithDetail("version", p.Version)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	versions, ok := x.packages[p.Name]
	if !ok {
		versions = make(map[string]Package)
		x.packages[p.Name] = versions
	}
	if _, exists := versions[p.Version]; exists {
		return errors.Newf(errors.ErrAlreadyExists, "%s@%s is already published", p.Name, p.Version)
	}
	versions[p.Version] = p
	return nil
}

// Get retrieves one version
func (x *Index) Get(name, version string) (Package, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p, exists := x.packages[name][version]
	if !exists {
		return Package{}, errors.Newf(errors.ErrNotFound, "%s@%s is not published", name, version).
			WithDetail("package", name).
			WithDetail("version", version)
	}
	return p, nil
}

// Unpublish removes one version
func (x *Index) Unpublish(name, version string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.packages[name][version]; !exists {
		return errors.Newf(errors.ErrNotFound, "%s@%s is not published", name, version)
	}
	delete(x.packages[name], version)
	if len(x.packages[name]) == 0 {
		delete(x.packages, name)
	}
	return nil
}

// Versions returns the published versions of name in ascending order
func (x *Index) Versions(name string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]string, 0, len(x.packages[name]))
	for v := range x.packages[name] {
		out = append(out, v)
	}
	return SortVersions(out)
}

// Names returns all package names in sorted order
func (x *Index) Names() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	names := make([]string, 0, len(x.packages))
	for name := range x.packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks if any version of name is published
func (x *Index) Has(name string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()

	_, exists := x.packages[name]
	return exists
}

// Count returns the number of published versions across all packages
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	count := 0
	for _, versions := range x.packages {
		count += len(versions)
	}
	return count
}

// MustPublish publishes p and panics if that fails
// This is useful for fixtures where a bad package is a programming error
func MustPublish(x *Index, p Package) {
	if err := x.Publish(p); err != nil {
		panic(fmt.Sprintf("failed to publish %s@%s: %v", p.Name, p.Version, err))
	}
}
