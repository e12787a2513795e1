// Package manifest reads and writes arbor.toml, the file a project and
// every published package use to declare their dependencies.
package manifest

import (
	"os"
	"path/filepath"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/filesystem"
	"github.com/arthur-debert/arbor/pkg/ideal"
	toml "github.com/pelletier/go-toml/v2"
)

// FileName is the manifest file name inside a project or package directory.
const FileName = "arbor.toml"

// Manifest is the parsed content of arbor.toml.
type Manifest struct {
	Name                 string            `toml:"name"`
	Version              string            `toml:"version"`
	Dependencies         map[string]string `toml:"dependencies,omitempty"`
	DevDependencies      map[string]string `toml:"dev-dependencies,omitempty"`
	OptionalDependencies map[string]string `toml:"optional-dependencies,omitempty"`
	PeerDependencies     map[string]string `toml:"peer-dependencies,omitempty"`
	Scripts              map[string]string `toml:"scripts,omitempty"`
}

// Parse decodes manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrManifestParse, "failed to parse manifest")
	}
	if m.Name == "" {
		return nil, errors.New(errors.ErrManifestParse, "manifest has no name")
	}
	// a production declaration wins over dev and optional ones
	for name := range m.Dependencies {
		delete(m.DevDependencies, name)
		delete(m.OptionalDependencies, name)
	}
	return &m, nil
}

// Load reads dir/arbor.toml. A missing file is reported as NOT_FOUND.
func Load(fsys filesystem.FS, dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := fsys.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Newf(errors.ErrNotFound, "no %s in %s", FileName, dir).
			WithDetail("path", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "failed to read %s", path)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestParse, "invalid manifest %s", path).
			WithDetail("path", path)
	}
	return m, nil
}

// Marshal encodes the manifest as TOML.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := toml.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to encode manifest")
	}
	return data, nil
}

// Save writes the manifest to dir/arbor.toml.
func (m *Manifest) Save(fsys filesystem.FS, dir string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, FileName)
	if err := fsys.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFilesystem, "failed to write %s", path)
	}
	return nil
}

// AddDependency records name in exactly one dependency section.
func (m *Manifest) AddDependency(name, spec string, dev, optional bool) {
	m.RemoveDependency(name)
	switch {
	case optional:
		m.OptionalDependencies = put(m.OptionalDependencies, name, spec)
	case dev:
		m.DevDependencies = put(m.DevDependencies, name, spec)
	default:
		m.Dependencies = put(m.Dependencies, name, spec)
	}
}

// RemoveDependency drops name from every section and reports whether it
// was declared.
func (m *Manifest) RemoveDependency(name string) bool {
	found := false
	for _, section := range []map[string]string{m.Dependencies, m.DevDependencies, m.OptionalDependencies} {
		if _, ok := section[name]; ok {
			delete(section, name)
			found = true
		}
	}
	return found
}

// Declares reports whether name appears in any dependency section.
func (m *Manifest) Declares(name string) bool {
	_, prod := m.Dependencies[name]
	_, dev := m.DevDependencies[name]
	_, opt := m.OptionalDependencies[name]
	return prod || dev || opt
}

// DependencyNames returns every direct dependency name, sorted.
func (m *Manifest) DependencyNames() []string {
	return m.Request().Names()
}

// Request converts the project's declarations into a build request.
func (m *Manifest) Request() ideal.Request {
	return ideal.Request{
		Dependencies:         copyStrings(m.Dependencies),
		DevDependencies:      copyStrings(m.DevDependencies),
		OptionalDependencies: copyStrings(m.OptionalDependencies),
	}
}

// Package converts a published package's manifest into what the ideal
// builder consumes. Dev dependencies of a dependency are never installed.
func (m *Manifest) Package() ideal.Manifest {
	return ideal.Manifest{
		Name:                 m.Name,
		Version:              m.Version,
		Dependencies:         copyStrings(m.Dependencies),
		OptionalDependencies: copyStrings(m.OptionalDependencies),
		PeerDependencies:     copyStrings(m.PeerDependencies),
		Scripts:              copyStrings(m.Scripts),
	}
}

func put(m map[string]string, k, v string) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[k] = v
	return m
}

func copyStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
