// Package lockfile persists an installed tree as arbor-lock.toml and
// loads it back together with the project manifest.
//
// The lockfile records every installed package by location, the specs it
// declares and where each of its requires edges points. Flags derived
// from the manifest, such as which root children were requested, are
// never stored; they are recomputed on load.
package lockfile

import (
	"path"
	"sort"
	"strings"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/tree"
	toml "github.com/pelletier/go-toml/v2"
)

// FileName is the lockfile name inside the project directory.
const FileName = "arbor-lock.toml"

// FormatVersion is written to every lockfile and checked on read.
const FormatVersion = 1

// File is the decoded lockfile.
type File struct {
	FormatVersion int     `toml:"lockfile-version"`
	Root          Root    `toml:"root"`
	Packages      []Entry `toml:"packages"`
}

// Root describes the project node.
type Root struct {
	Name     string            `toml:"name"`
	Version  string            `toml:"version"`
	Requires map[string]string `toml:"requires,omitempty"`
}

// Entry is one installed package.
type Entry struct {
	Location             string            `toml:"location"`
	Name                 string            `toml:"name"`
	Version              string            `toml:"version"`
	Dev                  bool              `toml:"dev,omitempty"`
	Optional             bool              `toml:"optional,omitempty"`
	Dependencies         map[string]string `toml:"dependencies,omitempty"`
	OptionalDependencies map[string]string `toml:"optional-dependencies,omitempty"`
	PeerDependencies     map[string]string `toml:"peer-dependencies,omitempty"`
	Scripts              map[string]string `toml:"scripts,omitempty"`
	// Requires maps a dependency name to the location satisfying it
	Requires map[string]string `toml:"requires,omitempty"`
}

// Marshal encodes t.
func Marshal(t *tree.PackageTree) ([]byte, error) {
	data, err := toml.Marshal(Encode(t))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to encode lockfile")
	}
	return data, nil
}

// Encode converts t into its lockfile form, packages in walk order.
func Encode(t *tree.PackageTree) *File {
	root := t.Root()
	f := &File{
		FormatVersion: FormatVersion,
		Root: Root{
			Name:     root.Name,
			Version:  root.Version,
			Requires: requires(t, root),
		},
	}
	for _, n := range t.Nodes() {
		f.Packages = append(f.Packages, Entry{
			Location:             t.Location(n),
			Name:                 n.Name,
			Version:              n.Version,
			Dev:                  n.Dev,
			Optional:             n.Optional,
			Dependencies:         n.Dependencies,
			OptionalDependencies: n.OptionalDependencies,
			PeerDependencies:     n.PeerDependencies,
			Scripts:              n.Scripts,
			Requires:             requires(t, n),
		})
	}
	return f
}

// Unmarshal decodes lockfile bytes into a tree rooted at dir.
func Unmarshal(data []byte, dir string) (*tree.PackageTree, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrLockfileParse, "failed to parse lockfile")
	}
	return Decode(&f, dir)
}

// Decode rebuilds the tree described by f. Every entry's location must
// sit directly under an existing parent and every requires edge must
// point at a recorded location.
func Decode(f *File, dir string) (*tree.PackageTree, error) {
	if f.FormatVersion != FormatVersion {
		return nil, errors.Newf(errors.ErrLockfileParse, "unsupported lockfile version %d", f.FormatVersion).
			WithDetail("version", f.FormatVersion)
	}

	t := tree.New(dir, f.Root.Name, f.Root.Version)

	entries := append([]Entry(nil), f.Packages...)
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := depth(entries[i].Location), depth(entries[j].Location)
		if di != dj {
			return di < dj
		}
		return entries[i].Location < entries[j].Location
	})

	for _, e := range entries {
		parent := t.Lookup(parentLocation(e.Location))
		if parent == nil {
			return nil, invalid(e, "has no parent entry")
		}
		if e.Name == "" || e.Location != path.Join(t.Location(parent), tree.ModulesDir, e.Name) {
			return nil, invalid(e, "does not match its package name")
		}
		if t.Lookup(e.Location) != nil {
			return nil, invalid(e, "is listed twice")
		}
		n, err := t.AddChild(parent, e.Name, e.Version)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrLockfileParse, "cannot place %s", e.Location)
		}
		n.Dev = e.Dev
		n.Optional = e.Optional
		n.Dependencies = e.Dependencies
		n.OptionalDependencies = e.OptionalDependencies
		n.PeerDependencies = e.PeerDependencies
		n.Scripts = e.Scripts
	}

	if err := link(t, t.Root(), "", f.Root.Requires); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := link(t, t.Lookup(e.Location), e.Location, e.Requires); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func link(t *tree.PackageTree, from *tree.Node, location string, reqs map[string]string) error {
	for name, target := range reqs {
		to := t.Lookup(target)
		if to == nil || to.IsRoot() {
			return errors.Newf(errors.ErrLockfileParse,
				"%s requires %s from %q which is not installed", describe(location), name, target).
				WithDetail("location", location).
				WithDetail("dependency", name)
		}
		if err := t.Link(from, name, to); err != nil {
			return errors.Wrapf(err, errors.ErrLockfileParse, "cannot link %s", name)
		}
	}
	return nil
}

func requires(t *tree.PackageTree, n *tree.Node) map[string]string {
	names := t.RequiredNames(n)
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]string, len(names))
	for _, name := range names {
		target, _ := t.Resolve(n, name)
		out[name] = t.Location(target)
	}
	return out
}

func invalid(e Entry, problem string) error {
	return errors.Newf(errors.ErrLockfileParse, "lockfile entry %q %s", e.Location, problem).
		WithDetail("location", e.Location).
		WithDetail("package", e.Name)
}

func describe(location string) string {
	if location == "" {
		return "the project root"
	}
	return location
}

func depth(location string) int {
	return strings.Count(location, tree.ModulesDir+"/")
}

func parentLocation(location string) string {
	i := strings.LastIndex(location, "/"+tree.ModulesDir+"/")
	if i < 0 {
		return ""
	}
	return location[:i]
}
