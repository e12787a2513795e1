// Package ideal computes the tree a project should have installed.
//
// The builder starts from a clone of the current tree, so every package
// that already satisfies its requirement is kept where it is along with
// its subtree. Missing or unsatisfied requirements are resolved through a
// Resolver and placed as shallow as possible: at the highest ancestor of
// the requester where the name is free and placing it hides nothing
// another package relies on. A conflicting version is nested closer to
// its requester.
package ideal

import "context"

// Manifest is one concrete version of a package as the registry knows it.
type Manifest struct {
	Name                 string
	Version              string
	Dependencies         map[string]string
	OptionalDependencies map[string]string
	PeerDependencies     map[string]string
	Scripts              map[string]string
}

// Resolver turns a requirement into a concrete manifest. The builder never
// interprets version ranges itself.
type Resolver interface {
	// Resolve returns the newest version of name matching spec
	Resolve(ctx context.Context, name, spec string) (Manifest, error)
	// Satisfies reports whether version matches spec
	Satisfies(version, spec string) bool
}

// Request is what the project manifest asks for.
type Request struct {
	Dependencies         map[string]string
	DevDependencies      map[string]string
	OptionalDependencies map[string]string

	// Update names packages to re-resolve to the newest matching version
	// even when the installed one still satisfies its range.
	Update []string
	// UpdateAll re-resolves every package.
	UpdateAll bool
}

// Names returns every direct dependency name of the project.
func (r Request) Names() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range []map[string]string{r.Dependencies, r.DevDependencies, r.OptionalDependencies} {
		for name := range m {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return sortedStrings(out)
}

// spec returns the range the project declares for name, preferring
// production over optional over dev declarations.
func (r Request) spec(name string) (spec string, dev, optional bool) {
	if s, ok := r.Dependencies[name]; ok {
		return s, false, false
	}
	if s, ok := r.OptionalDependencies[name]; ok {
		return s, false, true
	}
	return r.DevDependencies[name], true, false
}
