package ideal

import (
	"context"
	"sort"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/extraneous"
	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/arthur-debert/arbor/pkg/planner"
	"github.com/arthur-debert/arbor/pkg/tree"
	"github.com/rs/zerolog"
)

// Builder computes ideal trees.
type Builder struct {
	resolver Resolver
	logger   zerolog.Logger
}

// NewBuilder creates a builder resolving through r.
func NewBuilder(r Resolver) *Builder {
	return &Builder{
		resolver: r,
		logger:   logging.GetLogger("ideal"),
	}
}

type build struct {
	ctx      context.Context
	resolver Resolver
	logger   zerolog.Logger
	t        *tree.PackageTree
	req      Request
	update   map[string]bool
	visited  map[tree.NodeID]bool
	peers    []*tree.Node
	// deferred holds expansion back while the root's own requirements are
	// placed, so they win the top-level slots over transitive ones
	deferred bool
}

// Build returns the ideal tree for req. The current tree is not modified.
func (b *Builder) Build(ctx context.Context, current *tree.PackageTree, req Request) (*tree.PackageTree, error) {
	declared := make(map[string]bool)
	for _, name := range req.Names() {
		declared[name] = true
	}
	update := make(map[string]bool, len(req.Update))
	for _, name := range req.Update {
		if !declared[name] && len(current.ByName(name)) == 0 {
			return nil, errors.Newf(errors.ErrInvalidSelector,
				"package %q is neither a dependency nor installed", name).
				WithDetail("selector", name)
		}
		update[name] = true
	}

	bd := &build{
		ctx:      ctx,
		resolver: b.resolver,
		logger:   b.logger,
		t:        current.Clone(),
		req:      req,
		update:   update,
		visited:  make(map[tree.NodeID]bool),
	}

	root := bd.t.Root()
	root.Dependencies = copyStrings(req.Dependencies)
	root.OptionalDependencies = copyStrings(req.OptionalDependencies)
	for _, name := range bd.t.RequiredNames(root) {
		bd.t.Unlink(root, name)
	}
	for _, top := range bd.t.TopLevel() {
		top.Requested = false
	}

	var requested []string
	var tops []*tree.Node
	bd.deferred = true
	for _, name := range req.Names() {
		spec, _, optional := req.spec(name)
		n, err := bd.place(root, name, spec)
		if err != nil {
			if optional {
				bd.logger.Warn().Err(err).Str("package", name).Msg("Skipping optional dependency")
				bd.t.Unlink(root, name)
				continue
			}
			return nil, err
		}
		n.Requested = true
		requested = append(requested, name)
		tops = append(tops, n)
	}
	bd.deferred = false

	for i, n := range tops {
		if err := bd.expand(n); err != nil {
			if _, _, optional := req.spec(requested[i]); optional {
				bd.logger.Warn().Err(err).Str("package", n.Name).Msg("Skipping optional dependency")
				bd.t.Unlink(root, requested[i])
				n.Requested = false
				continue
			}
			return nil, err
		}
	}
	requested = requested[:0]
	for _, n := range tops {
		if n.Requested {
			requested = append(requested, n.Name)
		}
	}

	if err := bd.checkPeers(); err != nil {
		return nil, err
	}

	removal := &planner.Removal{}
	for _, n := range extraneous.Roots(bd.t, requested) {
		removal.Roots = append(removal.Roots, n.ID)
	}
	if _, err := planner.LoadExtraneous(bd.t, removal); err != nil {
		return nil, err
	}
	bd.markFlags()

	b.logger.Debug().
		Int("requested", len(requested)).
		Int("nodes", bd.t.Len()-1).
		Int("dropped", len(removal.Removed)).
		Msg("Built ideal tree")
	return bd.t, nil
}

// place satisfies requester's requirement for name and links the result.
func (bd *build) place(requester *tree.Node, name, spec string) (*tree.Node, error) {
	t := bd.t
	force := bd.req.UpdateAll || bd.update[name]

	existing := t.ResolveVisible(requester, name)
	if existing != nil && !force && bd.resolver.Satisfies(existing.Version, spec) {
		return existing, bd.use(requester, name, existing)
	}

	m, err := bd.resolver.Resolve(bd.ctx, name, spec)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrResolutionConflict,
			"cannot resolve %s@%s required by %s", name, spec, requester.Key()).
			WithDetail("package", name).
			WithDetail("spec", spec).
			WithDetail("requester", requester.Key())
	}
	if m.Name == "" {
		m.Name = name
	}

	if existing != nil && existing.Version == m.Version {
		return existing, bd.use(requester, name, existing)
	}

	levels := ancestry(t, requester)
	start := 0
	if existing != nil {
		start = levelOf(levels, t.Parent(existing)) + 1
		if force && bd.canReplace(existing, requester, m.Version) {
			bd.replace(existing, m)
			return existing, bd.use(requester, name, existing)
		}
	}

	for _, level := range levels[start:] {
		if bd.shadows(level, name, requester) {
			continue
		}
		n, err := t.AddChild(level, m.Name, m.Version)
		if err != nil {
			return nil, err
		}
		applyManifest(n, m)
		bd.logger.Trace().
			Str("package", n.Key()).
			Str("location", t.Location(n)).
			Str("requester", requester.Key()).
			Msg("Placed package")
		return n, bd.use(requester, name, n)
	}

	if existing != nil && bd.canReplace(existing, requester, m.Version) {
		bd.replace(existing, m)
		return existing, bd.use(requester, name, existing)
	}
	return nil, errors.Newf(errors.ErrResolutionConflict,
		"no location for %s@%s visible from %s", m.Name, m.Version, requester.Key()).
		WithDetail("package", m.Name).
		WithDetail("version", m.Version).
		WithDetail("requester", requester.Key())
}

// use links requester to n and resolves n's own requirements once.
func (bd *build) use(requester *tree.Node, name string, n *tree.Node) error {
	if err := bd.t.Link(requester, name, n); err != nil {
		return err
	}
	if bd.deferred {
		return nil
	}
	return bd.expand(n)
}

func (bd *build) expand(n *tree.Node) error {
	if bd.visited[n.ID] {
		return nil
	}
	bd.visited[n.ID] = true

	for _, name := range bd.t.RequiredNames(n) {
		if !declares(n, name) {
			bd.t.Unlink(n, name)
		}
	}

	for _, name := range sortedKeys(n.Dependencies) {
		if _, err := bd.place(n, name, n.Dependencies[name]); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(n.OptionalDependencies) {
		if _, required := n.Dependencies[name]; required {
			continue
		}
		if _, err := bd.place(n, name, n.OptionalDependencies[name]); err != nil {
			bd.logger.Warn().Err(err).
				Str("package", name).
				Str("requester", n.Key()).
				Msg("Skipping optional dependency")
			bd.t.Unlink(n, name)
		}
	}
	if len(n.PeerDependencies) > 0 {
		bd.peers = append(bd.peers, n)
	}
	return nil
}

// checkPeers runs after placement so that peers provided by later
// siblings are visible.
func (bd *build) checkPeers() error {
	for _, n := range bd.peers {
		if !bd.t.Has(n) {
			continue
		}
		for _, name := range sortedKeys(n.PeerDependencies) {
			spec := n.PeerDependencies[name]
			host := bd.t.ResolveVisible(bd.t.Parent(n), name)
			if host == nil || !bd.resolver.Satisfies(host.Version, spec) {
				found := "nothing"
				if host != nil {
					found = host.Key()
				}
				return errors.Newf(errors.ErrResolutionConflict,
					"%s needs peer %s@%s but finds %s", n.Key(), name, spec, found).
					WithDetail("package", n.Key()).
					WithDetail("peer", name).
					WithDetail("spec", spec)
			}
			if err := bd.t.Link(n, name, host); err != nil {
				return err
			}
		}
	}
	return nil
}

// shadows reports whether a new child called name under level would hide
// a package that something inside level's subtree already resolves to.
func (bd *build) shadows(level *tree.Node, name string, requester *tree.Node) bool {
	t := bd.t
	hidden := false
	t.WalkFrom(level, func(x *tree.Node) bool {
		if hidden {
			return false
		}
		if x.ID == requester.ID {
			return true
		}
		if dep, ok := t.Resolve(x, name); ok && !t.IsAncestor(level, dep) {
			hidden = true
			return false
		}
		return true
	})
	return hidden
}

// canReplace reports whether every other dependent of n accepts version.
func (bd *build) canReplace(n, requester *tree.Node, version string) bool {
	for _, d := range bd.t.Dependents(n) {
		if d.ID == requester.ID {
			continue
		}
		spec, ok := bd.declaredSpec(d, n.Name)
		if !ok || !bd.resolver.Satisfies(version, spec) {
			return false
		}
	}
	return true
}

func (bd *build) declaredSpec(d *tree.Node, name string) (string, bool) {
	if d.IsRoot() {
		spec, _, _ := bd.req.spec(name)
		return spec, spec != ""
	}
	for _, m := range []map[string]string{d.Dependencies, d.OptionalDependencies, d.PeerDependencies} {
		if spec, ok := m[name]; ok {
			return spec, true
		}
	}
	return "", false
}

// replace swaps n to manifest m in place. Its requirements are resolved
// again on the next expand.
func (bd *build) replace(n *tree.Node, m Manifest) {
	bd.logger.Debug().
		Str("package", n.Name).
		Str("from", n.Version).
		Str("to", m.Version).
		Msg("Replacing package")
	n.Version = m.Version
	applyManifest(n, m)
	for _, name := range bd.t.RequiredNames(n) {
		bd.t.Unlink(n, name)
	}
	delete(bd.visited, n.ID)
}

// markFlags derives dev and optional flags from the final edges.
func (bd *build) markFlags() {
	t := bd.t
	var prod, required []*tree.Node
	for _, top := range t.TopLevel() {
		if !top.Requested {
			continue
		}
		_, dev, optional := bd.req.spec(top.Name)
		if !dev {
			prod = append(prod, top)
		}
		if !optional {
			required = append(required, top)
		}
	}

	prodReach := extraneous.ReachableFrom(t, prod)
	requiredReach := reachableRequired(t, required)
	for _, n := range t.Nodes() {
		n.Dev = !prodReach[n.ID]
		n.Optional = !requiredReach[n.ID]
	}
}

// reachableRequired follows only edges for non-optional dependencies.
func reachableRequired(t *tree.PackageTree, starts []*tree.Node) map[tree.NodeID]bool {
	marked := make(map[tree.NodeID]bool)
	queue := append([]*tree.Node(nil), starts...)
	for _, s := range starts {
		marked[s.ID] = true
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for name, dep := range t.Requires(n) {
			_, opt := n.OptionalDependencies[name]
			_, req := n.Dependencies[name]
			if opt && !req {
				continue
			}
			if !marked[dep.ID] {
				marked[dep.ID] = true
				queue = append(queue, dep)
			}
		}
	}
	return marked
}

// ancestry lists the root down to n, inclusive.
func ancestry(t *tree.PackageTree, n *tree.Node) []*tree.Node {
	var out []*tree.Node
	for cur := n; cur != nil; cur = t.Parent(cur) {
		out = append(out, cur)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func levelOf(levels []*tree.Node, n *tree.Node) int {
	for i, l := range levels {
		if l.ID == n.ID {
			return i
		}
	}
	return -1
}

func declares(n *tree.Node, name string) bool {
	for _, m := range []map[string]string{n.Dependencies, n.OptionalDependencies, n.PeerDependencies} {
		if _, ok := m[name]; ok {
			return true
		}
	}
	return false
}

func applyManifest(n *tree.Node, m Manifest) {
	n.Dependencies = copyStrings(m.Dependencies)
	n.OptionalDependencies = copyStrings(m.OptionalDependencies)
	n.PeerDependencies = copyStrings(m.PeerDependencies)
	n.Scripts = copyStrings(m.Scripts)
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

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedStrings(in []string) []string {
	sort.Strings(in)
	return in
}
