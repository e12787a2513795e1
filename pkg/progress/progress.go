// Package progress reports hierarchical progress for a run.
//
// Groups form a tree mirroring the pipeline stages. They carry no control
// flow: every method is safe on a nil *Group, and emitters only observe.
// A run behaves identically with or without emitters attached.
package progress

import (
	"strings"
	"sync"
)

// Emitter receives group events. Implementations must be safe for
// concurrent use, since fanned-out actions report from several goroutines.
type Emitter interface {
	GroupStarted(path []string, total int)
	GroupProgress(path []string, item string, done, total int)
	GroupFinished(path []string, err error)
}

// Group is a named node in the progress hierarchy.
type Group struct {
	name     string
	path     []string
	emitters []Emitter

	mu       sync.Mutex
	total    int
	done     int
	children []*Group
}

// NewRoot creates the top of a progress hierarchy.
func NewRoot(name string, emitters ...Emitter) *Group {
	return &Group{
		name:     name,
		path:     []string{name},
		emitters: emitters,
	}
}

// NewGroup opens a child group.
func (g *Group) NewGroup(name string) *Group {
	if g == nil {
		return nil
	}
	child := &Group{
		name:     name,
		path:     append(append([]string(nil), g.path...), name),
		emitters: g.emitters,
	}
	g.mu.Lock()
	g.children = append(g.children, child)
	g.mu.Unlock()
	return child
}

// Start announces the group with the number of items it expects.
func (g *Group) Start(total int) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.total = total
	g.mu.Unlock()
	for _, e := range g.emitters {
		e.GroupStarted(g.path, total)
	}
}

// Complete reports one finished item.
func (g *Group) Complete(item string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.done++
	done, total := g.done, g.total
	g.mu.Unlock()
	for _, e := range g.emitters {
		e.GroupProgress(g.path, item, done, total)
	}
}

// Finish closes the group. err is nil on success.
func (g *Group) Finish(err error) {
	if g == nil {
		return
	}
	for _, e := range g.emitters {
		e.GroupFinished(g.path, err)
	}
}

// Name returns the group's own name.
func (g *Group) Name() string {
	if g == nil {
		return ""
	}
	return g.name
}

// Path returns the names from the root down to this group.
func (g *Group) Path() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.path...)
}

// Children returns the groups opened under g so far.
func (g *Group) Children() []*Group {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Group(nil), g.children...)
}

// Counts returns completed and expected items.
func (g *Group) Counts() (done, total int) {
	if g == nil {
		return 0, 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done, g.total
}

// Key joins a group path into a single identifier.
func Key(path []string) string {
	return strings.Join(path, "/")
}
