// Package topics adds file-backed help topics to a cobra command tree.
// "help <name>" prints the topic called name when one exists and falls
// back to command help otherwise; "help topics" lists what is available.
package topics

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// ListKeyword is the help argument that lists topics.
const ListKeyword = "topics"

// Topic is one help document.
type Topic struct {
	Name    string
	Path    string
	Content string
}

// Options configures a Manager.
type Options struct {
	// Extensions lists the file extensions treated as topics. Defaults to
	// .txt and .md.
	Extensions []string

	// Renderer formats topic content. Defaults to PlainRenderer.
	Renderer Renderer
}

// Manager holds the topics found in a file tree.
type Manager struct {
	topics     map[string]*Topic
	extensions []string
	renderer   Renderer
}

// New scans fsys for topic files. A topic's name is its file name without
// the extension; later files with an existing name are ignored.
func New(fsys fs.FS, opts Options) (*Manager, error) {
	m := &Manager{
		topics:     make(map[string]*Topic),
		extensions: opts.Extensions,
		renderer:   opts.Renderer,
	}
	if len(m.extensions) == 0 {
		m.extensions = []string{".txt", ".md"}
	}
	if m.renderer == nil {
		m.renderer = &PlainRenderer{}
	}

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !m.supported(path.Ext(p)) {
			return nil
		}
		name := strings.TrimSuffix(path.Base(p), path.Ext(p))
		if _, exists := m.topics[name]; exists {
			return nil
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		m.topics[name] = &Topic{Name: name, Path: p, Content: string(content)}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan topics: %w", err)
	}
	return m, nil
}

func (m *Manager) supported(ext string) bool {
	for _, e := range m.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Get returns the topic called name.
func (m *Manager) Get(name string) (*Topic, bool) {
	t, ok := m.topics[name]
	return t, ok
}

// Names returns every topic name in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.topics))
	for name := range m.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render writes the topic called name to w.
func (m *Manager) Render(w io.Writer, name string) bool {
	t, ok := m.Get(name)
	if !ok {
		return false
	}
	_, _ = fmt.Fprint(w, m.renderer.Render(t.Content, path.Ext(t.Path)))
	return true
}

// List writes the topic index to w.
func (m *Manager) List(w io.Writer, program string) {
	names := m.Names()
	if len(names) == 0 {
		_, _ = fmt.Fprintln(w, "No help topics available.")
		return
	}
	_, _ = fmt.Fprintln(w, "Available help topics:")
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "  %s\n", name)
	}
	_, _ = fmt.Fprintf(w, "\nUse '%s help <topic>' to read about a specific topic.\n", program)
}

// Install replaces root's help command with one that also serves topics.
func Install(root *cobra.Command, m *Manager) {
	commandHelp := root.HelpFunc()

	help := &cobra.Command{
		Use:   "help [command or topic]",
		Short: "Help about any command or topic",
		Long: "Help provides help for any command or topic.\n\n" +
			"To see all available help topics:\n  " + root.Name() + " help " + ListKeyword,
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			completions := []string{ListKeyword}
			for _, c := range root.Commands() {
				if !c.Hidden {
					completions = append(completions, c.Name())
				}
			}
			completions = append(completions, m.Names()...)
			return completions, cobra.ShellCompDirectiveNoFileComp
		},
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				commandHelp(root, args)
				return
			}
			if args[0] == ListKeyword {
				m.List(cmd.OutOrStdout(), root.Name())
				return
			}
			if m.Render(cmd.OutOrStdout(), args[0]) {
				return
			}
			target, _, err := root.Find(args)
			if target == nil || err != nil {
				target = root
			}
			commandHelp(target, args)
		},
	}
	root.SetHelpCommand(help)
}
