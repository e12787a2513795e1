package style

import (
	"fmt"
	"os"
	"strings"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/extraneous"
	"github.com/arthur-debert/arbor/pkg/orchestrator"
	"github.com/arthur-debert/arbor/pkg/planner"
	"github.com/arthur-debert/arbor/pkg/tree"
	"github.com/pterm/pterm"
)

// Renderer turns results into text, styled or plain.
type Renderer struct {
	plain bool
}

// NewRenderer creates a renderer. FormatAuto detects from stdout.
func NewRenderer(format Format) *Renderer {
	if format == FormatAuto {
		format = DetectFormat(os.Stdout)
	}
	return &Renderer{plain: format == FormatText}
}

func (r *Renderer) style(name, s string) string {
	if r.plain {
		return s
	}
	return GetStyle(name).Render(s)
}

// marker returns the line prefix for an operation kind.
func (r *Renderer) marker(kind planner.Kind) string {
	if r.plain {
		switch kind {
		case planner.KindAdd:
			return "+"
		case planner.KindRemove:
			return "-"
		case planner.KindUpdate:
			return "~"
		default:
			return ">"
		}
	}
	switch kind {
	case planner.KindAdd:
		return pterm.Success.Prefix.Style.Sprint("+")
	case planner.KindRemove:
		return pterm.Error.Prefix.Style.Sprint("-")
	case planner.KindUpdate:
		return pterm.Info.Prefix.Style.Sprint("~")
	default:
		return pterm.Debug.Prefix.Style.Sprint(">")
	}
}

var kindStyles = map[planner.Kind]string{
	planner.KindAdd:    "Added",
	planner.KindRemove: "Removed",
	planner.KindUpdate: "Updated",
	planner.KindMove:   "Moved",
}

// RenderSummary describes a finished run: one line per changed package
// followed by the totals. A dry run renders the same lines under a notice.
func (r *Renderer) RenderSummary(res *orchestrator.Result) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	if res.DryRun {
		b.WriteString(r.style("DryRun", "Dry run: nothing was changed") + "\n")
	}
	if !res.Changed() {
		b.WriteString(r.style("Muted", "Up to date"))
		return b.String()
	}

	for _, section := range []struct {
		kind planner.Kind
		keys []string
	}{
		{planner.KindRemove, res.Removed},
		{planner.KindMove, res.Moved},
		{planner.KindUpdate, res.Updated},
		{planner.KindAdd, res.Added},
	} {
		for _, key := range section.keys {
			fmt.Fprintf(&b, "%s %s\n", r.marker(section.kind), r.style("Package", key))
		}
	}

	verb := "changed"
	if res.DryRun {
		verb = "would change"
	}
	totals := fmt.Sprintf("%s %s: %s, %s, %s, %s", res.Command, verb,
		r.count(planner.KindAdd, len(res.Added), "added"),
		r.count(planner.KindRemove, len(res.Removed), "removed"),
		r.count(planner.KindUpdate, len(res.Updated), "updated"),
		r.count(planner.KindMove, len(res.Moved), "moved"))
	b.WriteString(r.style("Header", totals))
	return b.String()
}

func (r *Renderer) count(kind planner.Kind, n int, label string) string {
	s := fmt.Sprintf("%d %s", n, label)
	if n == 0 {
		return s
	}
	return r.style(kindStyles[kind], s)
}

// RenderOperations lists planned operations in order.
func (r *Renderer) RenderOperations(ops []planner.Operation) string {
	if len(ops) == 0 {
		return r.style("Muted", "No operations to perform")
	}
	lines := make([]string, 0, len(ops))
	for _, op := range ops {
		var desc string
		switch op.Kind {
		case planner.KindUpdate:
			desc = fmt.Sprintf("%s %s -> %s", r.style("Package", op.Name), op.PreviousVersion, op.Version)
		case planner.KindMove:
			desc = fmt.Sprintf("%s %s -> %s", r.style("Package", op.Name+"@"+op.Version),
				r.style("Location", op.From), r.style("Location", op.Location))
		default:
			desc = fmt.Sprintf("%s %s", r.style("Package", op.Name+"@"+op.Version), r.style("Location", op.Location))
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", r.marker(op.Kind), r.style(kindStyles[op.Kind], string(op.Kind)), desc))
	}
	return strings.Join(lines, "\n")
}

// RenderTree draws the installed tree by ownership, marking packages
// nothing requested keeps alive.
func (r *Renderer) RenderTree(t *tree.PackageTree) string {
	classes := extraneous.Classify(t, extraneous.RequestedNames(t, false))

	var b strings.Builder
	b.WriteString(r.style("Header", t.Root().Key()))
	var walk func(n *tree.Node, prefix string)
	walk = func(n *tree.Node, prefix string) {
		children := t.Children(n)
		for i, c := range children {
			branch, next := "├── ", "│   "
			if i == len(children)-1 {
				branch, next = "└── ", "    "
			}
			line := prefix + branch + r.style("Package", c.Key())
			if c.Dev {
				line += " " + r.style("Dev", "dev")
			}
			if classes[c.ID] {
				line += " " + r.style("Extraneous", "extraneous")
			}
			b.WriteString("\n" + line)
			walk(c, prefix+next)
		}
	}
	walk(t.Root(), "")
	return b.String()
}

// RenderError shows the kind and message of err.
func (r *Renderer) RenderError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if errors.GetErrorCode(err) == errors.ErrUnknown {
		msg = fmt.Sprintf("[%s] %s", errors.ErrUnknown, msg)
	}
	if r.plain {
		return "Error: " + msg
	}
	return fmt.Sprintf("%s %s", pterm.Error.Prefix.Text, r.style("Error", msg))
}
