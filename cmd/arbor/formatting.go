package arbor

import (
	"os"
	"strings"
	"text/template"

	"github.com/arthur-debert/arbor/pkg/cobrax/topics"
	"github.com/arthur-debert/arbor/pkg/style"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// formatBold returns the string formatted as bold using pterm
func formatBold(s string) string {
	if !style.IsTerminal(os.Stdout) {
		return s
	}
	return pterm.Bold.Sprint(s)
}

// formatBoldUpper returns the string in uppercase and bold
func formatBoldUpper(s string) string {
	return formatBold(strings.ToUpper(s))
}

// initTemplateFormatting adds custom formatting functions to Cobra templates
func initTemplateFormatting() {
	cobra.AddTemplateFuncs(template.FuncMap{
		"bold":      formatBold,
		"upper":     strings.ToUpper,
		"boldUpper": formatBoldUpper,
	})
}

// topicRenderer renders help topics with glamour when output goes to a
// terminal. The format flag is read at render time, after parsing.
type topicRenderer struct {
	g *globals
}

func (r topicRenderer) Render(content, ext string) string {
	format, err := style.ParseFormat(r.g.format)
	if err != nil {
		return content
	}
	if format == style.FormatAuto {
		format = style.DetectFormat(os.Stdout)
	}
	if format != style.FormatTerminal {
		return content
	}
	return topics.NewGlamourRenderer().Render(content, ext)
}
