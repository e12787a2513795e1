package topics

import (
	"github.com/charmbracelet/glamour"
)

// Renderer formats topic content for display. ext is the topic file's
// extension, including the dot.
type Renderer interface {
	Render(content, ext string) string
}

// PlainRenderer returns content unchanged.
type PlainRenderer struct{}

// Render returns the content unchanged
func (r *PlainRenderer) Render(content, ext string) string {
	return content
}

// GlamourRenderer renders markdown topics for a terminal.
type GlamourRenderer struct {
	Style string // "auto", a glamour style name, or a path to a style file
	Width int    // 0 keeps glamour's default wrapping
}

// NewGlamourRenderer creates a markdown renderer that picks its style from
// the terminal background.
func NewGlamourRenderer() *GlamourRenderer {
	return &GlamourRenderer{Style: "auto"}
}

// Render converts markdown to styled terminal output. Other formats, and
// any content glamour fails on, are returned as-is.
func (r *GlamourRenderer) Render(content, ext string) string {
	if ext != ".md" {
		return content
	}

	var options []glamour.TermRendererOption
	if r.Style != "" && r.Style != "auto" {
		options = append(options, glamour.WithStylePath(r.Style))
	} else {
		options = append(options, glamour.WithAutoStyle())
	}
	if r.Width > 0 {
		options = append(options, glamour.WithWordWrap(r.Width))
	}

	renderer, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
