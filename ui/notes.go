package ui

import (
	"html/template"
	"os"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"vqtlbrowser/internal/errors"
)

// RenderNotes converts the markdown file at path to HTML for the notes panel.
// Raw HTML tags in the source are dropped; their inner text is kept.
func RenderNotes(path string) (template.HTML, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFound("notes file " + path)
		}
		return "", errors.Wrapf(err, "failed to read notes %s", path)
	}
	return renderMarkdown(source), nil
}

func renderMarkdown(source []byte) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank | html.SkipHTML,
	})
	return template.HTML(markdown.ToHTML(source, p, renderer))
}
