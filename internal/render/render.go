// Package render builds the HTML page around a viewer: the stylesheet, the
// project title and description, the viewer body and the client script.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/a-h/templ"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/web-padawan/demosnippet/internal/highlight"
	"github.com/web-padawan/demosnippet/internal/logging"
	"github.com/web-padawan/demosnippet/internal/viewer"
)

// StylesheetSource provides the CSS for highlighted code.
type StylesheetSource interface {
	Stylesheet() (string, error)
}

// PageOptions controls page output.
type PageOptions struct {
	// WebSocketPath enables live selection and reload when set.
	WebSocketPath string
}

// Renderer renders pages. It is safe for concurrent use.
type Renderer struct {
	markdown goldmark.Markdown
	styles   StylesheetSource
	assets   *Assets
	logger   logging.Logger
}

// New creates a renderer. styles may be nil when no highlight CSS is needed.
func New(styles StylesheetSource, styleName string, logger logging.Logger) (*Renderer, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	a, err := LoadAssets()
	if err != nil {
		return nil, err
	}

	return &Renderer{
		markdown: newMarkdown(styleName),
		styles:   styles,
		assets:   a,
		logger:   logger.WithComponent("render"),
	}, nil
}

func newMarkdown(styleName string) goldmark.Markdown {
	if styleName == "" {
		styleName = highlight.DefaultStyle
	}
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(styleName),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
}

// Description converts a manifest description from markdown to HTML. Raw
// HTML in the source is omitted.
func (r *Renderer) Description(source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("convert description: %w", err)
	}
	return buf.String(), nil
}

// Title returns title, or the project directory name title-cased when title
// is empty: "demo/button-disabled/" becomes "Button Disabled".
func Title(title, projectDir string) string {
	if title != "" {
		return title
	}
	name := path.Base(strings.TrimRight(projectDir, "/"))
	if name == "." || name == "/" || name == "" {
		return "Demo"
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return cases.Title(language.English).String(name)
}

// Page renders a complete HTML document for view.
func (r *Renderer) Page(view *viewer.View, opts PageOptions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title, description := r.heading(ctx, view)

		stylesheet := r.assets.CSS
		if r.styles != nil {
			chromaCSS, err := r.styles.Stylesheet()
			if err != nil {
				r.logger.Warn(ctx, err, "Highlight stylesheet unavailable")
			} else {
				stylesheet += chromaCSS
			}
		}

		var sb strings.Builder
		sb.WriteString("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\">")
		sb.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		sb.WriteString("<title>" + templ.EscapeString(title) + "</title>")
		sb.WriteString("<style>" + stylesheet + "</style></head>")
		if opts.WebSocketPath != "" {
			sb.WriteString(`<body data-ws="` + templ.EscapeString(opts.WebSocketPath) + `">`)
		} else {
			sb.WriteString("<body>")
		}
		sb.WriteString("<h1>" + templ.EscapeString(title) + "</h1>")
		if description != "" {
			sb.WriteString(`<div class="description">` + description + "</div>")
		}
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}

		if err := view.Component().Render(ctx, w); err != nil {
			return err
		}

		_, err := io.WriteString(w, "<script>"+r.assets.JS+"</script></body></html>")
		return err
	})
}

func (r *Renderer) heading(ctx context.Context, view *viewer.View) (string, string) {
	dir := view.Props.ProjectPath
	if !view.Snippets.Ready() {
		return Title("", dir), ""
	}

	s, _ := view.Snippets.Value()
	if s.Project == nil {
		return Title("", dir), ""
	}
	if s.Project.Dir != "" {
		dir = s.Project.Dir
	}

	description, err := r.Description(s.Project.Description)
	if err != nil {
		r.logger.Warn(ctx, err, "Could not render project description", "project", dir)
		description = ""
	}
	return Title(s.Project.Title, dir), description
}

// Render writes the page for view to w.
func (r *Renderer) Render(ctx context.Context, w io.Writer, view *viewer.View, opts PageOptions) error {
	return r.Page(view, opts).Render(ctx, w)
}
