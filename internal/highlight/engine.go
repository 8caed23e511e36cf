// Package highlight turns loaded project files into the highlighted snippets
// shown in the viewer tabs.
package highlight

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/web-padawan/demosnippet/internal/types"
)

// DefaultStyle is the chroma style used when none is configured.
const DefaultStyle = "github"

// Engine converts source text into highlighted HTML markup. The lang argument
// is the file extension and is informational.
type Engine interface {
	Highlight(text string, grammar types.Grammar, lang string) (string, error)
}

// ChromaEngine highlights with chroma and emits class based spans, so the
// page needs the stylesheet returned by Stylesheet.
type ChromaEngine struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter

	cssOnce sync.Once
	css     string
	cssErr  error
}

// NewChromaEngine creates an engine for the named chroma style. Unknown style
// names fall back to chroma's default style.
func NewChromaEngine(styleName string) *ChromaEngine {
	if styleName == "" {
		styleName = DefaultStyle
	}
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	return &ChromaEngine{
		style: style,
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.PreventSurroundingPre(true),
		),
	}
}

// Highlight implements Engine.
func (e *ChromaEngine) Highlight(text string, grammar types.Grammar, lang string) (string, error) {
	lexer := lexerFor(grammar)

	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return "", fmt.Errorf("tokenise %s: %w", lang, err)
	}

	var buf bytes.Buffer
	if err := e.formatter.Format(&buf, e.style, iterator); err != nil {
		return "", fmt.Errorf("format %s: %w", lang, err)
	}
	return buf.String(), nil
}

// Stylesheet returns the CSS for the engine's style.
func (e *ChromaEngine) Stylesheet() (string, error) {
	e.cssOnce.Do(func() {
		var buf bytes.Buffer
		e.cssErr = e.formatter.WriteCSS(&buf, e.style)
		e.css = buf.String()
	})
	return e.css, e.cssErr
}

func lexerFor(grammar types.Grammar) chroma.Lexer {
	var name string
	switch grammar {
	case types.GrammarScript:
		name = "javascript"
	case types.GrammarMarkup:
		name = "html"
	}

	lexer := lexers.Get(name)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}
