package highlight

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/web-padawan/demosnippet/internal/logging"
	"github.com/web-padawan/demosnippet/internal/types"
)

// DefaultImportScope is the package scope import paths are shortened to.
const DefaultImportScope = "@vaadin"

const defaultExport = "export default (document => {"

// Snippet is one highlighted file ready for display.
type Snippet struct {
	// Key correlates a tab with its panel.
	Key       string          `json:"key"`
	Label     string          `json:"label"`
	Extension types.Extension `json:"extension"`
	HTML      string          `json:"html"`
	Selected  bool            `json:"selected"`
}

// Option configures a Highlighter.
type Option func(*Highlighter)

// WithImportScope sets the scope that quoted import paths are cut back to.
// An empty scope disables the rewrite.
func WithImportScope(scope string) Option {
	return func(h *Highlighter) {
		h.importScope = scope
	}
}

// WithWhenDefined rewrites the default export of script files to wait for
// the named custom element instead.
func WithWhenDefined(name string) Option {
	return func(h *Highlighter) {
		h.whenDefined = name
	}
}

// WithLogger sets the logger used for highlighting failures.
func WithLogger(logger logging.Logger) Option {
	return func(h *Highlighter) {
		if logger != nil {
			h.logger = logger.WithComponent("highlight")
		}
	}
}

// Highlighter builds snippets from file descriptors.
type Highlighter struct {
	engine      Engine
	importScope string
	whenDefined string
	scopeRe     *regexp2.Regexp
	logger      logging.Logger
}

// New creates a highlighter around engine.
func New(engine Engine, opts ...Option) (*Highlighter, error) {
	h := &Highlighter{
		engine:      engine,
		importScope: DefaultImportScope,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.importScope != "" {
		re, err := regexp2.Compile(`'(.+)(?=`+regexp2.Escape(h.importScope)+`)`, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("compile import scope %q: %w", h.importScope, err)
		}
		h.scopeRe = re
	}

	return h, nil
}

// SortForDisplay returns a copy of records ordered by extension, so markup
// comes before script. Files with the same extension keep their order.
func SortForDisplay(records []types.FileDescriptor) []types.FileDescriptor {
	sorted := make([]types.FileDescriptor, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Extension < sorted[j].Extension
	})
	return sorted
}

// Snippets highlights records in display order. Exactly the first snippet is
// selected.
func (h *Highlighter) Snippets(ctx context.Context, records []types.FileDescriptor) []Snippet {
	sorted := SortForDisplay(records)
	snippets := make([]Snippet, len(sorted))

	for i, record := range sorted {
		snippets[i] = Snippet{
			Key:       fmt.Sprintf("link-%d", i),
			Label:     record.Extension.String(),
			Extension: record.Extension,
			HTML:      h.highlight(ctx, record),
			Selected:  i == 0,
		}
	}
	return snippets
}

func (h *Highlighter) highlight(ctx context.Context, record types.FileDescriptor) string {
	content := record.Content
	if record.Extension == types.ExtensionJS {
		content = h.rewriteScript(ctx, content)
	}

	grammar, err := record.Extension.Grammar()
	if err != nil {
		h.logger.Warn(ctx, err, "No grammar for file, showing raw text", "file", record.Filename())
		return html.EscapeString(content)
	}

	out, err := h.engine.Highlight(content, grammar, record.Extension.String())
	if err != nil {
		h.logger.Warn(ctx, err, "Highlighting failed, showing raw text", "file", record.Filename())
		return html.EscapeString(content)
	}
	return out
}

// rewriteScript applies the display-only rewrites to script content.
func (h *Highlighter) rewriteScript(ctx context.Context, content string) string {
	if h.scopeRe != nil {
		rewritten, err := h.scopeRe.Replace(content, "'", -1, -1)
		if err != nil {
			h.logger.Warn(ctx, err, "Import scope rewrite failed")
		} else {
			content = rewritten
		}
	}

	if h.whenDefined != "" {
		content = strings.Replace(
			content,
			defaultExport,
			fmt.Sprintf("customElements.whenDefined('%s').then(() => {", h.whenDefined),
			1,
		)
	}
	return content
}
