package layout

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Component renders the tab strip and the code panels with the current
// selection. Panel HTML is written unescaped; it comes from the highlighter.
func (s *Selector) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		tabs, panels := s.Snapshot()

		var sb strings.Builder
		sb.WriteString(`<div id="root" class="demo-snippet-layout"><div id="tabs">`)
		for _, t := range tabs {
			sb.WriteString(`<span data-role="tab" data-key="`)
			sb.WriteString(templ.EscapeString(t.Key))
			sb.WriteString(`" class="`)
			sb.WriteString(templ.EscapeString(t.Key))
			sb.WriteString(`"`)
			if t.Selected {
				sb.WriteString(` selected`)
			}
			sb.WriteString(`>`)
			sb.WriteString(templ.EscapeString(t.Label))
			sb.WriteString(`</span>`)
		}
		sb.WriteString(`</div><div id="snippets">`)
		for _, p := range panels {
			sb.WriteString(`<pre data-role="code" data-key="`)
			sb.WriteString(templ.EscapeString(p.Key))
			sb.WriteString(`" class="`)
			sb.WriteString(templ.EscapeString(p.Key))
			sb.WriteString(`"`)
			if p.Selected {
				sb.WriteString(` selected`)
			}
			sb.WriteString(`><code>`)
			sb.WriteString(p.HTML)
			sb.WriteString(`</code></pre>`)
		}
		sb.WriteString(`</div></div>`)

		_, err := io.WriteString(w, sb.String())
		return err
	})
}
