package viewer

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	terrors "github.com/web-padawan/demosnippet/internal/errors"
)

// Component renders the view with whatever sections have resolved. Pending
// sections render as placeholders that the page replaces on reload.
func (view *View) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<div id="wrapper" data-generation="`+fmt.Sprint(view.Generation)+`"><div class="demo-snippet-layout">`); err != nil {
			return err
		}
		if err := view.snippetsComponent().Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</div>`); err != nil {
			return err
		}
		if err := view.OutputComponent().Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

func (view *View) snippetsComponent() templ.Component {
	if !view.Snippets.Ready() {
		return placeholder("snippets")
	}
	s, _ := view.Snippets.Value()
	return s.Selector.Component()
}

// OutputComponent renders the template output section alone.
func (view *View) OutputComponent() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if !view.Template.Ready() {
			return placeholder("output").Render(ctx, w)
		}

		out, err := view.Template.Value()
		if err != nil {
			_, werr := io.WriteString(w, `<div id="output" class="error" role="alert">`+templateErrorMessage(err)+`</div>`)
			return werr
		}

		_, err = io.WriteString(w, `<div id="output">`+out.Container.HTML()+`</div>`)
		return err
	})
}

func placeholder(section string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div class="pending" data-section="`+section+`" aria-busy="true"></div>`)
		return err
	})
}

func templateErrorMessage(err error) string {
	if !terrors.IsTemplateError(err) {
		return templ.EscapeString("Could not parse template")
	}
	info := terrors.GetErrorContext(err)
	if path, ok := info["file"].(string); ok && path != "" {
		return templ.EscapeString("Could not load template " + path)
	}
	return templ.EscapeString("Could not load template")
}
