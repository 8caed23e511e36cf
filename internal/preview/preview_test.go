package preview

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/fetch"
	"github.com/web-padawan/demosnippet/internal/logging"
)

func TestTemplateLoaderReturnsVerbatim(t *testing.T) {
	markup := "<vaadin-button disabled>Button</vaadin-button>\n  <!-- keep -->"
	loader := NewTemplateLoader(&fetch.FSFetcher{FS: fstest.MapFS{
		"demo/index.html": {Data: []byte(markup)},
	}}, logging.NewNop())

	text, err := loader.Load(context.Background(), "demo/index.html")
	require.NoError(t, err)
	assert.Equal(t, markup, text)
}

func TestTemplateLoaderNotFound(t *testing.T) {
	loader := NewTemplateLoader(&fetch.FSFetcher{FS: fstest.MapFS{}}, nil)

	text, err := loader.Load(context.Background(), "demo/missing.html")
	require.Error(t, err)
	assert.Empty(t, text)
	assert.True(t, terrors.IsTemplateError(err))

	var te *terrors.SnippetError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, terrors.ErrCodeTemplateFetch, te.Code)
	assert.Equal(t, "demo/missing.html", te.FilePath)
}

func TestTemplateLoaderTransportError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	loader := NewTemplateLoader(fetch.Func(func(ctx context.Context, path string) (*fetch.Response, error) {
		return nil, cause
	}), nil)

	_, err := loader.Load(context.Background(), "demo/index.html")
	require.Error(t, err)
	assert.True(t, terrors.IsTemplateError(err))
	assert.ErrorIs(t, err, cause)
}

func TestContainerQuery(t *testing.T) {
	c, err := ParseContainer(`<p class="note">Hello <b>world</b></p><vaadin-button id="b" disabled>Go</vaadin-button>`)
	require.NoError(t, err)

	button, err := c.Query("#b")
	require.NoError(t, err)
	require.NotNil(t, button)
	assert.Equal(t, "vaadin-button", button.Tag())
	assert.True(t, button.HasAttribute("disabled"))

	p, err := c.Query("p.note")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Hello world", p.Text())

	none, err := c.Query("section")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestContainerRootNeverMatches(t *testing.T) {
	c, err := ParseContainer(`<span>x</span>`)
	require.NoError(t, err)

	el, err := c.Query("div")
	require.NoError(t, err)
	assert.Nil(t, el)
	assert.Equal(t, "<span>x</span>", c.HTML())
}

func TestContainerInvalidSelector(t *testing.T) {
	c, err := ParseContainer(`<span>x</span>`)
	require.NoError(t, err)

	_, err = c.Query("[[")
	assert.Error(t, err)
	_, err = c.QueryAll("[[")
	assert.Error(t, err)
}

func TestElementAttributes(t *testing.T) {
	c, err := ParseContainer(`<vaadin-button disabled>Go</vaadin-button><input type="checkbox">`)
	require.NoError(t, err)

	button, err := c.Query("vaadin-button")
	require.NoError(t, err)

	button.RemoveAttribute("disabled")
	assert.False(t, button.HasAttribute("disabled"))
	assert.Contains(t, c.HTML(), "<vaadin-button>Go</vaadin-button>")

	assert.True(t, button.ToggleAttribute("disabled"))
	value, ok := button.Attribute("disabled")
	assert.True(t, ok)
	assert.Empty(t, value)
	assert.False(t, button.ToggleAttribute("disabled"))

	button.SetAttribute("Theme", "primary")
	button.SetAttribute("theme", "error")
	value, ok = button.Attribute("theme")
	assert.True(t, ok)
	assert.Equal(t, "error", value)
	assert.Contains(t, c.HTML(), `theme="error"`)

	button.SetText("Stop")
	assert.Equal(t, "Stop", button.Text())
}

func TestContainerQueryAllKeepsDocumentOrder(t *testing.T) {
	c, err := ParseContainer(`<ul><li>a</li><li>b</li></ul><li>c</li>`)
	require.NoError(t, err)

	items, err := c.QueryAll("li")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].Text())
	assert.Equal(t, "b", items[1].Text())
	assert.Equal(t, "c", items[2].Text())
}
