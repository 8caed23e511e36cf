package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web-padawan/demosnippet/internal/logging"
	"github.com/web-padawan/demosnippet/internal/viewer"
)

// loadFile loads props and returns the content of the named project file.
func loadFile(t *testing.T, v *viewer.Viewer, props viewer.Properties, filename string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	v.Set(props)
	v.Render(ctx)
	view, err := v.Wait(ctx)
	require.NoError(t, err)

	snippets, err := view.Snippets.Value()
	require.NoError(t, err)
	for _, file := range snippets.Project.Files {
		if file.Filename() == filename {
			return file.Content
		}
	}
	return ""
}

func TestComponentsFetchFreshPerLoad(t *testing.T) {
	root := writeProject(t)
	cfg := testConfig(root)
	cfg.Project.Script = ""

	c, err := NewComponents(cfg, logging.NewNop())
	require.NoError(t, err)
	defer c.Viewer.Close()

	button := PropertiesFromConfig(&cfg.Project)
	other := button
	other.ProjectPath = "demo/other"

	assert.Contains(t, loadFile(t, c.Viewer, button, "button.js"), "@vaadin/button")

	require.NoError(t, os.WriteFile(
		filepath.Join(root, "demo", "button", "button.js"),
		[]byte("console.log('NEW');"), 0o644))

	loadFile(t, c.Viewer, other, "button.js")
	assert.Equal(t, "console.log('NEW');", loadFile(t, c.Viewer, button, "button.js"))
}

func TestComponentsTemplateFreshPerLoad(t *testing.T) {
	root := writeProject(t)
	cfg := testConfig(root)
	cfg.Project.Script = ""

	c, err := NewComponents(cfg, logging.NewNop())
	require.NoError(t, err)
	defer c.Viewer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.Viewer.Render(ctx)
	view, err := c.Viewer.Wait(ctx)
	require.NoError(t, err)
	out, err := view.Template.Value()
	require.NoError(t, err)
	assert.Contains(t, out.Markup, "Click")

	require.NoError(t, os.WriteFile(
		filepath.Join(root, "demo", "button", "index.html"),
		[]byte("<vaadin-button>Changed</vaadin-button>"), 0o644))

	c.Viewer.Invalidate()
	c.Viewer.Render(ctx)
	view, err = c.Viewer.Wait(ctx)
	require.NoError(t, err)
	out, err = view.Template.Value()
	require.NoError(t, err)
	assert.Contains(t, out.Markup, "Changed")
}
