package viewer

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web-padawan/demosnippet/internal/highlight"
	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/preview"
	"github.com/web-padawan/demosnippet/internal/project"
	"github.com/web-padawan/demosnippet/internal/script"
	"github.com/web-padawan/demosnippet/internal/types"
)

type countingProjects struct {
	loads atomic.Int32
	gate  chan struct{}
	files map[string][]types.FileDescriptor
}

func (p *countingProjects) LoadProject(ctx context.Context, path string) *project.Project {
	p.loads.Add(1)
	if p.gate != nil {
		<-p.gate
	}
	files, ok := p.files[path]
	if !ok {
		return &project.Project{Dir: path, Files: []types.FileDescriptor{types.EmptyIndex}, Err: errors.New("not found")}
	}
	return &project.Project{Dir: path, Files: files}
}

type countingTemplates struct {
	loads  atomic.Int32
	markup map[string]string
}

func (t *countingTemplates) Load(ctx context.Context, path string) (string, error) {
	t.loads.Add(1)
	markup, ok := t.markup[path]
	if !ok {
		return "", terrors.NewTemplateError(terrors.ErrCodeTemplateFetch, "template not found", nil).WithPath(path)
	}
	return markup, nil
}

type countingImporter struct {
	imports atomic.Int32
	runs    atomic.Int32
	err     error
}

func (i *countingImporter) Import(ctx context.Context, path string) (script.EntryPoint, error) {
	i.imports.Add(1)
	if i.err != nil {
		return nil, i.err
	}
	return func(ctx context.Context, output *preview.Container) error {
		i.runs.Add(1)
		button, err := output.Query("vaadin-button")
		if err != nil || button == nil {
			return errors.New("no button")
		}
		button.RemoveAttribute("disabled")
		return nil
	}, nil
}

type plainEngine struct{}

func (plainEngine) Highlight(text string, grammar types.Grammar, lang string) (string, error) {
	return text, nil
}

type fixture struct {
	projects  *countingProjects
	templates *countingTemplates
	scripts   *countingImporter
	viewer    *Viewer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		projects: &countingProjects{files: map[string][]types.FileDescriptor{
			"demo/a": {
				{Name: "a", Extension: types.ExtensionJS, Content: "console.log(1)"},
				{Name: "b", Extension: types.ExtensionHTML, Content: "<p>hi</p>"},
			},
			"demo/b": {
				{Name: "index", Extension: types.ExtensionHTML, Content: "<b>b</b>"},
			},
		}},
		templates: &countingTemplates{markup: map[string]string{
			"demo/index.html": `<vaadin-button disabled>Go</vaadin-button>`,
		}},
		scripts: &countingImporter{},
	}

	v, err := New(Config{
		Projects:  f.projects,
		Templates: f.templates,
		Scripts:   f.scripts,
		Engine:    plainEngine{},
	})
	require.NoError(t, err)
	f.viewer = v
	return f
}

func waitFor(t *testing.T, v *Viewer) *View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	view, err := v.Wait(ctx)
	require.NoError(t, err)
	return view
}

func TestInitialView(t *testing.T) {
	f := newFixture(t)

	view := f.viewer.Render(context.Background())
	require.True(t, view.Snippets.Ready())
	require.True(t, view.Template.Ready())

	snippets, err := view.Snippets.Value()
	require.NoError(t, err)
	assert.Equal(t, []types.FileDescriptor{types.EmptyIndex}, snippets.Project.Files)
	require.Len(t, snippets.Snippets, 1)

	out, err := view.Template.Value()
	require.NoError(t, err)
	assert.Empty(t, out.Markup)
	assert.Equal(t, int32(0), f.projects.loads.Load())
}

func TestRenderNeedsBothPaths(t *testing.T) {
	f := newFixture(t)

	f.viewer.Set(Properties{ProjectPath: "demo/a"})
	f.viewer.Render(context.Background())
	f.viewer.Set(Properties{TemplatePath: "demo/index.html"})
	f.viewer.Render(context.Background())

	assert.Equal(t, int32(0), f.projects.loads.Load())
	assert.Equal(t, int32(0), f.templates.loads.Load())
}

func TestRenderLoadsOncePerProjectPath(t *testing.T) {
	f := newFixture(t)
	f.viewer.Set(Properties{ProjectPath: "demo/a", TemplatePath: "demo/index.html"})

	first := f.viewer.Render(context.Background())
	second := f.viewer.Render(context.Background())
	assert.Same(t, first, second)
	waitFor(t, f.viewer)
	assert.Equal(t, int32(1), f.projects.loads.Load())
	assert.Equal(t, int32(1), f.templates.loads.Load())

	f.viewer.Set(Properties{ProjectPath: "demo/b", TemplatePath: "demo/index.html"})
	f.viewer.Render(context.Background())
	f.viewer.Render(context.Background())
	waitFor(t, f.viewer)
	assert.Equal(t, int32(2), f.projects.loads.Load())
	assert.Equal(t, int32(2), f.templates.loads.Load())
}

func TestInvalidateReloadsOnce(t *testing.T) {
	f := newFixture(t)
	f.viewer.Set(Properties{ProjectPath: "demo/a", TemplatePath: "demo/index.html"})

	f.viewer.Render(context.Background())
	waitFor(t, f.viewer)

	f.viewer.Invalidate()
	f.viewer.Render(context.Background())
	f.viewer.Render(context.Background())
	waitFor(t, f.viewer)

	assert.Equal(t, int32(2), f.projects.loads.Load())
}

func TestSnippetsInDisplayOrder(t *testing.T) {
	f := newFixture(t)
	f.viewer.Set(Properties{ProjectPath: "demo/a", TemplatePath: "demo/index.html"})
	f.viewer.Render(context.Background())

	view := waitFor(t, f.viewer)
	snippets, err := view.Snippets.Value()
	require.NoError(t, err)
	require.Len(t, snippets.Snippets, 2)
	assert.Equal(t, "html", snippets.Snippets[0].Label)
	assert.Equal(t, "js", snippets.Snippets[1].Label)

	key, ok := snippets.Selector.Selected()
	require.True(t, ok)
	assert.Equal(t, "link-0", key)
}

func TestScriptRunsOncePerGeneration(t *testing.T) {
	f := newFixture(t)
	f.viewer.Set(Properties{ProjectPath: "demo/a", TemplatePath: "demo/index.html", ScriptPath: "demo/a.js"})

	f.viewer.Render(context.Background())
	f.viewer.Render(context.Background())
	view := waitFor(t, f.viewer)

	ran, err := view.Script.Value()
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int32(1), f.scripts.imports.Load())
	assert.Equal(t, int32(1), f.scripts.runs.Load())

	out, err := view.Template.Value()
	require.NoError(t, err)
	assert.Equal(t, "<vaadin-button>Go</vaadin-button>", out.Container.HTML())

	f.viewer.Invalidate()
	f.viewer.Render(context.Background())
	waitFor(t, f.viewer)
	assert.Equal(t, int32(2), f.scripts.runs.Load())
}

func TestScriptImportFailureKeepsOutput(t *testing.T) {
	f := newFixture(t)
	f.scripts.err = terrors.NewScriptError(terrors.ErrCodeScriptImport, "script not found", nil)
	f.viewer.Set(Properties{ProjectPath: "demo/a", TemplatePath: "demo/index.html", ScriptPath: "demo/missing.js"})

	f.viewer.Render(context.Background())
	view := waitFor(t, f.viewer)

	ran, err := view.Script.Value()
	assert.False(t, ran)
	assert.Error(t, err)

	out, err := view.Template.Value()
	require.NoError(t, err)
	assert.Contains(t, out.Container.HTML(), "disabled")
}

func TestTemplateFailureIsTyped(t *testing.T) {
	f := newFixture(t)
	f.viewer.Set(Properties{ProjectPath: "demo/a", TemplatePath: "demo/missing.html"})

	f.viewer.Render(context.Background())
	view := waitFor(t, f.viewer)

	_, err := view.Template.Value()
	require.Error(t, err)
	assert.True(t, terrors.IsTemplateError(err))

	snippets, err := view.Snippets.Value()
	require.NoError(t, err)
	assert.Len(t, snippets.Snippets, 2, "snippets are independent of the template")

	var buf bytes.Buffer
	require.NoError(t, view.Component().Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), `class="error"`)
	assert.Contains(t, buf.String(), "demo/missing.html")
}

func TestSectionsResolveIndependently(t *testing.T) {
	f := newFixture(t)
	f.projects.gate = make(chan struct{})
	f.viewer.Set(Properties{ProjectPath: "demo/a", TemplatePath: "demo/index.html"})

	view := f.viewer.Render(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := view.Template.Await(ctx)
	require.NoError(t, err)
	assert.False(t, view.Snippets.Ready())

	var buf bytes.Buffer
	require.NoError(t, view.Component().Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), `data-section="snippets"`)
	assert.Contains(t, buf.String(), `<div id="output"><vaadin-button disabled="">Go</vaadin-button></div>`)

	close(f.projects.gate)
	waitFor(t, f.viewer)
	assert.True(t, view.Snippets.Ready())
}

func TestStaleGenerationSkipsScript(t *testing.T) {
	f := newFixture(t)
	f.projects.gate = make(chan struct{})

	gate := make(chan struct{})
	blocking := &blockingImporter{gate: gate, inner: f.scripts}
	v, err := New(Config{Projects: f.projects, Templates: f.templates, Scripts: blocking, Engine: plainEngine{}})
	require.NoError(t, err)

	v.Set(Properties{ProjectPath: "demo/a", TemplatePath: "demo/index.html", ScriptPath: "demo/a.js"})
	stale := v.Render(context.Background())
	v.Invalidate()
	current := v.Render(context.Background())
	require.NotSame(t, stale, current)

	close(gate)
	close(f.projects.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = current.Script.Await(ctx)
	require.NoError(t, err)
	_, _ = stale.Script.Await(ctx)

	assert.Equal(t, int32(1), f.scripts.runs.Load())
}

type blockingImporter struct {
	gate  chan struct{}
	inner script.Importer
}

func (b *blockingImporter) Import(ctx context.Context, path string) (script.EntryPoint, error) {
	select {
	case <-b.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.inner.Import(ctx, path)
}

func TestWaitHonoursContext(t *testing.T) {
	f := newFixture(t)
	f.projects.gate = make(chan struct{})
	defer close(f.projects.gate)

	f.viewer.Set(Properties{ProjectPath: "demo/a", TemplatePath: "demo/index.html"})
	f.viewer.Render(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.viewer.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type countingCache struct {
	purges atomic.Int32
}

func (c *countingCache) Purge() { c.purges.Add(1) }

func TestNewLoadPurgesCache(t *testing.T) {
	f := newFixture(t)
	cache := &countingCache{}
	v, err := New(Config{Projects: f.projects, Templates: f.templates, Engine: plainEngine{}, Cache: cache})
	require.NoError(t, err)
	assert.Zero(t, cache.purges.Load())

	v.Set(Properties{ProjectPath: "demo/a", TemplatePath: "demo/index.html"})
	v.Render(context.Background())
	v.Render(context.Background())
	waitFor(t, v)
	assert.Equal(t, int32(1), cache.purges.Load())

	v.Set(Properties{ProjectPath: "demo/b", TemplatePath: "demo/index.html"})
	v.Render(context.Background())
	waitFor(t, v)
	assert.Equal(t, int32(2), cache.purges.Load())

	v.Set(Properties{ProjectPath: "demo/a", TemplatePath: "demo/index.html"})
	v.Render(context.Background())
	waitFor(t, v)
	assert.Equal(t, int32(3), cache.purges.Load())

	v.Invalidate()
	v.Render(context.Background())
	waitFor(t, v)
	assert.Equal(t, int32(4), cache.purges.Load())
}

func TestHighlighterFailureRetriesLoad(t *testing.T) {
	f := newFixture(t)
	build := f.viewer.newHighlighter
	f.viewer.newHighlighter = func(Properties) (*highlight.Highlighter, error) {
		return nil, errors.New("bad import scope")
	}

	f.viewer.Set(Properties{ProjectPath: "demo/a", TemplatePath: "demo/index.html"})
	initial := f.viewer.Render(context.Background())
	assert.Zero(t, initial.Generation)
	assert.Zero(t, f.viewer.Generation())
	assert.Equal(t, int32(0), f.projects.loads.Load())

	f.viewer.newHighlighter = build
	view := f.viewer.Render(context.Background())
	assert.NotSame(t, initial, view)
	waitFor(t, f.viewer)
	assert.Equal(t, int32(1), f.projects.loads.Load())
	assert.Equal(t, uint64(1), view.Generation)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
