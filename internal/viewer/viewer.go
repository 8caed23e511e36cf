// Package viewer ties the loaders, the highlighter, the selector and the
// script importer together. A Viewer starts a new load whenever its project
// path changes or it has been invalidated, and hands out Views whose sections
// resolve independently.
package viewer

import (
	"context"
	"errors"
	"sync"

	"github.com/web-padawan/demosnippet/internal/highlight"
	"github.com/web-padawan/demosnippet/internal/layout"
	"github.com/web-padawan/demosnippet/internal/logging"
	"github.com/web-padawan/demosnippet/internal/preview"
	"github.com/web-padawan/demosnippet/internal/project"
	"github.com/web-padawan/demosnippet/internal/script"
	"github.com/web-padawan/demosnippet/internal/types"
)

// Properties are the inputs of a viewer.
type Properties struct {
	ProjectPath  string `json:"projectPath"`
	TemplatePath string `json:"templatePath"`
	ScriptPath   string `json:"scriptPath,omitempty"`
	WhenDefined  string `json:"whenDefined,omitempty"`
}

// ProjectLoader loads a demo project. *project.Loader implements it.
type ProjectLoader interface {
	LoadProject(ctx context.Context, projectPath string) *project.Project
}

// TemplateLoader loads the demo template. *preview.TemplateLoader implements it.
type TemplateLoader interface {
	Load(ctx context.Context, path string) (string, error)
}

// Cache holds fetched responses for the load in progress. The viewer purges
// it whenever a new load starts, so no response outlives its generation.
// *fetch.CachingFetcher implements it.
type Cache interface {
	Purge()
}

// Config holds the collaborators of a Viewer.
type Config struct {
	Projects  ProjectLoader
	Templates TemplateLoader
	// Scripts is optional; without it ScriptPath is ignored.
	Scripts     script.Importer
	Engine      highlight.Engine
	ImportScope string
	// Cache is optional.
	Cache  Cache
	Logger logging.Logger
}

// Snippets is the resolved snippet section.
type Snippets struct {
	Project  *project.Project
	Snippets []highlight.Snippet
	Selector *layout.Selector
}

// Output is the resolved template section.
type Output struct {
	Markup    string
	Container *preview.Container
}

// View is the state of one load generation.
type View struct {
	Generation uint64
	Props      Properties

	Snippets *Future[*Snippets]
	Template *Future[*Output]
	// Script resolves after the entry point has run, or immediately when
	// there is nothing to run. Its value reports whether the script ran.
	Script *Future[bool]
}

// Viewer is safe for concurrent use.
type Viewer struct {
	cfg            Config
	logger         logging.Logger
	newHighlighter func(Properties) (*highlight.Highlighter, error)

	mu               sync.Mutex
	props            Properties
	lastProjectPath  string
	generation       uint64
	loadedGeneration uint64
	current          *View
	cancel           context.CancelFunc
	scriptGeneration uint64
}

// New creates a viewer. Its initial view shows the empty index and an empty
// template.
func New(cfg Config) (*Viewer, error) {
	if cfg.Projects == nil || cfg.Templates == nil || cfg.Engine == nil {
		return nil, errors.New("viewer requires a project loader, a template loader and a highlight engine")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	v := &Viewer{
		cfg:    cfg,
		logger: cfg.Logger.WithComponent("viewer"),
	}
	v.newHighlighter = v.highlighter

	initial, err := v.initialView()
	if err != nil {
		return nil, err
	}
	v.current = initial
	return v, nil
}

func (v *Viewer) initialView() (*View, error) {
	h, err := v.newHighlighter(Properties{})
	if err != nil {
		return nil, err
	}
	records := []types.FileDescriptor{types.EmptyIndex}
	snippets := h.Snippets(context.Background(), records)

	container, err := preview.ParseContainer("")
	if err != nil {
		return nil, err
	}

	return &View{
		Snippets: Resolved(&Snippets{
			Project:  &project.Project{Files: records},
			Snippets: snippets,
			Selector: layout.FromSnippets(snippets),
		}),
		Template: Resolved(&Output{Container: container}),
		Script:   Resolved(false),
	}, nil
}

func (v *Viewer) highlighter(props Properties) (*highlight.Highlighter, error) {
	return highlight.New(
		v.cfg.Engine,
		highlight.WithImportScope(v.cfg.ImportScope),
		highlight.WithWhenDefined(props.WhenDefined),
		highlight.WithLogger(v.cfg.Logger),
	)
}

// Set replaces the properties. The next Render decides whether to reload.
func (v *Viewer) Set(props Properties) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.props = props
}

// Properties returns the current properties.
func (v *Viewer) Properties() Properties {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.props
}

// Invalidate forces the next Render to start a new load even if the project
// path is unchanged.
func (v *Viewer) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.generation++
}

// Generation returns the generation counter. Every load and every
// invalidation advances it.
func (v *Viewer) Generation() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.generation
}

// Current returns the latest view without starting a load.
func (v *Viewer) Current() *View {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Render starts a new load when both paths are set and either the project
// path differs from the last loaded one or the viewer was invalidated.
// Otherwise it returns the current view. Loads outlive ctx cancellation; a
// load is cancelled only when a newer one supersedes it or the viewer closes.
func (v *Viewer) Render(ctx context.Context) *View {
	v.mu.Lock()
	defer v.mu.Unlock()

	props := v.props
	isNew := props.ProjectPath != "" &&
		props.TemplatePath != "" &&
		(props.ProjectPath != v.lastProjectPath || v.generation != v.loadedGeneration)
	if !isNew {
		return v.current
	}

	// The load state is left alone on failure so the next Render retries.
	h, err := v.newHighlighter(props)
	if err != nil {
		v.logger.Error(ctx, err, "Could not create highlighter", "project", props.ProjectPath)
		return v.current
	}

	v.lastProjectPath = props.ProjectPath
	v.generation++
	v.loadedGeneration = v.generation

	if v.cancel != nil {
		v.cancel()
	}
	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	v.cancel = cancel

	if v.cfg.Cache != nil {
		v.cfg.Cache.Purge()
	}

	view := &View{
		Generation: v.generation,
		Props:      props,
		Snippets:   newFuture[*Snippets](),
		Template:   newFuture[*Output](),
		Script:     newFuture[bool](),
	}
	v.current = view

	v.logger.Info(ctx, "Loading project",
		"project", props.ProjectPath,
		"template", props.TemplatePath,
		"script", props.ScriptPath,
		"generation", view.Generation,
	)

	go v.loadSnippets(loadCtx, h, view)

	var imported *Future[script.EntryPoint]
	if props.ScriptPath != "" && v.cfg.Scripts != nil {
		imported = newFuture[script.EntryPoint]()
		go func() {
			ep, err := v.cfg.Scripts.Import(loadCtx, props.ScriptPath)
			imported.resolve(ep, err)
		}()
	}

	go v.loadTemplate(loadCtx, view, imported)

	return view
}

func (v *Viewer) loadSnippets(ctx context.Context, h *highlight.Highlighter, view *View) {
	p := v.cfg.Projects.LoadProject(ctx, view.Props.ProjectPath)
	snippets := h.Snippets(ctx, p.Files)
	view.Snippets.resolve(&Snippets{
		Project:  p,
		Snippets: snippets,
		Selector: layout.FromSnippets(snippets),
	}, nil)
}

func (v *Viewer) loadTemplate(ctx context.Context, view *View, imported *Future[script.EntryPoint]) {
	markup, err := v.cfg.Templates.Load(ctx, view.Props.TemplatePath)
	if err != nil {
		view.Template.resolve(nil, err)
		view.Script.resolve(false, nil)
		return
	}

	container, err := preview.ParseContainer(markup)
	if err != nil {
		view.Template.resolve(nil, err)
		view.Script.resolve(false, nil)
		return
	}
	view.Template.resolve(&Output{Markup: markup, Container: container}, nil)

	if imported == nil {
		view.Script.resolve(false, nil)
		return
	}

	ep, err := imported.Await(ctx)
	if err != nil {
		v.logger.Error(ctx, err, "Script import failed", "script", view.Props.ScriptPath)
		view.Script.resolve(false, err)
		return
	}

	if !v.claimScriptRun(view.Generation) {
		view.Script.resolve(false, nil)
		return
	}

	if err := ep(ctx, container); err != nil {
		v.logger.Error(ctx, err, "Script failed", "script", view.Props.ScriptPath)
		view.Script.resolve(true, err)
		return
	}
	view.Script.resolve(true, nil)
}

// claimScriptRun reports whether the entry point may run for gen. It allows
// one run per generation, and none for a generation that was superseded.
func (v *Viewer) claimScriptRun(gen uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current == nil || v.current.Generation != gen || v.scriptGeneration == gen {
		return false
	}
	v.scriptGeneration = gen
	return true
}

// Wait blocks until every section of the current view has settled.
func (v *Viewer) Wait(ctx context.Context) (*View, error) {
	view := v.Current()
	for _, done := range []<-chan struct{}{view.Snippets.Done(), view.Template.Done(), view.Script.Done()} {
		select {
		case <-done:
		case <-ctx.Done():
			return view, ctx.Err()
		}
	}
	return view, nil
}

// Close cancels the load in progress.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}
