package server

import (
	"fmt"

	"github.com/web-padawan/demosnippet/internal/config"
	"github.com/web-padawan/demosnippet/internal/fetch"
	"github.com/web-padawan/demosnippet/internal/highlight"
	"github.com/web-padawan/demosnippet/internal/logging"
	"github.com/web-padawan/demosnippet/internal/preview"
	"github.com/web-padawan/demosnippet/internal/project"
	"github.com/web-padawan/demosnippet/internal/render"
	"github.com/web-padawan/demosnippet/internal/script"
	"github.com/web-padawan/demosnippet/internal/viewer"
)

// Components are the collaborators built from a configuration. The serve and
// render commands share them.
type Components struct {
	// Local serves project files from project.root. It is nil when files
	// come from project.base_url.
	Local    *fetch.FSFetcher
	Fetcher  *fetch.CachingFetcher
	Engine   *highlight.ChromaEngine
	Scripts  *script.Chain
	Registry *script.Registry
	Viewer   *viewer.Viewer
	Renderer *render.Renderer
}

// NewComponents wires fetchers, loaders, highlighter, script importers,
// viewer and renderer for cfg. The viewer's properties are set from the
// project section but no load is started.
func NewComponents(cfg *config.Config, logger logging.Logger) (*Components, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	var (
		local *fetch.FSFetcher
		base  fetch.Fetcher
		err   error
	)
	if cfg.Project.BaseURL != "" {
		base, err = fetch.NewHTTPFetcher(cfg.Project.BaseURL, cfg.Project.Timeout)
	} else {
		local, err = fetch.NewDirFetcher(cfg.Project.Root)
		base = local
	}
	if err != nil {
		return nil, fmt.Errorf("project fetcher: %w", err)
	}

	cached, err := fetch.NewCachingFetcher(base, fetch.DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	engine := highlight.NewChromaEngine(cfg.Highlight.Style)

	registry := script.NewRegistry()
	scripts := script.NewChain(registry).
		Handle(".lua", script.NewLuaImporter(cached, logger))

	v, err := viewer.New(viewer.Config{
		Projects:    project.NewLoader(cached, logger),
		Templates:   preview.NewTemplateLoader(cached, logger),
		Scripts:     scripts,
		Engine:      engine,
		ImportScope: cfg.Project.ImportScope,
		Cache:       cached,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	v.Set(PropertiesFromConfig(&cfg.Project))

	renderer, err := render.New(engine, cfg.Highlight.Style, logger)
	if err != nil {
		return nil, err
	}

	return &Components{
		Local:    local,
		Fetcher:  cached,
		Engine:   engine,
		Scripts:  scripts,
		Registry: registry,
		Viewer:   v,
		Renderer: renderer,
	}, nil
}

// PropertiesFromConfig maps the project section onto viewer properties.
func PropertiesFromConfig(p *config.ProjectConfig) viewer.Properties {
	return viewer.Properties{
		ProjectPath:  p.Path,
		TemplatePath: p.Template,
		ScriptPath:   p.Script,
		WhenDefined:  p.WhenDefined,
	}
}
