// Package script imports the companion script of a demo. A script resolves
// to an EntryPoint that is called once the template has been rendered, with
// the output container as its only argument.
package script

import (
	"context"
	"path"
	"strings"
	"sync"

	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/preview"
)

// EntryPoint is the default export of a companion script.
type EntryPoint func(ctx context.Context, output *preview.Container) error

// Importer resolves a script path to its entry point.
type Importer interface {
	Import(ctx context.Context, path string) (EntryPoint, error)
}

// Noop is the entry point used before any script has been imported.
func Noop(context.Context, *preview.Container) error { return nil }

// Registry holds entry points written in Go, keyed by script path.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]EntryPoint
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]EntryPoint)}
}

// Register adds or replaces the entry point for p.
func (r *Registry) Register(p string, ep EntryPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[path.Clean(p)] = ep
}

// Import implements Importer.
func (r *Registry) Import(ctx context.Context, p string) (EntryPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	ep, ok := r.entries[path.Clean(p)]
	r.mu.RUnlock()

	if !ok {
		return nil, terrors.NewScriptError(terrors.ErrCodeScriptImport, "no entry point registered", nil).WithPath(p)
	}
	return ep, nil
}

// Paths returns the registered script paths.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.entries))
	for p := range r.entries {
		paths = append(paths, p)
	}
	return paths
}

// Chain dispatches to an importer by file extension and falls back to a
// default importer for everything else.
type Chain struct {
	byExt    map[string]Importer
	fallback Importer
}

// NewChain creates a chain with fallback as the default. fallback may be nil.
func NewChain(fallback Importer) *Chain {
	return &Chain{
		byExt:    make(map[string]Importer),
		fallback: fallback,
	}
}

// Handle routes paths ending in ext (for example ".lua") to imp.
func (c *Chain) Handle(ext string, imp Importer) *Chain {
	c.byExt[strings.ToLower(ext)] = imp
	return c
}

// Import implements Importer.
func (c *Chain) Import(ctx context.Context, p string) (EntryPoint, error) {
	if imp, ok := c.byExt[strings.ToLower(path.Ext(p))]; ok {
		return imp.Import(ctx, p)
	}
	if c.fallback != nil {
		return c.fallback.Import(ctx, p)
	}
	return nil, terrors.NewScriptError(terrors.ErrCodeScriptImport, "no importer for script", nil).WithPath(p)
}
