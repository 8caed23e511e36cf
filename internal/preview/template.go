// Package preview loads the HTML template rendered next to the snippets and
// wraps the rendered output in a Container that companion scripts can query
// and modify.
package preview

import (
	"context"
	"net/http"

	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/fetch"
	"github.com/web-padawan/demosnippet/internal/logging"
)

// TemplateLoader fetches demo templates.
type TemplateLoader struct {
	fetcher fetch.Fetcher
	logger  logging.Logger
}

// NewTemplateLoader creates a template loader reading through fetcher.
func NewTemplateLoader(fetcher fetch.Fetcher, logger logging.Logger) *TemplateLoader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TemplateLoader{
		fetcher: fetcher,
		logger:  logger.WithComponent("template"),
	}
}

// Load fetches the template at path and returns its text verbatim. A
// transport failure or a 404 is returned as a template error; any other
// status is treated as content.
func (l *TemplateLoader) Load(ctx context.Context, path string) (string, error) {
	resp, err := l.fetcher.Fetch(ctx, path)
	if err != nil {
		terr := terrors.NewTemplateError(terrors.ErrCodeTemplateFetch, "could not fetch template", err).
			WithPath(path).
			WithComponent("template")
		l.logger.Error(ctx, terr, "Template fetch failed", "path", path)
		return "", terr
	}

	if resp.StatusCode == http.StatusNotFound {
		terr := terrors.NewTemplateError(terrors.ErrCodeTemplateFetch, "template not found", nil).
			WithPath(path).
			WithComponent("template").
			WithContext("status", resp.StatusCode)
		l.logger.Error(ctx, terr, "Template fetch failed", "path", path)
		return "", terr
	}

	l.logger.Debug(ctx, "Template loaded", "path", path, "bytes", len(resp.Body))
	return resp.Text(), nil
}
