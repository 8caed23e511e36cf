// Package fetch provides the text fetcher the project and template loaders
// read through. A Fetcher answers a path with a status code and a body, the
// way an HTTP GET would; non-2xx statuses are responses, not errors.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	terrors "github.com/web-padawan/demosnippet/internal/errors"
)

// maxBodySize bounds a single fetched file.
const maxBodySize = 8 << 20

// Response is the result of a fetch.
type Response struct {
	Path       string
	StatusCode int
	Body       []byte
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher fetches a path as text.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (*Response, error)
}

// Func adapts a plain function to the Fetcher interface.
type Func func(ctx context.Context, path string) (*Response, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, path string) (*Response, error) {
	return f(ctx, path)
}

// HTTPFetcher fetches paths relative to a base URL.
type HTTPFetcher struct {
	BaseURL *url.URL
	Client  *http.Client
}

// NewHTTPFetcher parses baseURL and returns a fetcher with a bounded client timeout.
func NewHTTPFetcher(baseURL string, timeout time.Duration) (*HTTPFetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		BaseURL: base,
		Client:  &http.Client{Timeout: timeout},
	}, nil
}

// Fetch performs a GET for p resolved against the base URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, p string) (*Response, error) {
	ref, err := url.Parse(p)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", p, err)
	}
	target := ref
	if f.BaseURL != nil {
		target = f.BaseURL.ResolveReference(ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}

	return &Response{Path: p, StatusCode: resp.StatusCode, Body: body}, nil
}

// FSFetcher serves paths out of a file system. Missing files answer 404.
type FSFetcher struct {
	FS fs.FS
}

// NewDirFetcher returns a fetcher rooted at dir on the local disk.
func NewDirFetcher(dir string) (*FSFetcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", dir)
	}
	return &FSFetcher{FS: os.DirFS(dir)}, nil
}

// Fetch reads p from the file system.
func (f *FSFetcher) Fetch(ctx context.Context, p string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := CleanPath(p)
	if err != nil {
		return nil, err
	}

	body, err := fs.ReadFile(f.FS, name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &Response{Path: p, StatusCode: http.StatusNotFound}, nil
	case err != nil:
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) && strings.Contains(pathErr.Err.Error(), "is a directory") {
			return &Response{Path: p, StatusCode: http.StatusNotFound}, nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return &Response{Path: p, StatusCode: http.StatusOK, Body: body}, nil
}

// CleanPath converts a slash-separated request path into an fs.FS name,
// rejecting anything that would escape the root.
func CleanPath(p string) (string, error) {
	if strings.Contains(p, "\\") || strings.ContainsRune(p, 0) {
		return "", terrors.NewSecurityError(terrors.ErrCodeInvalidPath, "invalid characters in path").WithPath(p)
	}

	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", terrors.NewSecurityError(terrors.ErrCodePathTraversal, "path escapes the project root").WithPath(p)
		}
	}

	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if name == "" {
		name = "."
	}
	if !fs.ValidPath(name) {
		return "", terrors.NewSecurityError(terrors.ErrCodeInvalidPath, "invalid path").WithPath(p)
	}
	return name, nil
}
