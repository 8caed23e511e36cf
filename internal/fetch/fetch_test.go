package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	terrors "github.com/web-padawan/demosnippet/internal/errors"
)

func TestFSFetcher(t *testing.T) {
	fetcher := &FSFetcher{FS: fstest.MapFS{
		"demo/button/demo.json":  {Data: []byte(`{"files":{}}`)},
		"demo/button/index.html": {Data: []byte("<p>hi</p>")},
	}}
	ctx := context.Background()

	resp, err := fetcher.Fetch(ctx, "demo/button/index.html")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.OK())
	assert.Equal(t, "<p>hi</p>", resp.Text())

	resp, err = fetcher.Fetch(ctx, "/demo/button/demo.json")
	require.NoError(t, err)
	assert.Equal(t, `{"files":{}}`, resp.Text())

	resp, err = fetcher.Fetch(ctx, "demo/button/missing.js")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.OK())
}

func TestFSFetcherRejectsTraversal(t *testing.T) {
	fetcher := &FSFetcher{FS: fstest.MapFS{}}

	for _, p := range []string{"../etc/passwd", "demo/../../secret", `demo\..\x`} {
		_, err := fetcher.Fetch(context.Background(), p)
		require.Error(t, err, p)
		assert.True(t, terrors.IsSecurityError(err), p)
	}
}

func TestFSFetcherHonoursContext(t *testing.T) {
	fetcher := &FSFetcher{FS: fstest.MapFS{"a.js": {Data: []byte("x")}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.Fetch(ctx, "a.js")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleanPath(t *testing.T) {
	tests := map[string]string{
		"demo/button/":     "demo/button",
		"/demo/index.html": "demo/index.html",
		"./demo//a.js":     "demo/a.js",
		"":                 ".",
	}
	for in, want := range tests {
		got, err := CleanPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNewDirFetcher(t *testing.T) {
	_, err := NewDirFetcher(t.TempDir())
	assert.NoError(t, err)

	_, err = NewDirFetcher("/definitely/not/here")
	assert.Error(t, err)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/demo/button/index.html":
			_, _ = w.Write([]byte("<p>hi</p>"))
		case "/demo/button/broken.js":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("oops"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fetcher, err := NewHTTPFetcher(srv.URL+"/", time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	resp, err := fetcher.Fetch(ctx, "demo/button/index.html")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<p>hi</p>", resp.Text())

	resp, err = fetcher.Fetch(ctx, "demo/button/missing.js")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = fetcher.Fetch(ctx, "demo/button/broken.js")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "oops", resp.Text())
}

func TestNewHTTPFetcherValidatesScheme(t *testing.T) {
	_, err := NewHTTPFetcher("ftp://example.com/", 0)
	assert.Error(t, err)

	_, err = NewHTTPFetcher("://bad", 0)
	assert.Error(t, err)
}
