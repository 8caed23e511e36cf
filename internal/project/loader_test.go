package project

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/fetch"
	"github.com/web-padawan/demosnippet/internal/logging"
	"github.com/web-padawan/demosnippet/internal/types"
)

func newMapLoader(files fstest.MapFS) *Loader {
	return NewLoader(&fetch.FSFetcher{FS: files}, logging.NewNop())
}

func TestEnsureTrailingSlash(t *testing.T) {
	assert.Equal(t, "demo/button/", EnsureTrailingSlash("demo/button"))
	assert.Equal(t, "demo/button/", EnsureTrailingSlash("demo/button/"))
	assert.Equal(t, "demo/button/", EnsureTrailingSlash("demo/button///"))
	assert.Equal(t, "/", EnsureTrailingSlash(""))
}

func TestSplitFilename(t *testing.T) {
	tests := []struct {
		in, name, ext string
	}{
		{"index.html", "index", "html"},
		{"a.min.js", "a", "min.js"},
		{"README", "README", ""},
		{".js", "", "js"},
		{"", "", ""},
	}
	for _, tt := range tests {
		name, ext := SplitFilename(tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.ext, ext, tt.in)
	}
}

func TestLoadMixedProject(t *testing.T) {
	loader := newMapLoader(fstest.MapFS{
		"demo/p/demo.json": {Data: []byte(`{"files": {"a.js": {}, "b.html": {"isTemplate": true}}}`)},
		"demo/p/a.js":      {Data: []byte("console.log(1)")},
		"demo/p/b.html":    {Data: []byte("<p>hi</p>")},
	})

	files := loader.Load(context.Background(), "demo/p")

	require.Len(t, files, 2)
	assert.Equal(t, types.FileDescriptor{Name: "a", Extension: types.ExtensionJS, Content: "console.log(1)"}, files[0])
	assert.Equal(t, types.FileDescriptor{Name: "b", Extension: types.ExtensionHTML, Content: "<p>hi</p>", IsTemplate: true}, files[1])
}

func TestLoadSkipsInvalidEntries(t *testing.T) {
	loader := newMapLoader(fstest.MapFS{
		"demo/p/demo.json":  {Data: []byte(`{"files": {"README": {}, ".js": {}, "style.css": {}, "index.html": {}}}`)},
		"demo/p/index.html": {Data: []byte("<b>x</b>")},
	})

	m, err := loader.LoadManifest(context.Background(), "demo/p/")
	require.NoError(t, err)
	assert.Equal(t, []string{"README", ".js", "style.css"}, m.Skipped)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "index.html", m.Entries[0].Filename())

	files := loader.Load(context.Background(), "demo/p/")
	require.Len(t, files, 1)
	assert.Equal(t, "<b>x</b>", files[0].Content)
}

func TestLoadFallsBackToEmptyIndex(t *testing.T) {
	tests := []struct {
		name  string
		files fstest.MapFS
		code  string
	}{
		{
			name:  "missing manifest",
			files: fstest.MapFS{},
			code:  terrors.ErrCodeManifestFetch,
		},
		{
			name:  "invalid json",
			files: fstest.MapFS{"p/demo.json": {Data: []byte(`{files:`)}},
			code:  terrors.ErrCodeManifestParse,
		},
		{
			name:  "no files key",
			files: fstest.MapFS{"p/demo.json": {Data: []byte(`{"title": "x"}`)}},
			code:  terrors.ErrCodeManifestEmpty,
		},
		{
			name:  "empty files map",
			files: fstest.MapFS{"p/demo.json": {Data: []byte(`{"files": {}}`)}},
			code:  terrors.ErrCodeManifestEmpty,
		},
		{
			name:  "zero valid entries",
			files: fstest.MapFS{"p/demo.json": {Data: []byte(`{"files": {"a.css": {}, "noext": {}}}`)}},
			code:  terrors.ErrCodeManifestEmpty,
		},
		{
			name: "missing project file",
			files: fstest.MapFS{
				"p/demo.json":  {Data: []byte(`{"files": {"a.js": {}, "b.html": {}}}`)},
				"p/b.html":    {Data: []byte("<p>hi</p>")},
			},
			code: terrors.ErrCodeFileNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := newMapLoader(tt.files).LoadProject(context.Background(), "p")

			assert.Equal(t, []types.FileDescriptor{types.EmptyIndex}, project.Files)
			assert.True(t, types.IsEmptyIndex(project.Files))
			require.Error(t, project.Err)

			var te *terrors.SnippetError
			require.True(t, errors.As(project.Err, &te))
			assert.Equal(t, tt.code, te.Code)
		})
	}
}

func TestMissingFileErrorNamesPath(t *testing.T) {
	loader := newMapLoader(fstest.MapFS{
		"p/demo.json": {Data: []byte(`{"files": {"gone.js": {}}}`)},
	})

	project := loader.LoadProject(context.Background(), "p")
	require.Error(t, project.Err)
	assert.Contains(t, project.Err.Error(), "Could not find file p/gone.js")
}

func TestFetchErrorCollapsesLoad(t *testing.T) {
	fetcher := fetch.Func(func(ctx context.Context, path string) (*fetch.Response, error) {
		switch path {
		case "p/demo.json":
			return &fetch.Response{Path: path, StatusCode: http.StatusOK, Body: []byte(`{"files": {"a.js": {}, "b.html": {}}}`)}, nil
		case "p/a.js":
			return nil, errors.New("connection reset")
		default:
			return &fetch.Response{Path: path, StatusCode: http.StatusOK, Body: []byte("ok")}, nil
		}
	})

	files := NewLoader(fetcher, nil).Load(context.Background(), "p")
	assert.Equal(t, []types.FileDescriptor{types.EmptyIndex}, files)
}

func TestNonNotFoundStatusIsNotSpecialCased(t *testing.T) {
	fetcher := fetch.Func(func(ctx context.Context, path string) (*fetch.Response, error) {
		if path == "p/demo.json" {
			return &fetch.Response{StatusCode: http.StatusOK, Body: []byte(`{"files": {"a.js": {}}}`)}, nil
		}
		return &fetch.Response{StatusCode: http.StatusInternalServerError, Body: []byte("server error page")}, nil
	})

	files := NewLoader(fetcher, nil).Load(context.Background(), "p")
	require.Len(t, files, 1)
	assert.Equal(t, "server error page", files[0].Content)
}

func TestResultOrderIndependentOfCompletionOrder(t *testing.T) {
	delays := map[string]time.Duration{
		"p/first.js":   30 * time.Millisecond,
		"p/second.js":  0,
		"p/third.html": 10 * time.Millisecond,
	}

	var mu sync.Mutex
	var inFlight, maxInFlight int

	fetcher := fetch.Func(func(ctx context.Context, path string) (*fetch.Response, error) {
		if path == "p/demo.json" {
			return &fetch.Response{StatusCode: http.StatusOK, Body: []byte(`{"files": {"first.js": {}, "second.js": {}, "third.html": {}}}`)}, nil
		}

		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(delays[path])

		mu.Lock()
		inFlight--
		mu.Unlock()
		return &fetch.Response{StatusCode: http.StatusOK, Body: []byte(path)}, nil
	})

	files := NewLoader(fetcher, nil).Load(context.Background(), "p")

	require.Len(t, files, 3)
	assert.Equal(t, "p/first.js", files[0].Content)
	assert.Equal(t, "p/second.js", files[1].Content)
	assert.Equal(t, "p/third.html", files[2].Content)
	assert.Greater(t, maxInFlight, 1, "files should be fetched concurrently")
}

func TestLoadProjectKeepsManifestMetadata(t *testing.T) {
	loader := newMapLoader(fstest.MapFS{
		"p/demo.json":  {Data: []byte(`{"title": "Disabled button", "description": "Toggle **disabled**.", "files": {"index.html": {}}}`)},
		"p/index.html": {Data: []byte("<vaadin-button>")},
	})

	project := loader.LoadProject(context.Background(), "p")
	require.NoError(t, project.Err)
	assert.Equal(t, "p/", project.Dir)
	assert.Equal(t, "Disabled button", project.Title)
	assert.Equal(t, "Toggle **disabled**.", project.Description)
}

func TestAssembleRejectsMissingSlots(t *testing.T) {
	m := &Manifest{
		Dir: "p/",
		Entries: []Entry{
			{Name: "a", Extension: types.ExtensionJS},
			{Name: "b", Extension: types.ExtensionHTML, IsTemplate: true},
		},
	}
	text := "console.log(1)"

	_, err := assemble(m, []*string{&text, nil})
	require.Error(t, err)
	assert.True(t, errors.Is(err, &terrors.SnippetError{Type: terrors.ErrorTypeFetch, Code: terrors.ErrCodeCountMismatch}))
	assert.Contains(t, err.Error(), "fetched 1 of 2 files")

	_, err = assemble(m, []*string{&text})
	assert.Error(t, err)

	html := "<p>"
	files, err := assemble(m, []*string{&text, &html})
	require.NoError(t, err)
	assert.Equal(t, []types.FileDescriptor{
		{Name: "a", Extension: types.ExtensionJS, Content: "console.log(1)"},
		{Name: "b", Extension: types.ExtensionHTML, Content: "<p>", IsTemplate: true},
	}, files)
}

func TestLoadFailureLogLevels(t *testing.T) {
	testCases := []struct {
		name  string
		files fstest.MapFS
		level string
	}{
		{"missing manifest is a warning", fstest.MapFS{}, "WARN"},
		{"missing file is an error", fstest.MapFS{"p/demo.json": {Data: []byte(`{"files": {"gone.js": {}}}`)}}, "ERROR"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Format: "json", Output: &buf})

			project := NewLoader(&fetch.FSFetcher{FS: tc.files}, logger).LoadProject(context.Background(), "p")
			require.Error(t, project.Err)

			var record map[string]interface{}
			require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
			assert.Equal(t, tc.level, record["level"])
			assert.Equal(t, "Project load failed, showing empty index", record["msg"])
			assert.Equal(t, "p/", record["project"])
			assert.NotEmpty(t, record["code"])
		})
	}
}
