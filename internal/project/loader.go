package project

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/fetch"
	"github.com/web-padawan/demosnippet/internal/logging"
	"github.com/web-padawan/demosnippet/internal/types"
)

// Project is the outcome of a load. Files is never empty: when Err is set it
// holds exactly types.EmptyIndex.
type Project struct {
	Dir         string
	Title       string
	Description string
	Files       []types.FileDescriptor
	Err         error
}

// Loader fetches demo projects through a Fetcher.
type Loader struct {
	fetcher fetch.Fetcher
	logger  logging.Logger
	errors  *terrors.ErrorHandler
}

// NewLoader creates a project loader.
func NewLoader(fetcher fetch.Fetcher, logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("project")
	return &Loader{
		fetcher: fetcher,
		logger:  logger,
		errors:  terrors.NewErrorHandler(logger),
	}
}

// Load returns the files of the project at projectPath in validated manifest
// order, or a single types.EmptyIndex on any failure.
func (l *Loader) Load(ctx context.Context, projectPath string) []types.FileDescriptor {
	return l.LoadProject(ctx, projectPath).Files
}

// LoadProject is Load with the manifest metadata and the failure cause kept.
func (l *Loader) LoadProject(ctx context.Context, projectPath string) *Project {
	dir := EnsureTrailingSlash(projectPath)

	m, err := l.LoadManifest(ctx, projectPath)
	if err != nil {
		return l.fail(ctx, dir, err)
	}

	files, err := l.fetchFiles(ctx, m)
	if err != nil {
		return l.fail(ctx, dir, err)
	}
	if len(files) == 0 {
		return l.fail(ctx, dir, terrors.NewManifestError(
			terrors.ErrCodeManifestEmpty,
			"no valid files in manifest at "+m.Path,
			nil,
		).WithPath(m.Path))
	}

	l.logger.Debug(ctx, "Project loaded", "project", dir, "files", len(files), "skipped", len(m.Skipped))

	return &Project{
		Dir:         dir,
		Title:       m.Title,
		Description: m.Description,
		Files:       files,
	}
}

func (l *Loader) fail(ctx context.Context, dir string, err error) *Project {
	// Manifest problems are warnings; failed file fetches are errors.
	l.errors.Handle(ctx, err, "Project load failed, showing empty index", "project", dir)
	return &Project{
		Dir:   dir,
		Files: []types.FileDescriptor{types.EmptyIndex},
		Err:   err,
	}
}

// fetchFiles fetches every entry in parallel. Each result lands in the slot
// of its entry, so the output order is the entry order regardless of which
// fetch finishes first.
func (l *Loader) fetchFiles(ctx context.Context, m *Manifest) ([]types.FileDescriptor, error) {
	contents := make([]*string, len(m.Entries))

	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range m.Entries {
		filePath := m.Dir + entry.Filename()
		g.Go(func() error {
			text, err := l.fetchFile(gctx, filePath)
			if err != nil {
				return err
			}
			contents[i] = &text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return assemble(m, contents)
}

// assemble builds the descriptors from the fetched contents, one slot per
// entry. A nil slot means a fetch returned neither text nor an error, and
// fails the whole load like a failed fetch.
func assemble(m *Manifest, contents []*string) ([]types.FileDescriptor, error) {
	fetched := 0
	for _, c := range contents {
		if c != nil {
			fetched++
		}
	}
	if len(contents) != len(m.Entries) || fetched != len(m.Entries) {
		return nil, terrors.NewFetchError(
			terrors.ErrCodeCountMismatch,
			"There was an error fetching the project files",
			fmt.Errorf("fetched %d of %d files", fetched, len(m.Entries)),
		).WithPath(m.Dir)
	}

	files := make([]types.FileDescriptor, len(m.Entries))
	for i, entry := range m.Entries {
		files[i] = types.FileDescriptor{
			Name:       entry.Name,
			Extension:  entry.Extension,
			Content:    *contents[i],
			IsTemplate: entry.IsTemplate,
		}
	}
	return files, nil
}

func (l *Loader) fetchFile(ctx context.Context, filePath string) (string, error) {
	resp, err := l.fetcher.Fetch(ctx, filePath)
	if err != nil {
		return "", terrors.NewFetchError(terrors.ErrCodeFileFetch, "could not fetch file "+filePath, err).WithPath(filePath)
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", terrors.NewFetchError(terrors.ErrCodeFileNotFound, "Could not find file "+filePath, nil).WithPath(filePath)
	}
	return resp.Text(), nil
}
