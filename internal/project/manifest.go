// Package project resolves a demo project directory into the list of files
// the viewer displays. The manifest (demo.json) names the files; entries with
// a malformed name or an unsupported extension are logged and skipped, and any
// failure past that point collapses the whole load to types.EmptyIndex.
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/types"
)

// ManifestName is the manifest file looked up in every project directory.
const ManifestName = "demo.json"

// Entry is a manifest file that passed validation and will be fetched.
type Entry struct {
	Name       string          `json:"name" yaml:"name"`
	Extension  types.Extension `json:"extension" yaml:"extension"`
	IsTemplate bool            `json:"isTemplate,omitempty" yaml:"is_template,omitempty"`
}

// Filename returns "<name>.<extension>".
func (e Entry) Filename() string {
	return e.Name + "." + string(e.Extension)
}

// Manifest is a fetched demo.json together with its validated entries.
type Manifest struct {
	// Dir is the project path with exactly one trailing slash.
	Dir         string   `json:"dir" yaml:"dir"`
	Path        string   `json:"path" yaml:"path"`
	Title       string   `json:"title,omitempty" yaml:"title,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Entries     []Entry  `json:"entries" yaml:"entries"`
	Skipped     []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// EnsureTrailingSlash normalizes p to end with exactly one "/".
func EnsureTrailingSlash(p string) string {
	return strings.TrimRight(p, "/") + "/"
}

// SplitFilename splits a manifest key on its first "." into name and raw extension.
func SplitFilename(filename string) (name, ext string) {
	name, ext, _ = strings.Cut(filename, ".")
	return name, ext
}

// ValidateEntry turns a raw manifest key into an Entry, or an entry error
// describing why it is skipped.
func ValidateEntry(file types.ManifestFile, manifestPath string) (Entry, error) {
	name, rawExt := SplitFilename(file.Filename)
	if name == "" || rawExt == "" {
		return Entry{}, terrors.NewEntryError(
			terrors.ErrCodeMalformedName,
			fmt.Sprintf("could not parse file name or file extension from %s in %s", file.Filename, manifestPath),
		).WithPath(file.Filename)
	}

	ext, err := types.ParseExtension(rawExt)
	if err != nil {
		return Entry{}, terrors.NewEntryError(
			terrors.ErrCodeUnsupportedExt,
			fmt.Sprintf("unsupported file extension %s in file %s in %s", rawExt, file.Filename, manifestPath),
		).WithPath(file.Filename)
	}

	return Entry{Name: name, Extension: ext, IsTemplate: file.Options.IsTemplate}, nil
}

// LoadManifest fetches and validates the manifest of the project at projectPath.
// Invalid entries are logged and recorded in Skipped; a manifest without any
// files is an error.
func (l *Loader) LoadManifest(ctx context.Context, projectPath string) (*Manifest, error) {
	dir := EnsureTrailingSlash(projectPath)
	manifestPath := dir + ManifestName

	resp, err := l.fetcher.Fetch(ctx, manifestPath)
	if err != nil {
		return nil, terrors.NewManifestError(terrors.ErrCodeManifestFetch, "could not fetch manifest", err).WithPath(manifestPath)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, terrors.NewManifestError(terrors.ErrCodeManifestFetch, "manifest not found", nil).WithPath(manifestPath)
	}

	var doc types.ProjectManifest
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, terrors.NewManifestError(terrors.ErrCodeManifestParse, "could not parse manifest", err).WithPath(manifestPath)
	}

	if len(doc.Files) == 0 {
		return nil, terrors.NewManifestError(
			terrors.ErrCodeManifestEmpty,
			"No files defined manifest at "+manifestPath,
			nil,
		).WithPath(manifestPath)
	}

	m := &Manifest{
		Dir:         dir,
		Path:        manifestPath,
		Title:       doc.Title,
		Description: doc.Description,
	}

	for _, file := range doc.Files {
		entry, err := ValidateEntry(file, manifestPath)
		if err != nil {
			l.errors.Handle(ctx, err, "Skipping manifest entry", "manifest", manifestPath, "entry", file.Filename)
			m.Skipped = append(m.Skipped, file.Filename)
			continue
		}
		m.Entries = append(m.Entries, entry)
	}

	return m, nil
}
