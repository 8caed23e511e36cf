package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FileOptions are the per-file options of a manifest entry.
type FileOptions struct {
	IsTemplate bool `json:"isTemplate,omitempty" yaml:"is_template,omitempty"`
}

// ManifestFile is one "files" entry of demo.json, keyed by the raw filename.
type ManifestFile struct {
	Filename string      `json:"filename" yaml:"filename"`
	Options  FileOptions `json:"options" yaml:"options"`
}

// ProjectManifest is the decoded demo.json of a project. Files keeps the
// document order of the "files" object.
type ProjectManifest struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Files       []ManifestFile `json:"-"`
}

type manifestDoc struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Files       json.RawMessage `json:"files"`
}

// UnmarshalJSON decodes demo.json, reading the "files" object key by key so
// entry order matches the document.
func (m *ProjectManifest) UnmarshalJSON(data []byte) error {
	var doc manifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	files, err := decodeFiles(doc.Files)
	if err != nil {
		return err
	}

	m.Title = doc.Title
	m.Description = doc.Description
	m.Files = files
	return nil
}

func decodeFiles(raw json.RawMessage) ([]ManifestFile, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("files must be an object, got %s", raw[:1])
	}

	// A repeated key keeps the position of its first occurrence and the
	// options of its last, so each filename appears once.
	var files []ManifestFile
	seen := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in files", keyTok)
		}

		var opts FileOptions
		var rawOpts json.RawMessage
		if err := dec.Decode(&rawOpts); err != nil {
			return nil, fmt.Errorf("file %q: %w", key, err)
		}
		if trimmed := bytes.TrimSpace(rawOpts); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			if err := json.Unmarshal(trimmed, &opts); err != nil {
				return nil, fmt.Errorf("file %q: %w", key, err)
			}
		}

		if i, ok := seen[key]; ok {
			files[i].Options = opts
			continue
		}
		seen[key] = len(files)
		files = append(files, ManifestFile{Filename: key, Options: opts})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return files, nil
}
