// Package types provides the data model shared by the loader, highlighter,
// selector and viewer packages.
package types

import "fmt"

// Extension is one of the fixed set of file extensions a demo project may contain.
type Extension string

const (
	ExtensionJS   Extension = "js"
	ExtensionHTML Extension = "html"
)

// Extensions lists every acceptable extension in display order.
var Extensions = []Extension{ExtensionHTML, ExtensionJS}

// ParseExtension validates a raw extension string against the fixed set.
func ParseExtension(raw string) (Extension, error) {
	switch Extension(raw) {
	case ExtensionJS, ExtensionHTML:
		return Extension(raw), nil
	default:
		return "", fmt.Errorf("unsupported file extension %q", raw)
	}
}

// String implements fmt.Stringer.
func (e Extension) String() string {
	return string(e)
}

// Grammar selects the highlighting rules applied to a file.
type Grammar int

const (
	GrammarMarkup Grammar = iota
	GrammarScript
)

// String implements fmt.Stringer.
func (g Grammar) String() string {
	switch g {
	case GrammarScript:
		return "script"
	case GrammarMarkup:
		return "markup"
	default:
		return fmt.Sprintf("Grammar(%d)", int(g))
	}
}

// Grammar returns the grammar for the extension. Every extension in
// Extensions has one; any other value is an error.
func (e Extension) Grammar() (Grammar, error) {
	switch e {
	case ExtensionJS:
		return GrammarScript, nil
	case ExtensionHTML:
		return GrammarMarkup, nil
	default:
		return 0, fmt.Errorf("no grammar for file extension %q", string(e))
	}
}

// FileDescriptor is one fetched project file. Identity is the (Name, Extension)
// pair within a project. Values are never mutated after construction.
type FileDescriptor struct {
	Name       string    `json:"name" yaml:"name"`
	Extension  Extension `json:"extension" yaml:"extension"`
	Content    string    `json:"content" yaml:"content"`
	IsTemplate bool      `json:"isTemplate,omitempty" yaml:"is_template,omitempty"`
}

// Filename returns "<name>.<extension>".
func (f FileDescriptor) Filename() string {
	return f.Name + "." + string(f.Extension)
}

// EmptyIndex is the sentinel returned whenever a project cannot be loaded.
// It guarantees the viewer always has one displayable record.
var EmptyIndex = FileDescriptor{
	Name:      "index",
	Extension: ExtensionHTML,
	Content:   "",
}

// IsEmptyIndex reports whether records is exactly the sentinel list.
func IsEmptyIndex(records []FileDescriptor) bool {
	return len(records) == 1 && records[0] == EmptyIndex
}
