package types

import (
	"path/filepath"
	"strings"
)

// DocumentType is the declared type of a loaded file, derived from its extension.
type DocumentType string

const (
	DocText     DocumentType = "text"
	DocPython   DocumentType = "python"
	DocNotebook DocumentType = "python_notebook"
	DocReadme   DocumentType = "README"
)

// extensionTypes maps the recognized file extensions to their declared type.
var extensionTypes = map[string]DocumentType{
	".txt":   DocText,
	".py":    DocPython,
	".ipynb": DocNotebook,
	".md":    DocReadme,
}

// TypeForPath returns the declared type for a file path and whether the
// extension is recognized at all.
func TypeForPath(path string) (DocumentType, bool) {
	t, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]
	return t, ok
}

// IsCode reports whether documents of this type go through segmentation.
func (t DocumentType) IsCode() bool {
	return t == DocPython
}

// Validate checks that the type is one of the known document types
func (t DocumentType) Validate() error {
	switch t {
	case DocText, DocPython, DocNotebook, DocReadme:
		return nil
	default:
		return ErrInvalidDocumentType
	}
}

// RawDocument is a whole file as produced by the loader. It is never modified
// after loading.
type RawDocument struct {
	Content    string
	SourcePath string
	Type       DocumentType
}

// FileName returns the base name of the document's source path.
func (d RawDocument) FileName() string {
	return filepath.Base(d.SourcePath)
}

// Validate checks if the document is usable by the pipeline
func (d RawDocument) Validate() error {
	if d.SourcePath == "" {
		return ErrMissingSource
	}
	return d.Type.Validate()
}

// Fragment returns the document as a single untouched fragment.
func (d RawDocument) Fragment() Fragment {
	return Fragment{
		Content:    d.Content,
		SourcePath: d.SourcePath,
		FileName:   d.FileName(),
		FileType:   d.Type,
	}
}
