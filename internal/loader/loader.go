package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PR202111/GIT-PROJECT-reviewer/pkg/types"
)

var (
	// ErrNotDirectory is returned when the repository root is not a directory
	ErrNotDirectory = errors.New("repository path is not a directory")
	// ErrInvalidNotebook is returned for .ipynb files that are not valid notebook JSON
	ErrInvalidNotebook = errors.New("invalid notebook")
)

// DefaultSkipDirs are directory names never descended into
var DefaultSkipDirs = []string{".git", "node_modules", "__pycache__", "venv", ".venv"}

// Loader walks a repository and produces one RawDocument per recognized file
type Loader struct {
	skipDirs map[string]bool
}

// Option configures a Loader
type Option func(*Loader)

// WithSkipDirs adds directory names to skip in addition to the defaults
func WithSkipDirs(names ...string) Option {
	return func(l *Loader) {
		for _, n := range names {
			l.skipDirs[n] = true
		}
	}
}

// New creates a Loader
func New(opts ...Option) *Loader {
	l := &Loader{skipDirs: make(map[string]bool, len(DefaultSkipDirs))}
	for _, n := range DefaultSkipDirs {
		l.skipDirs[n] = true
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load walks repoPath and returns the recognized documents sorted by path.
// Files with unknown extensions are ignored. A file that cannot be read or
// decoded fails the whole load.
func (l *Loader) Load(ctx context.Context, repoPath string) ([]types.RawDocument, error) {
	info, err := os.Stat(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat repository: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", repoPath, ErrNotDirectory)
	}

	var paths []string
	err = filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if path != repoPath && l.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if _, ok := types.TypeForPath(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk repository: %w", err)
	}
	sort.Strings(paths)

	docs := make([]types.RawDocument, 0, len(paths))
	for _, path := range paths {
		doc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	slog.Debug("repository loaded", "path", repoPath, "documents", len(docs))
	return docs, nil
}

// SkipDir reports whether a directory with this name is excluded from walks.
// Hidden directories are always skipped.
func (l *Loader) SkipDir(name string) bool {
	return l.skipDirs[name] || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}

// LoadFile reads a single file and renders it according to its extension
func LoadFile(path string) (types.RawDocument, error) {
	docType, ok := types.TypeForPath(path)
	if !ok {
		return types.RawDocument{}, fmt.Errorf("%s: %w", path, types.ErrInvalidDocumentType)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return types.RawDocument{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	content := string(data)
	switch docType {
	case types.DocNotebook:
		content, err = renderNotebook(data)
		if err != nil {
			return types.RawDocument{}, fmt.Errorf("%s: %w", path, err)
		}
	case types.DocReadme:
		content = StripMarkdown(content)
	}

	doc := types.RawDocument{Content: content, SourcePath: path, Type: docType}
	if err := doc.Validate(); err != nil {
		return types.RawDocument{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// notebook is the subset of the nbformat schema the loader needs
type notebook struct {
	Cells []notebookCell `json:"cells"`
}

type notebookCell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
}

// renderNotebook flattens notebook cells into text blocks separated by blank
// lines. Outputs are dropped.
func renderNotebook(data []byte) (string, error) {
	var nb notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNotebook, err)
	}

	blocks := make([]string, 0, len(nb.Cells))
	for i, cell := range nb.Cells {
		source, err := cellSource(cell.Source)
		if err != nil {
			return "", fmt.Errorf("%w: cell %d: %v", ErrInvalidNotebook, i, err)
		}
		blocks = append(blocks, fmt.Sprintf("'%s' cell: '%s'", cell.CellType, source))
	}
	return strings.Join(blocks, "\n\n"), nil
}

// cellSource accepts both encodings nbformat allows: a string or a list of lines
func cellSource(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var lines []string
	if err := json.Unmarshal(raw, &lines); err != nil {
		return "", err
	}
	return strings.Join(lines, ""), nil
}
