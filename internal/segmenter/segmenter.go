package segmenter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/PR202111/GIT-PROJECT-reviewer/pkg/types"
)

// ErrSyntax is returned by FunctionRanges when the source does not parse cleanly.
var ErrSyntax = errors.New("source contains syntax errors")

// LineRange is an inclusive, zero-based range of physical lines.
type LineRange struct {
	Start int
	End   int
}

// Len returns the number of lines in the range
func (r LineRange) Len() int {
	return r.End - r.Start + 1
}

// Function is a top-level function definition and the lines it spans.
type Function struct {
	Name  string
	Lines LineRange
}

// Segmenter splits Python documents along top-level function boundaries.
// It is safe for concurrent use; every call creates its own parser.
type Segmenter struct {
	lang *sitter.Language
}

// New creates a new Segmenter for Python source
func New() *Segmenter {
	return &Segmenter{
		lang: python.GetLanguage(),
	}
}

// Segment partitions a code document into a "top_level_code" fragment followed
// by one fragment per top-level function. The boolean result is false when the
// document could not be parsed, in which case the document is returned as a
// single opaque fragment.
func (s *Segmenter) Segment(ctx context.Context, doc types.RawDocument) ([]types.Fragment, bool) {
	lines := splitLines(doc.Content)

	functions, err := s.FunctionRanges(ctx, []byte(doc.Content))
	if err != nil {
		slog.Debug("segmenter: falling back to opaque document", "path", doc.SourcePath, "error", err)
		return []types.Fragment{doc.Fragment()}, false
	}

	covered := make([]bool, len(lines))
	fragments := make([]types.Fragment, 0, len(functions)+1)

	for _, fn := range functions {
		start, end := fn.Lines.Start, min(fn.Lines.End, len(lines)-1)
		if start > end || covered[start] {
			continue
		}
		for i := start; i <= end; i++ {
			covered[i] = true
		}

		frag := doc.Fragment()
		frag.Content = strings.Join(lines[start:end+1], "\n")
		frag.FunctionName = types.StringPtr(fn.Name)
		fragments = append(fragments, frag)
	}

	residual := make([]string, 0, len(lines))
	for i, line := range lines {
		if !covered[i] {
			residual = append(residual, line)
		}
	}

	content := strings.Join(residual, "\n")
	if strings.TrimSpace(content) == "" {
		return fragments, true
	}

	top := doc.Fragment()
	top.Content = content
	top.FunctionName = types.StringPtr(types.TopLevelCode)

	return append([]types.Fragment{top}, fragments...), true
}

// FunctionRanges parses src and returns the top-level function definitions in
// source order. Nested definitions are part of their enclosing function and
// are not reported. Decorators are included in the range.
func (s *Segmenter) FunctionRanges(ctx context.Context, src []byte) ([]Function, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(s.lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, ErrSyntax
	}
	if n := findLegacyStatement(root); n != nil {
		return nil, fmt.Errorf("%w: %s on line %d", ErrSyntax, n.Type(), n.StartPoint().Row+1)
	}

	functions := make([]Function, 0)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)

		def := node
		if node.Type() == "decorated_definition" {
			def = node.ChildByFieldName("definition")
		}
		if def == nil || def.Type() != "function_definition" {
			continue
		}

		name := def.ChildByFieldName("name")
		if name == nil {
			continue
		}

		functions = append(functions, Function{
			Name:  name.Content(src),
			Lines: LineRange{Start: int(node.StartPoint().Row), End: codeEndRow(node)},
		})
	}

	return functions, nil
}

// legacyStatements are Python 2 statements the grammar still accepts.
var legacyStatements = map[string]bool{
	"print_statement": true,
	"exec_statement":  true,
}

func findLegacyStatement(node *sitter.Node) *sitter.Node {
	if legacyStatements[node.Type()] {
		return node
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if found := findLegacyStatement(node.NamedChild(i)); found != nil {
			return found
		}
	}
	return nil
}

// codeEndRow returns the row of the last token of node that is not a comment.
// Comments trailing an indented block are attached to the block by the
// grammar but do not belong to it.
func codeEndRow(node *sitter.Node) int {
	for {
		var last *sitter.Node
		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if c := node.Child(i); c.Type() != "comment" {
				last = c
				break
			}
		}
		if last == nil {
			end := node.EndPoint()
			if end.Column == 0 && end.Row > node.StartPoint().Row {
				return int(end.Row) - 1
			}
			return int(end.Row)
		}
		node = last
	}
}

// splitLines splits content into physical lines. A trailing newline does not
// start another line.
func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
