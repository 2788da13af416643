// Package segmenter partitions Python source files into function-scoped fragments.
//
// The document is parsed with tree-sitter. Every top-level function definition
// (plain, async or decorated) becomes its own fragment holding the verbatim
// lines of the definition. All remaining lines form a single "top_level_code"
// fragment which is ordered first and dropped when it holds only whitespace.
//
//	seg := segmenter.New()
//	fragments, parsed := seg.Segment(ctx, doc)
//
// Files that do not parse are not an error: Segment returns the document as a
// single fragment with no function name and reports parsed == false.
package segmenter
