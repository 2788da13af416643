// Package types provides the shared data model of the reviewer index.
//
// A RawDocument is a whole file handed over by the loader, tagged with a
// DocumentType derived from its extension. Documents are turned into
// Fragments: Python files are segmented into one fragment per top-level
// function plus a "top_level_code" residual, every other document becomes a
// single fragment. Oversized fragments are then chunked, which sets ChunkIndex.
//
//	doc := types.RawDocument{Content: src, SourcePath: "pkg/util.py", Type: types.DocPython}
//	frag := doc.Fragment()
//	frag.Header() // "[File: util.py] [Function: None]"
//
// Result is the retrieval-side view of a stored fragment.
package types
