package types

import (
	"crypto/sha256"
	"fmt"
)

// TopLevelCode is the function name given to the residual fragment of a
// segmented code document.
const TopLevelCode = "top_level_code"

// Fragment is a unit of content with metadata, produced by segmentation and
// chunking and destined for embedding and retrieval.
type Fragment struct {
	Content    string
	SourcePath string
	FileName   string
	FileType   DocumentType

	// FunctionName is nil for non-code fragments and parse fallbacks.
	FunctionName *string

	// ChunkIndex is only set once the fragment went through the chunker.
	ChunkIndex *int
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }

// FunctionLabel renders the function name the way it appears in headers.
func (f *Fragment) FunctionLabel() string {
	if f.FunctionName == nil {
		return "None"
	}
	return *f.FunctionName
}

// Header returns the identity line prepended to the fragment before embedding.
func (f *Fragment) Header() string {
	return fmt.Sprintf("[File: %s] [Function: %s]", f.FileName, f.FunctionLabel())
}

// IndexedContent returns the header followed by the fragment content. This is
// the text that gets embedded and stored.
func (f *Fragment) IndexedContent() string {
	return f.Header() + "\n" + f.Content
}

// ContentHash computes the SHA-256 hash of the indexed content
func (f *Fragment) ContentHash() [32]byte {
	return sha256.Sum256([]byte(f.IndexedContent()))
}

// WithChunk returns a copy of the fragment carrying new content and a chunk index.
func (f Fragment) WithChunk(content string, index int) Fragment {
	f.Content = content
	f.ChunkIndex = IntPtr(index)
	return f
}

// Validate performs validation of the fragment metadata
func (f *Fragment) Validate() error {
	if f.SourcePath == "" || f.FileName == "" {
		return ErrMissingSource
	}
	if err := f.FileType.Validate(); err != nil {
		return err
	}
	if f.ChunkIndex != nil && *f.ChunkIndex < 0 {
		return ErrInvalidChunkIndex
	}
	return nil
}
