package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFragment_Validate(t *testing.T) {
	base := Fragment{
		Content:    "def f():\n    return 1",
		SourcePath: "/repo/a.py",
		FileName:   "a.py",
		FileType:   DocPython,
	}

	tests := []struct {
		name    string
		mutate  func(*Fragment)
		wantErr error
	}{
		{name: "valid", mutate: func(*Fragment) {}},
		{name: "with function and chunk", mutate: func(f *Fragment) {
			f.FunctionName = StringPtr("f")
			f.ChunkIndex = IntPtr(0)
		}},
		{name: "missing source path", mutate: func(f *Fragment) { f.SourcePath = "" }, wantErr: ErrMissingSource},
		{name: "missing file name", mutate: func(f *Fragment) { f.FileName = "" }, wantErr: ErrMissingSource},
		{name: "unknown file type", mutate: func(f *Fragment) { f.FileType = "go" }, wantErr: ErrInvalidDocumentType},
		{name: "negative chunk index", mutate: func(f *Fragment) { f.ChunkIndex = IntPtr(-1) }, wantErr: ErrInvalidChunkIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag := base
			tt.mutate(&frag)
			err := frag.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFragment_Header(t *testing.T) {
	frag := Fragment{FileName: "a.py", FunctionName: StringPtr("f")}
	assert.Equal(t, "[File: a.py] [Function: f]", frag.Header())

	frag.FunctionName = nil
	assert.Equal(t, "[File: a.py] [Function: None]", frag.Header())

	frag.Content = "body"
	assert.Equal(t, "[File: a.py] [Function: None]\nbody", frag.IndexedContent())
}

func TestFragment_WithChunk(t *testing.T) {
	frag := Fragment{Content: "whole", SourcePath: "/repo/a.txt", FileName: "a.txt", FileType: DocText}
	chunk := frag.WithChunk("part", 2)

	assert.Equal(t, "part", chunk.Content)
	if assert.NotNil(t, chunk.ChunkIndex) {
		assert.Equal(t, 2, *chunk.ChunkIndex)
	}
	assert.Equal(t, "whole", frag.Content)
	assert.Nil(t, frag.ChunkIndex)
}

func TestFragment_ContentHashTracksHeader(t *testing.T) {
	a := Fragment{Content: "x = 1", FileName: "a.py"}
	b := Fragment{Content: "x = 1", FileName: "b.py"}
	assert.NotEqual(t, a.ContentHash(), b.ContentHash())
	assert.Equal(t, a.ContentHash(), a.ContentHash())
}
