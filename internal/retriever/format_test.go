package retriever

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PR202111/GIT-PROJECT-reviewer/pkg/types"
)

func TestFormat_Empty(t *testing.T) {
	assert.Equal(t, "No results found.", Format(nil))
}

func TestFormat_Blocks(t *testing.T) {
	results := []types.Result{
		{Rank: 1, SourcePath: "/repo/a.py", FileType: "python", FunctionName: "f", Content: "def f(): pass"},
		{Rank: 2, SourcePath: "/repo/README.md", FileType: "README", FunctionName: "N/A", Content: "hello"},
	}

	want := "--- Result 1 ---\n" +
		"File: /repo/a.py\n" +
		"Type: python\n" +
		"Function: f\n" +
		"Content snippet: def f(): pass\n" +
		strings.Repeat("-", 40) + "\n" +
		"--- Result 2 ---\n" +
		"File: /repo/README.md\n" +
		"Type: README\n" +
		"Function: N/A\n" +
		"Content snippet: hello\n" +
		strings.Repeat("-", 40) + "\n"

	assert.Equal(t, want, Format(results))
}

func TestFormat_TruncatesSnippet(t *testing.T) {
	long := strings.Repeat("é", 500)
	out := Format([]types.Result{{Rank: 1, SourcePath: "p", FileType: "text", FunctionName: "N/A", Content: long}})

	assert.Contains(t, out, "Content snippet: "+strings.Repeat("é", 300)+"\n")
	assert.NotContains(t, out, strings.Repeat("é", 301))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "abc", Snippet("abc", 10))
	assert.Equal(t, "ab", Snippet("abc", 2))
	assert.Equal(t, "", Snippet("abc", 0))
	assert.Equal(t, "日本", Snippet("日本語", 2))
}
