package retriever

import (
	"strconv"
	"strings"

	"github.com/PR202111/GIT-PROJECT-reviewer/pkg/types"
)

const (
	// SnippetLength is the number of characters of content shown per result
	SnippetLength = 300

	// NoResults is rendered for an empty result set
	NoResults = "No results found."
)

var resultSeparator = strings.Repeat("-", 40)

// Format renders results as numbered, human readable blocks
func Format(results []types.Result) string {
	if len(results) == 0 {
		return NoResults
	}

	var b strings.Builder
	for i, r := range results {
		b.WriteString("--- Result ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(" ---\n")
		b.WriteString("File: " + r.SourcePath + "\n")
		b.WriteString("Type: " + r.FileType + "\n")
		b.WriteString("Function: " + r.FunctionName + "\n")
		b.WriteString("Content snippet: " + Snippet(r.Content, SnippetLength) + "\n")
		b.WriteString(resultSeparator + "\n")
	}
	return b.String()
}

// Snippet returns the first n characters of s
func Snippet(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
