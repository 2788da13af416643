package loader

import (
	"regexp"
	"strings"
)

var (
	mdCodeFence   = regexp.MustCompile("(?s)```[^\n]*\n(.*?)```")
	mdInlineCode  = regexp.MustCompile("`([^`]+)`")
	mdImage       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	mdLink        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeading     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBold        = regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`)
	mdItalic      = regexp.MustCompile(`(^|[^\w*])[*_]([^*_\n]+)[*_]`)
	mdBlockquote  = regexp.MustCompile(`(?m)^>\s?`)
	mdRule        = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
	mdBullet      = regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`)
	mdNumbered    = regexp.MustCompile(`(?m)^(\s*)\d+\.\s+`)
	mdHTMLTag     = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	mdManyNewline = regexp.MustCompile(`\n{3,}`)
)

// StripMarkdown reduces markdown to plain text. Code inside fences and inline
// code spans is kept since READMEs often document usage with it.
func StripMarkdown(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	content = mdCodeFence.ReplaceAllString(content, "$1")
	content = mdInlineCode.ReplaceAllString(content, "$1")
	content = mdImage.ReplaceAllString(content, "$1")
	content = mdLink.ReplaceAllString(content, "$1")
	content = mdHTMLTag.ReplaceAllString(content, "")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdRule.ReplaceAllString(content, "")
	content = mdBlockquote.ReplaceAllString(content, "")
	content = mdBullet.ReplaceAllString(content, "$1")
	content = mdNumbered.ReplaceAllString(content, "$1")
	content = mdBold.ReplaceAllString(content, "$2")
	content = mdItalic.ReplaceAllString(content, "$1$2")
	content = mdManyNewline.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}
