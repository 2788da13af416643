package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"heading", "## Install", "Install"},
		{"link", "See [the docs](https://example.com).", "See the docs."},
		{"image", "![logo](logo.png) Project", "logo Project"},
		{"emphasis", "a **strong** and *soft* word", "a strong and soft word"},
		{"snake case survives", "call load_repo_path here", "call load_repo_path here"},
		{"bullets", "- one\n- two\n* three", "one\ntwo\nthree"},
		{"numbered", "1. first\n2. second", "first\nsecond"},
		{"inline code", "run `pip install x`", "run pip install x"},
		{"fence keeps code", "```python\nprint(1)\n```", "print(1)"},
		{"blockquote", "> quoted", "quoted"},
		{"rule", "above\n\n---\n\nbelow", "above\n\nbelow"},
		{"html", "<p align=\"center\">hi</p>", "hi"},
		{"collapse newlines", "a\n\n\n\n\nb", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkdown(tt.in))
		})
	}
}
