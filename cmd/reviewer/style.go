package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// styles renders terminal output. Every style is a no-op when the writer is
// not a terminal so that piped output stays plain.
type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	muted lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	err   lipgloss.Style
	tool  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	if !isTerminal(w) {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain}
	}
	return styles{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		label: lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		err:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F38BA8")),
		tool:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#6C7086")),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// field renders an aligned "label: value" line.
func (s styles) field(label string, value any) string {
	return s.label.Render(lipgloss.NewStyle().Width(14).Render(label+":")) + " " + fmt.Sprint(value)
}
