package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sghaida/odigraph/di"
)

const (
	colorPrimary   = lipgloss.Color("#7C3AED")
	colorMuted     = lipgloss.Color("#6B7280")
	colorSuccess   = lipgloss.Color("#10B981")
	colorError     = lipgloss.Color("#EF4444")
	colorWarning   = lipgloss.Color("#F59E0B")
	colorHighlight = lipgloss.Color("#3B82F6")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	kindStyle    = lipgloss.NewStyle().Foreground(colorWarning)
	requestStyle = lipgloss.NewStyle().Foreground(colorHighlight)
)

// renderOK reports a successful build.
func renderOK(w io.Writer, source string, res *di.Result) {
	fmt.Fprintf(w, "%s %s: %d requests resolved %s\n",
		successStyle.Render("✓"), source, len(res.Graphs),
		mutedStyle.Render("(session "+res.ID.String()+")"))
}

// renderDiagnostics lists every diagnostic under a failure header.
func renderDiagnostics(w io.Writer, source string, ds []di.Diagnostic) {
	noun := "problems"
	if len(ds) == 1 {
		noun = "problem"
	}
	fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("✗ %s: %d %s", source, len(ds), noun)))
	for _, d := range ds {
		fmt.Fprintf(w, "  %s %s\n", kindStyle.Render(d.Kind.String()), strings.TrimPrefix(d.Error(), "di: "))
	}
}

// renderError reports an input error that stopped the build early.
func renderError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("✗ "+err.Error()))
}

// renderGraph prints one dumped graph under a styled title.
func renderGraph(w io.Writer, g *di.Graph) {
	dump := di.DumpGraph(g)
	header, body, _ := strings.Cut(dump, "\n")
	fmt.Fprintln(w, requestStyle.Render(header))
	fmt.Fprint(w, body)
}
