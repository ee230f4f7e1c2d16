// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

const (
	// DefaultTerminalWidth is the fallback width when detection fails.
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the narrowest width used for wrapping.
	MinTerminalWidth = 40
)

// isTerminal reports whether v is a terminal file.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or DefaultTerminalWidth when w is
// not a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return max(width, MinTerminalWidth)
}

// colorProfile returns the colour profile for w. Non-terminals get none;
// NO_COLOR and CLICOLOR_FORCE are honoured.
func colorProfile(w io.Writer) termenv.Profile {
	if !isTerminal(w) && os.Getenv("CLICOLOR_FORCE") == "" {
		return termenv.Ascii
	}
	return termenv.NewOutput(w).EnvColorProfile()
}

// =============================================================================
// PRINTER
// =============================================================================

// printer renders styled output for headless commands.
type printer struct {
	out   io.Writer
	tty   bool
	width int
	dark  bool

	title     lipgloss.Style
	label     lipgloss.Style
	muted     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	source    lipgloss.Style
	success   lipgloss.Style
}

func newPrinter(out io.Writer) *printer {
	r := lipgloss.NewRenderer(out, termenv.WithProfile(colorProfile(out)))
	return &printer{
		out:       out,
		tty:       isTerminal(out),
		width:     terminalWidth(out),
		dark:      r.HasDarkBackground(),
		title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		label:     r.NewStyle().Foreground(lipgloss.Color("245")).Width(14),
		muted:     r.NewStyle().Foreground(lipgloss.Color("245")),
		user:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("51")),
		assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("141")),
		source:    r.NewStyle().Foreground(lipgloss.Color("245")).PaddingLeft(2),
		success:   r.NewStyle().Foreground(lipgloss.Color("42")),
	}
}
