// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Terminal capabilities
	Name         string
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// SIDEBAR STYLES
	// ==========================================================================

	Sidebar         lipgloss.Style
	SidebarTitle    lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style
	SidebarActive   lipgloss.Style
	SidebarEmpty    lipgloss.Style

	// ==========================================================================
	// CONVERSATION STYLES
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderMuted    lipgloss.Style
	Chip           lipgloss.Style
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	SourceLabel    lipgloss.Style
	Source         lipgloss.Style
	Streaming      lipgloss.Style
	EmptyTitle     lipgloss.Style
	EmptyHint      lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS STYLES
	// ==========================================================================

	InputBox        lipgloss.Style
	InputBoxFocused lipgloss.Style
	PromptLabel     lipgloss.Style
	StatusBar       lipgloss.Style
	StatusState     lipgloss.Style
	UploadIdle      lipgloss.Style
	UploadBusy      lipgloss.Style
	Error           lipgloss.Style
}

// NewTheme creates a theme. name is "dark", "light" or "auto"; auto keeps
// the terminal's detected background.
func NewTheme(name string) *Theme {
	name = strings.ToLower(name)
	switch name {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	default:
		name = "auto"
	}

	t := &Theme{
		Name:         name,
		IsDark:       lipgloss.HasDarkBackground(),
		ColorProfile: lipgloss.ColorProfile(),
	}

	t.Sidebar = lipgloss.NewStyle().
		Background(SurfaceDim).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.SidebarTitle = lipgloss.NewStyle().Foreground(Cyan).Bold(true).MarginBottom(1)
	t.SidebarItem = lipgloss.NewStyle().Foreground(TextSecondary)
	t.SidebarSelected = lipgloss.NewStyle().Foreground(TextPrimary).Background(SelectionBg).Bold(true)
	t.SidebarActive = lipgloss.NewStyle().Foreground(Purple)
	t.SidebarEmpty = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)

	t.Header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Foreground(TextPrimary).Bold(true)
	t.HeaderMuted = lipgloss.NewStyle().Foreground(TextMuted)
	t.Chip = lipgloss.NewStyle().
		Foreground(Cyan).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(0, 1)
	t.UserLabel = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.AssistantLabel = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.MessageBody = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(2)
	t.SourceLabel = lipgloss.NewStyle().Foreground(TextSecondary).Bold(true).PaddingLeft(2)
	t.Source = lipgloss.NewStyle().Foreground(TextMuted).PaddingLeft(4)
	t.Streaming = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(2)
	t.EmptyTitle = lipgloss.NewStyle().Foreground(TextPrimary).Bold(true)
	t.EmptyHint = lipgloss.NewStyle().Foreground(TextMuted)

	t.InputBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)
	t.InputBoxFocused = t.InputBox.BorderForeground(Cyan)
	t.PromptLabel = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.StatusBar = lipgloss.NewStyle().Foreground(TextSecondary).Background(SurfaceDim).Padding(0, 1)
	t.StatusState = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.UploadIdle = lipgloss.NewStyle().Foreground(Cyan)
	t.UploadBusy = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.Error = lipgloss.NewStyle().Foreground(Rose).Bold(true)

	return t
}

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}
