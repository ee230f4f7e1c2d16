// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// =============================================================================
// SIDEBAR
// =============================================================================

// Sidebar lists conversations by preview and tracks a cursor.
type Sidebar struct {
	items        []model.Conversation
	cursor       int
	active       string
	previewWidth int
	loading      bool
}

// NewSidebar creates an empty sidebar.
func NewSidebar(previewWidth int) Sidebar {
	if previewWidth <= 0 {
		previewWidth = model.DefaultPreviewWidth
	}
	return Sidebar{previewWidth: previewWidth, loading: true}
}

// SetItems replaces the listed conversations, keeping the cursor on the
// same id when it is still present.
func (s *Sidebar) SetItems(items []model.Conversation) {
	selected := s.SelectedID()
	s.items = items
	s.loading = false
	s.cursor = 0
	for i, c := range items {
		if c.ID == selected {
			s.cursor = i
			break
		}
	}
}

// Items returns the listed conversations.
func (s Sidebar) Items() []model.Conversation { return s.items }

// SetActive marks the open conversation and moves the cursor to it.
func (s *Sidebar) SetActive(id string) {
	s.active = id
	for i, c := range s.items {
		if c.ID == id {
			s.cursor = i
			return
		}
	}
}

// Active returns the open conversation id.
func (s Sidebar) Active() string { return s.active }

// SetPreviewWidth changes the preview width in cells.
func (s *Sidebar) SetPreviewWidth(w int) {
	if w > 0 {
		s.previewWidth = w
	}
}

// PreviewWidth returns the preview width in cells.
func (s Sidebar) PreviewWidth() int { return s.previewWidth }

// Up moves the cursor up.
func (s *Sidebar) Up() {
	if s.cursor > 0 {
		s.cursor--
	}
}

// Down moves the cursor down.
func (s *Sidebar) Down() {
	if s.cursor < len(s.items)-1 {
		s.cursor++
	}
}

// SelectedID returns the id under the cursor, or "".
func (s Sidebar) SelectedID() string {
	if s.cursor < 0 || s.cursor >= len(s.items) {
		return ""
	}
	return s.items[s.cursor].ID
}

// Width returns the rendered width including padding and border.
func (s Sidebar) Width() int {
	// preview + "..." + marker + padding + border
	return s.previewWidth + 3 + 2 + 2 + 1
}

// View renders the sidebar at the given height.
func (s Sidebar) View(theme *styles.Theme, height int, focused bool) string {
	var b strings.Builder

	title := "Chats"
	if focused {
		title = "> Chats"
	}
	b.WriteString(theme.SidebarTitle.Render(title))
	b.WriteString("\n")

	switch {
	case s.loading:
		b.WriteString(theme.SidebarEmpty.Render("Loading..."))
	case len(s.items) == 0:
		b.WriteString(theme.SidebarEmpty.Render("No chats yet"))
	default:
		for i, c := range s.items {
			marker := "  "
			if c.ID == s.active {
				marker = "* "
			}
			line := marker + c.Preview(s.previewWidth)
			style := theme.SidebarItem
			switch {
			case i == s.cursor && focused:
				style = theme.SidebarSelected
			case c.ID == s.active:
				style = theme.SidebarActive
			}
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}
	}

	// lipgloss widths include padding but not the border
	return theme.Sidebar.
		Width(s.Width() - 1).
		Height(max(height, 1)).
		Render(lipgloss.NewStyle().MaxWidth(s.Width() - 3).Render(b.String()))
}
