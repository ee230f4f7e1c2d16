// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// RenderAttachments renders the attachment count and one chip per document,
// wrapping chips onto new rows at width. It returns "" when there are none.
func RenderAttachments(theme *styles.Theme, names []string, width int) string {
	if len(names) == 0 {
		return ""
	}
	summary := model.Conversation{Attachments: names}.AttachmentSummary()

	var rows []string
	var row []string
	rowWidth := 0
	for _, name := range names {
		chip := theme.Chip.Render(runewidth.Truncate(name, 32, "..."))
		w := lipgloss.Width(chip)
		if rowWidth > 0 && width > 0 && rowWidth+w > width {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, rowWidth = nil, 0
		}
		row = append(row, chip)
		rowWidth += w
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}

	return theme.HeaderMuted.Render(summary) + "\n" + strings.Join(rows, "\n")
}
