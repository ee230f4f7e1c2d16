// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jeranaias/docchat-tui/internal/conversation"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/ui/components"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole window.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.bodyView(),
		m.footerView(),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		m.sidebar.View(m.theme, m.height, m.focus == FocusSidebar),
		main,
	)
}

// headerView renders the conversation title, upload control and
// attachment chips.
func (m Model) headerView() string {
	width := m.mainWidth()
	inner := max(width-2, 1)

	if m.chatID == "" {
		return m.theme.Header.Width(width).Render(m.theme.HeaderTitle.Render("docchat"))
	}

	title := m.theme.HeaderTitle.Render("Chat " + model.Conversation{ID: m.chatID}.ShortID() + "...")
	label := m.uploadStatus.Label()
	uploadStyle := m.theme.UploadIdle
	if m.uploadStatus == model.UploadInProgress {
		uploadStyle = m.theme.UploadBusy
		label = m.spinner.View() + " " + label
	} else {
		label = "[C-o] " + label
	}
	control := uploadStyle.Render(label)
	gap := max(inner-lipgloss.Width(title)-lipgloss.Width(control), 1)
	top := title + strings.Repeat(" ", gap) + control

	parts := []string{top}
	if chips := components.RenderAttachments(m.theme, m.attachments, inner); chips != "" {
		parts = append(parts, chips)
	}
	return m.theme.Header.Width(width).Render(strings.Join(parts, "\n"))
}

// bodyView renders the viewport with the toast stack drawn over its
// bottom rows.
func (m Model) bodyView() string {
	body := m.viewport.View()
	toasts := m.toasts.Toasts()
	if len(toasts) == 0 {
		return body
	}
	stack := components.RenderToastStack(toasts, m.toasts.Now(), m.viewport.Width)
	return overlayBottom(body, stack, m.viewport.Height)
}

// footerView renders the input box or upload prompt and the status bar.
func (m Model) footerView() string {
	width := m.mainWidth()

	var box string
	switch {
	case m.focus == FocusUpload:
		box = m.theme.InputBoxFocused.Width(width - 2).Render(m.path.View())
	case m.focus == FocusInput:
		box = m.theme.InputBoxFocused.Width(width - 2).Render(m.input.View())
	default:
		box = m.theme.InputBox.Width(width - 2).Render(m.input.View())
	}

	parts := []string{box, m.statusView(width)}
	if m.showHelp {
		parts = append(parts, m.help.FullHelpView(m.keys.FullHelp()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// statusView renders the one-line status bar.
func (m Model) statusView(width int) string {
	var left string
	switch {
	case m.pendingDelete != "":
		left = m.theme.Error.Render("Delete " + previewFor(m.sidebar.Items(), m.pendingDelete) + "? y/n")
	case m.focus == FocusUpload:
		left = m.theme.PromptLabel.Render("Enter a PDF path, Esc to cancel")
	case m.state == conversation.StateSending:
		left = m.theme.StatusState.Render(m.spinner.View() + " Sending...")
	case m.state == conversation.StateStreaming:
		left = m.theme.StatusState.Render(m.spinner.View() + " Answering... Esc to stop")
	case m.state == conversation.StateFinalizing:
		left = m.theme.StatusState.Render(m.spinner.View() + " Saving answer...")
	default:
		left = m.help.ShortHelpView(m.keys.ShortHelp())
	}
	return m.theme.StatusBar.Width(width).MaxWidth(width).Render(left)
}

// =============================================================================
// CONVERSATION RENDERING
// =============================================================================

// conversationView renders the committed messages and the live answer.
func (m Model) conversationView(width int) string {
	width = max(width, 20)

	if m.chatID == "" {
		return m.emptyView(width,
			"Select a chat to start messaging",
			"Tab to the sidebar and press Enter, or press Ctrl+N for a new chat.")
	}
	if len(m.messages) == 0 && m.liveText == "" && !m.state.Busy() {
		return m.emptyView(width,
			"Start a conversation by asking a question about your documents",
			"Upload a PDF with Ctrl+O, then type a question below.")
	}

	var b strings.Builder
	for _, msg := range m.messages {
		b.WriteString(m.messageView(msg, width))
		b.WriteString("\n")
	}
	if m.state == conversation.StateSending || m.state == conversation.StateStreaming {
		b.WriteString(m.liveView(width))
	}
	return strings.TrimRight(b.String(), "\n")
}

// messageView renders one committed message.
func (m Model) messageView(msg model.Message, width int) string {
	var b strings.Builder
	if msg.Role == model.RoleUser {
		b.WriteString(m.theme.UserLabel.Render(msg.Role.DisplayName()))
		b.WriteString("\n")
		b.WriteString(m.theme.MessageBody.Render(wordwrap.String(msg.Content, width-2)))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.theme.AssistantLabel.Render(msg.Role.DisplayName()))
	b.WriteString("\n")
	b.WriteString(m.markdown.Render(msg.Content, width))
	b.WriteString("\n")
	if msg.HasSources() {
		b.WriteString(m.theme.SourceLabel.Render("Sources:"))
		b.WriteString("\n")
		for _, s := range msg.Sources {
			b.WriteString(m.theme.Source.Render("- " + sourceLabel(s)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// liveView renders the answer while it streams.
func (m Model) liveView(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.AssistantLabel.Render(model.RoleAssistant.DisplayName()))
	b.WriteString(" ")
	b.WriteString(m.spinner.View())
	b.WriteString("\n")
	if m.liveText != "" {
		b.WriteString(m.theme.Streaming.Render(wordwrap.String(m.liveText, width-2)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) emptyView(width int, title, hint string) string {
	height := max(m.viewport.Height, 3)
	content := lipgloss.JoinVertical(lipgloss.Center,
		m.theme.EmptyTitle.Render(wordwrap.String(title, width-4)),
		"",
		m.theme.EmptyHint.Render(wordwrap.String(hint, width-4)),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

// sourceLabel names a citation by its document, falling back to the raw
// metadata.
func sourceLabel(s model.Source) string {
	if s.Document != "" {
		return s.Document
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return "(unknown source)"
	}
	return string(raw)
}

// overlayBottom replaces the last rows of base with overlay, keeping base
// at height rows.
func overlayBottom(base, overlay string, height int) string {
	rows := strings.Split(base, "\n")
	for len(rows) < height {
		rows = append(rows, "")
	}
	over := strings.Split(overlay, "\n")
	if len(over) > len(rows) {
		over = over[len(over)-len(rows):]
	}
	copy(rows[len(rows)-len(over):], over)
	return strings.Join(rows, "\n")
}
