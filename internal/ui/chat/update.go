// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/app"
	"github.com/jeranaias/docchat-tui/internal/conversation"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/ui/components"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ChatsLoadedMsg:
		return m.handleChatsLoaded(msg)

	case ChatOpenedMsg:
		return m.handleChatOpened(msg)

	case ChatDeletedMsg:
		return m.handleChatDeleted(msg)

	case NavigateMsg:
		return m.handleNavigate(msg)

	case ControllerEventMsg:
		return m.handleControllerEvent(msg.Event)

	case QueryDoneMsg:
		return m.handleQueryDone(msg)

	case UploadDoneMsg:
		return m.handleUploadDone(msg)

	case UploadStatusMsg:
		if msg.ChatID == m.chatID {
			m.uploadStatus = msg.Status
		}
		return m, nil

	case StreamTickMsg:
		return m.handleStreamTick()

	case ConfigChangedMsg:
		return m.handleConfigChanged(msg)

	case components.ToastTickMsg:
		m.toasts.Tick()
		return m, components.ToastTickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.focus {
	case FocusInput:
		m.input, cmd = m.input.Update(msg)
	case FocusUpload:
		m.path, cmd = m.path.Update(msg)
	}
	return m, cmd
}

// =============================================================================
// LIST HANDLERS
// =============================================================================

func (m Model) handleChatsLoaded(msg ChatsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.sidebar.SetItems(m.ws.Cache().Snapshot())
		return m, nil
	}
	m.sidebar.SetItems(msg.Chats)
	m.sidebar.SetActive(m.chatID)
	return m, nil
}

func (m Model) handleChatOpened(msg ChatOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.Created {
		m.sidebar.SetItems(m.ws.Cache().Snapshot())
	}
	if msg.Err != nil {
		return m, nil
	}
	// a newer open may already have replaced this controller
	if msg.Ctrl != m.ws.Controller() {
		if msg.Unsubscribe != nil {
			msg.Unsubscribe()
		}
		return m, nil
	}

	m.detach()
	m.ctrl = msg.Ctrl
	m.unsubscribe = msg.Unsubscribe
	m.chatID = msg.Ctrl.ChatID()
	m.messages = msg.Ctrl.Messages()
	m.attachments = msg.Ctrl.Attachments()
	m.state = msg.Ctrl.State()
	m.uploadStatus = m.ws.Tracker().Status(m.chatID)
	m.live.Reset()
	m.liveText = ""
	m.sidebar.SetActive(m.chatID)
	m.setFocus(FocusInput)

	m.layout()
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, nil
}

func (m Model) handleChatDeleted(msg ChatDeletedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m, nil
	}
	m.sidebar.SetItems(m.ws.Cache().Snapshot())
	if msg.ChatID == m.chatID {
		m.showLanding()
	}
	return m, nil
}

func (m Model) handleNavigate(msg NavigateMsg) (tea.Model, tea.Cmd) {
	if msg.ChatID == "" {
		if m.chatID != "" {
			m.showLanding()
		}
		return m, nil
	}
	m.sidebar.SetActive(msg.ChatID)
	return m, nil
}

// showLanding detaches from the open conversation and clears the view.
func (m *Model) showLanding() {
	m.cancelMgr.cancel()
	m.detach()
	m.chatID = ""
	m.messages = nil
	m.attachments = nil
	m.state = conversation.StateIdle
	m.uploadStatus = model.UploadIdle
	m.live.Reset()
	m.liveText = ""
	m.sidebar.SetActive("")
	if m.focus == FocusUpload {
		m.setFocus(FocusInput)
	}
	m.layout()
	m.refreshViewport()
}

// detach stops receiving events from the current controller.
func (m *Model) detach() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.unsubscribe = nil
	m.ctrl = nil
}

// =============================================================================
// CONVERSATION HANDLERS
// =============================================================================

func (m Model) handleControllerEvent(e conversation.Event) (tea.Model, tea.Cmd) {
	if m.ctrl == nil || e.ChatID != m.ctrl.ChatID() {
		return m, nil
	}

	var cmd tea.Cmd
	switch e.Kind {
	case conversation.EventFragment:
		m.live.Write(e.Fragment)
		if !m.ticking {
			m.ticking = true
			cmd = streamTickCmd()
		}
		return m, cmd

	case conversation.EventMessages:
		m.messages = m.ctrl.Messages()

	case conversation.EventAttachments:
		m.attachments = m.ctrl.Attachments()
		m.layout()

	case conversation.EventState:
		m.state = e.State
		switch e.State {
		case conversation.StateSending:
			m.live.Reset()
			m.liveText = ""
			if !m.ticking {
				m.ticking = true
				cmd = streamTickCmd()
			}
		case conversation.StateStreaming:
		default:
			m.live.Reset()
			m.liveText = ""
		}
	}

	m.refreshViewport()
	return m, cmd
}

func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if text, ok := m.live.Flush(); ok {
		m.liveText += text
		m.refreshViewport()
	}
	if m.state == conversation.StateSending || m.state == conversation.StateStreaming {
		return m, streamTickCmd()
	}
	m.ticking = false
	return m, nil
}

func (m Model) handleQueryDone(msg QueryDoneMsg) (tea.Model, tea.Cmd) {
	m.cancelMgr.cancel()
	switch {
	case msg.Err == nil:
		m.sidebar.SetItems(m.ws.Cache().Snapshot())
		if m.ctrl != nil && m.ctrl.ChatID() == msg.ChatID {
			m.messages = m.ctrl.Messages()
			m.attachments = m.ctrl.Attachments()
			m.refreshViewport()
		}
	case errors.Is(msg.Err, conversation.ErrBusy):
		m.toasts.AddStatus("Wait for the current answer to finish")
	case errors.Is(msg.Err, app.ErrNoActiveChat):
		m.toasts.AddStatus("Open or create a chat first")
	default:
		m.logger.Debug("query_ended", zap.String("chat_id", msg.ChatID), zap.Error(msg.Err))
	}
	return m, nil
}

func (m Model) handleUploadDone(msg UploadDoneMsg) (tea.Model, tea.Cmd) {
	if errors.Is(msg.Err, app.ErrNoActiveChat) {
		m.toasts.AddStatus("Open or create a chat first")
		return m, nil
	}
	if msg.Err != nil || m.ctrl == nil || msg.Result == nil || msg.Result.ChatID != m.chatID {
		return m, nil
	}
	m.attachments = m.ctrl.Attachments()
	m.layout()
	m.refreshViewport()
	return m, nil
}

func (m Model) handleConfigChanged(msg ConfigChangedMsg) (tea.Model, tea.Cmd) {
	if msg.Config == nil {
		return m, nil
	}
	m.toasts.SetBaseDuration(msg.Config.ToastDuration())
	m.sidebar.SetPreviewWidth(msg.Config.UI.PreviewWidth)
	m.layout()
	m.refreshViewport()
	m.toasts.AddStatus("Configuration reloaded")
	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m.quit()
	}

	if m.pendingDelete != "" {
		id := m.pendingDelete
		m.pendingDelete = ""
		if key.Matches(msg, m.keys.Confirm) {
			return m, deleteChatCmd(m.ctx, m.ws, id)
		}
		m.toasts.AddStatus("Delete cancelled")
		return m, nil
	}

	if m.focus == FocusUpload {
		return m.handleUploadKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		return m, newChatCmd(m.ctx, m.ws, m.bridge)

	case key.Matches(msg, m.keys.Refresh):
		return m, loadChatsCmd(m.ctx, m.ws, true)

	case key.Matches(msg, m.keys.Upload):
		return m.openUploadPrompt()

	case key.Matches(msg, m.keys.Delete):
		return m.requestDelete()

	case key.Matches(msg, m.keys.CloseChat):
		if m.chatID != "" {
			m.ws.CloseChat()
			m.showLanding()
		}
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		if m.cancelMgr.cancel() {
			m.toasts.AddStatus("Answer stopped")
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		if m.focus == FocusSidebar {
			m.setFocus(FocusInput)
		} else {
			m.setFocus(FocusSidebar)
		}
		return m, nil
	}

	if m.focus == FocusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.sidebar.Up()
	case key.Matches(msg, m.keys.Down):
		m.sidebar.Down()
	case key.Matches(msg, m.keys.Open):
		id := m.sidebar.SelectedID()
		if id == "" {
			return m, nil
		}
		if id == m.chatID {
			m.setFocus(FocusInput)
			return m, nil
		}
		return m, openChatCmd(m.ctx, m.ws, m.bridge, id)
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keys.Submit) {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	text := m.input.Value()
	switch {
	case strings.TrimSpace(text) == "":
		return m, nil
	case m.chatID == "":
		m.toasts.AddStatus("Open or create a chat first")
		return m, nil
	case m.state.Busy():
		m.toasts.AddStatus("Wait for the current answer to finish")
		return m, nil
	}

	m.input.Reset()
	ctx := m.cancelMgr.begin(m.ctx)
	return m, submitCmd(ctx, m.ws, m.chatID, text)
}

func (m Model) requestDelete() (tea.Model, tea.Cmd) {
	id := m.chatID
	if m.focus == FocusSidebar {
		id = m.sidebar.SelectedID()
	}
	if id == "" {
		return m, nil
	}
	m.pendingDelete = id
	m.toasts.AddWarning("Delete " + previewFor(m.sidebar.Items(), id) + "? Press y to confirm")
	return m, nil
}

// =============================================================================
// UPLOAD PROMPT
// =============================================================================

func (m Model) openUploadPrompt() (tea.Model, tea.Cmd) {
	if m.chatID == "" {
		m.toasts.AddStatus("Open or create a chat first")
		return m, nil
	}
	m.path.Reset()
	m.setFocus(FocusUpload)
	m.layout()
	return m, nil
}

func (m Model) handleUploadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.setFocus(FocusInput)
		m.layout()
		return m, nil

	case msg.Type == tea.KeyEnter:
		path := strings.TrimSpace(m.path.Value())
		m.setFocus(FocusInput)
		m.layout()
		if path == "" {
			return m, nil
		}
		return m, uploadCmd(m.ctx, m.ws, expandHome(path))
	}

	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return m, cmd
}

// expandHome replaces a leading ~ with the home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Model) setFocus(f Focus) {
	m.focus = f
	switch f {
	case FocusInput:
		m.path.Blur()
		m.input.Focus()
	case FocusSidebar:
		m.path.Blur()
		m.input.Blur()
	case FocusUpload:
		m.input.Blur()
		m.path.Focus()
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancelMgr.cancel()
	m.detach()
	m.ws.Close()
	if m.bridge != nil {
		m.bridge.Close()
	}
	return m, tea.Quit
}

// layout sizes the viewport and inputs to the window.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	mainWidth := m.mainWidth()
	m.input.SetWidth(max(mainWidth-2, 10))
	m.path.Width = max(mainWidth-lipgloss.Width(m.path.Prompt)-4, 10)
	m.help.Width = mainWidth

	used := lipgloss.Height(m.headerView()) + lipgloss.Height(m.footerView())
	m.viewport.Width = mainWidth
	m.viewport.Height = max(m.height-used, 1)
}

// refreshViewport re-renders the conversation, following the bottom when
// the view was already there or an answer is streaming.
func (m *Model) refreshViewport() {
	follow := m.viewport.AtBottom() || m.state.Busy()
	m.viewport.SetContent(m.conversationView(m.viewport.Width))
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) mainWidth() int {
	return max(m.width-m.sidebar.Width(), 20)
}

func previewFor(items []model.Conversation, id string) string {
	for _, c := range items {
		if c.ID == id {
			return "\"" + c.Preview(model.DefaultPreviewWidth) + "\""
		}
	}
	return "this chat"
}
