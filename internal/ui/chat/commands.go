// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/docchat-tui/internal/app"
)

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// loadChatsCmd fetches the conversation list. force discards the cached
// list first.
func loadChatsCmd(ctx context.Context, ws *app.Workspace, force bool) tea.Cmd {
	return func() tea.Msg {
		if force {
			ws.Cache().InvalidateAll()
		}
		chats, err := ws.Chats(ctx)
		return ChatsLoadedMsg{Chats: chats, Err: err}
	}
}

// openChatCmd opens id and subscribes the bridge to its controller.
func openChatCmd(ctx context.Context, ws *app.Workspace, bridge *Bridge, id string) tea.Cmd {
	return func() tea.Msg {
		ctrl, err := ws.OpenChat(ctx, id)
		if err != nil {
			return ChatOpenedMsg{Err: err}
		}
		return ChatOpenedMsg{Ctrl: ctrl, Unsubscribe: ctrl.Subscribe(bridge.ControllerEvent)}
	}
}

// newChatCmd creates a conversation and opens it.
func newChatCmd(ctx context.Context, ws *app.Workspace, bridge *Bridge) tea.Cmd {
	return func() tea.Msg {
		ctrl, err := ws.NewChat(ctx)
		if err != nil {
			return ChatOpenedMsg{Created: true, Err: err}
		}
		return ChatOpenedMsg{Ctrl: ctrl, Unsubscribe: ctrl.Subscribe(bridge.ControllerEvent), Created: true}
	}
}

// deleteChatCmd deletes id.
func deleteChatCmd(ctx context.Context, ws *app.Workspace, id string) tea.Cmd {
	return func() tea.Msg {
		redirected, err := ws.DeleteChat(ctx, id)
		return ChatDeletedMsg{ChatID: id, Redirected: redirected, Err: err}
	}
}

// submitCmd sends text in the open conversation.
func submitCmd(ctx context.Context, ws *app.Workspace, chatID, text string) tea.Cmd {
	return func() tea.Msg {
		res, err := ws.Submit(ctx, text)
		return QueryDoneMsg{ChatID: chatID, Result: res, Err: err}
	}
}

// uploadCmd uploads the file at path to the open conversation.
func uploadCmd(ctx context.Context, ws *app.Workspace, path string) tea.Cmd {
	return func() tea.Msg {
		res, err := ws.Upload(ctx, path)
		return UploadDoneMsg{Path: path, Result: res, Err: err}
	}
}
