// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/conversation"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/upload"
)

// =============================================================================
// LIST MESSAGES
// =============================================================================

// ChatsLoadedMsg carries the result of a list fetch.
type ChatsLoadedMsg struct {
	Chats []model.Conversation
	Err   error
}

// ChatOpenedMsg carries the controller of a conversation that was opened or
// created. Unsubscribe detaches the model from the controller's events.
type ChatOpenedMsg struct {
	Ctrl        *conversation.Controller
	Unsubscribe func()
	Created     bool
	Err         error
}

// ChatDeletedMsg reports a delete confirmation.
type ChatDeletedMsg struct {
	ChatID     string
	Redirected bool
	Err        error
}

// =============================================================================
// CONVERSATION MESSAGES
// =============================================================================

// QueryDoneMsg reports the end of a query.
type QueryDoneMsg struct {
	ChatID string
	Result *conversation.Result
	Err    error
}

// UploadDoneMsg reports the end of an upload.
type UploadDoneMsg struct {
	Path   string
	Result *upload.Result
	Err    error
}

// ControllerEventMsg wraps an event raised by the open controller.
type ControllerEventMsg struct {
	Event conversation.Event
}

// UploadStatusMsg reports an upload tracker status change.
type UploadStatusMsg struct {
	ChatID string
	Status model.UploadStatus
}

// =============================================================================
// NAVIGATION AND UI MESSAGES
// =============================================================================

// NavigateMsg is raised by the navigation guard. An empty ChatID is the
// landing view.
type NavigateMsg struct {
	ChatID string
}

// StreamTickMsg drives frame-capped rendering of the live answer.
type StreamTickMsg struct {
	Time time.Time
}

// ConfigChangedMsg carries a reloaded configuration.
type ConfigChangedMsg struct {
	Config *config.Config
}
