// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea front end for docchat.
//
// The Model renders a sidebar of conversations, the open conversation with
// its attachments, the live answer while it streams, an input box and a
// stack of toasts. Every network operation goes through an app.Workspace
// inside a tea.Cmd; results come back as messages. Events raised outside the
// update loop (navigation, controller events, upload status, config reloads)
// are queued on a Bridge and forwarded to the running program in order.
package chat
