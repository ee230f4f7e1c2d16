// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation implements the streaming conversation controller.
//
// A Controller owns one active conversation: its committed messages, its
// attachment names and the StreamBuffer of the query in flight. SubmitQuery
// appends the user's message at once, streams the answer into the buffer,
// commits it as an assistant message and then re-reads the conversation
// through the chat list cache so citation sources appear.
//
// States:
//
//	Idle -> Sending -> Streaming -> Finalizing -> Idle
//	           \           \
//	            +-> Error <-+-> Idle
//
// Observers call Subscribe to receive Events for state changes, fragments
// and message updates. Close cancels a query in flight; nothing from it is
// committed.
package conversation
