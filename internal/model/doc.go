// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// These types mirror the backend's JSON contract and are shared by the API
// client, the chat list cache, the conversation controller and the TUI.
//
// # Key Types
//
//   - Conversation: server-assigned id, ordered messages and attachment names
//   - Message: a committed message with a closed Role and optional Sources
//   - Role: RoleUser or RoleAssistant; any other wire value fails to decode
//   - Source: one citation record attached to an assistant answer
//   - UploadAttempt: status of a document upload for a conversation
//
// # Usage
//
//	var conv model.Conversation
//	if err := json.Unmarshal(body, &conv); err != nil {
//	    // errors.Is(err, model.ErrUnknownRole) for a bad role
//	}
//	fmt.Println(conv.Preview(model.DefaultPreviewWidth))
package model
