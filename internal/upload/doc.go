// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package upload tracks document uploads per conversation.
//
// Each conversation moves through Idle, InProgress and then Succeeded or
// Failed before resetting to Idle. A second upload while one is in progress
// fails with ErrInProgress without sending anything. Only PDF documents are
// accepted.
package upload
