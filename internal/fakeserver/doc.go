// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fakeserver is an in-memory implementation of the document chat
// backend's HTTP contract.
//
// It backs the package tests and the "docchat dev-server" command. Chats are
// kept in memory; uploads count indexed chunks without parsing the document;
// queries stream the Responder's fragments as unframed text/plain and record
// the answer with one {chat_id, source} citation per attached document once
// the stream completes. Failures and stream cuts can be scheduled per route.
package fakeserver
