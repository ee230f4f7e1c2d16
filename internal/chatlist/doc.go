// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatlist caches the conversation list and individual conversations.
//
// The cache is keyed by conversation id and fed by the backend. Reads go
// through it (List, Get); create and delete are written through only after
// the server confirms them. Mutations made elsewhere (a finished query, an
// upload) are reconciled by Invalidate or Refetch, never by editing entries.
//
// Entries older than Config.StaleAfter (30s by default) are refreshed on the
// next read. A zero StaleAfter disables time-based refresh.
package chatlist
