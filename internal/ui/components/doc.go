// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable pieces of the docchat TUI: the
// conversation sidebar, attachment chips, toast rendering and the markdown
// renderer used for assistant answers.
package components
