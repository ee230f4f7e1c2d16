// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the docchat command line.
//
// Running docchat with no subcommand starts the terminal UI. The headless
// commands (ask, chats, upload, repl) drive the same app.Workspace and
// print notifications to stderr. dev-server runs the in-memory backend.
//
// Configuration is read from ~/.docchat/config.toml (or config.yaml), then
// .env files and DOCCHAT_* variables, then command line flags.
package cli
