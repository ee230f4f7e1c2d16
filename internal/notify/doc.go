// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify provides transient, non-blocking user notifications.
//
// Every failure in docchat degrades to a notification rather than a modal
// error. Components depend on the Notifier interface; the TUI supplies a
// ToastManager, headless commands a Writer, and tests a Recorder.
//
// Toasts auto-dismiss: status and success after the base duration (4s by
// default), warnings after 1.5x and errors after 2x. Replace swaps a
// progress toast for its outcome.
package notify
