// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the colour palette and lipgloss styles for the
// docchat TUI. All colours are lipgloss AdaptiveColors, so the same theme
// works on light and dark terminals; NewTheme can force either background.
package styles
