// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jeranaias/docchat-tui/internal/notify"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// ToastTickInterval is how often toasts are expired.
const ToastTickInterval = 100 * time.Millisecond

// ToastTickMsg is sent periodically to expire toasts.
type ToastTickMsg struct {
	Time time.Time
}

// ToastTickCmd returns a command that ticks toasts.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(ToastTickInterval, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

// =============================================================================
// TOAST RENDERING
// =============================================================================

func toastLook(kind notify.Kind) (lipgloss.AdaptiveColor, string) {
	switch kind {
	case notify.KindError:
		return styles.Rose, styles.StatusIndicators.Error
	case notify.KindWarning:
		return styles.Amber, styles.StatusIndicators.Warning
	case notify.KindSuccess:
		return styles.Emerald, styles.StatusIndicators.Success
	default:
		return styles.Cyan, styles.StatusIndicators.Info
	}
}

// RenderToast renders a single toast with its remaining lifetime at now.
func RenderToast(toast notify.Toast, now time.Time, width int) string {
	maxWidth := 60
	if width > 0 && width-8 < maxWidth {
		maxWidth = width - 8
	}
	if maxWidth < 30 {
		maxWidth = 30
	}

	color, icon := toastLook(toast.Kind)
	iconStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	messageStyle := lipgloss.NewStyle().Foreground(styles.TextPrimary)

	message := wordwrap.String(toast.Message, maxWidth-10)
	content := iconStyle.Render(icon+" ") + messageStyle.Render(message)

	if secs := int(toast.RemainingAt(now).Seconds()); secs > 0 {
		hint := lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)
		content += "\n" + hint.Render(strconv.Itoa(secs)+"s")
	}

	return lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 2).
		MaxWidth(maxWidth).
		Render(content)
}

// RenderToastStack renders toasts right-aligned, newest at the bottom.
func RenderToastStack(toasts []notify.Toast, now time.Time, width int) string {
	if len(toasts) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(toasts))
	for i := len(toasts) - 1; i >= 0; i-- {
		rendered = append(rendered, RenderToast(toasts[i], now, width))
	}
	stack := lipgloss.JoinVertical(lipgloss.Right, rendered...)
	if width > 0 {
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, stack)
	}
	return stack
}

// ToastText returns toasts as plain lines, newest first, for tests and
// non-interactive output.
func ToastText(toasts []notify.Toast) string {
	lines := make([]string, len(toasts))
	for i, t := range toasts {
		_, icon := toastLook(t.Kind)
		lines[i] = icon + " " + t.Message
	}
	return strings.Join(lines, "\n")
}
