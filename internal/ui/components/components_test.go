// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/notify"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

func convs(ids ...string) []model.Conversation {
	out := make([]model.Conversation, len(ids))
	for i, id := range ids {
		out[i] = model.Conversation{ID: id}
	}
	return out
}

func TestSidebar_Cursor(t *testing.T) {
	s := NewSidebar(0)
	assert.Equal(t, model.DefaultPreviewWidth, s.PreviewWidth())
	assert.Equal(t, "", s.SelectedID())

	s.SetItems(convs("a", "b", "c"))
	assert.Equal(t, "a", s.SelectedID())

	s.Up()
	assert.Equal(t, "a", s.SelectedID())
	s.Down()
	s.Down()
	s.Down()
	assert.Equal(t, "c", s.SelectedID())

	// the cursor follows the selected id across refreshes
	s.SetItems(convs("c", "a"))
	assert.Equal(t, "c", s.SelectedID())

	// and falls back to the top when it disappears
	s.SetItems(convs("a"))
	assert.Equal(t, "a", s.SelectedID())
}

func TestSidebar_SetActive(t *testing.T) {
	s := NewSidebar(30)
	s.SetItems(convs("a", "b"))
	s.SetActive("b")
	assert.Equal(t, "b", s.Active())
	assert.Equal(t, "b", s.SelectedID())
}

func TestSidebar_View(t *testing.T) {
	theme := styles.NewTheme("dark")
	s := NewSidebar(30)
	assert.Contains(t, s.View(theme, 10, false), "Loading...")

	s.SetItems(nil)
	assert.Contains(t, s.View(theme, 10, false), "No chats yet")

	items := convs("abcdef123456", "b")
	items[1].Messages = []model.Message{model.NewUserMessage("What is the warranty period?")}
	s.SetItems(items)
	s.SetActive("abcdef123456")

	view := s.View(theme, 10, true)
	assert.Contains(t, view, "Chat abcdef12...")
	assert.Contains(t, view, "What is the warranty period?")
	assert.LessOrEqual(t, lipgloss.Width(view), s.Width())
}

func TestRenderAttachments(t *testing.T) {
	theme := styles.NewTheme("dark")
	assert.Equal(t, "", RenderAttachments(theme, nil, 80))

	out := RenderAttachments(theme, []string{"report.pdf"}, 80)
	assert.Contains(t, out, "1 document attached")
	assert.Contains(t, out, "report.pdf")

	out = RenderAttachments(theme, []string{"a.pdf", "b.pdf", "c.pdf"}, 12)
	assert.Contains(t, out, "3 documents attached")
	// narrow widths put each chip on its own row
	assert.GreaterOrEqual(t, strings.Count(out, "\n"), 3*3)
}

func TestToasts(t *testing.T) {
	now := time.Unix(1000, 0)
	toasts := []notify.Toast{
		{ID: 2, Message: "Failed to load chats: Could not reach the server", Kind: notify.KindError, CreatedAt: now, Duration: 8 * time.Second},
		{ID: 1, Message: "Uploaded report.pdf", Kind: notify.KindSuccess, CreatedAt: now, Duration: 4 * time.Second},
	}

	single := RenderToast(toasts[0], now, 80)
	assert.Contains(t, single, "[X]")
	assert.Contains(t, single, "8s")

	stack := RenderToastStack(toasts, now, 80)
	require.NotEmpty(t, stack)
	// newest renders last
	assert.Less(t, strings.Index(stack, "Uploaded"), strings.Index(stack, "Failed"))
	assert.Equal(t, "", RenderToastStack(nil, now, 80))

	assert.Equal(t, "[X] Failed to load chats: Could not reach the server\n[OK] Uploaded report.pdf", ToastText(toasts))
}

func TestMarkdown_FallsBackToRaw(t *testing.T) {
	md := NewMarkdown("notty")
	out := md.Render("The answer is **Y**.", 40)
	assert.Contains(t, out, "Y")
	// renderers are cached per width
	md.Render("again", 40)
	assert.Len(t, md.renderers, 1)
}
