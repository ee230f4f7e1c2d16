// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Markdown renders assistant answers with glamour, keeping one renderer per
// wrap width.
type Markdown struct {
	mu        sync.Mutex
	style     string
	renderers map[int]*glamour.TermRenderer
}

// NewMarkdown creates a renderer using a glamour standard style name.
func NewMarkdown(style string) *Markdown {
	return &Markdown{style: style, renderers: make(map[int]*glamour.TermRenderer)}
}

// Render renders content wrapped at width. It falls back to the raw content
// if glamour fails.
func (m *Markdown) Render(content string, width int) string {
	if width < 20 {
		width = 20
	}
	r, err := m.renderer(width)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

func (m *Markdown) renderer(width int) (*glamour.TermRenderer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.renderers[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	m.renderers[width] = r
	return r, nil
}
