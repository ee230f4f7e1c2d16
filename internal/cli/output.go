// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// JSON OUTPUT
// =============================================================================

// JSONResponse is the envelope for --json output.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write prints the response as indented JSON.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// =============================================================================
// TEXT OUTPUT
// =============================================================================

// renderMarkdown renders content for the terminal, returning it unchanged
// when rendering fails.
func renderMarkdown(content string, width int, dark bool) string {
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// sourceName names a citation for display.
func sourceName(s model.Source) string {
	if s.Document != "" {
		return s.Document
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return "(unknown source)"
	}
	return string(raw)
}

// printSources writes a Sources block, or nothing when there are none.
func (p *printer) printSources(sources []model.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(p.out, p.muted.Render("Sources:"))
	for _, s := range sources {
		fmt.Fprintln(p.out, p.source.Render("- "+sourceName(s)))
	}
}

// printMessage writes one committed message.
func (p *printer) printMessage(msg model.Message, render bool) {
	if msg.Role == model.RoleUser {
		fmt.Fprintln(p.out, p.user.Render(msg.Role.DisplayName()+":"))
	} else {
		fmt.Fprintln(p.out, p.assistant.Render(msg.Role.DisplayName()+":"))
	}
	content := msg.Content
	if render && msg.Role == model.RoleAssistant {
		content = renderMarkdown(content, p.width, p.dark)
	}
	fmt.Fprintln(p.out, content)
	p.printSources(msg.Sources)
	fmt.Fprintln(p.out)
}

// messageJSON is the --json shape of a message.
type messageJSON struct {
	Role    string         `json:"role"`
	Content string         `json:"content"`
	Sources []model.Source `json:"sources,omitempty"`
}

// conversationJSON is the --json shape of a conversation.
type conversationJSON struct {
	ID          string        `json:"chat_id"`
	Preview     string        `json:"preview"`
	Messages    []messageJSON `json:"messages"`
	Attachments []string      `json:"attachments"`
}

func toJSON(c model.Conversation) conversationJSON {
	msgs := make([]messageJSON, 0, len(c.Messages))
	for _, m := range c.Messages {
		msgs = append(msgs, messageJSON{Role: m.Role.String(), Content: m.Content, Sources: m.Sources})
	}
	attachments := c.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return conversationJSON{
		ID:          c.ID,
		Preview:     c.Preview(model.DefaultPreviewWidth),
		Messages:    msgs,
		Attachments: attachments,
	}
}
