// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"
)

// DefaultPreviewWidth is the sidebar preview width in display cells.
const DefaultPreviewWidth = 30

// previewEllipsis is appended to truncated previews.
const previewEllipsis = "..."

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the summary of a chat session as the backend reports it.
// ID is assigned by the server and never changes.
type Conversation struct {
	ID          string    `json:"chat_id"`
	Messages    []Message `json:"messages"`
	Attachments []string  `json:"attachments"`
}

// UnmarshalJSON decodes a conversation, treating absent sequences as empty.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	type wireConversation Conversation
	var w wireConversation
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Messages == nil {
		w.Messages = []Message{}
	}
	if w.Attachments == nil {
		w.Attachments = []string{}
	}
	*c = Conversation(w)
	return nil
}

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	out := Conversation{
		ID:          c.ID,
		Messages:    make([]Message, len(c.Messages)),
		Attachments: make([]string, len(c.Attachments)),
	}
	copy(out.Attachments, c.Attachments)
	for i, m := range c.Messages {
		out.Messages[i] = m
		if m.Sources != nil {
			out.Messages[i].Sources = make([]Source, len(m.Sources))
			copy(out.Messages[i].Sources, m.Sources)
		}
	}
	return out
}

// =============================================================================
// ACCESSORS
// =============================================================================

// IsEmpty reports whether the conversation has no messages.
func (c Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// LastMessage returns the most recent message, or false if there is none.
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// HasAttachment reports whether name is among the attached documents.
func (c Conversation) HasAttachment(name string) bool {
	for _, a := range c.Attachments {
		if a == name {
			return true
		}
	}
	return false
}

// ShortID returns the first eight characters of the id.
func (c Conversation) ShortID() string {
	if len(c.ID) <= 8 {
		return c.ID
	}
	return c.ID[:8]
}

// Preview returns the sidebar label: the first message cut to width display
// cells, or "Chat <short id>..." for a conversation with no messages.
func (c Conversation) Preview(width int) string {
	if width <= 0 {
		width = DefaultPreviewWidth
	}
	if len(c.Messages) == 0 {
		return "Chat " + c.ShortID() + previewEllipsis
	}

	text := norm.NFC.String(c.Messages[0].Content)
	text = strings.Join(strings.Fields(text), " ")
	if runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "") + previewEllipsis
}

// AttachmentSummary returns the "N document(s) attached" header text, or an
// empty string when nothing is attached.
func (c Conversation) AttachmentSummary() string {
	switch n := len(c.Attachments); n {
	case 0:
		return ""
	case 1:
		return "1 document attached"
	default:
		return strconv.Itoa(n) + " documents attached"
	}
}
