// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownRole is returned when a message arrives with a role outside the
// closed {user, assistant} set.
var ErrUnknownRole = errors.New("unknown message role")

// ErrSourcesOnUserMessage is returned by Validate when citation metadata is
// attached to a user message.
var ErrSourcesOnUserMessage = errors.New("sources are only valid on assistant messages")

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role int

const (
	RoleUser Role = iota
	RoleAssistant
)

// ParseRole converts a wire role into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// String returns the wire representation of the role.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return r.String()
	}
}

// MarshalJSON encodes the role as its wire string.
func (r Role) MarshalJSON() ([]byte, error) {
	if r != RoleUser && r != RoleAssistant {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a wire role, rejecting anything but user/assistant.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("role must be a string: %w", err)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// =============================================================================
// SOURCE TYPE
// =============================================================================

// Source is one citation attached to an assistant answer: the document the
// retrieved context came from. Unrecognised metadata keys are kept in Extra.
type Source struct {
	ChatID   string
	Document string
	Extra    map[string]string
}

// MarshalJSON writes the source back in its flat wire shape.
func (s Source) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(s.Extra)+2)
	for k, v := range s.Extra {
		out[k] = v
	}
	if s.ChatID != "" {
		out["chat_id"] = s.ChatID
	}
	if s.Document != "" {
		out["source"] = s.Document
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the flat metadata mapping produced by the backend.
// Non-string values are rendered with their JSON text.
func (s *Source) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("source must be an object: %w", err)
	}

	*s = Source{}
	for k, v := range raw {
		var str string
		if err := json.Unmarshal(v, &str); err != nil {
			str = string(v)
		}
		switch k {
		case "chat_id":
			s.ChatID = str
		case "source":
			s.Document = str
		default:
			if s.Extra == nil {
				s.Extra = make(map[string]string)
			}
			s.Extra[k] = str
		}
	}
	return nil
}

// ExtraKeys returns the extra metadata keys in sorted order.
func (s Source) ExtraKeys() []string {
	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single committed message in a conversation.
type Message struct {
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Sources []Source `json:"sources,omitempty"`
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message without sources.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// UnmarshalJSON decodes a message and validates it. A missing or null role
// is rejected rather than read as the zero Role.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w struct {
		Role    *Role    `json:"role"`
		Content string   `json:"content"`
		Sources []Source `json:"sources"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Role == nil {
		return fmt.Errorf("%w: missing role", ErrUnknownRole)
	}
	msg := Message{Role: *w.Role, Content: w.Content, Sources: w.Sources}
	if err := msg.Validate(); err != nil {
		return err
	}
	*m = msg
	return nil
}

// Validate checks the role/sources invariant.
func (m Message) Validate() error {
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return fmt.Errorf("%w: %d", ErrUnknownRole, int(m.Role))
	}
	if m.Role == RoleUser && len(m.Sources) > 0 {
		return ErrSourcesOnUserMessage
	}
	return nil
}

// HasSources reports whether the message carries citation metadata.
func (m Message) HasSources() bool {
	return len(m.Sources) > 0
}

// Documents returns the distinct cited document names in first-seen order.
func (m Message) Documents() []string {
	seen := make(map[string]bool, len(m.Sources))
	docs := make([]string, 0, len(m.Sources))
	for _, s := range m.Sources {
		if s.Document == "" || seen[s.Document] {
			continue
		}
		seen[s.Document] = true
		docs = append(docs, s.Document)
	}
	return docs
}
