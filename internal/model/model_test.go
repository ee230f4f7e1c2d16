// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Role
		wantErr bool
	}{
		{"user", `"user"`, RoleUser, false},
		{"assistant", `"assistant"`, RoleAssistant, false},
		{"system rejected", `"system"`, 0, true},
		{"empty rejected", `""`, 0, true},
		{"case sensitive", `"User"`, 0, true},
		{"not a string", `1`, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var r Role
			err := json.Unmarshal([]byte(tc.input), &r)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Unmarshal(%s) expected error", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal(%s) unexpected error: %v", tc.input, err)
			}
			if r != tc.want {
				t.Errorf("Unmarshal(%s) = %v, want %v", tc.input, r, tc.want)
			}
		})
	}
}

func TestRole_UnknownIsSentinel(t *testing.T) {
	var msg Message
	err := json.Unmarshal([]byte(`{"role":"tool","content":"x"}`), &msg)
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestMessage_MissingRoleRejected(t *testing.T) {
	for _, input := range []string{`{"content":"hi"}`, `{"role":null,"content":"hi"}`} {
		var msg Message
		err := json.Unmarshal([]byte(input), &msg)
		if !errors.Is(err, ErrUnknownRole) {
			t.Errorf("Unmarshal(%s) expected ErrUnknownRole, got %v", input, err)
		}
	}
}

func TestRole_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(NewAssistantMessage("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"role":"assistant"`) {
		t.Errorf("marshal = %s", data)
	}

	if _, err := json.Marshal(Role(7)); err == nil {
		t.Error("expected error marshalling invalid role")
	}
}

// =============================================================================
// SOURCE TESTS
// =============================================================================

func TestSource_Decode(t *testing.T) {
	input := `{"chat_id":"abc","source":"report.pdf","page":3}`
	var s Source
	if err := json.Unmarshal([]byte(input), &s); err != nil {
		t.Fatal(err)
	}
	if s.ChatID != "abc" || s.Document != "report.pdf" {
		t.Errorf("decoded %+v", s)
	}
	if s.Extra["page"] != "3" {
		t.Errorf("Extra[page] = %q, want 3", s.Extra["page"])
	}
	if keys := s.ExtraKeys(); len(keys) != 1 || keys[0] != "page" {
		t.Errorf("ExtraKeys() = %v", keys)
	}
}

func TestMessage_SourcesOnUserRejected(t *testing.T) {
	input := `{"role":"user","content":"q","sources":[{"source":"a.pdf"}]}`
	var m Message
	err := json.Unmarshal([]byte(input), &m)
	if !errors.Is(err, ErrSourcesOnUserMessage) {
		t.Fatalf("expected ErrSourcesOnUserMessage, got %v", err)
	}
}

func TestMessage_Documents(t *testing.T) {
	m := Message{Role: RoleAssistant, Sources: []Source{
		{Document: "a.pdf"}, {Document: "b.pdf"}, {Document: "a.pdf"}, {},
	}}
	docs := m.Documents()
	if len(docs) != 2 || docs[0] != "a.pdf" || docs[1] != "b.pdf" {
		t.Errorf("Documents() = %v", docs)
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_DecodeCreateResponse(t *testing.T) {
	var c Conversation
	if err := json.Unmarshal([]byte(`{"chat_id":"abc123"}`), &c); err != nil {
		t.Fatal(err)
	}
	if c.ID != "abc123" {
		t.Errorf("ID = %q", c.ID)
	}
	if c.Messages == nil || c.Attachments == nil {
		t.Error("missing sequences should decode as empty, not nil")
	}
}

func TestConversation_DecodeFull(t *testing.T) {
	input := `{"chat_id":"x","messages":[
		{"role":"user","content":"What is X?"},
		{"role":"assistant","content":"Y.","sources":[{"chat_id":"x","source":"r.pdf"}]}
	],"attachments":["r.pdf"]}`
	var c Conversation
	if err := json.Unmarshal([]byte(input), &c); err != nil {
		t.Fatal(err)
	}
	if len(c.Messages) != 2 {
		t.Fatalf("got %d messages", len(c.Messages))
	}
	if c.Messages[1].Role != RoleAssistant || !c.Messages[1].HasSources() {
		t.Errorf("assistant message = %+v", c.Messages[1])
	}
	if !c.HasAttachment("r.pdf") {
		t.Error("HasAttachment(r.pdf) = false")
	}
}

func TestConversation_Preview(t *testing.T) {
	tests := []struct {
		name string
		conv Conversation
		want string
	}{
		{
			name: "no messages",
			conv: Conversation{ID: "abcdef1234567890"},
			want: "Chat abcdef12...",
		},
		{
			name: "short id",
			conv: Conversation{ID: "abc"},
			want: "Chat abc...",
		},
		{
			name: "short message",
			conv: Conversation{ID: "x", Messages: []Message{NewUserMessage("What is X?")}},
			want: "What is X?",
		},
		{
			name: "long message truncated",
			conv: Conversation{ID: "x", Messages: []Message{
				NewUserMessage("Summarise the quarterly report for the board please"),
			}},
			want: "Summarise the quarterly report...",
		},
		{
			name: "whitespace collapsed",
			conv: Conversation{ID: "x", Messages: []Message{NewUserMessage("a\n\n  b")}},
			want: "a b",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.conv.Preview(30); got != tc.want {
				t.Errorf("Preview(30) = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestConversation_PreviewWide(t *testing.T) {
	c := Conversation{ID: "x", Messages: []Message{NewUserMessage("日本語のテキスト")}}
	got := c.Preview(6)
	if got != "日本語..." {
		t.Errorf("Preview(6) = %q", got)
	}
}

func TestConversation_CloneIsDeep(t *testing.T) {
	c := Conversation{
		ID:          "x",
		Messages:    []Message{{Role: RoleAssistant, Content: "a", Sources: []Source{{Document: "d"}}}},
		Attachments: []string{"d"},
	}
	cp := c.Clone()
	cp.Messages[0].Sources[0].Document = "changed"
	cp.Attachments[0] = "changed"
	if c.Messages[0].Sources[0].Document != "d" || c.Attachments[0] != "d" {
		t.Error("Clone shares backing arrays")
	}
}

func TestConversation_AttachmentSummary(t *testing.T) {
	if got := (Conversation{}).AttachmentSummary(); got != "" {
		t.Errorf("empty = %q", got)
	}
	if got := (Conversation{Attachments: []string{"a"}}).AttachmentSummary(); got != "1 document attached" {
		t.Errorf("one = %q", got)
	}
	if got := (Conversation{Attachments: []string{"a", "b", "c"}}).AttachmentSummary(); got != "3 documents attached" {
		t.Errorf("three = %q", got)
	}
}

// =============================================================================
// UPLOAD STATUS TESTS
// =============================================================================

func TestUploadStatus_Label(t *testing.T) {
	if UploadInProgress.Label() != "Uploading..." {
		t.Error("in-progress label")
	}
	if UploadIdle.Label() != "Upload PDF Document" {
		t.Error("idle label")
	}
	if !(UploadAttempt{Status: UploadFailed}).Finished() {
		t.Error("failed attempt should be finished")
	}
}
