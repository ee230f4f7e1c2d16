// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/docchat-tui/internal/conversation"
	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// BRIDGE
// =============================================================================

// Bridge queues messages produced on other goroutines and forwards them to
// the program one at a time. Send never blocks, so it is safe to call from
// inside Update as well as from commands.
type Bridge struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []tea.Msg
	closed bool
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	b := &Bridge{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send queues msg.
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.queue = append(b.queue, msg)
	b.cond.Signal()
}

// Forward delivers queued messages to send until Close is called. It is
// normally run in its own goroutine with tea.Program.Send.
func (b *Bridge) Forward(send func(tea.Msg)) {
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if b.closed {
			b.mu.Unlock()
			return
		}
		msg := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]
		b.mu.Unlock()

		send(msg)
	}
}

// Attach starts forwarding to p.
func (b *Bridge) Attach(p *tea.Program) {
	go b.Forward(p.Send)
}

// Drain removes and returns everything queued. Used when no program is
// attached.
func (b *Bridge) Drain() []tea.Msg {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queue
	b.queue = nil
	return out
}

// Close stops Forward and drops anything still queued.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.queue = nil
	b.cond.Broadcast()
}

// =============================================================================
// ADAPTERS
// =============================================================================

// ShowConversation implements nav.Navigator.
func (b *Bridge) ShowConversation(id string) {
	b.Send(NavigateMsg{ChatID: id})
}

// ShowLanding implements nav.Navigator.
func (b *Bridge) ShowLanding() {
	b.Send(NavigateMsg{})
}

// UploadStatus forwards tracker status changes.
func (b *Bridge) UploadStatus(chatID string, status model.UploadStatus) {
	b.Send(UploadStatusMsg{ChatID: chatID, Status: status})
}

// ControllerEvent forwards controller events.
func (b *Bridge) ControllerEvent(e conversation.Event) {
	b.Send(ControllerEventMsg{Event: e})
}
