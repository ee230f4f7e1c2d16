// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package nav tracks the active conversation and redirects away from it when
// it is deleted.
package nav

import (
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/logging"
)

// Navigator switches the visible view.
type Navigator interface {
	ShowConversation(id string)
	ShowLanding()
}

// Guard holds the id of the conversation being viewed. It is safe for
// concurrent use.
type Guard struct {
	mu     sync.Mutex
	active string
	nav    Navigator
	logger *zap.Logger
}

// NewGuard creates a guard that drives nav. A nil nav is allowed.
func NewGuard(nav Navigator, logger *zap.Logger) *Guard {
	return &Guard{nav: nav, logger: logging.OrNop(logger)}
}

// Open makes id the active conversation and shows it.
func (g *Guard) Open(id string) {
	g.mu.Lock()
	g.active = id
	g.mu.Unlock()

	g.logger.Debug("navigate_conversation", zap.String("chat_id", id))
	if g.nav != nil {
		g.nav.ShowConversation(id)
	}
}

// Landing clears the active conversation and shows the landing view.
func (g *Guard) Landing() {
	g.mu.Lock()
	g.active = ""
	g.mu.Unlock()

	g.logger.Debug("navigate_landing")
	if g.nav != nil {
		g.nav.ShowLanding()
	}
}

// Active returns the active conversation id, or "" on the landing view.
func (g *Guard) Active() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// IsActive reports whether id is being viewed.
func (g *Guard) IsActive(id string) bool {
	return id != "" && g.Active() == id
}

// Deleted is called once the backend confirms deletion of id. If id is the
// active conversation the view moves to landing and Deleted returns true;
// otherwise nothing changes.
func (g *Guard) Deleted(id string) bool {
	g.mu.Lock()
	if id == "" || g.active != id {
		g.mu.Unlock()
		return false
	}
	g.active = ""
	g.mu.Unlock()

	g.logger.Info("active_chat_deleted", zap.String("chat_id", id))
	if g.nav != nil {
		g.nav.ShowLanding()
	}
	return true
}

// =============================================================================
// RECORDING NAVIGATOR
// =============================================================================

// Recorder is a Navigator that remembers each navigation, for headless
// commands and tests. Landing views are recorded as "".
type Recorder struct {
	mu    sync.Mutex
	views []string
}

// ShowConversation records a conversation view.
func (r *Recorder) ShowConversation(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, id)
}

// ShowLanding records a landing view.
func (r *Recorder) ShowLanding() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, "")
}

// Views returns every recorded view in order.
func (r *Recorder) Views() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.views))
	copy(out, r.views)
	return out
}

// Current returns the last recorded view and whether any was recorded.
func (r *Recorder) Current() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return "", false
	}
	return r.views[len(r.views)-1], true
}
