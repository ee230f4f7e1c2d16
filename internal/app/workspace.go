// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires the chat list cache, upload tracker, navigation guard and
// the active conversation controller together.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/chatlist"
	"github.com/jeranaias/docchat-tui/internal/conversation"
	"github.com/jeranaias/docchat-tui/internal/logging"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/nav"
	"github.com/jeranaias/docchat-tui/internal/notify"
	"github.com/jeranaias/docchat-tui/internal/telemetry"
	"github.com/jeranaias/docchat-tui/internal/upload"
)

// ErrNoActiveChat is returned by operations that need an open conversation.
var ErrNoActiveChat = errors.New("no conversation is open")

// Backend is everything the workspace needs from the API client.
type Backend interface {
	chatlist.Backend
	upload.Uploader
	conversation.Querier
}

// Options configures a Workspace.
type Options struct {
	StaleAfter time.Duration
	Logger     *zap.Logger
	Metrics    *telemetry.Metrics
	Notifier   notify.Notifier
	Navigator  nav.Navigator

	// OnUploadStatus is forwarded to the upload tracker.
	OnUploadStatus func(chatID string, status model.UploadStatus)
}

// =============================================================================
// WORKSPACE
// =============================================================================

// Workspace is the single-window session: one chat list cache and at most
// one open conversation. Each operation returns its result explicitly; the
// caller decides what to render.
type Workspace struct {
	mu      sync.Mutex
	active  *conversation.Controller
	backend Backend

	cache   *chatlist.Cache
	tracker *upload.Tracker
	guard   *nav.Guard

	logger   *zap.Logger
	metrics  *telemetry.Metrics
	notifier notify.Notifier
}

// New creates a workspace on backend.
func New(backend Backend, opts Options) *Workspace {
	logger := logging.OrNop(opts.Logger)
	notifier := notify.OrDiscard(opts.Notifier)

	cache := chatlist.New(backend, chatlist.Config{
		StaleAfter: opts.StaleAfter,
		Logger:     logger,
		Metrics:    opts.Metrics,
		Notifier:   notifier,
	})
	tracker := upload.NewTracker(backend, cache, upload.Config{
		Logger:   logger,
		Metrics:  opts.Metrics,
		Notifier: notifier,
		OnStatus: opts.OnUploadStatus,
	})

	return &Workspace{
		backend:  backend,
		cache:    cache,
		tracker:  tracker,
		guard:    nav.NewGuard(opts.Navigator, logger),
		logger:   logger,
		metrics:  opts.Metrics,
		notifier: notifier,
	}
}

// Cache returns the chat list cache.
func (w *Workspace) Cache() *chatlist.Cache { return w.cache }

// Tracker returns the upload tracker.
func (w *Workspace) Tracker() *upload.Tracker { return w.tracker }

// Guard returns the navigation guard.
func (w *Workspace) Guard() *nav.Guard { return w.guard }

// Active returns the open conversation id, or "" on the landing view.
func (w *Workspace) Active() string {
	return w.guard.Active()
}

// Controller returns the open conversation's controller, or nil.
func (w *Workspace) Controller() *conversation.Controller {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// Chats returns the conversation list, refreshing it when stale.
func (w *Workspace) Chats(ctx context.Context) ([]model.Conversation, error) {
	return w.cache.List(ctx)
}

// NewChat creates a conversation and opens it.
func (w *Workspace) NewChat(ctx context.Context) (*conversation.Controller, error) {
	conv, err := w.cache.Create(ctx)
	if err != nil {
		return nil, err
	}
	return w.OpenChat(ctx, conv.ID)
}

// OpenChat closes the current conversation, loads id and makes it active.
// If loading fails the previous view is left as it was.
func (w *Workspace) OpenChat(ctx context.Context, id string) (*conversation.Controller, error) {
	ctrl := conversation.New(id, w.backend, w.cache, conversation.Config{
		Logger:   w.logger,
		Metrics:  w.metrics,
		Notifier: w.notifier,
	})
	if err := ctrl.Load(ctx); err != nil {
		ctrl.Close()
		return nil, err
	}

	w.mu.Lock()
	prev := w.active
	w.active = ctrl
	w.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	w.guard.Open(id)
	return ctrl, nil
}

// CloseChat closes the open conversation and returns to landing.
func (w *Workspace) CloseChat() {
	w.mu.Lock()
	prev := w.active
	w.active = nil
	w.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	w.guard.Landing()
}

// DeleteChat deletes id. If it is the open conversation its controller is
// closed first, so an answer still streaming is never committed against
// the deleted id, and the view returns to landing. It reports whether the
// view was redirected.
func (w *Workspace) DeleteChat(ctx context.Context, id string) (bool, error) {
	if err := w.cache.Delete(ctx, id); err != nil {
		return false, err
	}

	w.mu.Lock()
	var closing *conversation.Controller
	if w.active != nil && w.active.ChatID() == id {
		closing = w.active
		w.active = nil
	}
	w.mu.Unlock()

	if closing != nil {
		closing.Close()
	}
	redirected := w.guard.Deleted(id)
	if redirected {
		w.notifier.Notify(notify.KindStatus, "Conversation deleted")
	}
	return redirected, nil
}

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// Submit sends a query in the open conversation.
func (w *Workspace) Submit(ctx context.Context, text string) (*conversation.Result, error) {
	ctrl := w.Controller()
	if ctrl == nil {
		return nil, ErrNoActiveChat
	}
	return ctrl.SubmitQuery(ctx, text)
}

// Upload sends the file at path to the open conversation and refreshes its
// attachment list.
func (w *Workspace) Upload(ctx context.Context, path string) (*upload.Result, error) {
	ctrl := w.Controller()
	if ctrl == nil {
		return nil, ErrNoActiveChat
	}
	res, err := w.tracker.UploadPath(ctx, ctrl.ChatID(), path)
	if err != nil {
		return nil, err
	}
	w.refreshAfterUpload(ctx, ctrl)
	return res, nil
}

// UploadFile sends f to the open conversation and refreshes its attachment
// list.
func (w *Workspace) UploadFile(ctx context.Context, f upload.File) (*upload.Result, error) {
	ctrl := w.Controller()
	if ctrl == nil {
		return nil, ErrNoActiveChat
	}
	res, err := w.tracker.Upload(ctx, ctrl.ChatID(), f)
	if err != nil {
		return nil, err
	}
	w.refreshAfterUpload(ctx, ctrl)
	return res, nil
}

// refreshAfterUpload re-reads attachments if ctrl is still the open one.
func (w *Workspace) refreshAfterUpload(ctx context.Context, ctrl *conversation.Controller) {
	if w.Controller() != ctrl {
		return
	}
	if err := ctrl.RefreshAttachments(ctx); err != nil && !errors.Is(err, conversation.ErrClosed) {
		w.logger.Warn("post_upload_refresh_failed", zap.String("chat_id", ctrl.ChatID()), zap.Error(err))
	}
}

// Close closes the open conversation.
func (w *Workspace) Close() {
	w.mu.Lock()
	prev := w.active
	w.active = nil
	w.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// String describes the workspace for logs.
func (w *Workspace) String() string {
	return fmt.Sprintf("workspace(active=%q, cached=%d)", w.Active(), w.cache.Len())
}
