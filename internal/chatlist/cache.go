// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatlist caches the conversation list and individual conversations.
package chatlist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/api"
	"github.com/jeranaias/docchat-tui/internal/logging"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/notify"
	"github.com/jeranaias/docchat-tui/internal/telemetry"
)

// DefaultStaleAfter is the default staleness window.
const DefaultStaleAfter = 30 * time.Second

// Backend is the subset of the API client the cache reads through.
type Backend interface {
	ListChats(ctx context.Context) ([]model.Conversation, error)
	CreateChat(ctx context.Context) (model.Conversation, error)
	DeleteChat(ctx context.Context, id string) error
	GetChat(ctx context.Context, id string) (model.Conversation, error)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds cache options.
type Config struct {
	// StaleAfter is how long a fetched list or conversation is served
	// without refreshing. Zero disables time-based staleness; only explicit
	// invalidation then triggers a refresh.
	StaleAfter time.Duration

	Logger   *zap.Logger
	Metrics  *telemetry.Metrics
	Notifier notify.Notifier

	// Now overrides time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{StaleAfter: DefaultStaleAfter}
}

// =============================================================================
// CACHE
// =============================================================================

type entry struct {
	conv      model.Conversation
	fetchedAt time.Time
	stale     bool
	// version is the cache version that last wrote the entry.
	version uint64
}

// Cache is a read-through, write-through cache of conversation summaries
// keyed by conversation id. The backend is the source of truth: create and
// delete change the cache only after the server confirms them, and other
// writers invalidate and refetch instead of mutating entries.
//
// The cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	backend Backend
	config  Config
	logger  *zap.Logger
	notify  notify.Notifier

	order   []string
	entries map[string]*entry
	deleted map[string]struct{}

	listLoaded    bool
	listStale     bool
	invalidations uint64
	listFetchedAt time.Time
	version       uint64
}

// New creates a cache over backend.
func New(backend Backend, config Config) *Cache {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.StaleAfter < 0 {
		config.StaleAfter = 0
	}
	return &Cache{
		backend: backend,
		config:  config,
		logger:  logging.OrNop(config.Logger),
		notify:  notify.OrDiscard(config.Notifier),
		entries: make(map[string]*entry),
		deleted: make(map[string]struct{}),
	}
}

func (c *Cache) expired(at time.Time) bool {
	if c.config.StaleAfter == 0 {
		return false
	}
	return c.config.Now().Sub(at) >= c.config.StaleAfter
}

// snapshotLocked returns a copy of the ordered summaries.
func (c *Cache) snapshotLocked() []model.Conversation {
	out := make([]model.Conversation, 0, len(c.order))
	for _, id := range c.order {
		if e, ok := c.entries[id]; ok {
			out = append(out, e.conv.Clone())
		}
	}
	return out
}

// =============================================================================
// LIST
// =============================================================================

// List returns the cached conversations, refreshing from the backend when
// the list was never loaded, was invalidated, or is older than StaleAfter.
// When the refresh fails the previous snapshot is returned with the error
// and a notification is surfaced.
func (c *Cache) List(ctx context.Context) ([]model.Conversation, error) {
	c.mu.Lock()
	fresh := c.listLoaded && !c.listStale && !c.expired(c.listFetchedAt)
	if fresh {
		out := c.snapshotLocked()
		c.mu.Unlock()
		c.config.Metrics.CacheLoad("list", "hit")
		return out, nil
	}
	result := "miss"
	if c.listLoaded {
		result = "stale"
	}
	start, startInv := c.version, c.invalidations
	c.mu.Unlock()
	c.config.Metrics.CacheLoad("list", result)

	convs, err := c.backend.ListChats(ctx)
	if err != nil {
		c.logger.Warn("chat_list_refresh_failed", zap.Error(err))
		c.notify.Notify(notify.KindError, "Failed to load chats: "+api.UserMessage(err))
		return c.Snapshot(), fmt.Errorf("list chats: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	invalidatedDuring := c.invalidations != startInv
	c.mergeListLocked(convs, start, invalidatedDuring)
	c.listLoaded = true
	c.listStale = invalidatedDuring
	c.listFetchedAt = c.config.Now()
	c.logger.Debug("chat_list_refreshed", zap.Int("count", len(c.order)))
	return c.snapshotLocked(), nil
}

// mergeListLocked replaces the cached list with convs, a response to a fetch
// that began at cache version start. Creates, deletes and refreshes the
// cache saw after start are newer than the response and win over it:
// tombstoned ids stay out, entries written since start keep their content,
// and entries created since start but missing from convs are kept at the end.
// When invalidatedDuring is set, entries that were stale stay stale.
func (c *Cache) mergeListLocked(convs []model.Conversation, start uint64, invalidatedDuring bool) {
	c.version++
	now := c.config.Now()
	order := make([]string, 0, len(convs))
	entries := make(map[string]*entry, len(convs))
	for _, conv := range convs {
		if _, dup := entries[conv.ID]; dup {
			continue
		}
		if _, gone := c.deleted[conv.ID]; gone {
			continue
		}
		e, ok := c.entries[conv.ID]
		if ok && e.version > start {
			entries[conv.ID] = e
		} else {
			stale := ok && e.stale && invalidatedDuring
			entries[conv.ID] = &entry{conv: conv.Clone(), fetchedAt: now, stale: stale, version: c.version}
		}
		order = append(order, conv.ID)
	}
	for _, id := range c.order {
		if _, ok := entries[id]; ok {
			continue
		}
		if e, ok := c.entries[id]; ok && e.version > start {
			entries[id] = e
			order = append(order, id)
		}
	}
	c.order = order
	c.entries = entries
}

// Snapshot returns the cached conversations without touching the backend.
func (c *Cache) Snapshot() []model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// =============================================================================
// CREATE / DELETE
// =============================================================================

// Create asks the backend for a new conversation and, once confirmed, appends
// it to the cache. The caller navigates to the returned conversation.
func (c *Cache) Create(ctx context.Context) (model.Conversation, error) {
	conv, err := c.backend.CreateChat(ctx)
	if err != nil {
		c.logger.Warn("chat_create_failed", zap.Error(err))
		c.notify.Notify(notify.KindError, "Failed to create chat: "+api.UserMessage(err))
		return model.Conversation{}, fmt.Errorf("create chat: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.deleted, conv.ID)
	if _, exists := c.entries[conv.ID]; !exists {
		c.order = append(c.order, conv.ID)
	}
	c.version++
	c.entries[conv.ID] = &entry{conv: conv.Clone(), fetchedAt: c.config.Now(), version: c.version}
	c.logger.Info("chat_created", zap.String("chat_id", conv.ID))
	return conv.Clone(), nil
}

// Delete asks the backend to delete id and, once confirmed, removes it from
// the cache. A nil return means the caller should tell the navigation guard.
func (c *Cache) Delete(ctx context.Context, id string) error {
	if err := c.backend.DeleteChat(ctx, id); err != nil {
		c.logger.Warn("chat_delete_failed", zap.String("chat_id", id), zap.Error(err))
		c.notify.Notify(notify.KindError, "Failed to delete chat: "+api.UserMessage(err))
		return fmt.Errorf("delete chat %s: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
	c.deleted[id] = struct{}{}
	c.version++
	c.logger.Info("chat_deleted", zap.String("chat_id", id))
	return nil
}

func (c *Cache) removeLocked(id string) {
	delete(c.entries, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// =============================================================================
// SINGLE CONVERSATION
// =============================================================================

// Get returns conversation id, fetching it when it is missing, invalidated
// or older than StaleAfter. A fetched conversation replaces its list entry
// in place. Get does not notify; callers decide how to surface failures.
func (c *Cache) Get(ctx context.Context, id string) (model.Conversation, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if ok && !e.stale && !c.expired(e.fetchedAt) {
		out := e.conv.Clone()
		c.mu.Unlock()
		c.config.Metrics.CacheLoad("chat", "hit")
		return out, nil
	}
	c.mu.Unlock()
	if ok {
		c.config.Metrics.CacheLoad("chat", "stale")
	} else {
		c.config.Metrics.CacheLoad("chat", "miss")
	}

	conv, err := c.backend.GetChat(ctx, id)
	if err != nil {
		c.logger.Warn("chat_fetch_failed", zap.String("chat_id", id), zap.Error(err))
		return model.Conversation{}, fmt.Errorf("get chat %s: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, gone := c.deleted[id]; gone {
		return conv.Clone(), nil
	}
	c.version++
	if existing, ok := c.entries[id]; ok {
		existing.conv = conv.Clone()
		existing.fetchedAt = c.config.Now()
		existing.stale = false
		existing.version = c.version
	} else {
		c.order = append(c.order, id)
		c.entries[id] = &entry{conv: conv.Clone(), fetchedAt: c.config.Now(), version: c.version}
	}
	return conv.Clone(), nil
}

// Refetch invalidates id and reads it back from the backend.
func (c *Cache) Refetch(ctx context.Context, id string) (model.Conversation, error) {
	c.Invalidate(id)
	return c.Get(ctx, id)
}

// =============================================================================
// INVALIDATION
// =============================================================================

// Invalidate marks id stale so the next Get fetches it, and marks the list
// stale so previews are refreshed on the next List.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		e.stale = true
	}
	c.listStale = true
	c.invalidations++
	c.logger.Debug("chat_invalidated", zap.String("chat_id", id))
}

// InvalidateAll marks every entry and the list stale.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.stale = true
	}
	c.listStale = true
	c.invalidations++
}

// =============================================================================
// INSPECTION
// =============================================================================

// Peek returns the cached conversation without fetching.
func (c *Cache) Peek(id string) (model.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return model.Conversation{}, false
	}
	return e.conv.Clone(), true
}

// IsStale reports whether id would be refetched on the next Get.
func (c *Cache) IsStale(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return !ok || e.stale || c.expired(e.fetchedAt)
}

// Len returns the number of cached conversations.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Version increases on every change to the cached contents. Views compare
// it to decide whether to re-render.
func (c *Cache) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}
