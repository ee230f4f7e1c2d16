// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation implements the streaming conversation controller.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/api"
	"github.com/jeranaias/docchat-tui/internal/logging"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/notify"
	"github.com/jeranaias/docchat-tui/internal/telemetry"
)

var (
	// ErrEmptyQuery is returned for an empty or whitespace-only query.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrBusy is returned when a query is already in flight.
	ErrBusy = errors.New("a query is already in progress")

	// ErrClosed is returned once the controller has been closed, including
	// by a query whose stream was cut short by Close.
	ErrClosed = errors.New("conversation closed")
)

// Querier opens an answer stream for a query.
type Querier interface {
	Query(ctx context.Context, chatID, text string) (*api.Stream, error)
}

// Store is the conversation cache the controller reads and reconciles through.
type Store interface {
	Get(ctx context.Context, id string) (model.Conversation, error)
	Refetch(ctx context.Context, id string) (model.Conversation, error)
}

// Config holds controller options.
type Config struct {
	Logger   *zap.Logger
	Metrics  *telemetry.Metrics
	Notifier notify.Notifier
}

// Result describes a completed query.
type Result struct {
	Answer     string
	Fragments  int
	Sources    []model.Source
	Reconciled bool
	Elapsed    time.Duration
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the message history and stream buffer of one active
// conversation. It runs Idle -> Sending -> Streaming -> Finalizing -> Idle,
// with Error reachable from Sending and Streaming.
//
// All state changes happen under one mutex, so the busy check and the move
// to Sending are atomic: concurrent SubmitQuery calls issue one request.
type Controller struct {
	mu          sync.Mutex
	chatID      string
	state       State
	messages    []model.Message
	attachments []string
	buffer      StreamBuffer
	closed      bool

	subs    map[int]func(Event)
	nextSub int

	lifetime context.Context
	cancel   context.CancelFunc

	querier  Querier
	store    Store
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	notifier notify.Notifier
}

// New creates a controller for chatID. The controller starts Idle with no
// messages; call Load to read the conversation.
func New(chatID string, querier Querier, store Store, config Config) *Controller {
	lifetime, cancel := context.WithCancel(context.Background())
	return &Controller{
		chatID:      chatID,
		messages:    []model.Message{},
		attachments: []string{},
		subs:        make(map[int]func(Event)),
		lifetime:    lifetime,
		cancel:      cancel,
		querier:     querier,
		store:       store,
		logger:      logging.OrNop(config.Logger).With(zap.String("chat_id", chatID)),
		metrics:     config.Metrics,
		notifier:    notify.OrDiscard(config.Notifier),
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// ChatID returns the conversation id.
func (c *Controller) ChatID() string {
	return c.chatID
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a copy of the committed messages.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneMessages(c.messages)
}

// Attachments returns a copy of the attachment names.
func (c *Controller) Attachments() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.attachments...)
}

// Buffer returns the live stream buffer. It is empty outside a query.
func (c *Controller) Buffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.String()
}

// Closed reports whether Close was called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn for every event and returns a function that
// removes it. Events are delivered synchronously and in order, outside the
// controller's lock; fn may call accessors but must not block for long.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// eventLocked builds an event from the current state. Caller holds c.mu.
func (c *Controller) eventLocked(kind EventKind) Event {
	return Event{Kind: kind, ChatID: c.chatID, State: c.state, Buffer: c.buffer.String()}
}

// subscribersLocked returns the current subscribers. Caller holds c.mu.
func (c *Controller) subscribersLocked() []func(Event) {
	out := make([]func(Event), 0, len(c.subs))
	for i := 0; i < c.nextSub; i++ {
		if fn, ok := c.subs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func emit(subs []func(Event), events ...Event) {
	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the conversation through the store and replaces the local
// messages and attachments. It is a no-op while a query is in flight.
func (c *Controller) Load(ctx context.Context) error {
	conv, err := c.store.Get(ctx, c.chatID)
	if err != nil {
		c.notifier.Notify(notify.KindError, "Failed to load conversation: "+api.UserMessage(err))
		return fmt.Errorf("load conversation: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.messages = cloneMessages(conv.Messages)
	c.attachments = append([]string{}, conv.Attachments...)
	events := []Event{c.eventLocked(EventMessages), c.eventLocked(EventAttachments)}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	emit(subs, events...)
	return nil
}

// RefreshAttachments re-reads the conversation (normally after an upload
// invalidated it) and updates the attachment list. Messages are replaced
// too when no query is in flight.
func (c *Controller) RefreshAttachments(ctx context.Context) error {
	conv, err := c.store.Get(ctx, c.chatID)
	if err != nil {
		c.logger.Warn("attachment_refresh_failed", zap.Error(err))
		return fmt.Errorf("refresh attachments: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.attachments = append([]string{}, conv.Attachments...)
	events := []Event{c.eventLocked(EventAttachments)}
	if c.state == StateIdle {
		c.messages = cloneMessages(conv.Messages)
		events = append(events, c.eventLocked(EventMessages))
	}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	emit(subs, events...)
	return nil
}

// =============================================================================
// QUERY
// =============================================================================

// SubmitQuery sends text and consumes the answer stream until it ends.
//
// Empty queries fail with ErrEmptyQuery and a busy controller with ErrBusy;
// neither sends a request nor changes state. An accepted query appends the
// user message immediately; it is never rolled back.
//
// On a clean end of stream the buffer is committed as an assistant message
// and the conversation is re-read so server-only fields such as sources
// replace the local copy. If the stream fails, the partial buffer is
// discarded, a notification is shown and the error is returned. If the
// controller is closed mid-query nothing is committed and ErrClosed is
// returned.
func (c *Controller) SubmitQuery(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.messages = append(c.messages, model.NewUserMessage(text))
	c.buffer.Reset()
	c.state = StateSending
	events := []Event{c.eventLocked(EventMessages), c.eventLocked(EventState)}
	subs := c.subscribersLocked()
	c.mu.Unlock()
	emit(subs, events...)

	start := time.Now()
	c.logger.Info("query_submitted", zap.Int("length", len(text)))

	qctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.lifetime, cancel)
	defer stop()

	stream, err := c.querier.Query(qctx, c.chatID, text)
	if err != nil {
		return nil, c.fail(qctx, err)
	}
	defer stream.Close()

	for {
		frag, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, c.fail(qctx, err)
		}
		if frag == "" {
			continue
		}
		c.appendFragment(frag)
	}

	answer, fragments, err := c.commit()
	if err != nil {
		return nil, err
	}
	result := &Result{Answer: answer, Fragments: fragments}

	conv, err := c.store.Refetch(qctx, c.chatID)
	if err != nil {
		if c.lifetime.Err() != nil {
			c.toIdle(StateFinalizing)
			c.metrics.StreamFinished(telemetry.OutcomeCancelled)
			return nil, ErrClosed
		}
		if qctx.Err() != nil {
			c.logger.Debug("reconcile_cancelled", zap.Error(err))
		} else {
			c.logger.Warn("reconcile_failed", zap.Error(err))
			c.notifier.Notify(notify.KindWarning, "Answer saved locally; could not refresh conversation: "+api.UserMessage(err))
		}
	} else {
		c.reconcile(conv)
		result.Reconciled = true
		if n := len(conv.Messages); n > 0 && conv.Messages[n-1].Role == model.RoleAssistant {
			result.Sources = conv.Messages[n-1].Sources
		}
	}

	c.toIdle(StateFinalizing)
	result.Elapsed = time.Since(start)
	c.metrics.StreamFinished(telemetry.OutcomeOK)
	c.logger.Info("query_completed",
		zap.Int("fragments", fragments),
		zap.Int("bytes", len(answer)),
		zap.Bool("reconciled", result.Reconciled),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// appendFragment adds a fragment to the buffer, moving Sending -> Streaming
// on the first one.
func (c *Controller) appendFragment(frag string) {
	c.mu.Lock()
	var events []Event
	if c.state == StateSending {
		c.state = StateStreaming
		events = append(events, c.eventLocked(EventState))
	}
	c.buffer.Append(frag)
	ev := c.eventLocked(EventFragment)
	ev.Fragment = frag
	events = append(events, ev)
	subs := c.subscribersLocked()
	c.mu.Unlock()

	emit(subs, events...)
}

// commit appends the buffer as an assistant message and moves to
// Finalizing. A closed controller commits nothing.
func (c *Controller) commit() (string, int, error) {
	c.mu.Lock()
	if c.closed {
		c.buffer.Reset()
		c.state = StateIdle
		ev := c.eventLocked(EventState)
		subs := c.subscribersLocked()
		c.mu.Unlock()
		emit(subs, ev)
		c.metrics.StreamFinished(telemetry.OutcomeCancelled)
		c.logger.Info("query_discarded_closed")
		return "", 0, ErrClosed
	}

	answer := c.buffer.String()
	fragments := c.buffer.Fragments()
	c.messages = append(c.messages, model.NewAssistantMessage(answer))
	c.buffer.Reset()
	c.state = StateFinalizing
	events := []Event{c.eventLocked(EventMessages), c.eventLocked(EventState)}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	emit(subs, events...)
	return answer, fragments, nil
}

// reconcile replaces the committed sequence with the server's copy.
func (c *Controller) reconcile(conv model.Conversation) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.messages = cloneMessages(conv.Messages)
	c.attachments = append([]string{}, conv.Attachments...)
	events := []Event{c.eventLocked(EventMessages), c.eventLocked(EventAttachments)}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	emit(subs, events...)
}

// toIdle returns to Idle if the controller is still in from.
func (c *Controller) toIdle(from State) {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	ev := c.eventLocked(EventState)
	subs := c.subscribersLocked()
	c.mu.Unlock()

	emit(subs, ev)
}

// fail discards the partial buffer and returns to Idle. A failure caused by
// Close or by cancelling ctx is not reported to the user.
func (c *Controller) fail(ctx context.Context, err error) error {
	cancelled := ctx.Err() != nil
	closedByOwner := c.lifetime.Err() != nil

	c.mu.Lock()
	discarded := c.buffer.Len()
	c.buffer.Reset()
	var events []Event
	if !cancelled {
		c.state = StateError
		ev := c.eventLocked(EventState)
		ev.Err = err
		events = append(events, ev)
	}
	c.state = StateIdle
	events = append(events, c.eventLocked(EventState))
	subs := c.subscribersLocked()
	c.mu.Unlock()

	emit(subs, events...)

	switch {
	case closedByOwner:
		c.metrics.StreamFinished(telemetry.OutcomeCancelled)
		c.logger.Info("query_cancelled_closed", zap.Int("discarded_bytes", discarded))
		return ErrClosed
	case cancelled:
		c.metrics.StreamFinished(telemetry.OutcomeCancelled)
		c.logger.Info("query_cancelled", zap.Int("discarded_bytes", discarded))
		return fmt.Errorf("query cancelled: %w", ctx.Err())
	}

	c.metrics.StreamFinished(telemetry.OutcomeError)
	c.logger.Warn("query_failed", zap.Int("discarded_bytes", discarded), zap.Error(err))
	c.notifier.Notify(notify.KindError, "Query failed: "+api.UserMessage(err))
	return fmt.Errorf("query: %w", err)
}

// =============================================================================
// LIFETIME
// =============================================================================

// Close cancels any in-flight query and rejects further submissions. The
// cancelled query commits nothing and shows no notification. Close is safe
// to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	state := c.state
	c.subs = make(map[int]func(Event))
	c.mu.Unlock()

	c.cancel()
	c.logger.Debug("controller_closed", zap.String("state", state.String()))
}

func cloneMessages(in []model.Message) []model.Message {
	conv := model.Conversation{Messages: in}
	return conv.Clone().Messages
}
