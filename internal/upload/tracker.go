// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package upload tracks document uploads per conversation.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/api"
	"github.com/jeranaias/docchat-tui/internal/logging"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/notify"
	"github.com/jeranaias/docchat-tui/internal/telemetry"
)

var (
	// ErrInProgress is returned when the conversation already has an upload
	// in flight. Nothing is sent and no state changes.
	ErrInProgress = errors.New("an upload is already in progress for this conversation")

	// ErrNotPDF is returned for files that are not PDF documents.
	ErrNotPDF = errors.New("only PDF documents can be uploaded")
)

// sniffLen is how many bytes are read to detect the content type.
const sniffLen = 512

// Uploader sends a document to the backend.
type Uploader interface {
	Upload(ctx context.Context, chatID, fileName string, content io.Reader) (*api.UploadResponse, error)
}

// Invalidator marks a cached conversation stale.
type Invalidator interface {
	Invalidate(chatID string)
}

// File is a document to upload.
type File struct {
	Name    string
	Size    int64
	Content io.Reader
}

// Result describes a successful upload.
type Result struct {
	ChatID   string
	FileName string
	Size     int64
	Chunks   int
	Status   string
	Elapsed  time.Duration
}

// Config holds tracker options.
type Config struct {
	Logger   *zap.Logger
	Metrics  *telemetry.Metrics
	Notifier notify.Notifier

	// OnStatus is called after every status transition.
	OnStatus func(chatID string, status model.UploadStatus)
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker runs the per-conversation upload state machine:
// Idle -> InProgress -> Succeeded|Failed -> Idle. At most one upload per
// conversation is in progress at a time. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	status   map[string]model.UploadStatus
	last     map[string]model.UploadAttempt
	client   Uploader
	cache    Invalidator
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	notifier notify.Notifier
	onStatus func(string, model.UploadStatus)
}

// NewTracker creates a tracker that uploads through client and invalidates
// cache entries on success.
func NewTracker(client Uploader, cache Invalidator, config Config) *Tracker {
	return &Tracker{
		status:   make(map[string]model.UploadStatus),
		last:     make(map[string]model.UploadAttempt),
		client:   client,
		cache:    cache,
		logger:   logging.OrNop(config.Logger),
		metrics:  config.Metrics,
		notifier: notify.OrDiscard(config.Notifier),
		onStatus: config.OnStatus,
	}
}

// Status returns the current upload status for chatID.
func (t *Tracker) Status(chatID string) model.UploadStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status[chatID]
}

// Last returns the most recent finished attempt for chatID.
func (t *Tracker) Last(chatID string) (model.UploadAttempt, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.last[chatID]
	return a, ok
}

func (t *Tracker) setStatus(chatID string, s model.UploadStatus) {
	t.mu.Lock()
	if s == model.UploadIdle {
		delete(t.status, chatID)
	} else {
		t.status[chatID] = s
	}
	t.mu.Unlock()
	if t.onStatus != nil {
		t.onStatus(chatID, s)
	}
}

// begin moves chatID to InProgress unless an upload is already running.
func (t *Tracker) begin(chatID string) bool {
	t.mu.Lock()
	if t.status[chatID] == model.UploadInProgress {
		t.mu.Unlock()
		return false
	}
	t.status[chatID] = model.UploadInProgress
	t.mu.Unlock()
	if t.onStatus != nil {
		t.onStatus(chatID, model.UploadInProgress)
	}
	return true
}

// finish records the attempt, moves to its terminal status and resets to Idle.
func (t *Tracker) finish(chatID string, attempt model.UploadAttempt) {
	t.mu.Lock()
	t.last[chatID] = attempt
	t.mu.Unlock()
	t.setStatus(chatID, attempt.Status)
	t.setStatus(chatID, model.UploadIdle)
}

// =============================================================================
// UPLOAD
// =============================================================================

// Upload sends f to conversation chatID. On success the conversation's cache
// entry is invalidated so its attachments are re-read. On failure the
// attachments are left as they were.
func (t *Tracker) Upload(ctx context.Context, chatID string, f File) (*Result, error) {
	if !t.begin(chatID) {
		t.logger.Info("upload_rejected_in_progress", zap.String("chat_id", chatID), zap.String("file", f.Name))
		t.notifier.Notify(notify.KindWarning, "An upload is already in progress")
		t.metrics.UploadFinished(telemetry.OutcomeRejected, 0)
		return nil, ErrInProgress
	}

	content, err := requirePDF(f)
	if err != nil {
		t.setStatus(chatID, model.UploadIdle)
		if errors.Is(err, ErrNotPDF) {
			t.notifier.Notify(notify.KindError, "Only PDF documents can be uploaded")
		} else {
			t.notifier.Notify(notify.KindError, "Cannot read "+f.Name)
		}
		t.metrics.UploadFinished(telemetry.OutcomeRejected, 0)
		return nil, err
	}

	start := time.Now()
	progress := t.notifier.Notify(notify.KindStatus, progressText(f))
	t.logger.Info("upload_started", zap.String("chat_id", chatID), zap.String("file", f.Name), zap.Int64("size", f.Size))

	resp, err := t.client.Upload(ctx, chatID, f.Name, content)
	if err != nil {
		t.finish(chatID, model.UploadAttempt{Status: model.UploadFailed, FileName: f.Name, Size: f.Size, Err: err})
		t.notifier.Replace(progress, notify.KindError, "Upload failed: "+api.UserMessage(err))
		t.metrics.UploadFinished(telemetry.OutcomeError, f.Size)
		t.logger.Warn("upload_failed", zap.String("chat_id", chatID), zap.String("file", f.Name), zap.Error(err))
		return nil, fmt.Errorf("upload %s: %w", f.Name, err)
	}

	result := &Result{
		ChatID:   chatID,
		FileName: f.Name,
		Size:     f.Size,
		Chunks:   resp.Chunks,
		Status:   resp.Status,
		Elapsed:  time.Since(start),
	}
	if t.cache != nil {
		t.cache.Invalidate(chatID)
	}
	t.finish(chatID, model.UploadAttempt{Status: model.UploadSucceeded, FileName: f.Name, Size: f.Size, Chunks: resp.Chunks})
	t.notifier.Replace(progress, notify.KindSuccess, successText(result))
	t.metrics.UploadFinished(telemetry.OutcomeOK, f.Size)
	t.logger.Info("upload_succeeded",
		zap.String("chat_id", chatID),
		zap.String("file", f.Name),
		zap.Int("chunks", resp.Chunks),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// UploadPath opens the file at path and uploads it.
func (t *Tracker) UploadPath(ctx context.Context, chatID, path string) (*Result, error) {
	fh, err := os.Open(path)
	if err != nil {
		t.notifier.Notify(notify.KindError, "Cannot open "+filepath.Base(path))
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		t.notifier.Notify(notify.KindError, filepath.Base(path)+" is a directory")
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return t.Upload(ctx, chatID, File{Name: filepath.Base(path), Size: info.Size(), Content: fh})
}

// =============================================================================
// HELPERS
// =============================================================================

// requirePDF checks the extension and leading bytes of f and returns a
// reader that replays the sniffed bytes.
func requirePDF(f File) (io.Reader, error) {
	if f.Content == nil {
		return nil, fmt.Errorf("%w: %s has no content", ErrNotPDF, f.Name)
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	head = head[:n]

	if !IsPDF(f.Name, head) {
		return nil, fmt.Errorf("%w: %s", ErrNotPDF, f.Name)
	}
	return io.MultiReader(bytes.NewReader(head), f.Content), nil
}

// IsPDF reports whether a file looks like a PDF by extension or content.
func IsPDF(name string, head []byte) bool {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return true
	}
	return len(head) > 0 && http.DetectContentType(head) == "application/pdf"
}

func progressText(f File) string {
	if f.Size > 0 {
		return fmt.Sprintf("Uploading %s (%s)...", f.Name, humanize.Bytes(uint64(f.Size)))
	}
	return fmt.Sprintf("Uploading %s...", f.Name)
}

func successText(r *Result) string {
	if r.Chunks > 0 {
		return fmt.Sprintf("Uploaded %s (%d chunks indexed)", r.FileName, r.Chunks)
	}
	return "Uploaded " + r.FileName
}
