// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer batches answer fragments for rendering. Fragments are
// accumulated and released either when batchSize fragments are waiting or
// when a frame interval has passed since the last flush.
//
// Fragments arrive through the bridge while Flush runs in the update loop,
// so all operations take the mutex.
type StreamingBuffer struct {
	mu        sync.Mutex
	buffer    strings.Builder
	pending   int
	lastFlush time.Time

	batchSize int
	interval  time.Duration
	now       func() time.Time
}

const (
	defaultBatchSize = 15
	defaultMaxFPS    = 30
)

// NewStreamingBuffer creates a buffer flushing at most 30 times a second.
func NewStreamingBuffer() *StreamingBuffer {
	return NewStreamingBufferWithConfig(defaultBatchSize, defaultMaxFPS)
}

// NewStreamingBufferWithConfig creates a buffer with custom thresholds.
// Out of range values fall back to the defaults.
func NewStreamingBufferWithConfig(batchSize, maxFPS int) *StreamingBuffer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = defaultMaxFPS
	}
	return &StreamingBuffer{
		batchSize: batchSize,
		interval:  time.Second / time.Duration(maxFPS),
		now:       time.Now,
		lastFlush: time.Now(),
	}
}

// Write adds a fragment.
func (sb *StreamingBuffer) Write(fragment string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.buffer.WriteString(fragment)
	sb.pending++
}

// Flush returns the accumulated text if a threshold has been reached.
func (sb *StreamingBuffer) Flush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.buffer.Len() == 0 {
		return "", false
	}
	if sb.pending < sb.batchSize && sb.now().Sub(sb.lastFlush) < sb.interval {
		return "", false
	}
	return sb.takeLocked(), true
}

// ForceFlush returns the accumulated text regardless of thresholds.
func (sb *StreamingBuffer) ForceFlush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.buffer.Len() == 0 {
		return "", false
	}
	return sb.takeLocked(), true
}

func (sb *StreamingBuffer) takeLocked() string {
	content := sb.buffer.String()
	sb.buffer.Reset()
	sb.pending = 0
	sb.lastFlush = sb.now()
	return content
}

// Reset drops everything buffered.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.buffer.Reset()
	sb.pending = 0
	sb.lastFlush = sb.now()
}

// Pending returns the number of fragments waiting.
func (sb *StreamingBuffer) Pending() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.pending
}

// streamTickCmd schedules the next render frame.
func streamTickCmd() tea.Cmd {
	return tea.Tick(time.Second/defaultMaxFPS, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
