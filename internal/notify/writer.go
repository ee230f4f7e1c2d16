// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/muesli/termenv"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/logging"
)

// Writer prints notifications as single lines, for headless commands.
// Colours follow the terminal's profile; Ascii output has none.
type Writer struct {
	mu      sync.Mutex
	out     *termenv.Output
	logger  *zap.Logger
	nextID  int
	quietOK bool
}

// NewWriter creates a Writer on w. When quietStatus is set, status
// notifications are logged but not printed.
func NewWriter(w io.Writer, logger *zap.Logger, quietStatus bool) *Writer {
	return &Writer{
		out:     termenv.NewOutput(w),
		logger:  logging.OrNop(logger),
		quietOK: quietStatus,
	}
}

// Notify prints a notification.
func (w *Writer) Notify(kind Kind, message string) int {
	return w.Replace(0, kind, message)
}

// Replace prints a notification. Lines cannot be rewritten, so the
// superseded id is only logged.
func (w *Writer) Replace(id int, kind Kind, message string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++

	w.logger.Info("notification",
		zap.String("kind", kind.String()),
		zap.String("message", message),
		zap.Int("replaces", id),
	)
	if kind == KindStatus && w.quietOK {
		return w.nextID
	}

	prefix := w.out.String(label(kind)).Bold()
	if c := w.color(kind); c != nil {
		prefix = prefix.Foreground(c)
	}
	fmt.Fprintf(w.out, "%s %s\n", prefix, message)
	return w.nextID
}

func (w *Writer) color(kind Kind) termenv.Color {
	switch kind {
	case KindError:
		return w.out.Color("1")
	case KindWarning:
		return w.out.Color("3")
	case KindSuccess:
		return w.out.Color("2")
	default:
		return w.out.Color("6")
	}
}

func label(kind Kind) string {
	switch kind {
	case KindError:
		return "error:"
	case KindWarning:
		return "warning:"
	case KindSuccess:
		return "ok:"
	default:
		return "..."
	}
}
