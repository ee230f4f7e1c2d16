// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"sync"
	"time"

	"github.com/jeranaias/docchat-tui/internal/telemetry"
)

// DefaultToastDuration is the default auto-dismiss duration for status toasts.
const DefaultToastDuration = 4 * time.Second

// ErrorToastDuration is the auto-dismiss duration for error toasts (longer to read).
const ErrorToastDuration = 8 * time.Second

// WarningToastDuration is the auto-dismiss duration for warning toasts.
const WarningToastDuration = 6 * time.Second

// =============================================================================
// TOAST
// =============================================================================

// Toast is one visible notification.
type Toast struct {
	ID        int
	Message   string
	Kind      Kind
	CreatedAt time.Time
	Duration  time.Duration
}

// ExpiredAt reports whether the toast should be dismissed at now.
func (t Toast) ExpiredAt(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// RemainingAt returns how much display time is left at now.
func (t Toast) RemainingAt(now time.Time) time.Duration {
	remaining := t.Duration - now.Sub(t.CreatedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// =============================================================================
// TOAST MANAGER
// =============================================================================

// ToastManager holds the visible toasts, newest first. It implements
// Notifier and is safe for concurrent use.
type ToastManager struct {
	mu        sync.Mutex
	toasts    []Toast
	nextID    int
	maxToasts int
	base      time.Duration
	now       func() time.Time
	metrics   *telemetry.Metrics
	onChange  func()
}

// ToastOption configures a ToastManager.
type ToastOption func(*ToastManager)

// WithBaseDuration scales toast lifetimes: status and success toasts last d,
// warnings 1.5x and errors 2x.
func WithBaseDuration(d time.Duration) ToastOption {
	return func(m *ToastManager) {
		if d > 0 {
			m.base = d
		}
	}
}

// WithMetrics counts notifications by kind.
func WithMetrics(metrics *telemetry.Metrics) ToastOption {
	return func(m *ToastManager) { m.metrics = metrics }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ToastOption {
	return func(m *ToastManager) { m.now = now }
}

// WithOnChange registers a hook called after a toast is added or replaced.
// The TUI uses it to wake the render loop.
func WithOnChange(fn func()) ToastOption {
	return func(m *ToastManager) { m.onChange = fn }
}

// NewToastManager creates a new toast manager.
func NewToastManager(opts ...ToastOption) *ToastManager {
	m := &ToastManager{
		nextID:    1,
		maxToasts: 5,
		base:      DefaultToastDuration,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetBaseDuration changes the lifetime of toasts added from now on.
func (m *ToastManager) SetBaseDuration(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.base = d
	m.mu.Unlock()
}

func (m *ToastManager) durationFor(kind Kind) time.Duration {
	switch kind {
	case KindError:
		return 2 * m.base
	case KindWarning:
		return m.base * 3 / 2
	default:
		return m.base
	}
}

// Notify adds a toast and returns its id.
func (m *ToastManager) Notify(kind Kind, message string) int {
	return m.Replace(0, kind, message)
}

// Replace removes toast id (if still visible) and adds a new one in its
// place at the front.
func (m *ToastManager) Replace(id int, kind Kind, message string) int {
	m.mu.Lock()
	if id != 0 {
		m.removeLocked(id)
	}
	toast := Toast{
		ID:        m.nextID,
		Message:   message,
		Kind:      kind,
		CreatedAt: m.now(),
		Duration:  m.durationFor(kind),
	}
	m.nextID++

	m.toasts = append([]Toast{toast}, m.toasts...)
	if len(m.toasts) > m.maxToasts {
		m.toasts = m.toasts[:m.maxToasts]
	}
	onChange := m.onChange
	m.mu.Unlock()

	m.metrics.Notified(kind.String())
	if onChange != nil {
		onChange()
	}
	return toast.ID
}

// AddError is a convenience method to add an error toast.
func (m *ToastManager) AddError(message string) int {
	return m.Notify(KindError, message)
}

// AddWarning is a convenience method to add a warning toast.
func (m *ToastManager) AddWarning(message string) int {
	return m.Notify(KindWarning, message)
}

// AddStatus is a convenience method to add a status toast.
func (m *ToastManager) AddStatus(message string) int {
	return m.Notify(KindStatus, message)
}

// AddSuccess is a convenience method to add a success toast.
func (m *ToastManager) AddSuccess(message string) int {
	return m.Notify(KindSuccess, message)
}

// Remove dismisses a toast by id.
func (m *ToastManager) Remove(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
}

func (m *ToastManager) removeLocked(id int) {
	for i, toast := range m.toasts {
		if toast.ID == id {
			m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
			return
		}
	}
}

// Tick drops expired toasts and returns a copy of the remaining ones.
func (m *ToastManager) Tick() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	active := make([]Toast, 0, len(m.toasts))
	for _, toast := range m.toasts {
		if !toast.ExpiredAt(now) {
			active = append(active, toast)
		}
	}
	m.toasts = active

	out := make([]Toast, len(active))
	copy(out, active)
	return out
}

// Toasts returns a copy of the current toasts, newest first.
func (m *ToastManager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Toast, len(m.toasts))
	copy(out, m.toasts)
	return out
}

// Len returns the number of visible toasts.
func (m *ToastManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toasts)
}

// Now returns the manager's current time.
func (m *ToastManager) Now() time.Time {
	return m.now()
}

// Clear removes all toasts.
func (m *ToastManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts = nil
}
