// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify provides transient, non-blocking user notifications.
package notify

import "sync"

// Kind is the type of a notification.
type Kind int

const (
	// KindStatus is informational (progress, neutral events)
	KindStatus Kind = iota
	// KindError reports a failed operation
	KindError
	// KindWarning reports a degraded but completed operation
	KindWarning
	// KindSuccess confirms a completed operation
	KindSuccess
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindWarning:
		return "warning"
	case KindSuccess:
		return "success"
	default:
		return "status"
	}
}

// Notifier surfaces messages to the user. Notify returns an id that can be
// passed to Replace to swap a progress message for its outcome.
type Notifier interface {
	Notify(kind Kind, message string) int
	Replace(id int, kind Kind, message string) int
}

// Discard is a Notifier that drops everything.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Kind, string) int       { return 0 }
func (discard) Replace(int, Kind, string) int { return 0 }

// OrDiscard returns n, or Discard when n is nil.
func OrDiscard(n Notifier) Notifier {
	if n == nil {
		return Discard
	}
	return n
}

// =============================================================================
// RECORDER
// =============================================================================

// Entry is one recorded notification.
type Entry struct {
	ID       int
	Kind     Kind
	Message  string
	Replaced int
}

// Recorder is a Notifier that keeps every notification in order. It is used
// by headless commands to summarize results and by tests.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int
}

// Notify records a notification.
func (r *Recorder) Notify(kind Kind, message string) int {
	return r.Replace(0, kind, message)
}

// Replace records a notification that supersedes id.
func (r *Recorder) Replace(id int, kind Kind, message string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.entries = append(r.entries, Entry{ID: r.nextID, Kind: kind, Message: message, Replaced: id})
	return r.nextID
}

// Entries returns a copy of the recorded notifications.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns how many notifications of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}

// Reset clears the recorder.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
