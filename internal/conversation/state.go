// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

// State is the controller's position in the query lifecycle.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateFinalizing
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Busy reports whether a query is in flight.
func (s State) Busy() bool {
	return s != StateIdle
}

// EventKind identifies what changed.
type EventKind int

const (
	// EventState: the controller moved to Event.State.
	EventState EventKind = iota
	// EventFragment: Event.Fragment was appended to the buffer.
	EventFragment
	// EventMessages: the committed message sequence changed.
	EventMessages
	// EventAttachments: the attachment list changed.
	EventAttachments
)

// Event is delivered to subscribers after every change. Buffer is the live
// stream buffer at the time of the event.
type Event struct {
	Kind     EventKind
	ChatID   string
	State    State
	Fragment string
	Buffer   string
	Err      error
}
