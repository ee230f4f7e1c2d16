// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import "strings"

// StreamBuffer accumulates the answer for one query in arrival order. It is
// owned by a Controller and is not safe for concurrent use on its own.
type StreamBuffer struct {
	sb        strings.Builder
	fragments int
}

// Append adds a fragment to the end of the buffer.
func (b *StreamBuffer) Append(fragment string) {
	b.sb.WriteString(fragment)
	b.fragments++
}

// String returns the buffered text.
func (b *StreamBuffer) String() string {
	return b.sb.String()
}

// Len returns the buffered size in bytes.
func (b *StreamBuffer) Len() int {
	return b.sb.Len()
}

// Fragments returns how many fragments were appended since the last Reset.
func (b *StreamBuffer) Fragments() int {
	return b.fragments
}

// Reset discards the buffered text.
func (b *StreamBuffer) Reset() {
	b.sb.Reset()
	b.fragments = 0
}
