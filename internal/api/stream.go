// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

// readSize is the size of each body read.
const readSize = 4096

// =============================================================================
// STREAM
// =============================================================================

// Stream is a lazy, finite, non-restartable sequence of text fragments read
// from an unframed response body. Fragments come back in body order.
//
// A multi-byte rune split across two reads is held back and emitted with the
// next fragment, so fragments never end inside a rune and their
// concatenation is byte-identical to the body.
type Stream struct {
	body       io.ReadCloser
	buf        []byte
	pending    []byte
	err        error
	fragments  int
	bytes      int
	closeOnce  sync.Once
	onFragment func(n int)
}

// NewStream wraps a response body.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{
		body: body,
		buf:  make([]byte, readSize),
	}
}

// Next returns the next non-empty fragment. It returns io.EOF once the body
// is exhausted, and a *ClientError of type ErrTypeStreamInterrupted if the
// body fails mid-read. After a non-nil error every call returns that error.
func (s *Stream) Next() (string, error) {
	for {
		if s.err != nil {
			return "", s.err
		}

		n, err := s.body.Read(s.buf)
		data := s.buf[:n]
		if len(s.pending) > 0 {
			data = append(s.pending, data...)
			s.pending = nil
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.err = io.EOF
				if len(data) > 0 {
					return s.emit(data), nil
				}
				return "", io.EOF
			}
			s.err = &ClientError{
				Type:    ErrTypeStreamInterrupted,
				Op:      OpQuery,
				Message: "stream interrupted",
				Cause:   err,
			}
			return "", s.err
		}

		cut := completePrefix(data)
		if cut < len(data) {
			s.pending = append([]byte(nil), data[cut:]...)
		}
		if cut == 0 {
			continue
		}
		return s.emit(data[:cut]), nil
	}
}

func (s *Stream) emit(p []byte) string {
	s.fragments++
	s.bytes += len(p)
	if s.onFragment != nil {
		s.onFragment(len(p))
	}
	return string(p)
}

// Collect drains the stream and returns the concatenated text. On error the
// partial text is returned alongside it.
func (s *Stream) Collect() (string, error) {
	var sb strings.Builder
	for {
		frag, err := s.Next()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(frag)
	}
}

// Fragments returns the number of fragments delivered so far.
func (s *Stream) Fragments() int {
	return s.fragments
}

// Bytes returns the number of bytes delivered so far.
func (s *Stream) Bytes() int {
	return s.bytes
}

// Close releases the response body. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

// completePrefix returns the length of the longest prefix of p that does not
// end inside an incomplete UTF-8 sequence.
func completePrefix(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if utf8.FullRune(p[i:]) {
			return len(p)
		}
		return i
	}
	return len(p)
}
