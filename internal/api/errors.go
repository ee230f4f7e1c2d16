// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"strconv"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	// ErrTypeTransport: the request never completed (network, DNS, timeout).
	ErrTypeTransport
	// ErrTypeServer: the backend returned a non-success status.
	ErrTypeServer
	// ErrTypeStreamInterrupted: the response body failed after streaming began.
	ErrTypeStreamInterrupted
	// ErrTypeInvalidResponse: the body could not be decoded.
	ErrTypeInvalidResponse
)

// String returns the error type name.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeTransport:
		return "transport"
	case ErrTypeServer:
		return "server"
	case ErrTypeStreamInterrupted:
		return "stream_interrupted"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// ClientError represents an error from the backend client.
type ClientError struct {
	Type       ErrorType
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg += " (HTTP " + strconv.Itoa(e.StatusCode) + ")"
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a short description suitable for a notification.
func (e *ClientError) UserMessage() string {
	switch e.Type {
	case ErrTypeTransport:
		return "Could not reach the server"
	case ErrTypeServer:
		if e.StatusCode == http.StatusNotFound {
			return "Conversation not found"
		}
		if e.Message != "" {
			return e.Message
		}
		return "Server error " + strconv.Itoa(e.StatusCode)
	case ErrTypeStreamInterrupted:
		return "The response was interrupted"
	case ErrTypeInvalidResponse:
		return "Unexpected response from the server"
	default:
		return e.Message
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func hasType(err error, t ErrorType) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == t
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool { return hasType(err, ErrTypeTransport) }

// IsServer reports whether err is a non-success response.
func IsServer(err error) bool { return hasType(err, ErrTypeServer) }

// IsStreamInterrupted reports whether err ended a stream mid-read.
func IsStreamInterrupted(err error) bool { return hasType(err, ErrTypeStreamInterrupted) }

// IsInvalidResponse reports whether err is a decode failure.
func IsInvalidResponse(err error) bool { return hasType(err, ErrTypeInvalidResponse) }

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeServer && ce.StatusCode == http.StatusNotFound
}

// UserMessage extracts a notification text from any error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.UserMessage()
	}
	return err.Error()
}
