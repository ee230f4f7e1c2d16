// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// UploadStatus is the state of a document upload for one conversation.
type UploadStatus int

const (
	UploadIdle UploadStatus = iota
	UploadInProgress
	UploadSucceeded
	UploadFailed
)

// String returns a short status label.
func (s UploadStatus) String() string {
	switch s {
	case UploadIdle:
		return "idle"
	case UploadInProgress:
		return "in_progress"
	case UploadSucceeded:
		return "succeeded"
	case UploadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Label returns the text shown on the upload control.
func (s UploadStatus) Label() string {
	if s == UploadInProgress {
		return "Uploading..."
	}
	return "Upload PDF Document"
}

// UploadAttempt records one upload and its outcome.
type UploadAttempt struct {
	Status   UploadStatus
	FileName string
	Size     int64
	Chunks   int
	Err      error
}

// Finished reports whether the attempt reached a terminal status.
func (a UploadAttempt) Finished() bool {
	return a.Status == UploadSucceeded || a.Status == UploadFailed
}
