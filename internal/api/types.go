// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

// QueryRequest is the body of a query submission.
type QueryRequest struct {
	Query string `json:"query"`
}

// UploadResponse is returned by the upload endpoint.
type UploadResponse struct {
	Status string `json:"status"`
	Chunks int    `json:"chunks"`
	Name   string `json:"name,omitempty"`
}

// errorBody is the JSON error shape the backend uses for failures.
type errorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

func (b errorBody) message() string {
	if b.Detail != "" {
		return b.Detail
	}
	return b.Error
}

// Operation names used for logs, metrics and errors.
const (
	OpListChats  = "list_chats"
	OpCreateChat = "create_chat"
	OpDeleteChat = "delete_chat"
	OpGetChat    = "get_chat"
	OpUpload     = "upload"
	OpQuery      = "query"
)
