// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the docchat backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/docchat-tui/internal/logging"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/telemetry"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend base URL (default: http://127.0.0.1:8000)
	BaseURL string

	// Timeout for non-streaming requests (default: 30s). Query streams have
	// no client-side timeout; they end with the context.
	Timeout time.Duration

	// RequestsPerSecond limits outgoing requests (default: 10, <0 disables).
	RequestsPerSecond float64

	// Burst is the limiter burst size (default: 20).
	Burst int

	// Logger receives one line per request (default: no-op).
	Logger *zap.Logger

	// Metrics records request counts and latencies (optional).
	Metrics *telemetry.Metrics

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:           "http://127.0.0.1:8000",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 10,
		Burst:             20,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the backend's chat endpoints.
//
// The Client is safe for concurrent use.
//
// Example:
//
//	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: "http://localhost:8000"})
//	conv, err := client.CreateChat(ctx)
//	stream, err := client.Query(ctx, conv.ID, "What is X?")
//	for {
//	    frag, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
type Client struct {
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	logger       *zap.Logger
	metrics      *telemetry.Metrics
}

// NewClient creates a client with the default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8000"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 10
	}
	if config.Burst == 0 {
		config.Burst = 20
	}

	limit := rate.Limit(config.RequestsPerSecond)
	if config.RequestsPerSecond < 0 {
		limit = rate.Inf
	}

	return &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: config.Timeout, Transport: config.Transport},
		streamClient: &http.Client{Transport: config.Transport},
		limiter:      rate.NewLimiter(limit, config.Burst),
		logger:       logging.OrNop(config.Logger),
		metrics:      config.Metrics,
	}
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// ListChats fetches all conversations.
func (c *Client) ListChats(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	if err := c.doJSON(ctx, OpListChats, http.MethodGet, "/api/chats", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Conversation{}
	}
	return out, nil
}

// CreateChat creates a conversation. The backend may return only the id;
// missing fields decode as empty.
func (c *Client) CreateChat(ctx context.Context) (model.Conversation, error) {
	var out model.Conversation
	if err := c.doJSON(ctx, OpCreateChat, http.MethodPost, "/api/chats", nil, &out); err != nil {
		return model.Conversation{}, err
	}
	if out.ID == "" {
		return model.Conversation{}, &ClientError{Type: ErrTypeInvalidResponse, Op: OpCreateChat, Message: "response has no chat_id"}
	}
	return out, nil
}

// DeleteChat deletes a conversation. Any response body is ignored.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	return c.doJSON(ctx, OpDeleteChat, http.MethodDelete, chatPath(id), nil, nil)
}

// GetChat fetches one conversation.
func (c *Client) GetChat(ctx context.Context, id string) (model.Conversation, error) {
	var out model.Conversation
	if err := c.doJSON(ctx, OpGetChat, http.MethodGet, chatPath(id), nil, &out); err != nil {
		return model.Conversation{}, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

// Upload sends a document as multipart field "file".
func (c *Client) Upload(ctx context.Context, id, fileName string, content io.Reader) (*UploadResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	req, err := c.newRequest(ctx, OpUpload, http.MethodPost, chatPath(id)+"/upload", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	// The form is written as the transport reads it; the transport closes
	// pr when the request ends, which unblocks the writer.
	written := make(chan error, 1)
	go func() {
		err := writeUploadForm(mw, fileName, content)
		pw.CloseWithError(err)
		written <- err
	}()

	var out UploadResponse
	err = c.do(req, OpUpload, c.httpClient, &out)
	if werr := <-written; werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
		return nil, &ClientError{Type: ErrTypeTransport, Op: OpUpload, Message: "failed to read file", Cause: werr}
	}
	if err != nil {
		return nil, err
	}
	if out.Name == "" {
		out.Name = fileName
	}
	return &out, nil
}

func writeUploadForm(mw *multipart.Writer, fileName string, content io.Reader) error {
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

// =============================================================================
// STREAMING QUERY
// =============================================================================

// Query submits a question and returns the answer as a fragment stream.
// The caller must Close the stream. Cancelling ctx aborts the read.
func (c *Client) Query(ctx context.Context, id, text string) (*Stream, error) {
	body, err := json.Marshal(QueryRequest{Query: text})
	if err != nil {
		return nil, &ClientError{Type: ErrTypeTransport, Op: OpQuery, Message: "failed to marshal request", Cause: err}
	}

	req, err := c.newRequest(ctx, OpQuery, http.MethodPost, chatPath(id)+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	start := time.Now()
	reqID := req.Header.Get(RequestIDHeader)
	resp, err := c.streamClient.Do(req)
	if err != nil {
		cerr := transportError(OpQuery, err)
		c.logRequest(req, OpQuery, 0, start, cerr)
		return nil, cerr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cerr := serverError(OpQuery, resp)
		resp.Body.Close()
		c.logRequest(req, OpQuery, resp.StatusCode, start, cerr)
		return nil, cerr
	}
	c.logRequest(req, OpQuery, resp.StatusCode, start, nil)

	stream := NewStream(resp.Body)
	stream.onFragment = c.metrics.ObserveFragment
	c.logger.Debug("stream_opened", zap.String("chat_id", id), zap.String("request_id", reqID))
	return stream, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func chatPath(id string) string {
	return "/api/chats/" + url.PathEscape(id)
}

func (c *Client) newRequest(ctx context.Context, op, method, path string, body io.Reader) (*http.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, transportError(op, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeTransport, Op: op, Message: "failed to create request", Cause: err}
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &ClientError{Type: ErrTypeTransport, Op: op, Message: "failed to marshal request", Cause: err}
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, op, c.httpClient, out)
}

func (c *Client) do(req *http.Request, op string, hc *http.Client, out any) (err error) {
	start := time.Now()
	status := 0
	defer func() { c.logRequest(req, op, status, start, err) }()

	resp, err := hc.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return serverError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Op: op, StatusCode: status, Message: "failed to decode response", Cause: err}
	}
	return nil
}

func (c *Client) logRequest(req *http.Request, op string, status int, start time.Time, err error) {
	c.metrics.ObserveRequest(op, start, err)
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", req.Header.Get(RequestIDHeader)),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		c.logger.Warn("api_request_failed", append(fields, zap.Error(err))...)
		return
	}
	c.logger.Debug("api_request", fields...)
}

func transportError(op string, err error) *ClientError {
	msg := "request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	} else if errors.Is(err, context.Canceled) {
		msg = "request cancelled"
	}
	return &ClientError{Type: ErrTypeTransport, Op: op, Message: msg, Cause: err}
}

func serverError(op string, resp *http.Response) *ClientError {
	cerr := &ClientError{
		Type:       ErrTypeServer,
		Op:         op,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("unexpected status %s", resp.Status),
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.message() != "" {
		cerr.Message = eb.message()
	}
	return cerr
}
