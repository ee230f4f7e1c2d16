// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fakeserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/logging"
)

const (
	// ChunkSize and ChunkOverlap mirror the indexer's text splitter.
	ChunkSize    = 1000
	ChunkOverlap = 200

	// MaxSources is how many retrieved chunks are cited per answer.
	MaxSources = 3

	maxUploadBytes = 32 << 20
)

// Responder produces the answer fragments for a query.
type Responder func(chatID, query string, attachments []string) []string

// Options configures a Server.
type Options struct {
	Logger *zap.Logger

	// Responder defaults to EchoResponder.
	Responder Responder

	// FragmentDelay is slept between streamed fragments.
	FragmentDelay time.Duration

	// BeforeFragment is called before fragment i of a query is written.
	BeforeFragment func(chatID string, i int)
}

// =============================================================================
// STORE
// =============================================================================

type chat struct {
	ID          string          `json:"chat_id"`
	Messages    []storedMessage `json:"messages"`
	Attachments []string        `json:"attachments"`
	created     int64
}

type storedMessage struct {
	Role    string              `json:"role"`
	Content string              `json:"content"`
	Sources []map[string]string `json:"sources,omitempty"`
}

type failure struct {
	status int
	detail string
}

// Server is an in-memory stand-in for the document chat backend.
type Server struct {
	mu       sync.Mutex
	chats    map[string]*chat
	seq      int64
	failures map[string][]failure

	// interruptAfter maps chat id to the fragment count after which the
	// next query stream is cut.
	interruptAfter map[string]int

	requests map[string]int
	opts     Options
	logger   *zap.Logger
	router   *mux.Router
}

// New creates an empty server.
func New(opts Options) *Server {
	if opts.Responder == nil {
		opts.Responder = EchoResponder
	}
	s := &Server{
		chats:          make(map[string]*chat),
		failures:       make(map[string][]failure),
		interruptAfter: make(map[string]int),
		requests:       make(map[string]int),
		opts:           opts,
		logger:         logging.OrNop(opts.Logger),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	// Collection routes
	api.HandleFunc("/chats", s.listChats).Methods(http.MethodGet)
	api.HandleFunc("/chats", s.createChat).Methods(http.MethodPost)

	// Single resource routes
	api.HandleFunc("/chats/{id}", s.getChat).Methods(http.MethodGet)
	api.HandleFunc("/chats/{id}", s.deleteChat).Methods(http.MethodDelete)

	// Chat-scoped actions
	api.HandleFunc("/chats/{id}/upload", s.upload).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}/query", s.query).Methods(http.MethodPost)

	api.Use(s.countRequests)
	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tpl, _ := mux.CurrentRoute(r).GetPathTemplate()
		key := r.Method + " " + tpl
		s.mu.Lock()
		s.requests[key]++
		s.mu.Unlock()
		s.logger.Debug("fake_request",
			zap.String("route", key),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
		)
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// TEST HOOKS
// =============================================================================

// Seed adds a conversation and returns its id. An empty id gets a new uuid.
func (s *Server) Seed(id string, attachments ...string) string {
	if id == "" {
		id = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.chats[id] = &chat{ID: id, Messages: []storedMessage{}, Attachments: append([]string{}, attachments...), created: s.seq}
	return id
}

// SeedMessage appends a committed message to an existing conversation.
func (s *Server) SeedMessage(id, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[id]; ok {
		c.Messages = append(c.Messages, storedMessage{Role: role, Content: content})
	}
}

// FailNext makes the next request for route fail with status. Route is
// "METHOD /api/..." using the mux template, e.g. "GET /api/chats/{id}".
func (s *Server) FailNext(route string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, detail: detail})
}

// InterruptNextQuery cuts the next query stream on id after n fragments.
func (s *Server) InterruptNextQuery(id string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interruptAfter[id] = n
}

// Requests returns how many requests route has served.
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

// Has reports whether id exists.
func (s *Server) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chats[id]
	return ok
}

// Attachments returns the attachment list of id.
func (s *Server) Attachments(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[id]; ok {
		return append([]string{}, c.Attachments...)
	}
	return nil
}

// MessageCount returns the number of stored messages in id.
func (s *Server) MessageCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[id]; ok {
		return len(c.Messages)
	}
	return 0
}

func (s *Server) takeFailure(r *http.Request) (failure, bool) {
	tpl, _ := mux.CurrentRoute(r).GetPathTemplate()
	key := r.Method + " " + tpl
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.failures[key]
	if len(q) == 0 {
		return failure{}, false
	}
	s.failures[key] = q[1:]
	return q[0], true
}

// =============================================================================
// HANDLERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// injected writes a scheduled failure and reports whether one was written.
func (s *Server) injected(w http.ResponseWriter, r *http.Request) bool {
	f, ok := s.takeFailure(r)
	if !ok {
		return false
	}
	writeError(w, f.status, f.detail)
	return true
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, r) {
		return
	}
	s.mu.Lock()
	out := make([]*chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].created < out[j].created })
	data, err := json.Marshal(out)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, r) {
		return
	}
	id := s.Seed("")
	s.logger.Info("chat_created", zap.String("chat_id", id))
	writeJSON(w, http.StatusOK, map[string]string{"chat_id": id})
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, r) {
		return
	}
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	c, ok := s.chats[id]
	var data []byte
	var err error
	if ok {
		data, err = json.Marshal(c)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, r) {
		return
	}
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	_, ok := s.chats[id]
	delete(s.chats, id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	s.logger.Info("chat_deleted", zap.String("chat_id", id))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, r) {
		return
	}
	id := mux.Vars(r)["id"]
	if !s.Has(id) {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "file field is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	chunks := ChunkCount(len(content), ChunkSize, ChunkOverlap)

	s.mu.Lock()
	c, ok := s.chats[id]
	if ok && !contains(c.Attachments, header.Filename) {
		c.Attachments = append(c.Attachments, header.Filename)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}

	s.logger.Info("document_indexed",
		zap.String("chat_id", id),
		zap.String("file", header.Filename),
		zap.Int("chunks", chunks),
	)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "chunks": chunks})
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, r) {
		return
	}
	id := mux.Vars(r)["id"]

	var body struct {
		Query *string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Query == nil {
		writeError(w, http.StatusUnprocessableEntity, "query field is required")
		return
	}

	s.mu.Lock()
	c, ok := s.chats[id]
	var attachments []string
	cutAfter, cut := s.interruptAfter[id]
	if ok {
		attachments = append([]string{}, c.Attachments...)
		c.Messages = append(c.Messages, storedMessage{Role: "user", Content: *body.Query})
		delete(s.interruptAfter, id)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}

	fragments := s.opts.Responder(id, *body.Query, attachments)
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	var answer strings.Builder
	for i, frag := range fragments {
		if cut && i == cutAfter {
			s.logger.Info("stream_cut", zap.String("chat_id", id), zap.Int("after", i))
			panic(http.ErrAbortHandler)
		}
		if s.opts.BeforeFragment != nil {
			s.opts.BeforeFragment(id, i)
		}
		if s.opts.FragmentDelay > 0 {
			select {
			case <-time.After(s.opts.FragmentDelay):
			case <-r.Context().Done():
				return
			}
		}
		if r.Context().Err() != nil {
			return
		}
		if _, err := io.WriteString(w, frag); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		answer.WriteString(frag)
	}
	if cut && cutAfter >= len(fragments) {
		panic(http.ErrAbortHandler)
	}

	s.mu.Lock()
	if c, ok := s.chats[id]; ok {
		c.Messages = append(c.Messages, storedMessage{
			Role:    "assistant",
			Content: answer.String(),
			Sources: sourcesFor(id, attachments),
		})
	}
	s.mu.Unlock()
}

// =============================================================================
// HELPERS
// =============================================================================

// EchoResponder answers with a short sentence naming the question and the
// attached documents, split into word fragments.
func EchoResponder(chatID, query string, attachments []string) []string {
	var text string
	if len(attachments) == 0 {
		text = fmt.Sprintf("No documents are attached yet, so I cannot answer %q.", query)
	} else {
		text = fmt.Sprintf("Based on %s: you asked %q.", strings.Join(attachments, ", "), query)
	}
	return SplitWords(text)
}

// SplitWords splits text into fragments that each keep their trailing space.
func SplitWords(text string) []string {
	var out []string
	for len(text) > 0 {
		i := strings.IndexByte(text, ' ')
		if i < 0 {
			out = append(out, text)
			break
		}
		out = append(out, text[:i+1])
		text = text[i+1:]
	}
	return out
}

// ChunkCount returns how many windows of size with the given overlap cover n.
func ChunkCount(n, size, overlap int) int {
	if n <= 0 {
		return 0
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	return (n + step - 1) / step
}

func sourcesFor(chatID string, attachments []string) []map[string]string {
	if len(attachments) == 0 {
		return nil
	}
	out := make([]map[string]string, 0, MaxSources)
	for i := 0; i < MaxSources && i < len(attachments); i++ {
		out = append(out, map[string]string{"chat_id": chatID, "source": attachments[i]})
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
