// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// scriptedBody returns one chunk per Read call, then err (io.EOF if nil).
type scriptedBody struct {
	chunks [][]byte
	err    error
	closed bool
}

func (b *scriptedBody) Read(p []byte) (int, error) {
	if len(b.chunks) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		return 0, io.EOF
	}
	n := copy(p, b.chunks[0])
	b.chunks[0] = b.chunks[0][n:]
	if len(b.chunks[0]) == 0 {
		b.chunks = b.chunks[1:]
	}
	return n, nil
}

func (b *scriptedBody) Close() error {
	b.closed = true
	return nil
}

func chunks(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, Timeout: 5 * time.Second, RequestsPerSecond: -1})
}

// =============================================================================
// STREAM TESTS
// =============================================================================

func TestStream_FragmentsInOrder(t *testing.T) {
	body := &scriptedBody{chunks: chunks("The", " answer", " is", " Y.")}
	s := NewStream(body)

	var got []string
	for {
		frag, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, frag)
	}

	assert.Equal(t, []string{"The", " answer", " is", " Y."}, got)
	assert.Equal(t, 4, s.Fragments())
	assert.Equal(t, len("The answer is Y."), s.Bytes())

	_, err := s.Next()
	assert.ErrorIs(t, err, io.EOF, "Next after EOF keeps returning EOF")
}

func TestStream_SplitRuneCarriedOver(t *testing.T) {
	euro := []byte("€") // 3 bytes
	body := &scriptedBody{chunks: [][]byte{
		append([]byte("price "), euro[:1]...),
		euro[1:2],
		append(euro[2:], []byte("5")...),
	}}
	s := NewStream(body)

	var frags []string
	for {
		frag, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		frags = append(frags, frag)
	}

	assert.Equal(t, []string{"price ", "€5"}, frags)
	for _, f := range frags {
		assert.True(t, strings.ToValidUTF8(f, "?") == f, "fragment %q holds a broken rune", f)
	}
}

func TestStream_TruncatedRuneAtEOFKept(t *testing.T) {
	body := &scriptedBody{chunks: [][]byte{{'a', 0xE2, 0x82}}}
	got, err := NewStream(body).Collect()
	require.NoError(t, err)
	assert.Equal(t, "a\xE2\x82", got)
}

func TestStream_Interrupted(t *testing.T) {
	body := &scriptedBody{chunks: chunks("Partial"), err: errors.New("connection reset")}
	s := NewStream(body)

	frag, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "Partial", frag)

	_, err = s.Next()
	require.Error(t, err)
	assert.True(t, IsStreamInterrupted(err))

	_, again := s.Next()
	assert.Equal(t, err, again)
}

func TestStream_CloseIdempotent(t *testing.T) {
	body := &scriptedBody{}
	s := NewStream(body)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, body.closed)
}

func TestCompletePrefix(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want int
	}{
		{"empty", nil, 0},
		{"ascii", []byte("abc"), 3},
		{"full rune", []byte("a€"), 4},
		{"one of three", []byte{'a', 0xE2}, 1},
		{"two of three", []byte{'a', 0xE2, 0x82}, 1},
		{"invalid byte", []byte{'a', 0xFF}, 2},
		{"four byte split", []byte{0xF0, 0x9F, 0x98}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := completePrefix(tc.in); got != tc.want {
				t.Errorf("completePrefix(%v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestClient_ListChats(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/chats", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"chat_id":"a","messages":[],"attachments":["r.pdf"]},{"chat_id":"b"}]`))
	}))

	chats, err := client.ListChats(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "a", chats[0].ID)
	assert.Equal(t, []string{"r.pdf"}, chats[0].Attachments)
	assert.NotNil(t, chats[1].Messages)
}

func TestClient_CreateChat(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"chat_id":"abc123"}`))
	}))

	conv, err := client.CreateChat(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", conv.ID)
	assert.Empty(t, conv.Messages)
	assert.Empty(t, conv.Attachments)
}

func TestClient_CreateChatWithoutID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := client.CreateChat(context.Background())
	assert.True(t, IsInvalidResponse(err))
}

func TestClient_GetChatRejectsUnknownRole(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chat_id":"x","messages":[{"role":"system","content":"hi"}]}`))
	}))

	_, err := client.GetChat(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, IsInvalidResponse(err))
	assert.ErrorIs(t, err, model.ErrUnknownRole)
}

func TestClient_ServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Chat not found"}`))
	}))

	err := client.DeleteChat(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsServer(err))
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "Chat not found")
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: url, Timeout: time.Second})
	_, err := client.ListChats(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, "Could not reach the server", UserMessage(err))
}

func TestClient_Upload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chats/xyz/upload", r.URL.Path)
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "report.pdf", header.Filename)
		assert.Equal(t, "%PDF-1.4", string(data))
		_ = json.NewEncoder(w).Encode(UploadResponse{Status: "success", Chunks: 3})
	}))

	resp, err := client.Upload(context.Background(), "xyz", "report.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 3, resp.Chunks)
	assert.Equal(t, "report.pdf", resp.Name)
}

func TestClient_UploadStreamsBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, int64(-1), r.ContentLength, "body should be streamed, not buffered")
		file, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Len(t, data, 1<<20)
		_ = json.NewEncoder(w).Encode(UploadResponse{Status: "success"})
	}))

	content := strings.NewReader("%PDF" + strings.Repeat("x", 1<<20-4))
	_, err := client.Upload(context.Background(), "xyz", "big.pdf", content)
	require.NoError(t, err)
}

func TestClient_UploadReadFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadRequest)
	}))

	errDisk := errors.New("disk read failed")
	content := io.MultiReader(strings.NewReader("%PDF-1.4"), iotest.ErrReader(errDisk))
	_, err := client.Upload(context.Background(), "xyz", "report.pdf", content)
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)
	assert.True(t, IsTransport(err))
}

func TestClient_Query(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chats/abc/query", r.URL.Path)
		var req QueryRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "What is X?", req.Query)

		w.Header().Set("Content-Type", "text/plain")
		flusher := w.(http.Flusher)
		for _, part := range []string{"The", " answer", " is", " Y."} {
			_, _ = w.Write([]byte(part))
			flusher.Flush()
		}
	}))

	stream, err := client.Query(context.Background(), "abc", "What is X?")
	require.NoError(t, err)
	defer stream.Close()

	text, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, "The answer is Y.", text)
}

func TestClient_QueryServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.Query(context.Background(), "abc", "q")
	require.Error(t, err)
	assert.True(t, IsServer(err))
}

func TestClient_QueryCancelled(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.Query(ctx, "abc", "q")
	require.NoError(t, err)
	defer stream.Close()

	frag, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", frag)

	cancel()
	_, err = stream.Next()
	require.Error(t, err)
	assert.True(t, IsStreamInterrupted(err))
}

func TestClientError_Message(t *testing.T) {
	err := &ClientError{Type: ErrTypeServer, Op: OpGetChat, StatusCode: 500, Message: "boom"}
	assert.Equal(t, "get_chat: boom (HTTP 500)", err.Error())
	assert.Equal(t, "boom", err.UserMessage())
	assert.Equal(t, "server", err.Type.String())
}
