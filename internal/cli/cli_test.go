// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/api"
	"github.com/jeranaias/docchat-tui/internal/app"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/fakeserver"
	"github.com/jeranaias/docchat-tui/internal/telemetry"
)

// =============================================================================
// HARNESS
// =============================================================================

// newBackend starts an in-memory backend and points DOCCHAT_HOME at a
// temp dir so no real config is read.
func newBackend(t *testing.T) (*fakeserver.Server, string) {
	t.Helper()
	t.Setenv("DOCCHAT_HOME", t.TempDir())
	server := fakeserver.New(fakeserver.Options{})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return server, ts.URL
}

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes the command tree with args against baseURL.
func run(t *testing.T, baseURL, stdin string, args ...string) result {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--base-url", baseURL}, args...))
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

// newTestRuntime builds a runtime without going through cobra.
func newTestRuntime(t *testing.T, baseURL string) (*runtime, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	cfg := api.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.RequestsPerSecond = -1
	var out, errOut bytes.Buffer
	rt := &runtime{
		cfg:     config.Default(),
		logger:  zap.NewNop(),
		metrics: telemetry.New(),
		client:  api.NewClientWithConfig(cfg),
		in:      strings.NewReader(""),
		out:     &out,
		errOut:  &errOut,
	}
	return rt, &out, &errOut
}

func writePDF(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	content := "%PDF-1.7\n" + strings.Repeat("x", size)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// =============================================================================
// CHATS
// =============================================================================

func TestChats_NewThenList(t *testing.T) {
	server, url := newBackend(t)

	res := run(t, url, "", "chats", "new")
	require.NoError(t, res.err)
	id := strings.TrimSpace(res.stdout)
	assert.True(t, server.Has(id))

	res = run(t, url, "", "chats", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, id)
	assert.Contains(t, res.stdout, "0 messages")
}

func TestChats_ListEmpty(t *testing.T) {
	_, url := newBackend(t)

	res := run(t, url, "", "chats", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No chats yet")
}

func TestChats_ListJSON(t *testing.T) {
	server, url := newBackend(t)
	id := server.Seed("", "report.pdf")
	server.SeedMessage(id, "user", "What is in the report?")

	res := run(t, url, "", "chats", "list", "--json")
	require.NoError(t, res.err)

	var resp struct {
		Success bool               `json:"success"`
		Data    []conversationJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, id, resp.Data[0].ID)
	assert.Equal(t, []string{"report.pdf"}, resp.Data[0].Attachments)
	assert.Equal(t, "What is in the report?", resp.Data[0].Preview)
}

func TestChats_Show(t *testing.T) {
	server, url := newBackend(t)
	id := server.Seed("", "report.pdf")
	server.SeedMessage(id, "user", "Summarise it")
	server.SeedMessage(id, "assistant", "It is short.")

	res := run(t, url, "", "chats", "show", id)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Chat "+id[:8]+"...")
	assert.Contains(t, res.stdout, "1 document attached")
	assert.Contains(t, res.stdout, "Summarise it")
	assert.Contains(t, res.stdout, "It is short.")
}

func TestChats_ShowMissing(t *testing.T) {
	_, url := newBackend(t)

	res := run(t, url, "", "chats", "show", "does-not-exist")
	require.Error(t, res.err)
	assert.True(t, api.IsNotFound(res.err))
}

func TestChats_RmRequiresConfirmation(t *testing.T) {
	server, url := newBackend(t)
	id := server.Seed("")

	res := run(t, url, "", "chats", "rm", id)
	require.ErrorIs(t, res.err, ErrConfirmationRequired)
	assert.True(t, server.Has(id))
}

func TestChats_RmWithYes(t *testing.T) {
	server, url := newBackend(t)
	a := server.Seed("")
	b := server.Seed("")

	res := run(t, url, "", "chats", "rm", "--yes", a, b)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Deleted "+a)
	assert.Contains(t, res.stdout, "Deleted "+b)
	assert.False(t, server.Has(a))
	assert.False(t, server.Has(b))
}

func TestChats_RmReportsFailures(t *testing.T) {
	server, url := newBackend(t)
	a := server.Seed("")

	res := run(t, url, "", "chats", "rm", "-y", "missing", a)
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "Deleted "+a)
	assert.False(t, server.Has(a))
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_StreamsIntoExistingChat(t *testing.T) {
	server, url := newBackend(t)
	id := server.Seed("", "report.pdf")

	res := run(t, url, "", "ask", "--chat", id, "What", "is", "this?")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `Based on report.pdf: you asked "What is this?".`)
	assert.Contains(t, res.stdout, "Sources:")
	assert.Contains(t, res.stdout, "- report.pdf")
	assert.Equal(t, 2, server.MessageCount(id))
}

func TestAsk_CreatesChatWhenNoneGiven(t *testing.T) {
	server, url := newBackend(t)

	res := run(t, url, "", "ask", "hello")
	require.NoError(t, res.err)
	require.Contains(t, res.stderr, "Created chat ")

	id := strings.TrimSpace(strings.TrimPrefix(res.stderr[strings.Index(res.stderr, "Created chat "):], "Created chat "))
	id = strings.Fields(id)[0]
	assert.True(t, server.Has(id))
	assert.Equal(t, 2, server.MessageCount(id))
}

func TestAsk_ReadsQuestionFromStdin(t *testing.T) {
	server, url := newBackend(t)
	id := server.Seed("")

	res := run(t, url, "  from stdin \n", "ask", "--chat", id)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `"from stdin"`)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	server, url := newBackend(t)
	id := server.Seed("")

	res := run(t, url, "   ", "ask", "--chat", id)
	require.ErrorIs(t, res.err, ErrEmptyQuestion)
	assert.Equal(t, 0, server.MessageCount(id))
}

func TestAsk_JSON(t *testing.T) {
	server, url := newBackend(t)
	id := server.Seed("", "a.pdf", "b.pdf")

	res := run(t, url, "", "ask", "--json", "--chat", id, "why?")
	require.NoError(t, res.err)

	var resp struct {
		Success bool      `json:"success"`
		Data    askResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, id, resp.Data.ChatID)
	assert.False(t, resp.Data.Created)
	assert.Equal(t, `Based on a.pdf, b.pdf: you asked "why?".`, resp.Data.Answer)
	assert.Greater(t, resp.Data.Fragments, 1)
	require.Len(t, resp.Data.Sources, 2)
	assert.Equal(t, "a.pdf", resp.Data.Sources[0].Document)
}

func TestAsk_StreamFailure(t *testing.T) {
	server, url := newBackend(t)
	id := server.Seed("")
	server.InterruptNextQuery(id, 2)

	res := run(t, url, "", "ask", "--chat", id, "cut me off")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "Query failed")
}

// =============================================================================
// UPLOAD
// =============================================================================

func TestUpload_AttachesPDF(t *testing.T) {
	server, url := newBackend(t)
	id := server.Seed("")
	path := writePDF(t, "report.pdf", 2500)

	res := run(t, url, "", "upload", id, path)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Uploaded report.pdf")
	assert.Contains(t, res.stdout, "4 chunks")
	assert.Equal(t, []string{"report.pdf"}, server.Attachments(id))
}

func TestUpload_RejectsNonPDFButContinues(t *testing.T) {
	server, url := newBackend(t)
	id := server.Seed("")
	notes := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("plain text"), 0o600))
	pdf := writePDF(t, "report.pdf", 10)

	res := run(t, url, "", "upload", id, notes, pdf)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "notes.txt")
	assert.Equal(t, []string{"report.pdf"}, server.Attachments(id))
}

func TestUpload_JSON(t *testing.T) {
	server, url := newBackend(t)
	id := server.Seed("")
	path := writePDF(t, "report.pdf", 100)

	res := run(t, url, "", "upload", "--json", id, path)
	require.NoError(t, res.err)

	var resp struct {
		Success bool         `json:"success"`
		Data    []uploadJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "report.pdf", resp.Data[0].File)
	assert.Equal(t, 1, resp.Data[0].Chunks)
}

func TestUpload_UnknownChat(t *testing.T) {
	_, url := newBackend(t)
	path := writePDF(t, "report.pdf", 10)

	res := run(t, url, "", "upload", "missing", path)
	require.Error(t, res.err)
	assert.True(t, api.IsNotFound(res.err))
}

// =============================================================================
// REPL
// =============================================================================

func TestRepl_Session(t *testing.T) {
	server, url := newBackend(t)
	pdf := writePDF(t, "report.pdf", 10)

	script := strings.Join([]string{
		"/new",
		"/upload " + pdf,
		"/attachments",
		"What is this?",
		"/history",
		"/quit",
		"never sent",
	}, "\n")
	res := run(t, url, script, "repl")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "Opened new chat ")
	assert.Contains(t, res.stdout, "Uploaded report.pdf")
	assert.Contains(t, res.stdout, "- report.pdf")
	assert.Contains(t, res.stdout, `you asked "What is this?".`)
	assert.Contains(t, res.stdout, "Sources:")
	assert.NotContains(t, res.stdout, "never sent")

	chats, err := fakeList(t, url)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, 2, server.MessageCount(chats[0]))
}

func TestRepl_EOFEnds(t *testing.T) {
	_, url := newBackend(t)

	res := run(t, url, "/list\n", "repl")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No chats yet")
}

func TestRepl_HandleLine(t *testing.T) {
	server, url := newBackend(t)
	id := server.Seed("")
	rt, out, _ := newTestRuntime(t, url)
	ws := rt.headlessWorkspace(true)
	defer ws.Close()
	s := &replSession{rt: rt, ws: ws, p: newPrinter(out)}
	ctx := context.Background()

	more, err := s.handleLine(ctx, "question without a chat")
	assert.True(t, more)
	require.ErrorIs(t, err, app.ErrNoActiveChat)

	_, err = s.handleLine(ctx, "/open")
	require.Error(t, err)

	_, err = s.handleLine(ctx, "/bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command /bogus")

	more, err = s.handleLine(ctx, "   ")
	assert.True(t, more)
	require.NoError(t, err)

	_, err = s.handleLine(ctx, "/open "+id)
	require.NoError(t, err)
	assert.Equal(t, "docchat ["+id[:8]+"]> ", s.prompt())

	_, err = s.handleLine(ctx, "/list")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "* "+id)

	_, err = s.handleLine(ctx, "/delete")
	require.NoError(t, err)
	assert.False(t, server.Has(id))
	assert.Nil(t, ws.Controller())
	assert.Equal(t, "docchat> ", s.prompt())

	more, err = s.handleLine(ctx, "/QUIT")
	assert.False(t, more)
	require.NoError(t, err)
}

// fakeList returns the chat ids the backend knows.
func fakeList(t *testing.T, url string) ([]string, error) {
	t.Helper()
	cfg := api.DefaultConfig()
	cfg.BaseURL = url
	chats, err := api.NewClientWithConfig(cfg).ListChats(context.Background())
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// =============================================================================
// DEV SERVER
// =============================================================================

func TestDevServer_ServesAndStops(t *testing.T) {
	rt, out, _ := newTestRuntime(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)

	go func() {
		done <- runDevServer(ctx, rt, &devServerOptions{addr: "127.0.0.1:0", seed: []string{"seeded"}}, ready)
	}()

	var addr string
	select {
	case addr = <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("dev server did not start")
	}

	resp, err := http.Get("http://" + addr + "/api/chats/seeded")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dev server did not stop")
	}
	assert.Contains(t, out.String(), "Serving in-memory backend on http://"+addr)
}

func TestDevServer_BadAddress(t *testing.T) {
	rt, _, _ := newTestRuntime(t, "")
	err := runDevServer(context.Background(), rt, &devServerOptions{addr: "not-an-address"}, nil)
	require.Error(t, err)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfig_InitSetGet(t *testing.T) {
	_, url := newBackend(t)
	home := os.Getenv("DOCCHAT_HOME")

	res := run(t, url, "", "config", "path")
	require.NoError(t, res.err)
	assert.Equal(t, filepath.Join(home, "config.toml"), strings.TrimSpace(res.stdout))

	res = run(t, url, "", "config", "init")
	require.NoError(t, res.err)
	assert.FileExists(t, filepath.Join(home, "config.toml"))

	res = run(t, url, "", "config", "init")
	require.ErrorIs(t, res.err, ErrConfigExists)

	res = run(t, url, "", "config", "set", "ui.theme", "light")
	require.NoError(t, res.err)

	res = run(t, url, "", "config", "get", "ui.theme")
	require.NoError(t, res.err)
	assert.Equal(t, "light", strings.TrimSpace(res.stdout))

	res = run(t, url, "", "config", "set", "cache.stale_after_secs", "0")
	require.NoError(t, res.err)
	res = run(t, url, "", "config", "get", "cache.stale_after_secs")
	require.NoError(t, res.err)
	assert.Equal(t, "0", strings.TrimSpace(res.stdout))
}

func TestConfig_SetRejectsInvalid(t *testing.T) {
	_, url := newBackend(t)

	res := run(t, url, "", "config", "set", "ui.theme", "neon")
	require.Error(t, res.err)

	res = run(t, url, "", "config", "set", "no.such.key", "1")
	require.Error(t, res.err)

	_, err := os.Stat(filepath.Join(os.Getenv("DOCCHAT_HOME"), "config.toml"))
	assert.True(t, os.IsNotExist(err))
}

func TestConfig_ShowAppliesEnv(t *testing.T) {
	_, url := newBackend(t)
	t.Setenv("DOCCHAT_THEME", "light")

	res := run(t, url, "", "config", "show", "--json")
	require.NoError(t, res.err)

	var resp struct {
		Data config.Config `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "light", resp.Data.UI.Theme)

	res = run(t, url, "", "config", "show", "--yaml")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "theme: light")

	res = run(t, url, "", "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `theme = "light"`)
}

func TestConfig_WorksWithBrokenFile(t *testing.T) {
	_, url := newBackend(t)
	path := filepath.Join(os.Getenv("DOCCHAT_HOME"), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nbroken"), 0o600))

	res := run(t, url, "", "chats", "list")
	require.Error(t, res.err)

	res = run(t, url, "", "config", "path")
	require.NoError(t, res.err)
	assert.Equal(t, path, strings.TrimSpace(res.stdout))

	res = run(t, url, "", "config", "init", "--force")
	require.NoError(t, res.err)

	res = run(t, url, "", "chats", "list")
	require.NoError(t, res.err)
}

// =============================================================================
// ROOT
// =============================================================================

func TestTUI_NeedsTerminal(t *testing.T) {
	_, url := newBackend(t)

	res := run(t, url, "", "tui")
	require.ErrorIs(t, res.err, ErrNoTerminal)

	res = run(t, url, "")
	require.ErrorIs(t, res.err, ErrNoTerminal)
}

func TestRoot_InvalidBaseURL(t *testing.T) {
	_, _ = newBackend(t)

	res := run(t, "ftp://nowhere", "", "chats", "list")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid config")
}

func TestReadQuestion(t *testing.T) {
	q, err := readQuestion([]string{"a", "b"}, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "a b", q)

	q, err = readQuestion(nil, strings.NewReader("\n piped \n"))
	require.NoError(t, err)
	assert.Equal(t, "piped", q)

	_, err = readQuestion(nil, nil)
	require.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestJSONErrorResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONErrorResponse("ask", assert.AnError).Write(&buf))

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, assert.AnError.Error(), *resp.Error)
	assert.Equal(t, "ask", resp.Command)
}
