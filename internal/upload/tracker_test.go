// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat-tui/internal/api"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/notify"
)

const pdfHeader = "%PDF-1.7\n"

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeUploader struct {
	mu      sync.Mutex
	calls   int
	names   []string
	bodies  []string
	err     error
	started chan struct{}
	release chan struct{}
}

func (u *fakeUploader) Upload(ctx context.Context, chatID, fileName string, content io.Reader) (*api.UploadResponse, error) {
	data, _ := io.ReadAll(content)
	u.mu.Lock()
	u.calls++
	u.names = append(u.names, fileName)
	u.bodies = append(u.bodies, string(data))
	u.mu.Unlock()

	if u.started != nil {
		u.started <- struct{}{}
	}
	if u.release != nil {
		<-u.release
	}
	if u.err != nil {
		return nil, u.err
	}
	return &api.UploadResponse{Status: "success", Chunks: 4}, nil
}

func (u *fakeUploader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

type invalidations struct {
	mu  sync.Mutex
	ids []string
}

func (i *invalidations) Invalidate(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, id)
}

func (i *invalidations) list() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.ids...)
}

type statusLog struct {
	mu     sync.Mutex
	states []model.UploadStatus
}

func (s *statusLog) record(_ string, st model.UploadStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
}

func pdf(name string) File {
	body := pdfHeader + strings.Repeat("x", 1000)
	return File{Name: name, Size: int64(len(body)), Content: strings.NewReader(body)}
}

// =============================================================================
// TESTS
// =============================================================================

func TestUpload_Success(t *testing.T) {
	up := &fakeUploader{}
	inv := &invalidations{}
	rec := &notify.Recorder{}
	log := &statusLog{}
	tr := NewTracker(up, inv, Config{Notifier: rec, OnStatus: log.record})

	res, err := tr.Upload(context.Background(), "xyz", pdf("report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", res.FileName)
	assert.Equal(t, 4, res.Chunks)

	assert.Equal(t, []string{"xyz"}, inv.list())
	assert.Equal(t, model.UploadIdle, tr.Status("xyz"))
	assert.Equal(t, []model.UploadStatus{
		model.UploadInProgress, model.UploadSucceeded, model.UploadIdle,
	}, log.states)

	last, ok := tr.Last("xyz")
	require.True(t, ok)
	assert.Equal(t, model.UploadSucceeded, last.Status)

	entries := rec.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, notify.KindStatus, entries[0].Kind)
	assert.Equal(t, "Uploading report.pdf (1.0 kB)...", entries[0].Message)
	assert.Equal(t, notify.KindSuccess, entries[1].Kind)
	assert.Equal(t, entries[0].ID, entries[1].Replaced)
}

func TestUpload_BodyReplaysSniffedBytes(t *testing.T) {
	up := &fakeUploader{}
	tr := NewTracker(up, nil, Config{})

	f := pdf("report.pdf")
	_, err := tr.Upload(context.Background(), "xyz", f)
	require.NoError(t, err)
	assert.Equal(t, pdfHeader+strings.Repeat("x", 1000), up.bodies[0])
}

func TestUpload_SecondWhileInProgressRejected(t *testing.T) {
	up := &fakeUploader{started: make(chan struct{}, 1), release: make(chan struct{})}
	inv := &invalidations{}
	tr := NewTracker(up, inv, Config{})

	done := make(chan error, 1)
	go func() {
		_, err := tr.Upload(context.Background(), "xyz", pdf("report.pdf"))
		done <- err
	}()
	<-up.started
	assert.Equal(t, model.UploadInProgress, tr.Status("xyz"))

	_, err := tr.Upload(context.Background(), "xyz", pdf("other.pdf"))
	assert.ErrorIs(t, err, ErrInProgress)
	assert.Equal(t, 1, up.callCount(), "rejected upload must not issue a request")
	assert.Empty(t, inv.list())

	close(up.release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"xyz"}, inv.list())
}

func TestUpload_OtherConversationNotBlocked(t *testing.T) {
	up := &fakeUploader{started: make(chan struct{}, 2), release: make(chan struct{})}
	tr := NewTracker(up, nil, Config{})

	done := make(chan error, 2)
	go func() {
		_, err := tr.Upload(context.Background(), "a", pdf("a.pdf"))
		done <- err
	}()
	<-up.started
	go func() {
		_, err := tr.Upload(context.Background(), "b", pdf("b.pdf"))
		done <- err
	}()
	<-up.started

	close(up.release)
	require.NoError(t, <-done)
	require.NoError(t, <-done)
	assert.Equal(t, 2, up.callCount())
}

func TestUpload_Failure(t *testing.T) {
	up := &fakeUploader{err: &api.ClientError{Type: api.ErrTypeServer, StatusCode: 500, Message: "indexing failed"}}
	inv := &invalidations{}
	rec := &notify.Recorder{}
	log := &statusLog{}
	tr := NewTracker(up, inv, Config{Notifier: rec, OnStatus: log.record})

	_, err := tr.Upload(context.Background(), "xyz", pdf("report.pdf"))
	require.Error(t, err)
	assert.True(t, api.IsServer(err))
	assert.Empty(t, inv.list(), "failed upload must not invalidate")
	assert.Equal(t, model.UploadIdle, tr.Status("xyz"))
	assert.Equal(t, []model.UploadStatus{
		model.UploadInProgress, model.UploadFailed, model.UploadIdle,
	}, log.states)

	last, _ := rec.Last()
	assert.Equal(t, notify.KindError, last.Kind)
	assert.Equal(t, "Upload failed: indexing failed", last.Message)

	// A new upload is accepted after the failure.
	up.err = nil
	_, err = tr.Upload(context.Background(), "xyz", pdf("report.pdf"))
	require.NoError(t, err)
}

func TestUpload_NotPDF(t *testing.T) {
	up := &fakeUploader{}
	tr := NewTracker(up, nil, Config{})

	_, err := tr.Upload(context.Background(), "xyz", File{Name: "notes.txt", Content: strings.NewReader("hello")})
	assert.ErrorIs(t, err, ErrNotPDF)
	assert.Equal(t, 0, up.callCount())
	assert.Equal(t, model.UploadIdle, tr.Status("xyz"))
}

// countingReader counts Read calls on r.
type countingReader struct {
	r     io.Reader
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return c.r.Read(p)
}

func TestUpload_RejectedWhileInProgressLeavesContentUnread(t *testing.T) {
	up := &fakeUploader{started: make(chan struct{}, 1), release: make(chan struct{})}
	tr := NewTracker(up, nil, Config{})

	done := make(chan error, 1)
	go func() {
		_, err := tr.Upload(context.Background(), "xyz", pdf("report.pdf"))
		done <- err
	}()
	<-up.started

	second := &countingReader{r: strings.NewReader(pdfHeader + "body")}
	_, err := tr.Upload(context.Background(), "xyz", File{Name: "other.pdf", Content: second})
	assert.ErrorIs(t, err, ErrInProgress)
	assert.Zero(t, second.reads, "rejected upload must not consume its reader")

	close(up.release)
	require.NoError(t, <-done)
}

func TestUpload_NotPDFReleasesConversation(t *testing.T) {
	up := &fakeUploader{}
	rec := &notify.Recorder{}
	log := &statusLog{}
	tr := NewTracker(up, nil, Config{Notifier: rec, OnStatus: log.record})

	_, err := tr.Upload(context.Background(), "xyz", File{Name: "notes.txt", Content: strings.NewReader("hello")})
	require.ErrorIs(t, err, ErrNotPDF)
	assert.Equal(t, []model.UploadStatus{model.UploadInProgress, model.UploadIdle}, log.states)
	last, _ := rec.Last()
	assert.Equal(t, "Only PDF documents can be uploaded", last.Message)

	_, err = tr.Upload(context.Background(), "xyz", pdf("report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 1, up.callCount())
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name string
		file string
		head string
		want bool
	}{
		{"extension", "a.pdf", "", true},
		{"upper extension", "A.PDF", "", true},
		{"sniffed", "scan", pdfHeader, true},
		{"text", "a.txt", "hello", false},
		{"empty", "a", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsPDF(tc.file, []byte(tc.head)); got != tc.want {
				t.Errorf("IsPDF(%q) = %v, want %v", tc.file, got, tc.want)
			}
		})
	}
}

func TestUploadPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte(pdfHeader), 0o644))

	up := &fakeUploader{}
	tr := NewTracker(up, nil, Config{})
	res, err := tr.UploadPath(context.Background(), "xyz", path)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", res.FileName)
	assert.Equal(t, int64(len(pdfHeader)), res.Size)

	_, err = tr.UploadPath(context.Background(), "xyz", filepath.Join(dir, "missing.pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
