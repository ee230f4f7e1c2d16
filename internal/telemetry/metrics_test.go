// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("list_chats", time.Now(), nil)
	m.ObserveFragment(10)
	m.StreamFinished(OutcomeOK)
	m.UploadFinished(OutcomeOK, 100)
	m.CacheLoad("list", "hit")
	m.Notified("error")
	if m.Registry() != nil {
		t.Error("nil metrics should have nil registry")
	}
}

func TestMetrics_ObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("create_chat", time.Now(), nil)
	m.ObserveRequest("create_chat", time.Now(), errors.New("boom"))
	m.ObserveRequest("create_chat", time.Now(), errors.New("boom"))

	if got := testutil.ToFloat64(m.requests.WithLabelValues("create_chat", OutcomeOK)); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("create_chat", OutcomeError)); got != 2 {
		t.Errorf("error count = %v, want 2", got)
	}
}

func TestMetrics_Fragments(t *testing.T) {
	m := New()
	m.ObserveFragment(3)
	m.ObserveFragment(4)
	if got := testutil.ToFloat64(m.fragments); got != 2 {
		t.Errorf("fragments = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.streamBytes); got != 7 {
		t.Errorf("bytes = %v, want 7", got)
	}
}

func TestMetrics_UploadBytesOnlyOnSuccess(t *testing.T) {
	m := New()
	m.UploadFinished(OutcomeError, 500)
	m.UploadFinished(OutcomeOK, 200)
	if got := testutil.ToFloat64(m.uploadBytes); got != 200 {
		t.Errorf("upload bytes = %v, want 200", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.StreamFinished(OutcomeCancelled)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `docchat_query_streams_total{outcome="cancelled"} 1`) {
		t.Errorf("metrics output missing stream counter:\n%s", body)
	}
}
