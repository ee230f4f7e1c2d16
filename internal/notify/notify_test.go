// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestToastManager_Durations(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m := NewToastManager(WithClock(clock.Now))

	m.AddStatus("status")
	m.AddError("error")
	m.AddWarning("warning")

	toasts := m.Toasts()
	if len(toasts) != 3 {
		t.Fatalf("got %d toasts, want 3", len(toasts))
	}
	want := map[Kind]time.Duration{
		KindStatus:  DefaultToastDuration,
		KindError:   ErrorToastDuration,
		KindWarning: WarningToastDuration,
	}
	for _, toast := range toasts {
		if toast.Duration != want[toast.Kind] {
			t.Errorf("%s toast duration = %v, want %v", toast.Kind, toast.Duration, want[toast.Kind])
		}
	}
}

func TestToastManager_NewestFirst(t *testing.T) {
	m := NewToastManager()
	m.AddStatus("first")
	m.AddStatus("second")

	toasts := m.Toasts()
	if toasts[0].Message != "second" {
		t.Errorf("first toast = %q, want newest", toasts[0].Message)
	}
}

func TestToastManager_MaxToasts(t *testing.T) {
	m := NewToastManager()
	for i := 0; i < 8; i++ {
		m.AddStatus("toast")
	}
	if m.Len() != 5 {
		t.Errorf("Len() = %d, want 5", m.Len())
	}
}

func TestToastManager_TickExpires(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m := NewToastManager(WithClock(clock.Now))

	m.AddStatus("short")
	m.AddError("long")

	clock.Advance(5 * time.Second)
	remaining := m.Tick()
	if len(remaining) != 1 || remaining[0].Kind != KindError {
		t.Fatalf("after 5s remaining = %+v, want only the error", remaining)
	}
	if got := remaining[0].RemainingAt(clock.Now()); got != 3*time.Second {
		t.Errorf("RemainingAt = %v, want 3s", got)
	}

	clock.Advance(4 * time.Second)
	if len(m.Tick()) != 0 {
		t.Error("all toasts should have expired")
	}
}

func TestToastManager_Replace(t *testing.T) {
	m := NewToastManager()
	progress := m.AddStatus("Uploading report.pdf...")
	m.AddStatus("unrelated")

	done := m.Replace(progress, KindSuccess, "Uploaded report.pdf")
	if done == progress {
		t.Error("Replace should assign a new id")
	}

	toasts := m.Toasts()
	if len(toasts) != 2 {
		t.Fatalf("got %d toasts, want 2", len(toasts))
	}
	for _, toast := range toasts {
		if toast.ID == progress {
			t.Error("progress toast still visible after Replace")
		}
	}
	if toasts[0].Kind != KindSuccess {
		t.Errorf("front toast kind = %v, want success", toasts[0].Kind)
	}
}

func TestToastManager_BaseDuration(t *testing.T) {
	m := NewToastManager(WithBaseDuration(2 * time.Second))
	m.AddError("e")
	if d := m.Toasts()[0].Duration; d != 4*time.Second {
		t.Errorf("error duration = %v, want 4s", d)
	}

	m.SetBaseDuration(10 * time.Second)
	m.AddStatus("s")
	if d := m.Toasts()[0].Duration; d != 10*time.Second {
		t.Errorf("status duration = %v, want 10s", d)
	}
}

func TestToastManager_OnChange(t *testing.T) {
	calls := 0
	m := NewToastManager(WithOnChange(func() { calls++ }))
	id := m.AddStatus("a")
	m.Replace(id, KindSuccess, "b")
	m.Remove(99)
	if calls != 2 {
		t.Errorf("onChange calls = %d, want 2", calls)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	id := r.Notify(KindStatus, "working")
	r.Replace(id, KindError, "failed")

	if r.Count(KindError) != 1 || r.Count(KindStatus) != 1 {
		t.Errorf("counts = %d errors, %d status", r.Count(KindError), r.Count(KindStatus))
	}
	last, ok := r.Last()
	if !ok || last.Replaced != id || last.Message != "failed" {
		t.Errorf("Last() = %+v", last)
	}
	r.Reset()
	if len(r.Entries()) != 0 {
		t.Error("Reset should clear entries")
	}
}

func TestDiscard(t *testing.T) {
	if OrDiscard(nil) != Discard {
		t.Error("OrDiscard(nil) should be Discard")
	}
	if Discard.Notify(KindError, "x") != 0 {
		t.Error("Discard should return 0")
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil, true)

	w.Notify(KindStatus, "hidden")
	w.Notify(KindError, "Could not reach the server")
	w.Notify(KindSuccess, "Chat deleted")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("quiet writer printed a status notification")
	}
	if !strings.Contains(out, "error: Could not reach the server\n") {
		t.Errorf("missing error line in %q", out)
	}
	if !strings.Contains(out, "ok: Chat deleted\n") {
		t.Errorf("missing success line in %q", out)
	}
}
