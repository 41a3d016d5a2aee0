package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"cymatics/internal/api"
	"cymatics/internal/history"
	"cymatics/internal/jobs"
)

func TestRenderStatusLinePlain(t *testing.T) {
	line := renderStatusLine("Engine", statusOK, "Ready", false)
	if !strings.HasPrefix(line, "  Engine:") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	if !strings.HasSuffix(line, "[OK] Ready") {
		t.Fatalf("unexpected suffix: %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("plain line contains escape codes: %q", line)
	}
}

func TestRenderStatusLineColorized(t *testing.T) {
	line := renderStatusLine("Failed", statusError, "2", true)
	if !strings.HasPrefix(line, ansiRed) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected red line, got %q", line)
	}
}

func TestRenderStatusIdleQueue(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, statusSnapshot{
		API:     "http://127.0.0.1:7489",
		Version: "0.1.0",
		Queue:   &jobs.QueueStatus{ModelState: "unloaded"},
	}, false)
	out := buf.String()
	for _, want := range []string{"version 0.1.0", "[INFO] idle", "[INFO] Unloaded", "No files completed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderStatusWithCurrentFile(t *testing.T) {
	current := "lecture.wav"
	var buf bytes.Buffer
	renderStatus(&buf, statusSnapshot{
		Queue: &jobs.QueueStatus{
			QueueLength:     3,
			CurrentFile:     &current,
			ModelState:      "ready",
			RecentCompleted: []string{"a.mp3", "b.mp3"},
		},
	}, false)
	out := buf.String()
	for _, want := range []string{"[WARN] 3", "[OK] lecture.wav", "[OK] Ready", "a.mp3", "b.mp3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderHistoryTable(t *testing.T) {
	var buf bytes.Buffer
	renderHistory(&buf, &api.JobsResponse{
		Jobs: []history.Entry{
			{ID: 2, Filename: "bad.wav", Outcome: history.OutcomeFailed, Reason: "Invalid file (zero bytes or unreadable)"},
			{ID: 1, Filename: "good.mp3", Outcome: history.OutcomeCompleted, DurationMS: 1500},
		},
		Counts: history.Counts{Completed: 1, Failed: 1},
	}, false)
	out := buf.String()
	for _, want := range []string{"[ERROR] 1", "Failed", "Completed", "good.mp3", "2s", "zero bytes"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int64]string{0: "-", 250: "250ms", 61_400: "1m1s"}
	for ms, want := range cases {
		if got := formatDuration(time.Duration(ms) * time.Millisecond); got != want {
			t.Fatalf("formatDuration(%dms) = %q, want %q", ms, got, want)
		}
	}
}
