package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cymatics/internal/testsupport"
)

func TestSubmitStatusAndHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	source := filepath.Join(t.TempDir(), "interview.mp3")
	testsupport.WriteFile(t, source, 4096)

	out, _, err := runCLI(t, []string{"submit", source}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Queued interview.mp3")

	waitFor(t, 5*time.Second, func() bool {
		return len(env.daemon.QueueStatus().RecentCompleted) == 1
	})

	out, _, err = runCLI(t, []string{"status"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Queue ==")
	requireContains(t, out, "idle")
	requireContains(t, out, "_interview.mp3")

	out, _, err = runCLI(t, []string{"status", "--json"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var snap statusSnapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	if snap.Queue == nil || snap.Queue.ModelState != "ready" {
		t.Fatalf("unexpected queue snapshot: %+v", snap.Queue)
	}

	waitFor(t, 2*time.Second, func() bool {
		out, _, err = runCLI(t, []string{"history"}, env.apiURL, env.configPath)
		return err == nil && strings.Contains(out, "_interview.mp3")
	})
	requireContains(t, out, "Completed")

	out, _, err = runCLI(t, []string{"unload"}, env.apiURL, env.configPath)
	if err != nil {
		t.Fatalf("unload: %v", err)
	}
	requireContains(t, out, "Engine unloaded")
}

func TestSubmitRejectsUnsupportedFiles(t *testing.T) {
	env := setupCLITestEnv(t)

	doc := filepath.Join(t.TempDir(), "notes.pdf")
	if err := os.WriteFile(doc, []byte("pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, []string{"submit", doc}, env.apiURL, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unsupported file type") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"submit", filepath.Join(t.TempDir(), "missing.mp3")}, env.apiURL, env.configPath); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCommandsReportUnreachableDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	for _, args := range [][]string{{"status"}, {"history"}, {"unload"}} {
		_, _, err := runCLI(t, args, "http://127.0.0.1:1", env.configPath)
		if err == nil || !strings.Contains(err.Error(), "not reachable") {
			t.Fatalf("%v: expected unreachable error, got %v", args, err)
		}
	}
}

func TestHistoryRejectsNonPositiveLimit(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"history", "--limit", "0"}, env.apiURL, env.configPath); err == nil {
		t.Fatal("expected limit validation error")
	}
}

func TestNotifyTestRequiresTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"notify-test"}, env.apiURL, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "ntfy_topic") {
		t.Fatalf("expected missing topic error, got %v", err)
	}
}

func TestNotifyTestSendsToTopic(t *testing.T) {
	var hits atomic.Int32
	var title atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		title.Store(r.Header.Get("Title"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(srv.URL))
	t.Setenv("HOME", filepath.Join(testsupport.BaseDir(cfg), "home"))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"notify-test"}, "", configPath)
	if err != nil {
		t.Fatalf("notify-test: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if hits.Load() != 1 {
		t.Fatalf("expected one ntfy request, got %d", hits.Load())
	}
	if got, _ := title.Load().(string); !strings.HasSuffix(got, "Test") {
		t.Fatalf("unexpected title %q", got)
	}
}
