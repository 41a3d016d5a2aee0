package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cymatics/internal/api"
	"cymatics/internal/history"
	"cymatics/internal/jobs"
	"cymatics/internal/logging"
)

type fakeBackend struct {
	incoming string
	unloads  atomic.Int32
	entries  []history.Entry
	histErr  error
}

func (f *fakeBackend) QueueStatus() jobs.QueueStatus {
	state := "ready"
	if f.unloads.Load() > 0 {
		state = "unloaded"
	}
	return jobs.QueueStatus{QueueLength: 2, ModelState: state, RecentCompleted: []string{"a.mp3"}}
}

func (f *fakeBackend) IncomingDir() string { return f.incoming }

func (f *fakeBackend) UnloadModel() { f.unloads.Add(1) }

func (f *fakeBackend) RecentJobs(_ context.Context, limit int) ([]history.Entry, history.Counts, error) {
	if f.histErr != nil {
		return nil, history.Counts{}, f.histErr
	}
	entries := f.entries
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, history.Counts{Completed: int64(len(f.entries))}, nil
}

func newTestServer(t *testing.T, backend *fakeBackend, maxMiB int) (*httptest.Server, *api.Client) {
	t.Helper()
	srv := api.NewServer(backend, api.Options{MaxUploadMiB: maxMiB, Version: "test", Logger: logging.NewNop()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, api.NewClient(ts.URL, 5*time.Second)
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	_, client := newTestServer(t, &fakeBackend{incoming: t.TempDir()}, 0)
	resp, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if resp.Status != "ok" || resp.Version != "test" {
		t.Fatalf("unexpected health %+v", resp)
	}
}

func TestSubmitStoresUploadInIncoming(t *testing.T) {
	incoming := t.TempDir()
	_, client := newTestServer(t, &fakeBackend{incoming: incoming}, 0)

	src := filepath.Join(t.TempDir(), "meeting.mp3")
	if err := os.WriteFile(src, bytes.Repeat([]byte{1}, 1200), 0o644); err != nil {
		t.Fatal(err)
	}
	resp, err := client.Submit(context.Background(), src)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Status != "queued" || len(resp.ID) != 8 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Filename != resp.ID+"_meeting.mp3" {
		t.Fatalf("filename = %q", resp.Filename)
	}

	info, err := os.Stat(filepath.Join(incoming, resp.Filename))
	if err != nil {
		t.Fatalf("upload not in incoming: %v", err)
	}
	if info.Size() != 1200 {
		t.Fatalf("stored %d bytes, want 1200", info.Size())
	}
	entries, _ := os.ReadDir(incoming)
	if len(entries) != 1 {
		t.Fatalf("temporary upload file left behind: %d entries", len(entries))
	}
}

func TestSubmitSanitizesFilename(t *testing.T) {
	incoming := t.TempDir()
	ts, _ := newTestServer(t, &fakeBackend{incoming: incoming}, 0)

	body, contentType := multipartBody(t, "file", "weird:name?.mp3", []byte("data"))
	resp, err := http.Post(ts.URL+"/v1/transcribe", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var out api.TranscribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Filename != out.ID+"_weird-name.mp3" {
		t.Fatalf("filename = %q", out.Filename)
	}
	if _, err := os.Stat(filepath.Join(incoming, out.Filename)); err != nil {
		t.Fatalf("sanitized upload missing: %v", err)
	}
}

func TestTranscribeRejectsBadUploads(t *testing.T) {
	ts, _ := newTestServer(t, &fakeBackend{incoming: t.TempDir()}, 0)

	cases := []struct {
		name       string
		field      string
		filename   string
		wantDetail string
	}{
		{name: "unsupported extension", field: "file", filename: "notes.ogg", wantDetail: "Unsupported file type: .ogg"},
		{name: "wrong field", field: "upload", filename: "a.mp3", wantDetail: "is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tc.field, tc.filename, []byte("data"))
			resp, err := http.Post(ts.URL+"/v1/transcribe", contentType, body)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			var errResp api.ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(errResp.Detail, tc.wantDetail) {
				t.Fatalf("detail = %q, want it to contain %q", errResp.Detail, tc.wantDetail)
			}
		})
	}
}

func TestUploadSizeLimit(t *testing.T) {
	ts, _ := newTestServer(t, &fakeBackend{incoming: t.TempDir()}, 1)
	body, contentType := multipartBody(t, "file", "big.wav", bytes.Repeat([]byte{0}, 2<<20))
	resp, err := http.Post(ts.URL+"/v1/transcribe", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
}

func TestCycleStatusShape(t *testing.T) {
	ts, _ := newTestServer(t, &fakeBackend{incoming: t.TempDir()}, 0)
	resp, err := http.Get(ts.URL + "/v1/cycle/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"queue_length", "current_file", "model_state", "recent_completed"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("missing key %q in %v", key, raw)
		}
	}
	if raw["current_file"] != nil {
		t.Fatalf("current_file should be null when idle, got %v", raw["current_file"])
	}
}

func TestUnloadAndJobs(t *testing.T) {
	backend := &fakeBackend{
		incoming: t.TempDir(),
		entries: []history.Entry{
			{ID: 3, Filename: "c.mp3", Outcome: history.OutcomeCompleted},
			{ID: 2, Filename: "b.mp3", Outcome: history.OutcomeFailed, Reason: "boom"},
			{ID: 1, Filename: "a.mp3", Outcome: history.OutcomeCompleted},
		},
	}
	ts, client := newTestServer(t, backend, 0)

	status, err := client.Unload(context.Background())
	if err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if backend.unloads.Load() != 1 || status.ModelState != "unloaded" {
		t.Fatalf("unload not forwarded: %+v", status)
	}

	jobsResp, err := client.Jobs(context.Background(), 2)
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(jobsResp.Jobs) != 2 || jobsResp.Jobs[1].Reason != "boom" || jobsResp.Counts.Completed != 3 {
		t.Fatalf("unexpected jobs response %+v", jobsResp)
	}

	resp, err := http.Get(ts.URL + "/v1/jobs?limit=abc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for a bad limit", resp.StatusCode)
	}
}

func TestClientReportsUnavailableDaemon(t *testing.T) {
	client := api.NewClient("http://127.0.0.1:1", time.Second)
	if _, err := client.Status(context.Background()); err == nil || !strings.Contains(err.Error(), "daemon unavailable") {
		t.Fatalf("expected daemon unavailable error, got %v", err)
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	srv := api.NewServer(&fakeBackend{incoming: t.TempDir()}, api.Options{Bind: "127.0.0.1:0", Logger: logging.NewNop()})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	client := api.NewClient("http://"+srv.Addr(), time.Second)
	if _, err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health over real listener: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
