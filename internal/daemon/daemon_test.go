package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cymatics/internal/api"
	"cymatics/internal/daemon"
	"cymatics/internal/engine"
	"cymatics/internal/logging"
	"cymatics/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, logging.NewNop(), daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	status := d.Status()
	if !status.Running {
		t.Fatal("expected running status")
	}
	if status.APIAddress == "" {
		t.Fatal("expected bound api address")
	}
	for _, dir := range []string{"incoming", "processing", "completed", "failed"} {
		if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, dir)); err != nil {
			t.Fatalf("expected %s directory: %v", dir, err)
		}
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to report stopped")
	}
}

func TestSecondInstanceBlockedByLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := daemon.New(cfg, logging.NewNop(), daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	second, err := daemon.New(cfg, logging.NewNop(), daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New second: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	err = second.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock error, got %v", err)
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
	second.Stop()
}

func TestSubmitThroughAPIIsTranscribed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, logging.NewNop(), daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	source := filepath.Join(t.TempDir(), "memo.m4a")
	testsupport.WriteFile(t, source, 2048)

	client := api.NewClient("http://"+d.Status().APIAddress, 5*time.Second)
	resp, err := client.Submit(context.Background(), source)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	stored := resp.ID + "_memo.m4a"

	transcript := filepath.Join(cfg.Paths.DataDir, "completed", resp.ID+"_memo.txt")
	if !testsupport.WaitFor(t, 5*time.Second, func() bool {
		_, err := os.Stat(transcript)
		return err == nil
	}) {
		t.Fatalf("transcript %s never appeared", transcript)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "completed", stored)); err != nil {
		t.Fatalf("expected media in completed: %v", err)
	}

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.RecentCompleted) != 1 || status.RecentCompleted[0] != stored {
		t.Fatalf("unexpected recent completed: %v", status.RecentCompleted)
	}

	if !testsupport.WaitFor(t, 2*time.Second, func() bool {
		jobs, err := client.Jobs(context.Background(), 10)
		return err == nil && jobs.Counts.Completed == 1
	}) {
		t.Fatal("history never recorded the completed job")
	}
}

func TestRunOnceProcessesSettledFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCycle(0.05, 0.2))
	d, err := daemon.New(cfg, logging.NewNop(), daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	incoming := filepath.Join(cfg.Paths.DataDir, "incoming")
	testsupport.WriteFile(t, filepath.Join(incoming, "talk.wav"), 512)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.DataDir, "processing", "stale.mp3"), 512)
	past := time.Now().Add(-time.Minute)
	if err := os.Chtimes(filepath.Join(incoming, "talk.wav"), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	abandoned := filepath.Join(incoming, ".x_talk.wav.upload-1")
	testsupport.WriteFile(t, abandoned, 64)
	longAgo := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(abandoned, longAgo, longAgo); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "completed", "talk.txt")); err != nil {
		t.Fatalf("expected transcript after run once: %v", err)
	}
	if _, err := os.Stat(abandoned); !os.IsNotExist(err) {
		t.Fatalf("expected abandoned upload to be swept, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "processing", "stale.mp3")); !os.IsNotExist(err) {
		t.Fatalf("expected orphan to leave processing, stat err=%v", err)
	}
}

func TestRunOnceFinishesJobAfterCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCycle(0.05, 0.05))
	d, err := daemon.New(cfg, logging.NewNop(), daemon.Options{
		Loader: &engine.MockLoader{TranscribeDelay: time.Second},
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	incoming := filepath.Join(cfg.Paths.DataDir, "incoming")
	testsupport.WriteFile(t, filepath.Join(incoming, "long.mp3"), 512)
	past := time.Now().Add(-time.Minute)
	if err := os.Chtimes(filepath.Join(incoming, "long.mp3"), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(250*time.Millisecond, cancel)
	if err := d.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "completed", "long.txt")); err != nil {
		t.Fatalf("expected the in-flight job to finish: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "failed", "long.error.txt")); !os.IsNotExist(err) {
		t.Fatalf("cancellation must not fail the job, stat err=%v", err)
	}
}
