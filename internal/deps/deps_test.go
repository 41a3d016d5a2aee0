package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[0].Path != present {
		t.Fatalf("expected resolved path %s, got %s", present, results[0].Path)
	}
	if results[0].Missing() || !results[1].Missing() {
		t.Fatalf("unexpected Missing values: %v %v", results[0].Missing(), results[1].Missing())
	}
}

func TestOptionalRequirementIsNotMissing(t *testing.T) {
	status := Check(Requirement{Name: "Extra", Command: "  clearly-not-present-binary ", Optional: true})
	if status.Available || status.Missing() {
		t.Fatalf("optional absent binary should be unavailable but not missing, got %#v", status)
	}
	if status.Command != "clearly-not-present-binary" {
		t.Fatalf("command should be trimmed, got %q", status.Command)
	}
	if got := Check(Requirement{Name: "Blank"}); got.Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", got.Detail)
	}
}

func TestFFmpegRequirementHonoursOverride(t *testing.T) {
	req := FFmpegRequirement(" /opt/ffmpeg/bin/ffmpeg ")
	if req.Name != "FFmpeg" || req.Command != "/opt/ffmpeg/bin/ffmpeg" || req.Optional {
		t.Fatalf("unexpected requirement %#v", req)
	}
	if req.Description == "" {
		t.Fatal("expected a description for the operator hint")
	}
}

func TestResolveFFmpegPathOverride(t *testing.T) {
	if got := ResolveFFmpegPath("  /opt/ffmpeg/bin/ffmpeg "); got != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("override not honoured, got %q", got)
	}
}

func TestResolveFFmpegPathLookup(t *testing.T) {
	binDir := t.TempDir()
	ffmpegPath := filepath.Join(binDir, executableName("ffmpeg"))
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(ffmpegPath, script, 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	if got := ResolveFFmpegPath(""); got != ffmpegPath {
		t.Fatalf("ResolveFFmpegPath = %q, want %q", got, ffmpegPath)
	}
	status := Check(FFmpegRequirement(""))
	if !status.Available || status.Path != ffmpegPath {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestResolveFFmpegPathNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	if got := ResolveFFmpegPath(""); got != "ffmpeg" {
		t.Fatalf("expected bare command name, got %q", got)
	}
	status := Check(FFmpegRequirement(""))
	if status.Available || status.Detail == "" || !status.Missing() {
		t.Fatalf("expected unavailable ffmpeg with detail, got %#v", status)
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
