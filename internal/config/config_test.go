package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"cymatics/internal/config"
)

func clearServiceEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATA_DIR", "WHISPER_MODEL", "MODEL_UNLOAD_TIMEOUT", "DEBOUNCE_SECONDS",
		"CYCLE_POLL_INTERVAL", "CYMATICS_USE_MOCK_TRANSMUTATION", "CYMATICS_APP_NAME",
		"CYMATICS_API_BIND", "CYMATICS_NTFY_TOPIC",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearServiceEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "cymatics", "data")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Whisper.Model != "medium" {
		t.Fatalf("unexpected model: %q", cfg.Whisper.Model)
	}
	if cfg.UnloadTimeout() != 300*time.Second {
		t.Fatalf("unexpected unload timeout: %s", cfg.UnloadTimeout())
	}
	if cfg.PollInterval() != 5*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.Debounce() != 2*time.Second {
		t.Fatalf("unexpected debounce: %s", cfg.Debounce())
	}
	if cfg.Whisper.UseMock {
		t.Fatal("expected real engine by default")
	}
	if cfg.Cycle.MaxMoveAttempts != 0 {
		t.Fatalf("expected unlimited move attempts by default, got %d", cfg.Cycle.MaxMoveAttempts)
	}
	if cfg.ModelDir() != filepath.Join(tempHome, ".local", "share", "cymatics", "models", "medium") {
		t.Fatalf("unexpected model dir: %q", cfg.ModelDir())
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	clearServiceEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	dataDir := filepath.Join(tempHome, "jobs")
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("WHISPER_MODEL", "tiny")
	t.Setenv("MODEL_UNLOAD_TIMEOUT", "12")
	t.Setenv("DEBOUNCE_SECONDS", "0.25")
	t.Setenv("CYCLE_POLL_INTERVAL", "0.5")
	t.Setenv("CYMATICS_USE_MOCK_TRANSMUTATION", "true")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DataDir != dataDir {
		t.Fatalf("DATA_DIR not applied: %q", cfg.Paths.DataDir)
	}
	if cfg.Whisper.Model != "tiny" {
		t.Fatalf("WHISPER_MODEL not applied: %q", cfg.Whisper.Model)
	}
	if cfg.UnloadTimeout() != 12*time.Second {
		t.Fatalf("MODEL_UNLOAD_TIMEOUT not applied: %s", cfg.UnloadTimeout())
	}
	if cfg.Debounce() != 250*time.Millisecond {
		t.Fatalf("DEBOUNCE_SECONDS not applied: %s", cfg.Debounce())
	}
	if cfg.PollInterval() != 500*time.Millisecond {
		t.Fatalf("CYCLE_POLL_INTERVAL not applied: %s", cfg.PollInterval())
	}
	if !cfg.Whisper.UseMock {
		t.Fatal("CYMATICS_USE_MOCK_TRANSMUTATION not applied")
	}
}

func TestLoadRejectsMalformedEnvironment(t *testing.T) {
	clearServiceEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CYCLE_POLL_INTERVAL", "soon")

	if _, _, _, err := config.Load(""); err == nil || !strings.Contains(err.Error(), "CYCLE_POLL_INTERVAL") {
		t.Fatalf("expected CYCLE_POLL_INTERVAL error, got %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearServiceEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := map[string]any{
		"paths":   map[string]any{"data_dir": "~/media-drop"},
		"whisper": map[string]any{"model": "small", "unload_timeout": 60, "language": " Japanese "},
		"cycle":   map[string]any{"poll_interval": 1.5, "max_move_attempts": 3},
		"logging": map[string]any{"format": "JSON"},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "media-drop") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Whisper.Model != "small" || cfg.Whisper.Language != "ja" {
		t.Fatalf("unexpected whisper section: %+v", cfg.Whisper)
	}
	if cfg.PollInterval() != 1500*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.Cycle.MaxMoveAttempts != 3 {
		t.Fatalf("unexpected max move attempts: %d", cfg.Cycle.MaxMoveAttempts)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized log format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"empty model", func(c *config.Config) { c.Whisper.Model = "" }, "whisper.model"},
		{"zero unload", func(c *config.Config) { c.Whisper.UnloadTimeout = 0 }, "whisper.unload_timeout"},
		{"zero poll", func(c *config.Config) { c.Cycle.PollInterval = 0 }, "cycle.poll_interval"},
		{"negative debounce", func(c *config.Config) { c.Cycle.DebounceSeconds = -1 }, "cycle.debounce_seconds"},
		{"negative attempts", func(c *config.Config) { c.Cycle.MaxMoveAttempts = -1 }, "cycle.max_move_attempts"},
		{"unknown language", func(c *config.Config) { c.Whisper.Language = "klingon" }, "whisper.language"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestCreateSampleLoadsCleanly(t *testing.T) {
	clearServiceEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.API.Bind != "127.0.0.1:7489" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
}

func TestAPIBaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.API.Bind = "0.0.0.0:9000"
	if got := cfg.APIBaseURL(); got != "http://127.0.0.1:9000" {
		t.Fatalf("APIBaseURL = %q", got)
	}
	cfg.API.Bind = ":9001"
	if got := cfg.APIBaseURL(); got != "http://127.0.0.1:9001" {
		t.Fatalf("APIBaseURL = %q", got)
	}
}
