package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"cymatics/internal/config"
	"cymatics/internal/deps"
	"cymatics/internal/engine"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckModel confirms dir holds the encoder, decoder and tokens files the
// engine loads.
func CheckModel(dir string) Result {
	const name = "Whisper model"
	if strings.TrimSpace(dir) == "" {
		return Result{Name: name, Detail: "model directory not configured"}
	}
	if _, err := engine.LocateModelFiles(dir); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (encoder, decoder and tokens present)", dir)}
}

// CheckSystemDeps evaluates the external binaries the configured engine
// needs. The mock engine needs none.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil || cfg.Whisper.UseMock {
		return nil
	}
	return deps.CheckBinaries([]deps.Requirement{deps.FFmpegRequirement(cfg.Whisper.FFmpegBinary)})
}
