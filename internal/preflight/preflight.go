package preflight

import (
	"cymatics/internal/config"
	"cymatics/internal/jobs"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem and engine checks for cfg. Binary checks
// are reported separately through CheckSystemDeps.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	layout := jobs.NewLayout(cfg.Paths.DataDir)
	results := []Result{
		CheckDirectoryAccess("Data directory", layout.Base),
		CheckDirectoryAccess("Incoming directory", layout.Incoming),
		CheckDirectoryAccess("Processing directory", layout.Processing),
		CheckDirectoryAccess("Completed directory", layout.Completed),
		CheckDirectoryAccess("Failed directory", layout.Failed),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	// The mock engine loads nothing from disk.
	if !cfg.Whisper.UseMock {
		results = append(results, CheckModel(cfg.ModelDir()))
	}
	return results
}
