package preflight

import (
	"fmt"

	"cymatics/internal/config"
	"cymatics/internal/language"
)

// EngineSummary describes which engine the configuration selects, for
// status output.
func EngineSummary(cfg *config.Config) Result {
	const name = "Engine"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if cfg.Whisper.UseMock {
		return Result{Name: name, Passed: true, Detail: "mock (no model loaded)"}
	}
	model := CheckModel(cfg.ModelDir())
	detail := fmt.Sprintf("whisper %s, %s (%d threads)", cfg.Whisper.Model,
		language.DisplayName(cfg.Whisper.Language), cfg.Whisper.NumThreads)
	if !model.Passed {
		return Result{Name: name, Detail: detail + ": " + model.Detail}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}
