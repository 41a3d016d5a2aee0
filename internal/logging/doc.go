// Package logging assembles structured slog loggers and formatting helpers used
// across the cymatics daemon and CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so scheduler code can tag log
// lines with the job file and cycle pass. The package also provides a no-op
// logger for tests and wiring code that cannot fail, plus retention pruning
// for per-run log files.
package logging
