package staging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cymatics/internal/logging"
)

// DefaultMaxAge is how old a staged file must be before it is swept.
const DefaultMaxAge = time.Hour

// stagedMarkers identify the temporary names written by the upload handler,
// fileutil.WriteFileAtomic and the cross-device move fallback.
var stagedMarkers = []string{".upload-", ".tmp-", ".partial"}

// CleanStaleResult contains the outcome of a stale file cleanup.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// IsStaged reports whether name is a hidden temporary file.
func IsStaged(name string) bool {
	if !strings.HasPrefix(name, ".") {
		return false
	}
	for _, marker := range stagedMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// CleanStale removes staged files older than maxAge from each directory.
// Missing directories are skipped.
func CleanStale(dirs []string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	cutoff := time.Now().Add(-maxAge)

	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
			}
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || !IsStaged(entry.Name()) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			info, err := entry.Info()
			if err != nil {
				if !os.IsNotExist(err) {
					result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				}
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				if logger != nil {
					logging.WarnWithContext(logger, "failed to remove stale staged file", "staging_cleanup_failed",
						logging.String("path", path),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "check paths.data_dir permissions"),
						logging.String(logging.FieldImpact, "disk space not reclaimed"),
					)
				}
				continue
			}
			result.Removed = append(result.Removed, path)
			if logger != nil {
				logger.Info("removed stale staged file",
					logging.String("path", path),
					logging.Duration("age", time.Since(info.ModTime())),
					logging.String(logging.FieldEventType, "staging_cleanup"),
				)
			}
		}
	}
	return result
}
