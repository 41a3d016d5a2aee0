package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"cymatics/internal/engine"
	"cymatics/internal/fileutil"
)

// Artifact suffixes written beside finished media.
const (
	TranscriptSuffix = ".txt"
	ResultSuffix     = ".json"
	ErrorSuffix      = ".error.txt"
)

// writeResultArtifacts writes <stem>.txt and <stem>.json into dir.
func writeResultArtifacts(dir, name string, res *engine.Result) error {
	base := stem(name)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, base+ResultSuffix), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write result json: %w", err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, base+TranscriptSuffix), []byte(res.Text), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

// writeErrorArtifact writes <stem>.error.txt into dir.
func writeErrorArtifact(dir, name, reason string) error {
	body := fmt.Sprintf("File: %s\nError: %s\n", name, reason)
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, stem(name)+ErrorSuffix), []byte(body), 0o644); err != nil {
		return fmt.Errorf("write error record: %w", err)
	}
	return nil
}
