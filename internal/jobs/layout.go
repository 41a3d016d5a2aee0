package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Directory names under the data directory.
const (
	DirIncoming   = "incoming"
	DirProcessing = "processing"
	DirCompleted  = "completed"
	DirFailed     = "failed"
)

var supportedExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".m4a":  {},
	".flac": {},
	".aac":  {},
	".mp4":  {},
	".mkv":  {},
	".mov":  {},
}

// Supported reports whether name carries an extension the engine accepts.
// Matching is case-insensitive.
func Supported(name string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// SupportedExtensions returns the accepted extensions in a stable order.
func SupportedExtensions() []string {
	return []string{".mp3", ".wav", ".m4a", ".flac", ".aac", ".mp4", ".mkv", ".mov"}
}

// Layout names the four state directories beneath a base directory.
type Layout struct {
	Base       string
	Incoming   string
	Processing string
	Completed  string
	Failed     string
}

// NewLayout derives the state directories from base.
func NewLayout(base string) Layout {
	return Layout{
		Base:       base,
		Incoming:   filepath.Join(base, DirIncoming),
		Processing: filepath.Join(base, DirProcessing),
		Completed:  filepath.Join(base, DirCompleted),
		Failed:     filepath.Join(base, DirFailed),
	}
}

// Dirs returns the state directories in lifecycle order.
func (l Layout) Dirs() []string {
	return []string{l.Incoming, l.Processing, l.Completed, l.Failed}
}

// Ensure creates every state directory.
func (l Layout) Ensure() error {
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// stem strips the final extension from name.
func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
