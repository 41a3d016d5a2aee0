package jobs

import (
	"os"
	"sort"
	"strings"
	"time"
)

// Candidate is a supported file observed in incoming.
type Candidate struct {
	Name    string
	Size    int64
	ModTime time.Time
	// StatErr is set when the entry was listed but its metadata could not be read.
	StatErr error
}

// scanIncoming lists supported regular files in incoming, split into
// non-empty candidates and rejects (zero bytes or unreadable). Hidden names
// are skipped so in-flight uploads are never picked up. Both slices are
// sorted by name.
func (m *Machine) scanIncoming() (eligible, rejects []Candidate, err error) {
	entries, err := os.ReadDir(m.layout.Incoming)
	if err != nil {
		return nil, nil, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || entry.IsDir() || !Supported(name) {
			continue
		}
		info, statErr := entry.Info()
		if statErr != nil {
			rejects = append(rejects, Candidate{Name: name, StatErr: statErr})
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		c := Candidate{Name: name, Size: info.Size(), ModTime: info.ModTime()}
		if c.Size == 0 {
			rejects = append(rejects, c)
			continue
		}
		eligible = append(eligible, c)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Name < eligible[j].Name })
	sort.Slice(rejects, func(i, j int) bool { return rejects[i].Name < rejects[j].Name })
	return eligible, rejects, nil
}

// Discover returns the non-empty supported files in incoming, sorted by name.
func (m *Machine) Discover() ([]Candidate, error) {
	eligible, _, err := m.scanIncoming()
	return eligible, err
}

// IsValid reports whether path can be stat'ed and is non-empty.
func IsValid(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}
