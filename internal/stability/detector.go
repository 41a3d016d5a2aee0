package stability

import (
	"time"
)

// Observation is the subset of file metadata the detector needs.
type Observation struct {
	Size    int64
	ModTime time.Time
}

// Detector tracks the last observed size of each candidate file.
//
// A Detector is owned by a single pass loop and is not safe for concurrent
// use.
type Detector struct {
	debounce time.Duration
	sizes    map[string]int64
}

// NewDetector returns a detector that requires files to be quiet for at least
// debounce before their size is compared.
func NewDetector(debounce time.Duration) *Detector {
	if debounce < 0 {
		debounce = 0
	}
	return &Detector{debounce: debounce, sizes: make(map[string]int64)}
}

// Check applies one observation of name and reports whether the file is
// stable. A file modified within the debounce window is never stable and
// leaves no record behind. The first settled observation records the size;
// each later observation either refreshes a changed size or, when the size
// matches, clears the record and reports stable.
func (d *Detector) Check(name string, obs Observation, now time.Time) bool {
	if now.Sub(obs.ModTime) < d.debounce {
		return false
	}
	prev, seen := d.sizes[name]
	if !seen || prev != obs.Size {
		d.sizes[name] = obs.Size
		return false
	}
	delete(d.sizes, name)
	return true
}

// Forget drops any record for name.
func (d *Detector) Forget(name string) {
	delete(d.sizes, name)
}

// Prune drops records for names not present in the current listing.
func (d *Detector) Prune(present map[string]struct{}) {
	for name := range d.sizes {
		if _, ok := present[name]; !ok {
			delete(d.sizes, name)
		}
	}
}

// Len reports how many files are currently being watched.
func (d *Detector) Len() int {
	return len(d.sizes)
}

// Tracked reports whether name has a size record.
func (d *Detector) Tracked(name string) bool {
	_, ok := d.sizes[name]
	return ok
}
