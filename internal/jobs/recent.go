package jobs

import "sync"

// RecentLimit caps the recently completed list.
const RecentLimit = 10

// Recent is a bounded FIFO of filenames; the oldest entry is evicted first.
type Recent struct {
	mu    sync.Mutex
	limit int
	items []string
}

// NewRecent returns an empty list holding at most limit names.
func NewRecent(limit int) *Recent {
	if limit <= 0 {
		limit = RecentLimit
	}
	return &Recent{limit: limit, items: make([]string, 0, limit)}
}

// Add appends name, evicting the oldest entry when full.
func (r *Recent) Add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == r.limit {
		copy(r.items, r.items[1:])
		r.items = r.items[:r.limit-1]
	}
	r.items = append(r.items, name)
}

// Snapshot returns a copy, oldest first.
func (r *Recent) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(make([]string, 0, len(r.items)), r.items...)
}

// Reset empties the list.
func (r *Recent) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = r.items[:0]
}
