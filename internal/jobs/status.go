package jobs

import (
	"os"
	"strings"
)

// QueueStatus is a point-in-time view of the scheduler.
type QueueStatus struct {
	QueueLength     int      `json:"queue_length"`
	CurrentFile     *string  `json:"current_file"`
	ModelState      string   `json:"model_state"`
	RecentCompleted []string `json:"recent_completed"`
}

// QueueStatus re-scans incoming and reports the live snapshot.
func (m *Machine) QueueStatus() QueueStatus {
	status := QueueStatus{
		QueueLength:     m.countQueued(),
		ModelState:      "unloaded",
		RecentCompleted: m.recent.Snapshot(),
	}
	if name, ok := m.CurrentFile(); ok {
		status.CurrentFile = &name
	}
	if m.engine != nil {
		status.ModelState = m.engine.State().String()
	}
	return status
}

func (m *Machine) countQueued() int {
	entries, err := os.ReadDir(m.layout.Incoming)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !entry.Type().IsRegular() || !Supported(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		count++
	}
	return count
}
