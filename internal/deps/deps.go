package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external binary the engine shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Optional requirements are reported but never count as failures.
	Optional bool
}

// Status is a Requirement plus the result of looking it up.
type Status struct {
	Requirement
	Available bool
	// Path is the resolved executable when Available is set.
	Path   string
	Detail string
}

// Missing reports whether the requirement blocks work.
func (s Status) Missing() bool {
	return !s.Available && !s.Optional
}

// Check looks up a single requirement on PATH.
func Check(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

// CheckBinaries evaluates each requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, Check(req))
	}
	return results
}
