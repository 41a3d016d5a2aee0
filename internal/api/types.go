package api

import (
	"context"

	"cymatics/internal/history"
	"cymatics/internal/jobs"
)

// Backend is what the HTTP surface needs from the daemon.
type Backend interface {
	QueueStatus() jobs.QueueStatus
	IncomingDir() string
	UnloadModel()
	RecentJobs(ctx context.Context, limit int) ([]history.Entry, history.Counts, error)
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// TranscribeResponse is returned by POST /v1/transcribe.
type TranscribeResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Filename string `json:"filename"`
}

// JobsResponse is returned by GET /v1/jobs.
type JobsResponse struct {
	Jobs   []history.Entry `json:"jobs"`
	Counts history.Counts  `json:"counts"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
