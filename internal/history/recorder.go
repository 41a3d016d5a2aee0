package history

import (
	"context"
	"log/slog"

	"cymatics/internal/jobs"
	"cymatics/internal/logging"
)

// Recorder writes every job outcome into a Store. Write failures are logged
// and otherwise ignored; a job's fate is decided before it is recorded.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

// NewRecorder returns a jobs.Observer backed by store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logging.NewComponentLogger(logger, "history")}
}

// JobFinished implements jobs.Observer.
func (r *Recorder) JobFinished(ctx context.Context, outcome jobs.Outcome) {
	if r == nil || r.store == nil {
		return
	}
	entry := Entry{
		Filename:   outcome.Filename,
		Outcome:    outcome.Status,
		Reason:     outcome.Reason,
		DurationMS: outcome.Elapsed.Milliseconds(),
		RecordedAt: outcome.FinishedAt,
	}
	if _, err := r.store.Record(context.WithoutCancel(ctx), entry); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "history write failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldJobFile, outcome.Filename),
			logging.String(logging.FieldErrorHint, "check that paths.state_dir is writable"),
			logging.String(logging.FieldImpact, "job outcome missing from the ledger"),
		)
	}
}
