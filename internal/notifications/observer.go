package notifications

import (
	"context"
	"log/slog"

	"cymatics/internal/config"
	"cymatics/internal/jobs"
	"cymatics/internal/logging"
)

// Observer forwards job outcomes to a Service. Delivery failures are logged
// at warn and never reach the job state machine.
type Observer struct {
	svc       Service
	completed bool
	failed    bool
	logger    *slog.Logger
}

// NewObserver returns a jobs.Observer honouring the per-outcome toggles in cfg.
func NewObserver(svc Service, cfg *config.Config, logger *slog.Logger) *Observer {
	return &Observer{
		svc:       svc,
		completed: cfg.Notifications.Completed,
		failed:    cfg.Notifications.Failed,
		logger:    logging.NewComponentLogger(logger, "notifications"),
	}
}

// JobFinished implements jobs.Observer.
func (o *Observer) JobFinished(ctx context.Context, outcome jobs.Outcome) {
	if o == nil || o.svc == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var err error
	switch outcome.Status {
	case jobs.StatusCompleted:
		if !o.completed {
			return
		}
		err = o.svc.JobCompleted(ctx, outcome.Filename, outcome.Elapsed)
	case jobs.StatusFailed:
		if !o.failed {
			return
		}
		err = o.svc.JobFailed(ctx, outcome.Filename, outcome.Reason)
	default:
		return
	}
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "notification delivery failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldJobFile, outcome.Filename),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
			logging.String(logging.FieldImpact, "no push notification for this job"),
		)
	}
}
