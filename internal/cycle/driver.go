package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cymatics/internal/logging"
	"cymatics/internal/services"
)

// Scheduler is the work a Driver runs. *jobs.Machine satisfies it.
type Scheduler interface {
	EnsureLayout() error
	RecoverOrphans() (int, error)
	RunPass(ctx context.Context)
}

// Options configures a Driver.
type Options struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Stats counts driver activity since construction.
type Stats struct {
	Passes       int64     `json:"passes"`
	SkippedTicks int64     `json:"skipped_ticks"`
	LastPassAt   time.Time `json:"last_pass_at"`
	LastDuration float64   `json:"last_duration_seconds"`
}

// Driver fires passes of a Scheduler on a ticker.
type Driver struct {
	sched    Scheduler
	interval time.Duration
	logger   *slog.Logger

	// pass is held for the duration of a pass; ticks only TryLock it.
	pass        sync.Mutex
	passRunning atomic.Bool
	passes      atomic.Int64
	skipped     atomic.Int64

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	lastAt   time.Time
	lastDur  time.Duration
}

// NewDriver constructs a stopped Driver.
func NewDriver(sched Scheduler, opts Options) *Driver {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	return &Driver{
		sched:    sched,
		interval: opts.Interval,
		logger:   logging.NewComponentLogger(opts.Logger, "cycle"),
	}
}

// Start creates the directory layout, rolls orphaned files back into
// incoming and begins ticking. Values carried by ctx reach every pass, but
// cancelling ctx only stops future ticks.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("cycle driver already running")
	}

	if err := d.sched.EnsureLayout(); err != nil {
		return services.Wrap(services.ErrConfiguration, "cycle", "start", "create job directories", err)
	}
	recovered, err := d.sched.RecoverOrphans()
	if err != nil {
		d.logger.Warn("orphan recovery incomplete; remaining files stay in processing",
			logging.Error(err),
			logging.Int("recovered", recovered),
			logging.String(logging.FieldEventType, "orphan_recovery_failed"),
			logging.String(logging.FieldErrorHint, "check permissions on the processing directory"),
			logging.String(logging.FieldImpact, "those files are not retried until the next restart"),
		)
	} else if recovered > 0 {
		d.logger.Info("orphan recovery complete", logging.Int("recovered", recovered))
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.loopDone = make(chan struct{})
	go d.loop(loopCtx, context.WithoutCancel(ctx), d.loopDone)

	d.logger.Info("cycle driver started",
		logging.Duration("interval", d.interval),
		logging.String(logging.FieldEventType, "cycle_started"),
	)
	return nil
}

// Stop cancels future ticks. An in-flight pass keeps running; use Wait to
// block on it.
func (d *Driver) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	done := d.loopDone
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	<-done
	d.logger.Info("cycle driver stopped", logging.String(logging.FieldEventType, "cycle_stopped"))
}

// Wait blocks until no pass is running or ctx is done.
func (d *Driver) Wait(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		d.pass.Lock()
		d.pass.Unlock()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the ticker is active.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// PassRunning reports whether a pass is executing right now.
func (d *Driver) PassRunning() bool {
	return d.passRunning.Load()
}

// RunOnce runs a pass synchronously on the caller's goroutine. It returns
// false without doing anything when a pass is already running.
func (d *Driver) RunOnce(ctx context.Context) bool {
	if !d.pass.TryLock() {
		return false
	}
	defer d.pass.Unlock()
	d.runPass(ctx)
	return true
}

// Stats returns activity counters.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Passes:       d.passes.Load(),
		SkippedTicks: d.skipped.Load(),
		LastPassAt:   d.lastAt,
		LastDuration: d.lastDur.Seconds(),
	}
}

func (d *Driver) loop(ctx, passCtx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(passCtx)
		}
	}
}

func (d *Driver) tick(ctx context.Context) {
	if !d.pass.TryLock() {
		d.skipped.Add(1)
		d.logger.Debug("previous pass still running; skipping tick")
		return
	}
	go func() {
		defer d.pass.Unlock()
		d.runPass(ctx)
	}()
}

// runPass must be called with d.pass held.
func (d *Driver) runPass(ctx context.Context) {
	d.passRunning.Store(true)
	defer d.passRunning.Store(false)

	passID := uuid.NewString()[:8]
	ctx = services.WithPassID(ctx, passID)
	logger := logging.WithContext(ctx, d.logger)
	started := time.Now()

	defer func() {
		elapsed := time.Since(started)
		d.passes.Add(1)
		d.mu.Lock()
		d.lastAt = started
		d.lastDur = elapsed
		d.mu.Unlock()
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "pass panicked; driver continues", "pass_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldImpact, "remaining files are picked up on the next tick"),
			)
			return
		}
		logger.Debug("pass finished", logging.Duration("elapsed", elapsed))
	}()

	d.sched.RunPass(ctx)
}
