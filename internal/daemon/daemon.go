package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"cymatics/internal/api"
	"cymatics/internal/config"
	"cymatics/internal/cycle"
	"cymatics/internal/deps"
	"cymatics/internal/engine"
	"cymatics/internal/history"
	"cymatics/internal/jobs"
	"cymatics/internal/logging"
	"cymatics/internal/notifications"
	"cymatics/internal/preflight"
	"cymatics/internal/staging"
	"cymatics/internal/transcription"
	"cymatics/internal/version"
)

// Options overrides collaborators, mainly for tests. Zero values build the
// defaults from the configuration.
type Options struct {
	Loader   engine.Loader
	Notifier notifications.Service
	LogPath  string
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *transcription.Manager
	machine *jobs.Machine
	driver  *cycle.Driver
	history *history.Store
	server  *api.Server
	logPath string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool             `json:"running"`
	PID         int              `json:"pid"`
	Queue       jobs.QueueStatus `json:"queue"`
	Cycle       cycle.Stats      `json:"cycle"`
	PassRunning bool             `json:"pass_running"`
	DataDir     string           `json:"data_dir"`
	LockPath    string           `json:"lock_path"`
	HistoryPath string           `json:"history_path"`
	LogPath     string           `json:"log_path,omitempty"`
	APIAddress  string           `json:"api_address,omitempty"`
}

// NewLoader selects the engine the configuration asks for.
func NewLoader(cfg *config.Config, logger *slog.Logger) engine.Loader {
	if cfg.Whisper.UseMock {
		return &engine.MockLoader{}
	}
	return &engine.SherpaLoader{
		ModelsDir:  cfg.Whisper.ModelsDir,
		Language:   cfg.Whisper.Language,
		NumThreads: cfg.Whisper.NumThreads,
		FFmpeg:     deps.ResolveFFmpegPath(cfg.Whisper.FFmpegBinary),
		Logger:     logger,
	}
}

// New constructs a daemon with initialized dependencies. A ledger that
// cannot be opened is logged and the daemon runs without one.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		logPath:  opts.LogPath,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		logging.WarnWithContext(d.logger, "history ledger unavailable; continuing without it", "history_open_failed",
			logging.Error(err),
			logging.String("path", cfg.HistoryPath()),
			logging.String(logging.FieldErrorHint, "delete the ledger file if its schema is outdated"),
			logging.String(logging.FieldImpact, "job outcomes are not recorded"),
		)
	} else {
		d.history = store
	}

	loader := opts.Loader
	if loader == nil {
		loader = NewLoader(cfg, logger)
	}
	d.manager = transcription.NewManager(loader, transcription.Options{
		ModelID:     cfg.Whisper.Model,
		IdleTimeout: cfg.UnloadTimeout(),
		Language:    cfg.Whisper.Language,
		Logger:      logger,
	})

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	observers := []jobs.Observer{notifications.NewObserver(notifier, cfg, logger)}
	if d.history != nil {
		observers = append(observers, history.NewRecorder(d.history, logger))
	}

	d.machine = jobs.NewMachine(cfg.Paths.DataDir, d.manager, jobs.Options{
		Debounce:        cfg.Debounce(),
		MaxMoveAttempts: cfg.Cycle.MaxMoveAttempts,
		Logger:          logger,
		Observers:       observers,
	})
	d.driver = cycle.NewDriver(d.machine, cycle.Options{
		Interval: cfg.PollInterval(),
		Logger:   logger,
	})
	d.server = api.NewServer(d, api.Options{
		Bind:         cfg.API.Bind,
		MaxUploadMiB: cfg.API.MaxUploadMiB,
		Version:      version.Version,
		Logger:       logger,
	})
	return d, nil
}

// Start acquires the lock, starts the cycle driver and then the HTTP server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.acquireLock(); err != nil {
		return err
	}

	d.runPreflight(ctx)
	d.sweepStaged()
	d.pruneHistory(ctx)

	if err := d.driver.Start(ctx); err != nil {
		d.releaseLock()
		return fmt.Errorf("start cycle driver: %w", err)
	}
	if err := d.server.Start(); err != nil {
		d.driver.Stop()
		d.releaseLock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("cymatics daemon started",
		logging.String("lock", d.lockPath),
		logging.String("data_dir", d.cfg.Paths.DataDir),
		logging.String("api", d.server.Addr()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// RunOnce recovers orphans and runs one settle cycle: two passes one poll
// interval apart, so a file that is already complete is observed and then
// processed. The HTTP server is not started.
func (d *Daemon) RunOnce(ctx context.Context) error {
	if err := d.acquireLock(); err != nil {
		return err
	}
	defer d.releaseLock()
	d.runPreflight(ctx)
	d.sweepStaged()

	if err := d.machine.EnsureLayout(); err != nil {
		return fmt.Errorf("create job directories: %w", err)
	}
	if n, err := d.machine.RecoverOrphans(); err != nil {
		d.logger.Warn("orphan recovery incomplete", logging.Error(err), logging.Int("recovered", n))
	}

	// A signal waits for the running pass instead of failing its file.
	passCtx := context.WithoutCancel(ctx)
	d.driver.RunOnce(passCtx)
	settle := max(d.cfg.PollInterval(), d.cfg.Debounce())
	select {
	case <-ctx.Done():
		d.manager.Unload()
		return ctx.Err()
	case <-time.After(settle):
	}
	d.driver.RunOnce(passCtx)
	d.manager.Unload()
	return nil
}

// Stop stops the HTTP server and the driver, waits up to the shutdown
// timeout for an in-flight pass, then releases the engine and the lock. A
// pass that outlives the timeout leaves its file in processing, where the
// next start recovers it.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("api shutdown incomplete", logging.Error(err))
	}
	cancel()

	d.driver.Stop()
	waitCtx, cancelWait := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout())
	err := d.driver.Wait(waitCtx)
	cancelWait()
	if err != nil {
		logging.WarnWithContext(d.logger, "in-flight pass did not finish before shutdown timeout", "shutdown_timeout",
			logging.Duration("timeout", d.cfg.ShutdownTimeout()),
			logging.String(logging.FieldErrorHint, "raise cycle.shutdown_timeout for long media"),
			logging.String(logging.FieldImpact, "the current file is recovered on next start"),
		)
	} else {
		_ = d.manager.Close()
	}

	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("cymatics daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the ledger.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		Queue:       d.machine.QueueStatus(),
		Cycle:       d.driver.Stats(),
		PassRunning: d.driver.PassRunning(),
		DataDir:     d.cfg.Paths.DataDir,
		LockPath:    d.lockPath,
		HistoryPath: d.cfg.HistoryPath(),
		LogPath:     d.logPath,
		APIAddress:  d.server.Addr(),
	}
}

// QueueStatus implements api.Backend.
func (d *Daemon) QueueStatus() jobs.QueueStatus {
	return d.machine.QueueStatus()
}

// IncomingDir implements api.Backend.
func (d *Daemon) IncomingDir() string {
	return d.machine.Layout().Incoming
}

// UnloadModel implements api.Backend. It blocks while a transcription runs.
func (d *Daemon) UnloadModel() {
	d.manager.Unload()
}

// RecentJobs implements api.Backend.
func (d *Daemon) RecentJobs(ctx context.Context, limit int) ([]history.Entry, history.Counts, error) {
	if d.history == nil {
		return nil, history.Counts{}, nil
	}
	entries, err := d.history.Recent(ctx, limit)
	if err != nil {
		return nil, history.Counts{}, err
	}
	counts, err := d.history.Counts(ctx)
	if err != nil {
		return nil, history.Counts{}, err
	}
	return entries, counts, nil
}

func (d *Daemon) acquireLock() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another cymatics daemon instance is already running (lock %s)", d.lockPath)
	}
	return nil
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

func (d *Daemon) runPreflight(ctx context.Context) {
	logger := logging.WithContext(ctx, d.logger)
	if err := d.machine.EnsureLayout(); err != nil {
		logger.Warn("job directories could not be created", logging.Error(err))
	}
	for _, r := range preflight.RunAll(d.cfg) {
		if r.Passed {
			logger.Debug("preflight check passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "jobs that depend on it will fail"),
		)
	}
	for _, dep := range preflight.CheckSystemDeps(d.cfg) {
		if !dep.Missing() {
			continue
		}
		logging.WarnWithContext(logger, "required binary missing", "dependency_missing",
			logging.String("name", dep.Name),
			logging.String("detail", dep.Detail),
			logging.String(logging.FieldErrorHint, dep.Description),
			logging.String(logging.FieldImpact, "every transcription will fail"),
		)
	}
}

func (d *Daemon) sweepStaged() {
	result := staging.CleanStale(d.machine.Layout().Dirs(), staging.DefaultMaxAge, d.logger)
	if len(result.Removed) > 0 {
		d.logger.Info("swept abandoned temporary files", logging.Int("removed", len(result.Removed)))
	}
}

func (d *Daemon) pruneHistory(ctx context.Context) {
	days := d.cfg.Logging.RetentionDays
	if d.history == nil || days <= 0 {
		return
	}
	removed, err := d.history.PruneBefore(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		d.logger.Warn("history prune failed", logging.Error(err))
		return
	}
	if removed > 0 {
		d.logger.Info("pruned old history entries", logging.Int64("removed", removed))
	}
}
