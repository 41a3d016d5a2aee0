package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cymatics/internal/engine"
	"cymatics/internal/fileutil"
	"cymatics/internal/logging"
	"cymatics/internal/services"
	"cymatics/internal/stability"
	"cymatics/internal/transcription"
)

// ReasonInvalid is recorded for empty or unreadable inputs.
const ReasonInvalid = "Invalid file (zero bytes or unreadable)"

// Transcriber runs the engine over one file.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (*engine.Result, error)
	State() transcription.State
}

// Status values reported in an Outcome.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Outcome describes a job that reached a terminal directory.
type Outcome struct {
	Filename string
	Status   string
	Reason   string
	// Err is the failure behind Reason; nil for completed jobs.
	Err        error
	Elapsed    time.Duration
	FinishedAt time.Time
}

// Observer is told about every terminal outcome. Implementations must not
// block for long; their errors are theirs to log.
type Observer interface {
	JobFinished(ctx context.Context, outcome Outcome)
}

// Result is what ProcessOne did with a file.
type Result int

const (
	// Deferred means the file was left in incoming for a later pass.
	Deferred Result = iota
	Completed
	Failed
)

func (r Result) String() string {
	switch r {
	case Completed:
		return StatusCompleted
	case Failed:
		return StatusFailed
	default:
		return "deferred"
	}
}

// Options configures a Machine.
type Options struct {
	Debounce time.Duration
	// MaxMoveAttempts bounds consecutive failures to move a file into
	// processing before it is routed to failed. Zero retries forever.
	MaxMoveAttempts int
	Logger          *slog.Logger
	Observers       []Observer
	Now             func() time.Time
}

// Machine drives files through the state directories. RunPass and
// ProcessOne must not run concurrently with each other; QueueStatus is safe
// to call from any goroutine.
type Machine struct {
	layout   Layout
	engine   Transcriber
	opts     Options
	logger   *slog.Logger
	detector *stability.Detector
	recent   *Recent
	attempts map[string]int
	move     func(src, dst string) error

	mu      sync.RWMutex
	current string
}

// NewMachine constructs a Machine over the directories rooted at base.
func NewMachine(base string, transcriber Transcriber, opts Options) *Machine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Machine{
		layout:   NewLayout(base),
		engine:   transcriber,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "jobs"),
		detector: stability.NewDetector(opts.Debounce),
		recent:   NewRecent(RecentLimit),
		attempts: make(map[string]int),
		move:     fileutil.Move,
	}
}

// Layout returns the directory layout.
func (m *Machine) Layout() Layout {
	return m.layout
}

// EnsureLayout creates the state directories.
func (m *Machine) EnsureLayout() error {
	return m.layout.Ensure()
}

// RecoverOrphans moves every regular file left in processing back into
// incoming and returns how many were moved.
func (m *Machine) RecoverOrphans() (int, error) {
	entries, err := os.ReadDir(m.layout.Processing)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, services.Wrap(services.ErrTransient, "jobs", "recover orphans", "list processing", err)
	}
	var orphans []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			orphans = append(orphans, entry.Name())
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}
	m.logger.Warn("orphaned files found in processing; rolling back to incoming",
		logging.Int("count", len(orphans)),
		logging.String(logging.FieldEventType, "orphans_recovered"),
		logging.String(logging.FieldErrorHint, "a previous run stopped mid-job"),
		logging.String(logging.FieldImpact, "the files will be transcribed again"),
	)
	recovered := 0
	var errs []error
	for _, name := range orphans {
		src := filepath.Join(m.layout.Processing, name)
		dst := filepath.Join(m.layout.Incoming, name)
		if _, err := os.Lstat(dst); err == nil {
			dst = m.recoveredName(name)
			m.logger.Warn("incoming already holds a file with the orphan's name; restoring under a new name",
				logging.String(logging.FieldJobFile, name),
				logging.String("restored_as", filepath.Base(dst)),
				logging.String(logging.FieldEventType, "orphan_renamed"),
				logging.String(logging.FieldImpact, "both copies are transcribed"),
			)
		}
		if err := m.move(src, dst); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		recovered++
		m.logger.Info("recovered orphaned file", logging.String(logging.FieldJobFile, name))
	}
	if len(errs) > 0 {
		return recovered, services.Wrap(services.ErrTransient, "jobs", "recover orphans", "", errors.Join(errs...))
	}
	return recovered, nil
}

// recoveredName picks an unused incoming name of the form
// "<stem>.recovered[-N]<ext>" for an orphan that collides with a newer file.
func (m *Machine) recoveredName(name string) string {
	ext := filepath.Ext(name)
	base := stem(name)
	for i := 1; ; i++ {
		candidate := base + ".recovered" + ext
		if i > 1 {
			candidate = fmt.Sprintf("%s.recovered-%d%s", base, i, ext)
		}
		path := filepath.Join(m.layout.Incoming, candidate)
		if _, err := os.Lstat(path); err != nil {
			return path
		}
	}
}

// RunPass performs one discovery-and-process sweep over incoming. Failures
// on individual files are logged and never stop the pass.
func (m *Machine) RunPass(ctx context.Context) {
	logger := logging.WithContext(ctx, m.logger)
	eligible, rejects, err := m.scanIncoming()
	if err != nil {
		logging.WarnWithContext(logger, "incoming scan failed; skipping pass", "scan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that paths.data_dir is reachable"),
			logging.String(logging.FieldImpact, "no files processed this pass"),
		)
		return
	}

	present := make(map[string]struct{}, len(eligible)+len(rejects))
	for _, c := range eligible {
		present[c.Name] = struct{}{}
	}
	for _, c := range rejects {
		present[c.Name] = struct{}{}
	}
	m.detector.Prune(present)
	m.pruneAttempts(present)

	now := m.opts.Now()
	for _, c := range rejects {
		if ctx.Err() != nil {
			return
		}
		// Empty files get the same quiet period as any other write.
		if c.StatErr == nil && now.Sub(c.ModTime) < m.opts.Debounce {
			continue
		}
		m.detector.Forget(c.Name)
		logger.Warn("invalid file; moving to failed",
			logging.String(logging.FieldJobFile, c.Name),
			logging.Int64("size", c.Size),
			logging.String(logging.FieldEventType, "invalid_input"),
			logging.String(logging.FieldErrorHint, "re-upload the file once it is complete"),
			logging.String(logging.FieldImpact, "file will not be transcribed"),
		)
		m.routeToFailed(ctx, filepath.Join(m.layout.Incoming, c.Name), c.Name, invalidFile(c.Name, c.StatErr), 0)
	}

	for _, c := range eligible {
		if ctx.Err() != nil {
			return
		}
		if !m.detector.Check(c.Name, stability.Observation{Size: c.Size, ModTime: c.ModTime}, m.opts.Now()) {
			logger.Debug("file not stable yet", logging.String(logging.FieldJobFile, c.Name), logging.Int64("size", c.Size))
			continue
		}
		path := filepath.Join(m.layout.Incoming, c.Name)
		if !IsValid(path) {
			logger.Warn("file became invalid after settling; moving to failed",
				logging.String(logging.FieldJobFile, c.Name),
				logging.String(logging.FieldEventType, "invalid_input"),
				logging.String(logging.FieldErrorHint, "the file was truncated or removed while queued"),
				logging.String(logging.FieldImpact, "file will not be transcribed"),
			)
			m.routeToFailed(ctx, path, c.Name, invalidFile(c.Name, nil), 0)
			continue
		}
		m.ProcessOne(ctx, c.Name)
	}
}

// ProcessOne moves name from incoming to processing, transcribes it and
// files it into completed or failed.
func (m *Machine) ProcessOne(ctx context.Context, name string) Result {
	ctx = services.WithJobFile(ctx, name)
	logger := logging.WithContext(ctx, m.logger)

	m.setCurrent(name)
	defer m.setCurrent("")

	src := filepath.Join(m.layout.Incoming, name)
	processing := filepath.Join(m.layout.Processing, name)
	if err := m.move(src, processing); err != nil {
		return m.deferMove(ctx, logger, src, name, err)
	}
	delete(m.attempts, name)
	logger.Info("processing file", logging.String(logging.FieldEventType, "job_started"))

	started := time.Now()
	res, err := m.transcribe(ctx, processing)
	elapsed := time.Since(started)
	if err != nil && interrupted(ctx, err) {
		return m.rollBack(logger, processing, src, err)
	}
	if err != nil {
		logging.WarnWithContext(logger, "transcription failed; moving to failed", "job_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "see the .error.txt record in the failed directory"),
			logging.String(logging.FieldImpact, "no transcript produced"),
		)
		m.routeToFailed(ctx, processing, name, err, elapsed)
		return Failed
	}

	if err := writeResultArtifacts(m.layout.Completed, name, res); err != nil {
		logging.ErrorWithContext(logger, "write artifacts failed; moving to failed", "artifact_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the completed directory"),
		)
		m.routeToFailed(ctx, processing, name, err, elapsed)
		return Failed
	}
	if err := m.move(processing, filepath.Join(m.layout.Completed, name)); err != nil {
		logging.ErrorWithContext(logger, "move to completed failed; moving to failed", "complete_move_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the completed directory"),
		)
		m.routeToFailed(ctx, processing, name, fmt.Errorf("move to completed failed: %w", err), elapsed)
		return Failed
	}

	m.recent.Add(name)
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.Duration("elapsed", elapsed),
		logging.Int("segments", len(res.Segments)),
	)
	m.notify(ctx, Outcome{Filename: name, Status: StatusCompleted, Elapsed: elapsed, FinishedAt: m.opts.Now()})
	return Completed
}

// transcribe calls the engine and turns a panic into an error.
func (m *Machine) transcribe(ctx context.Context, path string) (res *engine.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &services.EngineError{Op: "engine panic", Err: fmt.Errorf("%v", r)}
		}
	}()
	if m.engine == nil {
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "transcribe", "no engine configured", nil)
	}
	return m.engine.Transcribe(ctx, path)
}

func (m *Machine) deferMove(ctx context.Context, logger *slog.Logger, src, name string, err error) Result {
	limit := m.opts.MaxMoveAttempts
	m.attempts[name]++
	attempt := m.attempts[name]
	if limit > 0 && attempt >= limit {
		delete(m.attempts, name)
		logging.WarnWithContext(logger, "move retries exhausted; moving to failed", "move_retries_exhausted",
			logging.Error(err),
			logging.Int("attempts", attempt),
			logging.String(logging.FieldErrorHint, "check permissions on the incoming and processing directories"),
			logging.String(logging.FieldImpact, "file will not be transcribed"),
		)
		m.routeToFailed(ctx, src, name, fmt.Errorf("move to processing failed after %d attempts: %w", attempt, err), 0)
		return Failed
	}
	logging.WarnWithContext(logger, "move to processing failed; leaving in incoming", "move_deferred",
		logging.Error(err),
		logging.Int("attempts", attempt),
		logging.String(logging.FieldErrorHint, "check permissions on the processing directory"),
		logging.String(logging.FieldImpact, "file retried on the next pass"),
	)
	return Deferred
}

// routeToFailed moves path (if it still exists) into failed and writes the
// diagnostic record for cause.
func (m *Machine) routeToFailed(ctx context.Context, path, name string, cause error, elapsed time.Duration) {
	logger := logging.WithContext(services.WithJobFile(ctx, name), m.logger)
	reason := failureReason(cause)
	if _, err := os.Lstat(path); err == nil {
		if err := m.move(path, filepath.Join(m.layout.Failed, name)); err != nil {
			logging.ErrorWithContext(logger, "move to failed did not complete", "failed_move_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the failed directory"),
			)
		}
	}
	if err := writeErrorArtifact(m.layout.Failed, name, reason); err != nil {
		logging.ErrorWithContext(logger, "error record not written", "error_record_failed", logging.Error(err))
	}
	logger.Info("moved to failed", logging.String("reason", reason))
	m.notify(ctx, Outcome{Filename: name, Status: StatusFailed, Reason: reason, Err: cause, Elapsed: elapsed, FinishedAt: m.opts.Now()})
}

// rollBack returns a file whose transcription was interrupted to incoming so
// a later pass picks it up again.
func (m *Machine) rollBack(logger *slog.Logger, processing, incoming string, cause error) Result {
	if err := m.move(processing, incoming); err != nil {
		logging.ErrorWithContext(logger, "interrupted job could not return to incoming", "rollback_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the file is recovered from processing on the next start"),
		)
		return Deferred
	}
	logger.Info("transcription interrupted; file returned to incoming",
		logging.Error(cause),
		logging.String(logging.FieldEventType, "job_interrupted"),
	)
	return Deferred
}

// interrupted reports whether err came from ctx ending rather than from the
// engine.
func interrupted(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func invalidFile(name string, statErr error) error {
	return services.Wrap(services.ErrInvalidInput, "jobs", "validate", name, statErr)
}

// failureReason is the text recorded in the error artifact and the outcome.
func failureReason(err error) string {
	if errors.Is(err, services.ErrInvalidInput) {
		return ReasonInvalid
	}
	return services.Reason(err)
}

func (m *Machine) notify(ctx context.Context, outcome Outcome) {
	for _, obs := range m.opts.Observers {
		if obs != nil {
			obs.JobFinished(ctx, outcome)
		}
	}
}

func (m *Machine) pruneAttempts(present map[string]struct{}) {
	for name := range m.attempts {
		if _, ok := present[name]; !ok {
			delete(m.attempts, name)
		}
	}
}

func (m *Machine) setCurrent(name string) {
	m.mu.Lock()
	m.current = name
	m.mu.Unlock()
}

// CurrentFile returns the file being processed, if any.
func (m *Machine) CurrentFile() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.current != ""
}

// RecentCompleted returns up to RecentLimit completed names, oldest first.
func (m *Machine) RecentCompleted() []string {
	return m.recent.Snapshot()
}

// Reset clears in-memory tracking: stability records, move attempts and the
// recent list. Files on disk are untouched.
func (m *Machine) Reset() {
	m.detector = stability.NewDetector(m.opts.Debounce)
	m.attempts = make(map[string]int)
	m.recent.Reset()
	m.setCurrent("")
}
