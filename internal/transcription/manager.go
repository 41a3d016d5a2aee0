package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"cymatics/internal/engine"
	"cymatics/internal/fileutil"
	"cymatics/internal/logging"
	"cymatics/internal/services"
)

// Options configures a Manager.
type Options struct {
	// ModelID names the model handed to the loader and recorded in results.
	ModelID string
	// IdleTimeout is how long a loaded engine may go unused before release.
	IdleTimeout time.Duration
	// Language is recorded in results when the engine does not report one.
	Language string
	Logger   *slog.Logger
	// OnTransition, when set, observes every state change. It runs on the
	// goroutine that caused the change and must not call back into the Manager.
	OnTransition func(from, to State)
}

// Manager serializes transcription requests against a lazily loaded engine.
type Manager struct {
	loader  engine.Loader
	opts    Options
	logger  *slog.Logger
	reclaim func()

	// slot is a binary semaphore; holding it grants exclusive engine use.
	slot  chan struct{}
	state atomic.Int32

	mu       sync.Mutex
	model    engine.Model
	lastUse  time.Time
	timer    *time.Timer
	timerGen uint64
	closed   bool
}

// NewManager constructs a Manager in the unloaded state.
func NewManager(loader engine.Loader, opts Options) *Manager {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Minute
	}
	return &Manager{
		loader:  loader,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "transcription"),
		reclaim: debug.FreeOSMemory,
		slot:    make(chan struct{}, 1),
	}
}

// ErrClosed is returned by Transcribe after Close.
var ErrClosed = errors.New("transcription manager closed")

// State reports the engine state without blocking.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// ModelID reports the configured model identifier.
func (m *Manager) ModelID() string {
	return m.opts.ModelID
}

// Transcribe runs the engine over the file at path, loading it first when
// needed. Only one call executes at a time; others wait for the slot or for
// ctx. If ctx ends while the engine is running, ctx.Err() is returned and the
// slot stays held until the engine call returns.
func (m *Manager) Transcribe(ctx context.Context, path string) (*engine.Result, error) {
	select {
	case m.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if m.isClosed() {
		<-m.slot
		return nil, ErrClosed
	}

	type outcome struct {
		result *engine.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() { <-m.slot }()
		res, err := m.run(ctx, path)
		done <- outcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run executes one request while the slot is held.
func (m *Manager) run(ctx context.Context, path string) (result *engine.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if m.State() == StateLoading {
				m.setState(StateUnloaded)
			}
			result, err = nil, &services.EngineError{Op: "engine panic", Err: fmt.Errorf("%v", r)}
		}
		m.markUsed()
	}()

	model, err := m.ensureLoaded(ctx)
	if err != nil {
		return nil, &services.EngineError{Op: "load model", Err: err}
	}

	started := time.Now()
	tr, err := model.Transcribe(ctx, path)
	if err != nil {
		return nil, &services.EngineError{Op: "transcribe", Err: err}
	}
	elapsed := time.Since(started)

	id, err := fileutil.HashPrefix(path, engine.IDLength)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "transcription", "hash file", path, err)
	}
	m.logger.Info("transcription finished",
		logging.String(logging.FieldJobFile, filepath.Base(path)),
		logging.Duration("elapsed", elapsed),
		logging.Int("segments", len(tr.Segments)),
	)
	return engine.NewResult(id, m.opts.ModelID, tr, elapsed, m.opts.Language), nil
}

func (m *Manager) ensureLoaded(ctx context.Context) (engine.Model, error) {
	m.mu.Lock()
	model := m.model
	m.mu.Unlock()
	if model != nil && m.State() == StateReady {
		return model, nil
	}

	m.setState(StateLoading)
	m.logger.Info("loading model", logging.String("model", m.opts.ModelID))
	started := time.Now()
	model, err := m.loader.Load(ctx, m.opts.ModelID)
	if err != nil {
		m.setState(StateUnloaded)
		logging.WarnWithContext(m.logger, "model load failed", "model_load_failed",
			logging.String("model", m.opts.ModelID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check whisper.model and whisper.models_dir"),
			logging.String(logging.FieldImpact, "the current job is moved to failed"),
		)
		return nil, err
	}
	if model == nil {
		m.setState(StateUnloaded)
		return nil, errors.New("loader returned no model")
	}

	m.mu.Lock()
	m.model = model
	m.mu.Unlock()
	m.setState(StateReady)
	m.logger.Info("model ready",
		logging.String("model", m.opts.ModelID),
		logging.Duration("load_time", time.Since(started)),
	)
	return model, nil
}

// markUsed records the use time and restarts the idle countdown.
func (m *Manager) markUsed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUse = time.Now()
	m.armLocked(m.opts.IdleTimeout)
}

func (m *Manager) armLocked(after time.Duration) {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerGen++
	if m.closed || m.model == nil {
		return
	}
	gen := m.timerGen
	m.timer = time.AfterFunc(after, func() { m.onIdle(gen) })
}

func (m *Manager) onIdle(gen uint64) {
	// A running request re-arms the timer when it finishes.
	select {
	case m.slot <- struct{}{}:
	default:
		return
	}
	defer func() { <-m.slot }()

	m.mu.Lock()
	if gen != m.timerGen {
		m.mu.Unlock()
		return
	}
	idle := time.Since(m.lastUse)
	if idle < m.opts.IdleTimeout {
		m.armLocked(m.opts.IdleTimeout - idle)
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()

	m.logger.Info("engine idle; unloading", logging.Duration("idle", idle))
	m.unloadHeld()
}

// Unload releases the engine. It waits for an in-flight request and is a
// no-op when nothing is loaded.
func (m *Manager) Unload() {
	m.slot <- struct{}{}
	defer func() { <-m.slot }()
	m.unloadHeld()
}

// unloadHeld releases the engine; the caller holds the slot.
func (m *Manager) unloadHeld() {
	m.mu.Lock()
	model := m.model
	m.model = nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerGen++
	m.mu.Unlock()

	if model == nil {
		return
	}
	if err := model.Close(); err != nil {
		logging.WarnWithContext(m.logger, "engine close reported error", "model_close_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "engine memory may not be fully released"),
		)
	}
	m.setState(StateUnloaded)
	if m.reclaim != nil {
		m.reclaim()
	}
	m.logger.Info("model unloaded", logging.String("model", m.opts.ModelID))
}

// Close stops the idle timer and unloads the engine. Later Transcribe calls
// return ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.Unload()
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) setState(to State) {
	from := State(m.state.Swap(int32(to)))
	if from == to {
		return
	}
	m.logger.Debug("engine state changed",
		logging.String("from", from.String()),
		logging.String(logging.FieldModelState, to.String()),
	)
	if m.opts.OnTransition != nil {
		m.opts.OnTransition(from, to)
	}
}
