package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"vodwatch/internal/config"
	"vodwatch/internal/logging"
	"vodwatch/internal/monitor"
	"vodwatch/internal/notifications"
	"vodwatch/internal/procrun"
	"vodwatch/internal/recording"
)

const defaultHistoryLimit = 50

// ErrAlreadyRunning is returned by Start when another monitor holds the lock.
var ErrAlreadyRunning = errors.New("another vodwatch monitor is already running")

// Deps are the collaborators a Daemon drives.
type Deps struct {
	Checker monitor.Checker
	Starter procrun.Starter
	Capture recording.CaptureBuilder
	Hub     *logging.StreamHub
	Logger  *slog.Logger
	Clock   func() time.Time
	// Notifier receives recording milestones; nil disables notifications.
	Notifier notifications.Service
	// After overrides the loop's interval timer.
	After func(d time.Duration) <-chan time.Time
}

// Daemon runs the monitor loop and session manager under a single-instance
// lock and exposes them to IPC callers.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	hub        *logging.StreamHub
	manager    *recording.Manager
	dispatcher *recording.Dispatcher
	loop       *monitor.Loop
	notifier   notifications.Service
	now        func() time.Time
	runID      string

	notifyMu     sync.Mutex
	notifyWG     sync.WaitGroup
	notifyClosed bool

	lockPath string
	lock     *flock.Flock

	mu          sync.Mutex
	running     atomic.Bool
	monitoring  atomic.Bool
	startedAt   time.Time
	stopLoop    context.CancelFunc
	stopServing context.CancelFunc
	loopDone    chan struct{}
	serveDone   chan struct{}

	historyMu sync.Mutex
	history   []recording.Outcome
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool                    `json:"running"`
	Monitoring    bool                    `json:"monitoring"`
	PID           int                     `json:"pid"`
	RunID         string                  `json:"run_id"`
	StartedAt     time.Time               `json:"started_at"`
	Cycles        int                     `json:"cycles"`
	MaxConcurrent int                     `json:"max_concurrent"`
	Channels      []monitor.ChannelState  `json:"channels"`
	Sessions      []recording.SessionInfo `json:"sessions"`
	Recent        []OutcomeSummary        `json:"recent"`
	LockPath      string                  `json:"lock_path"`
	LedgerPath    string                  `json:"ledger_path"`
}

// OutcomeSummary is the IPC-safe form of a finished session.
type OutcomeSummary struct {
	SessionID  string          `json:"session_id"`
	Channel    string          `json:"channel"`
	OutputPath string          `json:"output_path"`
	State      recording.State `json:"state"`
	ExitCode   int             `json:"exit_code"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	EndedAt    time.Time       `json:"ended_at"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Deps) (*Daemon, error) {
	if cfg == nil || deps.Checker == nil || deps.Starter == nil || deps.Capture == nil {
		return nil, errors.New("daemon requires config, checker, starter, and capture builder")
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}

	manager := recording.NewManager(deps.Starter, deps.Capture, recording.Options{
		MaxConcurrent: cfg.Monitor.MaxConcurrent,
		OutputDir:     cfg.Paths.OutputDir,
		Extension:     cfg.Capture.Extension,
		StopGrace:     cfg.StopGrace(),
		Logger:        logger,
		Clock:         now,
	})
	dispatcher := recording.NewDispatcher(manager)

	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		hub:        deps.Hub,
		manager:    manager,
		dispatcher: dispatcher,
		notifier:   notifier,
		now:        now,
		runID:      uuid.NewString(),
		lockPath:   cfg.LockPath(),
		lock:       flock.New(cfg.LockPath()),
	}
	d.loop = monitor.New(deps.Checker, dispatchedSessions{d: dispatcher, m: manager, started: d.announce}, monitor.Options{
		Channels:    cfg.Channels.Watch,
		Interval:    cfg.CheckInterval(),
		Cooldown:    cfg.PostStreamCooldown(),
		Parallelism: cfg.Monitor.ProbeParallelism,
		Logger:      logger,
		Clock:       now,
		After:       deps.After,
	})
	manager.OnTerminal(d.loop.SessionEnded)
	manager.OnTerminal(d.remember)
	manager.OnTerminal(d.notifyOutcome)
	return d, nil
}

// dispatchedSessions routes loop admissions through the dispatcher so they
// are serialized with IPC requests.
type dispatchedSessions struct {
	d       *recording.Dispatcher
	m       *recording.Manager
	started func(recording.SessionInfo)
}

func (s dispatchedSessions) Admit(ctx context.Context, channel string) (recording.SessionInfo, error) {
	info, err := s.d.Admit(ctx, channel)
	if err == nil && s.started != nil {
		s.started(info)
	}
	return info, err
}

func (s dispatchedSessions) Active(channel string) bool { return s.m.Active(channel) }

// Start acquires the monitor lock and launches the dispatcher and loop. A
// Daemon is started at most once.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if !d.startedAt.IsZero() {
		return errors.New("daemon cannot be restarted")
	}
	if err := os.MkdirAll(d.cfg.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	serveCtx, stopServing := context.WithCancel(context.WithoutCancel(ctx))
	loopCtx, stopLoop := context.WithCancel(ctx)
	d.stopServing, d.stopLoop = stopServing, stopLoop
	d.serveDone = make(chan struct{})
	d.loopDone = make(chan struct{})
	d.startedAt = d.now()
	d.running.Store(true)
	d.monitoring.Store(true)

	go func() {
		defer close(d.serveDone)
		d.dispatcher.Run(serveCtx)
	}()
	go func() {
		defer close(d.loopDone)
		defer d.monitoring.Store(false)
		if err := d.loop.Run(loopCtx); err != nil {
			d.logger.Warn("monitor loop ended", logging.Error(err))
		}
	}()

	logging.Event(d.logger, "vodwatch monitor started", "daemon_started",
		logging.String("lock", d.lockPath),
		logging.String("run_id", d.runID),
		logging.Int("channels", len(d.loop.Channels())),
	)
	return nil
}

// StopMonitor stops scheduling new probes and waits for outstanding ones.
// Active recordings and IPC requests keep working.
func (d *Daemon) StopMonitor() {
	d.mu.Lock()
	cancel, done := d.stopLoop, d.loopDone
	d.stopLoop = nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// StopRecordings requests a graceful stop of every active session.
func (d *Daemon) StopRecordings() int {
	n := d.manager.StopAll()
	if n > 0 {
		d.logger.Info("stopping all recordings", logging.Int("sessions", n))
	}
	return n
}

// Wait blocks until no recording is active or ctx ends.
func (d *Daemon) Wait(ctx context.Context) error {
	return d.manager.Wait(ctx)
}

// Stop halts the loop and dispatcher and releases the monitor lock. Sessions
// still running are left to finish on their own.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.StopMonitor()

	d.mu.Lock()
	cancel, done := d.stopServing, d.serveDone
	d.stopServing = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release monitor lock", logging.Error(err))
	}
	d.running.Store(false)
	logging.Event(d.logger, "vodwatch monitor stopped", "daemon_stopped",
		logging.Int("active_sessions", d.manager.Count()),
	)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Admit starts a recording for channel on request.
func (d *Daemon) Admit(ctx context.Context, channel string) (recording.SessionInfo, error) {
	info, err := d.dispatcher.Admit(ctx, channel)
	if err == nil {
		d.announce(info)
	}
	return info, err
}

// StopChannel stops channel's recording.
func (d *Daemon) StopChannel(ctx context.Context, channel string) error {
	return d.dispatcher.Stop(ctx, channel)
}

// Sessions lists active recordings.
func (d *Daemon) Sessions(ctx context.Context) ([]recording.SessionInfo, error) {
	if !d.running.Load() {
		return d.manager.List(), nil
	}
	return d.dispatcher.List(ctx)
}

// Events returns log events published after since.
func (d *Daemon) Events(ctx context.Context, since uint64, limit int, wait bool) ([]logging.LogEvent, uint64, error) {
	if d.hub == nil {
		return nil, since, errors.New("event stream unavailable")
	}
	return d.hub.Fetch(ctx, since, limit, wait)
}

// History returns the outcomes of sessions finished during this run, newest first.
func (d *Daemon) History() []OutcomeSummary {
	d.historyMu.Lock()
	defer d.historyMu.Unlock()
	out := make([]OutcomeSummary, 0, len(d.history))
	for i := len(d.history) - 1; i >= 0; i-- {
		out = append(out, summarize(d.history[i]))
	}
	return out
}

func (d *Daemon) remember(outcome recording.Outcome) {
	d.historyMu.Lock()
	d.history = append(d.history, outcome)
	if len(d.history) > defaultHistoryLimit {
		d.history = d.history[len(d.history)-defaultHistoryLimit:]
	}
	d.historyMu.Unlock()
}

func summarize(o recording.Outcome) OutcomeSummary {
	s := OutcomeSummary{
		SessionID:  o.SessionID,
		Channel:    o.Channel,
		OutputPath: o.OutputPath,
		State:      o.State,
		ExitCode:   o.ExitCode,
		StartedAt:  o.StartedAt,
		EndedAt:    o.EndedAt,
	}
	if o.Err != nil {
		s.Error = o.Err.Error()
	}
	return s
}

// Manager exposes the session manager.
func (d *Daemon) Manager() *recording.Manager { return d.manager }

// Loop exposes the monitor loop.
func (d *Daemon) Loop() *monitor.Loop { return d.loop }

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	sessions, err := d.Sessions(ctx)
	if err != nil {
		sessions = d.manager.List()
	}
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()
	return Status{
		Running:       d.running.Load(),
		Monitoring:    d.monitoring.Load(),
		PID:           os.Getpid(),
		RunID:         d.runID,
		StartedAt:     startedAt,
		Cycles:        d.loop.Cycles(),
		MaxConcurrent: d.manager.Capacity(),
		Channels:      d.loop.Snapshot(),
		Sessions:      sessions,
		Recent:        d.History(),
		LockPath:      d.lockPath,
		LedgerPath:    d.cfg.LedgerPath(),
	}
}
