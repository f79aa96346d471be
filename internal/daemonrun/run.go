package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"vodwatch/internal/config"
	"vodwatch/internal/daemon"
	"vodwatch/internal/ipc"
	"vodwatch/internal/logging"
	"vodwatch/internal/logs"
	"vodwatch/internal/notifications"
	"vodwatch/internal/preflight"
	"vodwatch/internal/procrun"
	"vodwatch/internal/services/streamlink"
	"vodwatch/internal/status"
)

// Options configures monitor process runtime behavior.
type Options struct {
	LogLevel string
	// Channels replaces the configured watch list when non-empty.
	Channels []string
	// IntervalMinutes replaces the configured check interval when positive.
	IntervalMinutes int
	Development     bool
}

// Components are the capture-side collaborators built from config.
type Components struct {
	Client  *streamlink.Client
	Checker *status.Checker
	Runner  *procrun.Runner
}

// NewComponents builds the streamlink client, status checker, and process
// runner described by cfg.
func NewComponents(cfg *config.Config, logger *slog.Logger) (Components, error) {
	runner := procrun.New()
	client, err := streamlink.New(cfg.Capture.StreamlinkBinary, cfg.StreamCheckTimeout(),
		streamlink.WithExecutor(runner),
		streamlink.WithURLTemplate(cfg.Capture.URLTemplate),
		streamlink.WithQuality(cfg.Capture.Quality),
		streamlink.WithExtraArgs(cfg.Capture.ExtraArgs),
	)
	if err != nil {
		return Components{}, fmt.Errorf("streamlink client: %w", err)
	}
	checker := status.NewChecker(client, status.Options{
		Retries:     cfg.Monitor.StreamCheckRetries,
		BackoffBase: cfg.BackoffBase(),
		Logger:      logger,
	})
	return Components{Client: client, Checker: checker, Runner: runner}, nil
}

// Run starts the monitor in the foreground. The first SIGINT/SIGTERM stops
// probing and waits for active recordings; a second one stops them.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	runCfg := *cfg
	if len(opts.Channels) > 0 {
		runCfg.Channels.Watch = append([]string(nil), opts.Channels...)
	}
	if opts.IntervalMinutes > 0 {
		runCfg.Monitor.CheckIntervalMinutes = opts.IntervalMinutes
	}
	if len(runCfg.Channels.Watch) == 0 {
		return errors.New("no channels to watch; add some with `vodwatch channels add`")
	}
	if err := runCfg.EnsureDirectories(); err != nil {
		return err
	}

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(runCfg.Paths.LogDir, fmt.Sprintf("vodwatch-%s.log", runID))
	logHub := logging.NewStreamHub(4096)

	level := opts.LogLevel
	if level == "" {
		level = runCfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:     level,
		Format:    runCfg.Logging.Format,
		Outputs:   []string{"stdout", logPath},
		AddSource: opts.Development,
		Hub:       logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(runCfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update vodwatch.log link: %v\n", err)
	}
	logDependencySnapshot(logger, &runCfg)

	components, err := NewComponents(&runCfg, logger)
	if err != nil {
		return err
	}
	d, err := daemon.New(&runCfg, daemon.Deps{
		Checker:  components.Checker,
		Starter:  components.Runner,
		Capture:  components.Client,
		Hub:      logHub,
		Logger:   logger,
		Notifier: notifications.NewService(&runCfg),
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	ctx, cancel := context.WithCancel(cmdCtx)
	defer cancel()
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Close()

	pidPath := filepath.Join(runCfg.Paths.StateDir, "vodwatch.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(ctx, runCfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	select {
	case <-signals:
	case <-cmdCtx.Done():
	}
	d.StopMonitor()
	err = drain(d, &runCfg, logger, signals)

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), runCfg.NotifyTimeout())
	defer cancelFlush()
	d.FlushNotifications(flushCtx)
	return err
}

// drain waits for active recordings after the monitor stopped. Another signal
// asks every capture to stop and bounds the remaining wait.
func drain(d *daemon.Daemon, cfg *config.Config, logger *slog.Logger, signals <-chan os.Signal) error {
	active := d.Manager().Count()
	if active == 0 {
		logger.Info("vodwatch monitor shutting down")
		return nil
	}
	logging.Event(logger, "monitor stopped; recordings continue", "monitor_draining",
		logging.Int("sessions", active),
		logging.String(logging.FieldErrorHint, "press Ctrl+C again to stop active recordings"),
	)

	waitCtx, stopWaiting := context.WithCancel(context.Background())
	defer stopWaiting()
	waitDone := make(chan error, 1)
	go func() { waitDone <- d.Wait(waitCtx) }()

	select {
	case <-waitDone:
		return nil
	case <-signals:
	}

	d.StopRecordings()
	select {
	case <-waitDone:
		return nil
	case <-time.After(cfg.StopGrace() + 5*time.Second):
	case <-signals:
	}
	logging.WarnWithContext(logger, "recordings still running at exit", "shutdown_incomplete",
		logging.Int("sessions", d.Manager().Count()),
		logging.String(logging.FieldImpact, "capture processes may outlive the monitor"),
		logging.String(logging.FieldErrorHint, "check for leftover streamlink processes"),
	)
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.Int("channels", len(cfg.Channels.Watch)),
		logging.Int("max_concurrent", cfg.Monitor.MaxConcurrent),
	}
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		attrs = append(attrs,
			logging.Bool(dep.Name+"_available", dep.Available),
			logging.String(dep.Name+"_binary", dep.Command),
		)
	}
	logging.Event(logger, "dependency snapshot", "dependency_snapshot", attrs...)
}
