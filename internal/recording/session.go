package recording

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vodwatch/internal/logging"
	"vodwatch/internal/procrun"
	"vodwatch/internal/services"
)

// State is a session lifecycle state.
type State string

const (
	StateStarting  State = "starting"
	StateRecording State = "recording"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateStopped   State = "stopped"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateStopped:
		return true
	default:
		return false
	}
}

// Outcome is reported once per session when it reaches a terminal state.
type Outcome struct {
	SessionID  string
	Channel    string
	OutputPath string
	StartedAt  time.Time
	EndedAt    time.Time
	Duration   time.Duration
	State      State
	ExitCode   int
	Err        error
}

// SessionInfo is a point-in-time view of an active session.
type SessionInfo struct {
	ID         string        `json:"id"`
	Channel    string        `json:"channel"`
	OutputPath string        `json:"output_path"`
	StartedAt  time.Time     `json:"started_at"`
	Elapsed    time.Duration `json:"elapsed"`
	State      State         `json:"state"`
	PID        int           `json:"pid,omitempty"`
}

// Session is one capture of one channel.
type Session struct {
	id         string
	channel    string
	outputPath string
	startedAt  time.Time
	grace      time.Duration
	logger     *slog.Logger
	now        func() time.Time
	onTerminal func(*Session, Outcome)

	mu            sync.Mutex
	state         State
	handle        procrun.Handle
	stopRequested bool
	shuttingDown  bool
	done          chan struct{}
	outcome       Outcome
}

func newSession(id, channel, outputPath string, startedAt time.Time, grace time.Duration, logger *slog.Logger, now func() time.Time) *Session {
	return &Session{
		id:         id,
		channel:    channel,
		outputPath: outputPath,
		startedAt:  startedAt,
		grace:      grace,
		logger:     logger,
		now:        now,
		state:      StateStarting,
		done:       make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Channel returns the recorded channel.
func (s *Session) Channel() string { return s.channel }

// OutputPath returns the capture file path.
func (s *Session) OutputPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputPath
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed after the session reaches a terminal state and has been
// removed from its registry.
func (s *Session) Done() <-chan struct{} { return s.done }

// Outcome returns the terminal outcome; valid once Done is closed.
func (s *Session) Outcome() Outcome {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Info snapshots the session at now.
func (s *Session) Info(now time.Time) SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := SessionInfo{
		ID:         s.id,
		Channel:    s.channel,
		OutputPath: s.outputPath,
		StartedAt:  s.startedAt,
		Elapsed:    now.Sub(s.startedAt),
		State:      s.state,
	}
	if s.handle != nil {
		info.PID = s.handle.PID()
	}
	return info
}

// start spawns the capture process. On spawn failure the session is
// finished as Failed before start returns.
func (s *Session) start(ctx context.Context, starter procrun.Starter, cmd procrun.Command) error {
	handle, err := starter.Start(ctx, cmd)
	if err != nil {
		err = services.Wrap(services.ErrExternalTool, "recording", "start capture", s.channel, err)
		s.finish(StateFailed, -1, err)
		return err
	}

	s.mu.Lock()
	s.handle = handle
	s.state = StateRecording
	pendingStop := s.stopRequested && !s.shuttingDown
	if pendingStop {
		s.shuttingDown = true
	}
	s.mu.Unlock()

	logging.Event(s.logger, "recording started", "recording_started",
		logging.String("output_path", s.outputPath),
		logging.Int("pid", handle.PID()),
	)
	if pendingStop {
		go s.shutdown(handle)
	}
	go s.wait(handle)
	return nil
}

// RequestStop asks the capture process to end. It is idempotent and safe for
// concurrent use; the session ends as Stopped once the process exits.
func (s *Session) RequestStop() {
	s.mu.Lock()
	if s.state.Terminal() || s.stopRequested {
		s.mu.Unlock()
		return
	}
	s.stopRequested = true
	handle := s.handle
	launch := handle != nil && !s.shuttingDown
	if launch {
		s.shuttingDown = true
	}
	s.mu.Unlock()

	logging.Event(s.logger, "stop requested", "recording_stop_requested")
	if launch {
		go s.shutdown(handle)
	}
}

func (s *Session) shutdown(h procrun.Handle) {
	if procrun.Shutdown(h, s.grace) {
		logging.WarnWithContext(s.logger, "capture ignored interrupt; killed", "recording_killed",
			logging.Duration("grace", s.grace),
			logging.String(logging.FieldErrorHint, "streamlink did not exit within the grace period"),
			logging.String(logging.FieldImpact, "the tail of the recording may be truncated"),
		)
	}
}

func (s *Session) wait(h procrun.Handle) {
	exit := h.Wait()

	s.mu.Lock()
	stopped := s.stopRequested
	s.mu.Unlock()

	var (
		state State
		err   error
	)
	switch {
	case stopped:
		state = StateStopped
	case exit.Code == 0 && !exit.Signaled && exit.Err == nil:
		state = StateCompleted
	default:
		state = StateFailed
		detail := fmt.Sprintf("capture exited with code %d", exit.Code)
		if tail := procrun.StderrTail(h); tail != "" {
			detail += ": " + tail
		}
		err = services.Wrap(services.ErrExternalTool, "recording", s.channel, detail, exit.Err)
	}
	s.finish(state, exit.Code, err)
}

func (s *Session) finish(state State, exitCode int, err error) {
	ended := s.now()
	s.mu.Lock()
	s.state = state
	s.outcome = Outcome{
		SessionID:  s.id,
		Channel:    s.channel,
		OutputPath: s.outputPath,
		StartedAt:  s.startedAt,
		EndedAt:    ended,
		Duration:   ended.Sub(s.startedAt),
		State:      state,
		ExitCode:   exitCode,
		Err:        err,
	}
	outcome := s.outcome
	s.mu.Unlock()

	attrs := []logging.Attr{
		logging.String("state", string(state)),
		logging.String("output_path", s.outputPath),
		logging.Duration("duration", outcome.Duration.Round(time.Second)),
		logging.Int("exit_code", exitCode),
	}
	if state == StateFailed {
		attrs = append(attrs,
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
			logging.String(logging.FieldImpact, "recording ended early; the channel is eligible again next cycle"),
		)
		logging.WarnWithContext(s.logger, "recording failed", "recording_finished", attrs...)
	} else {
		logging.Event(s.logger, "recording finished", "recording_finished", attrs...)
	}

	if s.onTerminal != nil {
		s.onTerminal(s, outcome)
	}
	close(s.done)
}
