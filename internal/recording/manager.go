package recording

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"vodwatch/internal/logging"
	"vodwatch/internal/procrun"
	"vodwatch/internal/services"
)

// CaptureBuilder turns a channel and output path into a capture command.
type CaptureBuilder interface {
	CaptureCommand(channel, outputPath string) procrun.Command
}

// Options configures a Manager.
type Options struct {
	MaxConcurrent int
	OutputDir     string
	Extension     string
	StopGrace     time.Duration
	Logger        *slog.Logger
	Clock         func() time.Time
	NewID         func() string
}

// Manager admits, stops, and lists recording sessions.
type Manager struct {
	reg       *registry
	starter   procrun.Starter
	capture   CaptureBuilder
	outputDir string
	ext       string
	grace     time.Duration
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	hooksMu sync.Mutex
	hooks   []func(Outcome)

	// draining holds sessions that left the registry but are still running hooks.
	drainMu  sync.Mutex
	draining map[*Session]struct{}
}

// NewManager constructs a Manager.
func NewManager(starter procrun.Starter, capture CaptureBuilder, opts Options) *Manager {
	m := &Manager{
		reg:       newRegistry(opts.MaxConcurrent),
		starter:   starter,
		capture:   capture,
		outputDir: opts.OutputDir,
		ext:       opts.Extension,
		grace:     opts.StopGrace,
		logger:    logging.NewComponentLogger(opts.Logger, "recording"),
		now:       opts.Clock,
		newID:     opts.NewID,
		draining:  map[*Session]struct{}{},
	}
	if m.reg.capacity <= 0 {
		m.reg.capacity = 5
	}
	if m.ext == "" {
		m.ext = "ts"
	}
	if m.grace <= 0 {
		m.grace = 5 * time.Second
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = func() string { return uuid.NewString() }
	}
	return m
}

// OnTerminal registers fn to receive every session outcome. Hooks run on the
// session's goroutine after it has left the registry.
func (m *Manager) OnTerminal(fn func(Outcome)) {
	if fn == nil {
		return
	}
	m.hooksMu.Lock()
	m.hooks = append(m.hooks, fn)
	m.hooksMu.Unlock()
}

// Capacity returns the session cap.
func (m *Manager) Capacity() int { return m.reg.capacity }

// Admit starts a recording for channel. It fails with ErrAlreadyActive or
// ErrAtCapacity without side effects, and with a capture error when the
// process cannot be spawned.
func (m *Manager) Admit(ctx context.Context, channel string) (SessionInfo, error) {
	startedAt := m.now()
	id := m.newID()
	logger := m.logger.With(
		logging.String(logging.FieldChannel, channel),
		logging.String(logging.FieldSessionID, id),
	)
	logger = logging.WithContext(ctx, logger)

	s := newSession(id, channel, "", startedAt, m.grace, logger, m.now)
	if err := m.reg.reserve(s); err != nil {
		logger.Info("admission refused", logging.String("reason", err.Error()), logging.Int("active", m.reg.len()))
		return SessionInfo{}, err
	}

	outputPath, err := m.prepareOutput(channel, startedAt)
	if err != nil {
		m.reg.release(s)
		return SessionInfo{}, services.Wrap(services.ErrConfiguration, "recording", "prepare output", channel, err)
	}
	s.mu.Lock()
	s.outputPath = outputPath
	s.onTerminal = m.terminal
	s.mu.Unlock()

	if err := s.start(ctx, m.starter, m.capture.CaptureCommand(channel, outputPath)); err != nil {
		return SessionInfo{}, err
	}
	return s.Info(m.now()), nil
}

func (m *Manager) prepareOutput(channel string, startedAt time.Time) (string, error) {
	if err := os.MkdirAll(m.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return uniqueOutputPath(m.outputDir, channel, m.ext, startedAt)
}

func (m *Manager) terminal(s *Session, outcome Outcome) {
	m.drainMu.Lock()
	m.draining[s] = struct{}{}
	m.drainMu.Unlock()
	defer func() {
		m.drainMu.Lock()
		delete(m.draining, s)
		m.drainMu.Unlock()
	}()

	m.reg.release(s)
	m.hooksMu.Lock()
	hooks := slices.Clone(m.hooks)
	m.hooksMu.Unlock()
	for _, hook := range hooks {
		hook(outcome)
	}
}

// Stop requests a graceful stop of channel's session.
func (m *Manager) Stop(channel string) error {
	s, ok := m.reg.get(channel)
	if !ok {
		return ErrNotFound
	}
	s.RequestStop()
	return nil
}

// StopAll requests a stop of every active session.
func (m *Manager) StopAll() int {
	sessions := m.reg.snapshot()
	for _, s := range sessions {
		s.RequestStop()
	}
	return len(sessions)
}

// List returns a snapshot of active sessions ordered by start time.
func (m *Manager) List() []SessionInfo {
	now := m.now()
	sessions := m.reg.snapshot()
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info(now))
	}
	return out
}

// Active reports whether channel currently has a session.
func (m *Manager) Active(channel string) bool {
	_, ok := m.reg.get(channel)
	return ok
}

// Count returns the number of active sessions.
func (m *Manager) Count() int { return m.reg.len() }

// Session returns channel's active session.
func (m *Manager) Session(channel string) (*Session, bool) {
	return m.reg.get(channel)
}

// Wait blocks until no sessions are active and their terminal hooks have
// returned, or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	for {
		sessions := m.reg.snapshot()
		m.drainMu.Lock()
		for s := range m.draining {
			sessions = append(sessions, s)
		}
		m.drainMu.Unlock()
		if len(sessions) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sessions[0].Done():
		}
	}
}
