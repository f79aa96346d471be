package monitor

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"vodwatch/internal/logging"
	"vodwatch/internal/recording"
	"vodwatch/internal/status"
)

// Sessions is the part of the session manager the loop drives.
type Sessions interface {
	Admit(ctx context.Context, channel string) (recording.SessionInfo, error)
	Active(channel string) bool
}

// Options configures a Loop.
type Options struct {
	Channels    []string
	Interval    time.Duration
	Cooldown    time.Duration
	Parallelism int
	Logger      *slog.Logger
	Clock       func() time.Time
	// After returns a channel that fires once d has elapsed.
	After func(d time.Duration) <-chan time.Time
}

// ChannelState is the loop's view of one watched channel.
type ChannelState struct {
	Channel       string    `json:"channel"`
	Live          bool      `json:"live"`
	Recording     bool      `json:"recording"`
	LastChecked   time.Time `json:"last_checked,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	CooldownUntil time.Time `json:"cooldown_until,omitempty"`
}

// CycleReport summarizes one pass.
type CycleReport struct {
	Probed   int
	Skipped  int
	Live     []string
	Admitted []string
	Refused  map[string]error
	Failed   int
}

type channelState struct {
	live          bool
	lastChecked   time.Time
	lastErr       string
	cooldownUntil time.Time
}

// Loop is the continuous monitor.
type Loop struct {
	checker     Checker
	sessions    Sessions
	interval    time.Duration
	cooldown    time.Duration
	parallelism int
	logger      *slog.Logger
	now         func() time.Time
	after       func(time.Duration) <-chan time.Time

	mu       sync.Mutex
	channels []string
	state    map[string]*channelState
	cycles   int
}

// New constructs a Loop.
func New(checker Checker, sessions Sessions, opts Options) *Loop {
	l := &Loop{
		checker:     checker,
		sessions:    sessions,
		interval:    opts.Interval,
		cooldown:    opts.Cooldown,
		parallelism: opts.Parallelism,
		logger:      logging.NewComponentLogger(opts.Logger, "monitor"),
		now:         opts.Clock,
		after:       opts.After,
		channels:    slices.Clone(opts.Channels),
		state:       make(map[string]*channelState),
	}
	if l.interval <= 0 {
		l.interval = 2 * time.Minute
	}
	if l.cooldown < 0 {
		l.cooldown = 0
	}
	if l.parallelism <= 0 {
		l.parallelism = DefaultParallelism
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.after == nil {
		l.after = time.After
	}
	return l
}

// SetChannels replaces the watch list from the next cycle on.
func (l *Loop) SetChannels(channels []string) {
	l.mu.Lock()
	l.channels = slices.Clone(channels)
	l.mu.Unlock()
}

// Channels returns the current watch list.
func (l *Loop) Channels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.channels)
}

// Cycles returns how many cycles have completed.
func (l *Loop) Cycles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cycles
}

// SessionEnded re-queues the channel of a finished session. Register it with
// the session manager's OnTerminal hook.
func (l *Loop) SessionEnded(outcome recording.Outcome) {
	l.mu.Lock()
	st := l.stateLocked(outcome.Channel)
	st.live = false
	st.cooldownUntil = l.now().Add(l.cooldown)
	until := st.cooldownUntil
	l.mu.Unlock()

	logging.Event(l.logger, "channel re-queued", "channel_requeued",
		logging.String(logging.FieldChannel, outcome.Channel),
		logging.String("state", string(outcome.State)),
		logging.Time("eligible_at", until),
	)
}

// Snapshot returns the state of every watched channel in watch-list order.
func (l *Loop) Snapshot() []ChannelState {
	l.mu.Lock()
	channels := slices.Clone(l.channels)
	out := make([]ChannelState, 0, len(channels))
	for _, ch := range channels {
		cs := ChannelState{Channel: ch}
		if st, ok := l.state[ch]; ok {
			cs.Live = st.live
			cs.LastChecked = st.lastChecked
			cs.LastError = st.lastErr
			cs.CooldownUntil = st.cooldownUntil
		}
		out = append(out, cs)
	}
	l.mu.Unlock()

	for i := range out {
		out[i].Recording = l.sessions.Active(out[i].Channel)
	}
	return out
}

// Run executes cycles until ctx is cancelled. The first cycle starts
// immediately.
func (l *Loop) Run(ctx context.Context) error {
	logging.Event(l.logger, "monitor started", "monitor_started",
		logging.Int("channels", len(l.Channels())),
		logging.Duration("interval", l.interval),
		logging.Int("parallelism", l.parallelism),
	)
	for {
		l.Cycle(ctx)
		select {
		case <-ctx.Done():
			logging.Event(l.logger, "monitor stopped", "monitor_stopped", logging.Int("cycles", l.Cycles()))
			return nil
		case <-l.after(l.interval):
		}
	}
}

// Cycle runs one probe-and-react pass.
func (l *Loop) Cycle(ctx context.Context) CycleReport {
	report := CycleReport{Refused: map[string]error{}}
	if ctx.Err() != nil {
		return report
	}
	targets := l.selectChannels(&report)

	// A cycle that has started runs to completion: cancellation only
	// prevents the next one.
	ctx = context.WithoutCancel(ctx)
	results := CheckOnce(ctx, l.checker, targets, l.parallelism)
	report.Probed = len(results)

	for _, res := range results {
		edge := l.observe(res)
		if !res.OK() {
			report.Failed++
			continue
		}
		if !res.Live {
			continue
		}
		report.Live = append(report.Live, res.Channel)
		if !edge {
			continue
		}
		if _, err := l.sessions.Admit(ctx, res.Channel); err != nil {
			report.Refused[res.Channel] = err
			l.admissionFailed(res.Channel, err)
			continue
		}
		report.Admitted = append(report.Admitted, res.Channel)
	}

	l.mu.Lock()
	l.cycles++
	cycle := l.cycles
	l.mu.Unlock()
	logging.Event(l.logger, "monitor cycle complete", "monitor_cycle",
		logging.Int("cycle", cycle),
		logging.Int("probed", report.Probed),
		logging.Int("skipped", report.Skipped),
		logging.Int("live", len(report.Live)),
		logging.Int("admitted", len(report.Admitted)),
		logging.Int("failed", report.Failed),
	)
	return report
}

func (l *Loop) selectChannels(report *CycleReport) []string {
	now := l.now()
	channels := l.Channels()
	targets := make([]string, 0, len(channels))
	for _, ch := range channels {
		if l.sessions.Active(ch) {
			report.Skipped++
			continue
		}
		l.mu.Lock()
		cooling := false
		if st, ok := l.state[ch]; ok && now.Before(st.cooldownUntil) {
			cooling = true
		}
		l.mu.Unlock()
		if cooling {
			report.Skipped++
			continue
		}
		targets = append(targets, ch)
	}
	return targets
}

// observe records a probe result and reports whether it is an offline-to-live
// edge. Failed probes leave the previous observation untouched.
func (l *Loop) observe(res status.Result) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.stateLocked(res.Channel)
	st.lastChecked = res.CheckedAt
	if !res.OK() {
		st.lastErr = res.Err.Error()
		return false
	}
	st.lastErr = ""
	edge := res.Live && !st.live
	st.live = res.Live
	return edge
}

// forget clears the live observation so the next live probe is an edge again.
func (l *Loop) forget(channel string) {
	l.mu.Lock()
	l.stateLocked(channel).live = false
	l.mu.Unlock()
}

func (l *Loop) admissionFailed(channel string, err error) {
	attrs := []logging.Attr{
		logging.String(logging.FieldChannel, channel),
		logging.Error(err),
	}
	switch {
	case errors.Is(err, recording.ErrAtCapacity):
		l.forget(channel)
		logging.WarnWithContext(l.logger, "channel live but at capacity", "admission_refused",
			append(attrs,
				logging.String(logging.FieldErrorHint, "raise monitor.max_concurrent or stop a recording"),
				logging.String(logging.FieldImpact, "channel will be retried next cycle"),
			)...)
	case errors.Is(err, recording.ErrAlreadyActive):
		l.logger.Debug("channel already recording", logging.Args(attrs...)...)
	default:
		l.forget(channel)
		logging.WarnWithContext(l.logger, "failed to start recording", "admission_failed",
			append(attrs,
				logging.String(logging.FieldErrorHint, "check the capture binary and output directory"),
				logging.String(logging.FieldImpact, "channel will be retried next cycle"),
			)...)
	}
}

func (l *Loop) stateLocked(channel string) *channelState {
	st, ok := l.state[channel]
	if !ok {
		st = &channelState{}
		l.state[channel] = st
	}
	return st
}
