package status

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vodwatch/internal/logging"
	"vodwatch/internal/services"
	"vodwatch/internal/services/streamlink"
)

// Result is the outcome of one Check.
type Result struct {
	Channel   string
	Live      bool
	CheckedAt time.Time
	Attempts  int
	Kind      streamlink.FailureKind
	Err       error
}

// OK reports whether the probe produced an answer.
func (r Result) OK() bool { return r.Err == nil }

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures a Checker.
type Options struct {
	Retries     int
	BackoffBase time.Duration
	Logger      *slog.Logger
	Sleep       SleepFunc
	Clock       func() time.Time
}

// Checker probes channels with retry and exponential backoff.
type Checker struct {
	prober  streamlink.Prober
	retries int
	base    time.Duration
	sleep   SleepFunc
	now     func() time.Time
	logger  *slog.Logger
}

// NewChecker wraps prober with the retry policy from opts.
func NewChecker(prober streamlink.Prober, opts Options) *Checker {
	c := &Checker{
		prober:  prober,
		retries: opts.Retries,
		base:    opts.BackoffBase,
		sleep:   opts.Sleep,
		now:     opts.Clock,
		logger:  logging.NewComponentLogger(opts.Logger, "status"),
	}
	if c.retries < 0 {
		c.retries = 0
	}
	if c.sleep == nil {
		c.sleep = contextSleep
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Backoff returns the delay before retry k (k >= 1).
func (c *Checker) Backoff(k int) time.Duration {
	if k < 1 {
		return 0
	}
	return c.base << (k - 1)
}

// Check probes channel until it gets an answer or runs out of attempts.
func (c *Checker) Check(ctx context.Context, channel string) Result {
	logger := c.logger.With(logging.String(logging.FieldChannel, channel))
	result := Result{Channel: channel}

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.Backoff(attempt)
			logger.Debug("retrying status probe",
				logging.Int("attempt", attempt+1),
				logging.Duration("delay", delay),
				logging.Error(result.Err),
			)
			if err := c.sleep(ctx, delay); err != nil {
				result.Err = err
				break
			}
		}

		result.Attempts = attempt + 1
		live, err := c.prober.Probe(ctx, channel)
		result.CheckedAt = c.now()
		if err == nil {
			result.Live = live
			result.Err = nil
			result.Kind = ""
			logging.Event(logger, "status checked", "status_check",
				logging.Bool("live", live),
				logging.Int("attempts", result.Attempts),
			)
			return result
		}
		result.Err = err
		var probeErr *streamlink.ProbeError
		if errors.As(err, &probeErr) {
			result.Kind = probeErr.Kind
		}
		if ctx.Err() != nil {
			break
		}
	}

	if ctx.Err() == nil {
		result.Err = services.Wrap(services.ErrTransient, "status", "check", channel, result.Err)
		logging.WarnWithContext(logger, "status probe failed", "status_check_failed",
			logging.Int("attempts", result.Attempts),
			logging.String("failure_kind", string(result.Kind)),
			logging.Error(result.Err),
			logging.String(logging.FieldErrorHint, services.ErrorHint(result.Err)),
			logging.String(logging.FieldImpact, "channel treated as offline this cycle"),
		)
	}
	return result
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
