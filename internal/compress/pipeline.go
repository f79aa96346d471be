package compress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"vodwatch/internal/config"
	"vodwatch/internal/ledger"
	"vodwatch/internal/logging"
	"vodwatch/internal/media/ffprobe"
	"vodwatch/internal/procrun"
	"vodwatch/internal/services"
	"vodwatch/internal/verify"
)

// Failure reasons reported for files that did not compress.
const (
	ReasonProbeFailed     = "probe_failed"
	ReasonNoVideo         = "no_video"
	ReasonMissingAudio    = "missing_audio"
	ReasonTranscodeFailed = "transcode_failed"
	ReasonPrepareFailed   = "prepare_failed"
)

// FileFailure explains why one source was not compressed.
type FileFailure struct {
	Source  string
	Reasons []string
	Err     error
}

// Summary tallies a run.
type Summary struct {
	Found     int
	Skipped   int
	Processed int
	Succeeded int
	Failed    int
	Deleted   int
	Failures  []FileFailure
}

// Recorder persists finished jobs.
type Recorder interface {
	RecordCompression(ctx context.Context, job ledger.Compression) (int64, error)
}

// Deps wires a Pipeline to its collaborators.
type Deps struct {
	FFmpegBinary string
	Starter      procrun.Starter
	Inspector    ffprobe.Inspector
	Confirmer    Confirmer
	Ledger       Recorder
	Logger       *slog.Logger
	StopGrace    time.Duration
	Clock        func() time.Time
}

// Pipeline runs compression jobs sequentially.
type Pipeline struct {
	ffmpeg    string
	starter   procrun.Starter
	inspector ffprobe.Inspector
	verifier  *verify.Verifier
	confirmer Confirmer
	ledger    Recorder
	logger    *slog.Logger
	grace     time.Duration
	now       func() time.Time
}

// New constructs a Pipeline.
func New(deps Deps) *Pipeline {
	p := &Pipeline{
		ffmpeg:    deps.FFmpegBinary,
		starter:   deps.Starter,
		inspector: deps.Inspector,
		confirmer: deps.Confirmer,
		ledger:    deps.Ledger,
		logger:    logging.NewComponentLogger(deps.Logger, "compress"),
		grace:     deps.StopGrace,
		now:       deps.Clock,
	}
	if p.ffmpeg == "" {
		p.ffmpeg = "ffmpeg"
	}
	if p.starter == nil {
		p.starter = procrun.New()
	}
	if p.confirmer == nil {
		p.confirmer = Decline
	}
	if p.grace <= 0 {
		p.grace = 5 * time.Second
	}
	if p.now == nil {
		p.now = time.Now
	}
	p.verifier = verify.New(p.inspector, deps.Logger)
	return p
}

type job struct {
	source string
	target string
	record ledger.Compression
}

// Run compresses every discovered file. It returns the summary together with
// context.Canceled when interrupted and a validation error for bad options.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Summary, error) {
	var summary Summary
	if err := opts.Validate(); err != nil {
		return summary, err
	}
	targetDir := opts.TargetDir
	if targetDir == "" {
		targetDir = filepath.Join(opts.Directory, "compressed")
	}

	sources, err := Discover(opts.Directory, opts.Recursive, opts.SourceExt)
	if err != nil {
		return summary, services.Wrap(services.ErrConfiguration, "compress", "discover", opts.Directory, err)
	}
	summary.Found = len(sources)
	logging.Event(p.logger, "compression run started", "compression_started",
		logging.String("directory", opts.Directory),
		logging.Int("found", len(sources)),
		logging.Int("crf", opts.CRF),
		logging.String("preset", opts.Preset),
		logging.Bool("dry_run", opts.DryRun),
	)

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return p.finish(summary, err)
		}
		j := &job{source: source, target: TargetPath(source, opts.Directory, targetDir, opts.TargetExt)}
		j.record = ledger.Compression{Source: j.source, Target: j.target, CRF: opts.CRF, Preset: opts.Preset, StartedAt: p.now()}
		if err := p.process(ctx, j, opts, &summary); err != nil {
			return p.finish(summary, err)
		}
	}
	return p.finish(summary, nil)
}

func (p *Pipeline) process(ctx context.Context, j *job, opts Options, summary *Summary) error {
	logger := p.logger.With(logging.String("source", filepath.Base(j.source)))

	if p.verifier.QuickCheck(ctx, j.target) {
		summary.Skipped++
		logger.Info("valid output already exists; skipping", logging.String("target", j.target))
		j.record.Status = ledger.CompressionSkipped
		p.persist(ctx, j, logger)
		return nil
	}
	if opts.DryRun {
		summary.Processed++
		logger.Info("dry run: would compress", logging.String("target", j.target))
		return nil
	}

	probe, err := p.inspector.Inspect(ctx, j.source)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.fail(ctx, j, summary, logger, err, ReasonProbeFailed)
		return nil
	}
	j.record.SourceBytes = fileSize(j.source)
	hasAudio := probe.Count(ffprobe.Audio) > 0
	switch {
	case probe.Count(ffprobe.Video) == 0:
		p.fail(ctx, j, summary, logger, nil, ReasonNoVideo)
		return nil
	case !hasAudio && !opts.AllowVideoOnly:
		p.fail(ctx, j, summary, logger, nil, ReasonMissingAudio)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(j.target), 0o755); err != nil {
		p.fail(ctx, j, summary, logger, err, ReasonPrepareFailed)
		return nil
	}

	logger.Info("compressing",
		logging.String("target", j.target),
		logging.Int("crf", opts.CRF),
		logging.String("preset", opts.Preset),
		logging.Bool("audio", hasAudio),
	)
	if err := p.transcode(ctx, j, opts, hasAudio); err != nil {
		removeFile(j.target)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("compression interrupted; partial output removed",
				logging.String(logging.FieldEventType, "compression_interrupted"),
				logging.String("target", j.target),
			)
			return err
		}
		p.fail(ctx, j, summary, logger, err, ReasonTranscodeFailed)
		return nil
	}

	report := p.verifier.Verify(ctx, j.source, j.target, verify.Options{
		Tolerance:      opts.Tolerance,
		AllowVideoOnly: opts.AllowVideoOnly,
		MinTargetSize:  opts.MinTargetSize,
	})
	j.record.TargetBytes = fileSize(j.target)
	j.record.DurationDelta = report.DurationDelta
	if !report.Passed {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if report.Unusable() {
			removeFile(j.target)
		}
		reasons := make([]string, 0, len(report.Reasons))
		for _, reason := range report.Reasons {
			reasons = append(reasons, string(reason))
		}
		p.fail(ctx, j, summary, logger, report.Err(), reasons...)
		return nil
	}

	summary.Succeeded++
	summary.Processed++
	j.record.Status = ledger.CompressionSucceeded
	logging.Event(logger, "compressed and verified", "compression_succeeded",
		logging.String("target", j.target),
		logging.Int64("source_bytes", j.record.SourceBytes),
		logging.Int64("target_bytes", j.record.TargetBytes),
		logging.Float64("duration_delta", report.DurationDelta),
	)

	deleted, err := p.maybeDelete(ctx, j.source, opts.DeleteMode)
	if err != nil {
		logging.WarnWithContext(logger, "failed to delete original", "compression_delete_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the recordings directory"),
			logging.String(logging.FieldImpact, "original recording kept"),
		)
	}
	if deleted {
		summary.Deleted++
		j.record.SourceDeleted = true
		logger.Info("deleted original")
	}
	p.persist(ctx, j, logger)
	return nil
}

func (p *Pipeline) transcode(ctx context.Context, j *job, opts Options, withAudio bool) error {
	cmd := TranscodeCommand(p.ffmpeg, j.source, j.target, opts.CRF, opts.Preset, withAudio)
	handle, err := p.starter.Start(ctx, cmd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrExternalTool, "compress", "start ffmpeg", j.source, err)
	}
	select {
	case <-handle.Done():
	case <-ctx.Done():
		procrun.Shutdown(handle, p.grace)
		return ctx.Err()
	}
	exit := handle.Wait()
	if exit.Code == 0 && !exit.Signaled && exit.Err == nil {
		return nil
	}
	detail := fmt.Sprintf("ffmpeg exited with code %d", exit.Code)
	if tail := procrun.StderrTail(handle); tail != "" {
		detail += ": " + tail
	}
	return services.Wrap(services.ErrExternalTool, "compress", "transcode", detail, exit.Err)
}

func (p *Pipeline) maybeDelete(ctx context.Context, source, mode string) (bool, error) {
	switch mode {
	case config.DeleteYes:
	case config.DeletePrompt:
		ok, err := p.confirmer.ConfirmDelete(ctx, source)
		if err != nil || !ok {
			return false, err
		}
	default:
		return false, nil
	}
	if err := os.Remove(source); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pipeline) fail(ctx context.Context, j *job, summary *Summary, logger *slog.Logger, err error, reasons ...string) {
	summary.Failed++
	summary.Failures = append(summary.Failures, FileFailure{Source: j.source, Reasons: reasons, Err: err})
	j.record.Status = ledger.CompressionFailed
	j.record.Reasons = reasons
	attrs := []logging.Attr{
		logging.Any("reasons", reasons),
		logging.String(logging.FieldErrorHint, "source kept; rerun compress after fixing the cause"),
		logging.String(logging.FieldImpact, "original recording was not compressed"),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(logger, "compression failed", "compression_failed", attrs...)
	p.persist(ctx, j, logger)
}

func (p *Pipeline) persist(ctx context.Context, j *job, logger *slog.Logger) {
	if p.ledger == nil {
		return
	}
	j.record.FinishedAt = p.now()
	if _, err := p.ledger.RecordCompression(context.WithoutCancel(ctx), j.record); err != nil {
		logger.Warn("failed to record compression in ledger", logging.Error(err))
	}
}

func (p *Pipeline) finish(summary Summary, err error) (Summary, error) {
	attrs := []logging.Attr{
		logging.Int("found", summary.Found),
		logging.Int("skipped", summary.Skipped),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("deleted", summary.Deleted),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.Event(p.logger, "compression run finished", "compression_finished", attrs...)
	return summary, err
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func removeFile(path string) {
	_ = os.Remove(path)
}
