package verify

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"vodwatch/internal/logging"
	"vodwatch/internal/media/ffprobe"
	"vodwatch/internal/services"
)

const (
	// DefaultTolerance is the allowed absolute duration difference.
	DefaultTolerance = 500 * time.Millisecond
	// DefaultMinTargetSize is the smallest output worth trusting.
	DefaultMinTargetSize = 100 << 10
	// maxFrameDrift is the largest relative frame count difference allowed
	// when both files report nb_frames.
	maxFrameDrift = 0.05
)

// Reason names a failed verification check.
type Reason string

const (
	ReasonMissingTarget    Reason = "missing_target"
	ReasonEmptyTarget      Reason = "empty_target"
	ReasonSmallTarget      Reason = "small_target"
	ReasonProbeFailed      Reason = "probe_failed"
	ReasonNoVideo          Reason = "no_video"
	ReasonMissingAudio     Reason = "missing_audio"
	ReasonDurationMismatch Reason = "duration_mismatch"
	ReasonFrameCount       Reason = "frame_count_mismatch"
	ReasonVideoCodec       Reason = "video_codec"
	ReasonAudioCodec       Reason = "audio_codec"
)

var (
	videoCodecs = map[string]struct{}{"hevc": {}, "h265": {}, "h264": {}, "avc": {}}
	audioCodecs = map[string]struct{}{"aac": {}, "mp3": {}, "opus": {}, "ac3": {}, "eac3": {}}
)

// Options tunes a verification.
type Options struct {
	Tolerance      time.Duration
	AllowVideoOnly bool
	// MinTargetSize fails targets smaller than this many bytes. Zero
	// disables the check.
	MinTargetSize int64
}

// Report is the result of comparing a target against its source.
type Report struct {
	Source         string
	Target         string
	SizeNonzero    bool
	ContainerOK    bool
	StreamsMatch   bool
	CodecOK        bool
	SourceDuration float64
	TargetDuration float64
	// DurationDelta is target minus source, in seconds.
	DurationDelta float64
	Passed        bool
	Reasons       []Reason
}

// Has reports whether reason is among the failures.
func (r Report) Has(reason Reason) bool {
	for _, got := range r.Reasons {
		if got == reason {
			return true
		}
	}
	return false
}

// Unusable reports whether the target is absent, empty, or unreadable as a
// container. Such outputs are not worth keeping for inspection.
func (r Report) Unusable() bool {
	return r.Has(ReasonMissingTarget) || r.Has(ReasonEmptyTarget) || !r.ContainerOK
}

// Err returns nil for a passing report and an ErrValidation error listing the
// reasons otherwise.
func (r Report) Err() error {
	if r.Passed {
		return nil
	}
	names := make([]string, 0, len(r.Reasons))
	for _, reason := range r.Reasons {
		names = append(names, string(reason))
	}
	return services.Wrap(services.ErrValidation, "verify", r.Target, strings.Join(names, ","), nil)
}

// Verifier probes files through an ffprobe Inspector.
type Verifier struct {
	inspector ffprobe.Inspector
	logger    *slog.Logger
}

// New constructs a Verifier.
func New(inspector ffprobe.Inspector, logger *slog.Logger) *Verifier {
	return &Verifier{
		inspector: inspector,
		logger:    logging.NewComponentLogger(logger, "verify"),
	}
}

// Verify runs every check and returns the report. It never returns early
// after the target has been probed so the report lists all failures.
func (v *Verifier) Verify(ctx context.Context, source, target string, opts Options) Report {
	tolerance := opts.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	report := Report{Source: source, Target: target}

	info, err := os.Stat(target)
	switch {
	case err != nil || info.IsDir():
		return v.conclude(report.fail(ReasonMissingTarget))
	case info.Size() == 0:
		return v.conclude(report.fail(ReasonEmptyTarget))
	}
	report.SizeNonzero = true
	if opts.MinTargetSize > 0 && info.Size() < opts.MinTargetSize {
		report.fail(ReasonSmallTarget)
	}

	srcProbe, srcErr := v.inspector.Inspect(ctx, source)
	dstProbe, dstErr := v.inspector.Inspect(ctx, target)
	if srcErr != nil || dstErr != nil {
		v.logger.Debug("verification probe failed",
			logging.String("source", source),
			logging.String("target", target),
			logging.Error(errors.Join(srcErr, dstErr)),
		)
		return v.conclude(report.fail(ReasonProbeFailed))
	}
	var srcOK, dstOK bool
	report.SourceDuration, srcOK = srcProbe.Duration()
	report.TargetDuration, dstOK = dstProbe.Duration()
	if !srcOK || !dstOK || report.SourceDuration <= 0 || report.TargetDuration <= 0 {
		v.logger.Debug("duration information missing",
			logging.Float64("source_duration", report.SourceDuration),
			logging.Float64("target_duration", report.TargetDuration),
		)
		return v.conclude(report.fail(ReasonProbeFailed))
	}
	report.ContainerOK = true

	report.StreamsMatch = true
	if dstProbe.Count(ffprobe.Video) == 0 {
		report.StreamsMatch = false
		report.fail(ReasonNoVideo)
	}
	targetAudio := dstProbe.Count(ffprobe.Audio) > 0
	if !targetAudio && (srcProbe.Count(ffprobe.Audio) > 0 || !opts.AllowVideoOnly) {
		report.StreamsMatch = false
		report.fail(ReasonMissingAudio)
	}

	report.DurationDelta = report.TargetDuration - report.SourceDuration
	if math.Abs(report.DurationDelta) > tolerance.Seconds() {
		report.fail(ReasonDurationMismatch)
	}

	if drift, ok := frameDrift(srcProbe, dstProbe); ok && drift > maxFrameDrift {
		report.fail(ReasonFrameCount)
	}

	report.CodecOK = true
	if stream, ok := dstProbe.First(ffprobe.Video); ok && !accepted(videoCodecs, stream.CodecName) {
		report.CodecOK = false
		report.fail(ReasonVideoCodec)
	}
	if stream, ok := dstProbe.First(ffprobe.Audio); ok && !accepted(audioCodecs, stream.CodecName) {
		report.CodecOK = false
		report.fail(ReasonAudioCodec)
	}
	return v.conclude(report)
}

// QuickCheck reports whether path looks like a usable media file: nonzero
// size, parseable container metadata, and a positive duration.
func (v *Verifier) QuickCheck(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return false
	}
	result, err := v.inspector.Inspect(ctx, path)
	if err != nil {
		return false
	}
	duration, ok := result.Duration()
	return ok && duration > 0
}

func (r *Report) fail(reason Reason) Report {
	r.Reasons = append(r.Reasons, reason)
	return *r
}

func (v *Verifier) conclude(report Report) Report {
	report.Passed = len(report.Reasons) == 0
	attrs := []logging.Attr{
		logging.String("target", report.Target),
		logging.Float64("duration_delta", report.DurationDelta),
	}
	if report.Passed {
		logging.Event(v.logger, "verification passed", "verification_passed", attrs...)
		return report
	}
	attrs = append(attrs,
		logging.Any("reasons", report.Reasons),
		logging.String(logging.FieldErrorHint, "inspect the output with ffprobe; the source is kept"),
		logging.String(logging.FieldImpact, "source recording will not be deleted"),
	)
	logging.WarnWithContext(v.logger, "verification failed", "verification_failed", attrs...)
	return report
}

// frameDrift returns the relative difference between the first video
// streams' frame counts. ok is false unless both counts are known.
func frameDrift(source, target ffprobe.Result) (float64, bool) {
	src, srcOK := source.First(ffprobe.Video)
	dst, dstOK := target.First(ffprobe.Video)
	if !srcOK || !dstOK {
		return 0, false
	}
	in, inOK := src.Frames.Float()
	out, outOK := dst.Frames.Float()
	if !inOK || !outOK || in <= 0 || out <= 0 {
		return 0, false
	}
	return math.Abs(out-in) / in, true
}

func accepted(set map[string]struct{}, codec string) bool {
	_, ok := set[strings.ToLower(strings.TrimSpace(codec))]
	return ok
}
