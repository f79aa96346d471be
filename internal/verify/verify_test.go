package verify_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"vodwatch/internal/media/ffprobe"
	"vodwatch/internal/services"
	"vodwatch/internal/testsupport"
	"vodwatch/internal/verify"
)

type fakeInspector struct {
	results map[string]ffprobe.Result
	errs    map[string]error
}

func (f *fakeInspector) Inspect(_ context.Context, path string) (ffprobe.Result, error) {
	if err, ok := f.errs[path]; ok {
		return ffprobe.Result{}, err
	}
	res, ok := f.results[path]
	if !ok {
		return ffprobe.Result{}, errors.New("no such fixture")
	}
	return res, nil
}

func media(duration, video, audio string) ffprobe.Result {
	var streams []ffprobe.Stream
	if video != "" {
		streams = append(streams, ffprobe.Stream{CodecType: "video", CodecName: video})
	}
	if audio != "" {
		streams = append(streams, ffprobe.Stream{CodecType: "audio", CodecName: audio})
	}
	return ffprobe.Result{Streams: streams, Format: ffprobe.Format{Duration: ffprobe.Number(duration)}}
}

func withFrames(res ffprobe.Result, frames string) ffprobe.Result {
	streams := append([]ffprobe.Stream(nil), res.Streams...)
	for i := range streams {
		if streams[i].CodecType == ffprobe.Video {
			streams[i].Frames = ffprobe.Number(frames)
		}
	}
	res.Streams = streams
	return res
}

func setup(t *testing.T, source, target ffprobe.Result) (*fakeInspector, string, string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "alice_20240309_183005.ts")
	dst := filepath.Join(dir, "compressed", "alice_20240309_183005.mp4")
	testsupport.WriteFile(t, src, 4096)
	testsupport.WriteFile(t, dst, 1024)
	return &fakeInspector{results: map[string]ffprobe.Result{src: source, dst: target}}, src, dst
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name       string
		source     ffprobe.Result
		target     ffprobe.Result
		opts       verify.Options
		wantPassed bool
		wantReason []verify.Reason
	}{
		{
			name:       "within tolerance passes",
			source:     media("100.0", "h264", "aac"),
			target:     media("100.3", "hevc", "aac"),
			wantPassed: true,
		},
		{
			name:       "duration beyond tolerance",
			source:     media("100.0", "h264", "aac"),
			target:     media("101.0", "hevc", "aac"),
			wantReason: []verify.Reason{verify.ReasonDurationMismatch},
		},
		{
			name:       "shorter target beyond tolerance",
			source:     media("100.0", "h264", "aac"),
			target:     media("99.2", "hevc", "aac"),
			wantReason: []verify.Reason{verify.ReasonDurationMismatch},
		},
		{
			name:       "wider tolerance accepts larger delta",
			source:     media("100.0", "h264", "aac"),
			target:     media("101.0", "hevc", "aac"),
			opts:       verify.Options{Tolerance: 2 * time.Second},
			wantPassed: true,
		},
		{
			name:       "missing video",
			source:     media("100.0", "h264", "aac"),
			target:     media("100.0", "", "aac"),
			wantReason: []verify.Reason{verify.ReasonNoVideo},
		},
		{
			name:       "audio dropped",
			source:     media("100.0", "h264", "aac"),
			target:     media("100.0", "hevc", ""),
			wantReason: []verify.Reason{verify.ReasonMissingAudio},
		},
		{
			name:       "silent source requires opt in",
			source:     media("100.0", "h264", ""),
			target:     media("100.0", "hevc", ""),
			wantReason: []verify.Reason{verify.ReasonMissingAudio},
		},
		{
			name:       "silent source allowed video only",
			source:     media("100.0", "h264", ""),
			target:     media("100.0", "hevc", ""),
			opts:       verify.Options{AllowVideoOnly: true},
			wantPassed: true,
		},
		{
			name:       "video only never excuses dropped audio",
			source:     media("100.0", "h264", "aac"),
			target:     media("100.0", "hevc", ""),
			opts:       verify.Options{AllowVideoOnly: true},
			wantReason: []verify.Reason{verify.ReasonMissingAudio},
		},
		{
			name:       "unexpected codecs",
			source:     media("100.0", "h264", "aac"),
			target:     media("100.0", "av1", "flac"),
			wantReason: []verify.Reason{verify.ReasonVideoCodec, verify.ReasonAudioCodec},
		},
		{
			name:       "codec names are case insensitive",
			source:     media("100.0", "h264", "aac"),
			target:     media("100.0", "HEVC", "Opus"),
			wantPassed: true,
		},
		{
			name:       "multiple failures reported together",
			source:     media("100.0", "h264", "aac"),
			target:     media("50.0", "vp9", ""),
			wantReason: []verify.Reason{verify.ReasonMissingAudio, verify.ReasonDurationMismatch, verify.ReasonVideoCodec},
		},
		{
			name:       "garbage duration is a probe failure",
			source:     media("100.0", "h264", "aac"),
			target:     media("abc", "hevc", "aac"),
			wantReason: []verify.Reason{verify.ReasonProbeFailed},
		},
		{
			name:       "both durations unavailable",
			source:     media("N/A", "h264", "aac"),
			target:     media("N/A", "hevc", "aac"),
			wantReason: []verify.Reason{verify.ReasonProbeFailed},
		},
		{
			name:       "short source with unavailable target duration",
			source:     media("0.3", "h264", "aac"),
			target:     media("N/A", "hevc", "aac"),
			wantReason: []verify.Reason{verify.ReasonProbeFailed},
		},
		{
			name:       "absent source duration",
			source:     media("", "h264", "aac"),
			target:     media("100.0", "hevc", "aac"),
			wantReason: []verify.Reason{verify.ReasonProbeFailed},
		},
		{
			name:       "frame counts far apart",
			source:     withFrames(media("100.0", "h264", "aac"), "6000"),
			target:     withFrames(media("100.0", "hevc", "aac"), "5400"),
			wantReason: []verify.Reason{verify.ReasonFrameCount},
		},
		{
			name:       "small frame drift passes",
			source:     withFrames(media("100.0", "h264", "aac"), "6000"),
			target:     withFrames(media("100.0", "hevc", "aac"), "5940"),
			wantPassed: true,
		},
		{
			name:       "frame count ignored when source lacks it",
			source:     media("100.0", "h264", "aac"),
			target:     withFrames(media("100.0", "hevc", "aac"), "10"),
			wantPassed: true,
		},
		{
			name:       "target below minimum size",
			source:     media("100.0", "h264", "aac"),
			target:     media("100.0", "hevc", "aac"),
			opts:       verify.Options{MinTargetSize: 4096},
			wantReason: []verify.Reason{verify.ReasonSmallTarget},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inspector, src, dst := setup(t, tt.source, tt.target)
			report := verify.New(inspector, nil).Verify(context.Background(), src, dst, tt.opts)
			if report.Passed != tt.wantPassed {
				t.Fatalf("Passed = %v, want %v (reasons %v)", report.Passed, tt.wantPassed, report.Reasons)
			}
			if len(report.Reasons) != len(tt.wantReason) {
				t.Fatalf("reasons = %v, want %v", report.Reasons, tt.wantReason)
			}
			for i, reason := range tt.wantReason {
				if report.Reasons[i] != reason {
					t.Fatalf("reasons = %v, want %v", report.Reasons, tt.wantReason)
				}
			}
			if tt.wantPassed && report.Err() != nil {
				t.Fatalf("passing report returned error: %v", report.Err())
			}
			if !tt.wantPassed && !errors.Is(report.Err(), services.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", report.Err())
			}
		})
	}
}

func TestVerifyReportsDelta(t *testing.T) {
	inspector, src, dst := setup(t, media("100.0", "h264", "aac"), media("100.3", "hevc", "aac"))
	report := verify.New(inspector, nil).Verify(context.Background(), src, dst, verify.Options{})
	if report.DurationDelta < 0.29 || report.DurationDelta > 0.31 {
		t.Fatalf("unexpected delta %f", report.DurationDelta)
	}
	if !report.SizeNonzero || !report.ContainerOK || !report.StreamsMatch || !report.CodecOK {
		t.Fatalf("expected all checks set: %+v", report)
	}
}

func TestVerifyMissingAndEmptyTarget(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.ts")
	testsupport.WriteFile(t, src, 10)
	v := verify.New(&fakeInspector{}, nil)

	report := v.Verify(context.Background(), src, filepath.Join(dir, "missing.mp4"), verify.Options{})
	if report.Passed || !report.Has(verify.ReasonMissingTarget) || !report.Unusable() {
		t.Fatalf("expected missing_target, got %+v", report)
	}

	empty := filepath.Join(dir, "empty.mp4")
	testsupport.TouchEmpty(t, empty)
	report = v.Verify(context.Background(), src, empty, verify.Options{})
	if report.Passed || !report.Has(verify.ReasonEmptyTarget) || !report.Unusable() {
		t.Fatalf("expected empty_target, got %+v", report)
	}
}

func TestVerifyProbeFailure(t *testing.T) {
	inspector, src, dst := setup(t, media("100.0", "h264", "aac"), media("100.0", "hevc", "aac"))
	inspector.errs = map[string]error{dst: services.ErrExternalTool}

	report := verify.New(inspector, nil).Verify(context.Background(), src, dst, verify.Options{})
	if report.Passed || !report.Has(verify.ReasonProbeFailed) || report.ContainerOK {
		t.Fatalf("expected probe_failed, got %+v", report)
	}
	if !report.Unusable() {
		t.Fatal("expected corrupt target to be unusable")
	}
}

func TestVerifyMissingDurationAgreesWithQuickCheck(t *testing.T) {
	inspector, src, dst := setup(t, media("N/A", "h264", "aac"), media("N/A", "hevc", "aac"))
	v := verify.New(inspector, nil)

	report := v.Verify(context.Background(), src, dst, verify.Options{})
	if report.Passed || report.ContainerOK || !report.Unusable() {
		t.Fatalf("expected target without duration to fail, got %+v", report)
	}
	if v.QuickCheck(context.Background(), dst) {
		t.Fatal("expected QuickCheck to reject target without duration")
	}
}

func TestDurationMismatchKeepsTarget(t *testing.T) {
	inspector, src, dst := setup(t, media("100.0", "h264", "aac"), media("101.0", "hevc", "aac"))
	report := verify.New(inspector, nil).Verify(context.Background(), src, dst, verify.Options{})
	if report.Unusable() {
		t.Fatalf("duration mismatch should leave the target usable: %+v", report)
	}
}

func TestQuickCheck(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.mp4")
	zeroDuration := filepath.Join(dir, "zero.mp4")
	broken := filepath.Join(dir, "broken.mp4")
	empty := filepath.Join(dir, "empty.mp4")
	for _, p := range []string{good, zeroDuration, broken} {
		testsupport.WriteFile(t, p, 64)
	}
	testsupport.TouchEmpty(t, empty)

	inspector := &fakeInspector{
		results: map[string]ffprobe.Result{
			good:         media("42.5", "hevc", "aac"),
			zeroDuration: media("0", "hevc", "aac"),
			empty:        media("42.5", "hevc", "aac"),
		},
		errs: map[string]error{broken: services.ErrValidation},
	}
	v := verify.New(inspector, nil)
	ctx := context.Background()

	missing := filepath.Join(dir, "missing.mp4")
	cases := map[string]bool{
		good:         true,
		zeroDuration: false,
		broken:       false,
		empty:        false,
		missing:      false,
	}
	for path, want := range cases {
		if got := v.QuickCheck(ctx, path); got != want {
			t.Errorf("QuickCheck(%s) = %v, want %v", filepath.Base(path), got, want)
		}
	}
}
