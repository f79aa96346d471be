package compress_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"vodwatch/internal/compress"
	"vodwatch/internal/config"
	"vodwatch/internal/ledger"
	"vodwatch/internal/media/ffprobe"
	"vodwatch/internal/procrun"
	"vodwatch/internal/services"
	"vodwatch/internal/testsupport"
)

type fakeInspector struct {
	mu      sync.Mutex
	results map[string]ffprobe.Result
}

func newInspector() *fakeInspector {
	return &fakeInspector{results: map[string]ffprobe.Result{}}
}

func (f *fakeInspector) set(path string, res ffprobe.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[path] = res
}

func (f *fakeInspector) Inspect(_ context.Context, path string) (ffprobe.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.results[path]
	if !ok {
		return ffprobe.Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect", path, nil)
	}
	return res, nil
}

func media(duration string, codecs ...string) ffprobe.Result {
	res := ffprobe.Result{Format: ffprobe.Format{Duration: ffprobe.Number(duration)}}
	for i, codec := range codecs {
		kind := ffprobe.Video
		if i > 0 {
			kind = ffprobe.Audio
		}
		if codec == "" {
			continue
		}
		res.Streams = append(res.Streams, ffprobe.Stream{Index: i, CodecType: kind, CodecName: codec})
	}
	return res
}

type env struct {
	dir       string
	out       string
	inspector *fakeInspector
	starter   *testsupport.FakeStarter
	ledger    *ledger.Store
	confirms  []string
	confirm   bool
	pipeline  *compress.Pipeline
}

// ffmpegWrites makes the fake ffmpeg produce its target and register probe
// output for it.
func (e *env) ffmpegWrites(t *testing.T, res ffprobe.Result, exitCode int) {
	e.starter.OnStart = func(cmd procrun.Command, h *testsupport.FakeHandle) {
		target := cmd.Args[len(cmd.Args)-1]
		testsupport.WriteFile(t, target, 512)
		e.inspector.set(target, res)
		h.Exit(exitCode)
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	e := &env{
		dir:       cfg.Paths.OutputDir,
		out:       cfg.Paths.CompressedDir,
		inspector: newInspector(),
		starter:   &testsupport.FakeStarter{},
		ledger:    testsupport.MustOpenLedger(t, cfg),
	}
	e.pipeline = compress.New(compress.Deps{
		FFmpegBinary: "ffmpeg",
		Starter:      e.starter,
		Inspector:    e.inspector,
		Ledger:       e.ledger,
		Confirmer: compress.ConfirmFunc(func(_ context.Context, source string) (bool, error) {
			e.confirms = append(e.confirms, source)
			return e.confirm, nil
		}),
	})
	return e
}

func (e *env) source(t *testing.T, name string, res ffprobe.Result) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	testsupport.WriteFile(t, path, 4096)
	e.inspector.set(path, res)
	return path
}

func (e *env) options(mode string) compress.Options {
	return compress.Options{
		Directory:  e.dir,
		CRF:        28,
		Preset:     "medium",
		DeleteMode: mode,
		TargetDir:  e.out,
		SourceExt:  "ts",
		TargetExt:  "mp4",
	}
}

func TestCompressVerifyDeleteEndToEnd(t *testing.T) {
	e := newEnv(t)
	src := e.source(t, "alice_20240309_183005.ts", media("100.0", "h264", "aac"))
	e.ffmpegWrites(t, media("100.2", "hevc", "aac"), 0)

	summary, err := e.pipeline.Run(context.Background(), e.options(config.DeleteYes))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Found != 1 || summary.Succeeded != 1 || summary.Deleted != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	target := filepath.Join(e.out, "alice_20240309_183005.mp4")
	want := []string{"-hide_banner", "-nostdin", "-y", "-i", src, "-map", "0:v:0", "-map", "0:a:0",
		"-c:v", "libx265", "-crf", "28", "-preset", "medium", "-c:a", "copy",
		"-movflags", "+faststart", "-tag:v", "hvc1", target}
	cmd := e.starter.Commands()[0]
	if cmd.Binary != "ffmpeg" || !slices.Equal(cmd.Args, want) {
		t.Fatalf("unexpected ffmpeg command: %s", cmd)
	}
	if testsupport.Exists(t, src) {
		t.Fatal("expected original deleted")
	}
	if !testsupport.Exists(t, target) {
		t.Fatal("expected compressed output kept")
	}

	rows, err := e.ledger.RecentCompressions(context.Background(), 10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected one ledger row, got %d (%v)", len(rows), err)
	}
	if rows[0].Status != ledger.CompressionSucceeded || !rows[0].SourceDeleted || rows[0].CRF != 28 {
		t.Fatalf("unexpected ledger row: %+v", rows[0])
	}
}

func TestExistingValidOutputIsSkipped(t *testing.T) {
	e := newEnv(t)
	src := e.source(t, "bob.ts", media("60.0", "h264", "aac"))
	target := filepath.Join(e.out, "bob.mp4")
	testsupport.WriteFile(t, target, 256)
	e.inspector.set(target, media("60.0", "hevc", "aac"))

	for run := 0; run < 2; run++ {
		summary, err := e.pipeline.Run(context.Background(), e.options(config.DeleteYes))
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		if summary.Skipped != 1 || summary.Succeeded != 0 || summary.Deleted != 0 {
			t.Fatalf("run %d: unexpected summary: %+v", run, summary)
		}
	}
	if e.starter.Calls() != 0 {
		t.Fatalf("expected no ffmpeg runs, got %d", e.starter.Calls())
	}
	if !testsupport.Exists(t, src) {
		t.Fatal("skipped source must be kept")
	}
}

func TestPromptModeAsksOncePerFile(t *testing.T) {
	for _, answer := range []bool{false, true} {
		t.Run(map[bool]string{false: "declined", true: "accepted"}[answer], func(t *testing.T) {
			e := newEnv(t)
			e.confirm = answer
			a := e.source(t, "a.ts", media("10.0", "h264", "aac"))
			b := e.source(t, "b.ts", media("10.0", "h264", "aac"))
			e.ffmpegWrites(t, media("10.0", "hevc", "aac"), 0)

			summary, err := e.pipeline.Run(context.Background(), e.options(config.DeletePrompt))
			if err != nil {
				t.Fatalf("Run returned error: %v", err)
			}
			if !slices.Equal(e.confirms, []string{a, b}) {
				t.Fatalf("unexpected confirmations: %v", e.confirms)
			}
			wantDeleted := 0
			if answer {
				wantDeleted = 2
			}
			if summary.Deleted != wantDeleted || testsupport.Exists(t, a) == answer {
				t.Fatalf("unexpected deletion outcome: %+v", summary)
			}
		})
	}
}

func TestKeepModeNeverDeletes(t *testing.T) {
	e := newEnv(t)
	src := e.source(t, "a.ts", media("10.0", "h264", "aac"))
	e.ffmpegWrites(t, media("10.0", "hevc", "aac"), 0)

	summary, err := e.pipeline.Run(context.Background(), e.options(config.DeleteNo))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Succeeded != 1 || summary.Deleted != 0 || !testsupport.Exists(t, src) || len(e.confirms) != 0 {
		t.Fatalf("unexpected outcome: %+v", summary)
	}
}

func TestSourceWithoutAudio(t *testing.T) {
	e := newEnv(t)
	e.source(t, "silent.ts", media("10.0", "h264"))
	e.ffmpegWrites(t, media("10.0", "hevc"), 0)

	summary, err := e.pipeline.Run(context.Background(), e.options(config.DeleteNo))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 || summary.Failures[0].Reasons[0] != compress.ReasonMissingAudio {
		t.Fatalf("expected missing_audio failure, got %+v", summary)
	}
	if e.starter.Calls() != 0 {
		t.Fatal("ffmpeg must not run for rejected sources")
	}

	opts := e.options(config.DeleteNo)
	opts.AllowVideoOnly = true
	summary, err = e.pipeline.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected video-only success, got %+v", summary)
	}
	if slices.Contains(e.starter.Commands()[0].Args, "0:a:0") {
		t.Fatal("audio must not be mapped for a video-only source")
	}
}

func TestSourceWithoutVideo(t *testing.T) {
	e := newEnv(t)
	e.source(t, "radio.ts", ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "audio", CodecName: "aac"}},
		Format:  ffprobe.Format{Duration: "10.0"},
	})
	summary, _ := e.pipeline.Run(context.Background(), e.options(config.DeleteNo))
	if summary.Failed != 1 || summary.Failures[0].Reasons[0] != compress.ReasonNoVideo {
		t.Fatalf("expected no_video failure, got %+v", summary)
	}
}

func TestTranscodeFailureRemovesPartialOutput(t *testing.T) {
	e := newEnv(t)
	src := e.source(t, "a.ts", media("10.0", "h264", "aac"))
	e.ffmpegWrites(t, media("10.0", "hevc", "aac"), 1)

	summary, err := e.pipeline.Run(context.Background(), e.options(config.DeleteYes))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 || summary.Failures[0].Reasons[0] != compress.ReasonTranscodeFailed {
		t.Fatalf("expected transcode failure, got %+v", summary)
	}
	if !errors.Is(summary.Failures[0].Err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", summary.Failures[0].Err)
	}
	if testsupport.Exists(t, filepath.Join(e.out, "a.mp4")) || !testsupport.Exists(t, src) {
		t.Fatal("expected partial output removed and source kept")
	}
	rows, _ := e.ledger.RecentCompressions(context.Background(), 5)
	if len(rows) != 1 || rows[0].Status != ledger.CompressionFailed {
		t.Fatalf("expected failed ledger row, got %+v", rows)
	}
}

func TestVerificationFailureHandling(t *testing.T) {
	t.Run("duration mismatch keeps output", func(t *testing.T) {
		e := newEnv(t)
		src := e.source(t, "a.ts", media("100.0", "h264", "aac"))
		e.ffmpegWrites(t, media("101.0", "hevc", "aac"), 0)

		summary, err := e.pipeline.Run(context.Background(), e.options(config.DeleteYes))
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		if summary.Failed != 1 || summary.Deleted != 0 || summary.Failures[0].Reasons[0] != "duration_mismatch" {
			t.Fatalf("unexpected summary: %+v", summary)
		}
		if !errors.Is(summary.Failures[0].Err, services.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", summary.Failures[0].Err)
		}
		if !testsupport.Exists(t, src) || !testsupport.Exists(t, filepath.Join(e.out, "a.mp4")) {
			t.Fatal("expected source and output kept for inspection")
		}
	})

	t.Run("unreadable container removed", func(t *testing.T) {
		e := newEnv(t)
		src := e.source(t, "a.ts", media("100.0", "h264", "aac"))
		e.starter.OnStart = func(cmd procrun.Command, h *testsupport.FakeHandle) {
			testsupport.WriteFile(t, cmd.Args[len(cmd.Args)-1], 64)
			h.Exit(0)
		}

		summary, err := e.pipeline.Run(context.Background(), e.options(config.DeleteYes))
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		if summary.Failed != 1 || summary.Failures[0].Reasons[0] != "probe_failed" {
			t.Fatalf("unexpected summary: %+v", summary)
		}
		if !testsupport.Exists(t, src) || testsupport.Exists(t, filepath.Join(e.out, "a.mp4")) {
			t.Fatal("expected corrupt output removed and source kept")
		}
	})

	t.Run("output without duration removed", func(t *testing.T) {
		e := newEnv(t)
		src := e.source(t, "a.ts", media("N/A", "h264", "aac"))
		e.ffmpegWrites(t, media("N/A", "hevc", "aac"), 0)

		summary, err := e.pipeline.Run(context.Background(), e.options(config.DeleteYes))
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		if summary.Failed != 1 || summary.Deleted != 0 || summary.Failures[0].Reasons[0] != "probe_failed" {
			t.Fatalf("unexpected summary: %+v", summary)
		}
		if !testsupport.Exists(t, src) {
			t.Fatal("expected source kept")
		}
	})

	t.Run("suspiciously small output keeps source", func(t *testing.T) {
		e := newEnv(t)
		src := e.source(t, "a.ts", media("100.0", "h264", "aac"))
		e.ffmpegWrites(t, media("100.0", "hevc", "aac"), 0)
		opts := e.options(config.DeleteYes)
		opts.MinTargetSize = 1024

		summary, err := e.pipeline.Run(context.Background(), opts)
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		if summary.Failed != 1 || summary.Deleted != 0 || summary.Failures[0].Reasons[0] != "small_target" {
			t.Fatalf("unexpected summary: %+v", summary)
		}
		if !testsupport.Exists(t, src) {
			t.Fatal("expected source kept")
		}
	})
}

func TestCancellationStopsFfmpegAndCleansUp(t *testing.T) {
	e := newEnv(t)
	first := e.source(t, "a.ts", media("10.0", "h264", "aac"))
	e.source(t, "b.ts", media("10.0", "h264", "aac"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	code := 255
	e.starter.ExitOnInterrupt = &code
	e.starter.OnStart = func(cmd procrun.Command, _ *testsupport.FakeHandle) {
		testsupport.WriteFile(t, cmd.Args[len(cmd.Args)-1], 64)
		cancel()
	}

	summary, err := e.pipeline.Run(ctx, e.options(config.DeleteYes))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if e.starter.Calls() != 1 {
		t.Fatalf("expected remaining files untouched, got %d ffmpeg runs", e.starter.Calls())
	}
	if interrupts, _ := e.starter.Handle(0).Signals(); interrupts != 1 {
		t.Fatalf("expected ffmpeg interrupted, got %d", interrupts)
	}
	if testsupport.Exists(t, filepath.Join(e.out, "a.mp4")) || !testsupport.Exists(t, first) {
		t.Fatal("expected partial output removed and source kept")
	}
	if summary.Found != 2 || summary.Succeeded != 0 {
		t.Fatalf("unexpected partial summary: %+v", summary)
	}
}

func TestDryRunTouchesNothing(t *testing.T) {
	e := newEnv(t)
	src := e.source(t, "a.ts", media("10.0", "h264", "aac"))
	e.source(t, "b.ts", media("10.0", "h264", "aac"))

	opts := e.options(config.DeleteYes)
	opts.DryRun = true
	summary, err := e.pipeline.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Processed != 2 || summary.Succeeded != 0 || e.starter.Calls() != 0 {
		t.Fatalf("unexpected dry run summary: %+v", summary)
	}
	if !testsupport.Exists(t, src) || testsupport.Exists(t, filepath.Join(e.out, "a.mp4")) {
		t.Fatal("dry run must not modify the filesystem")
	}
}

func TestInvalidOptions(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		name   string
		mutate func(*compress.Options)
		want   string
	}{
		{"crf too high", func(o *compress.Options) { o.CRF = 52 }, "crf"},
		{"crf negative", func(o *compress.Options) { o.CRF = -1 }, "crf"},
		{"unknown preset", func(o *compress.Options) { o.Preset = "warp" }, "preset"},
		{"bad delete mode", func(o *compress.Options) { o.DeleteMode = "maybe" }, "delete mode"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := e.options(config.DeleteNo)
			tc.mutate(&opts)
			_, err := e.pipeline.Run(context.Background(), opts)
			if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected validation error mentioning %q, got %v", tc.want, err)
			}
		})
	}

	opts := e.options(config.DeleteNo)
	opts.Directory = filepath.Join(e.dir, "missing")
	if _, err := e.pipeline.Run(context.Background(), opts); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing directory, got %v", err)
	}
}
