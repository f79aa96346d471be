package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"vodwatch/internal/procrun"
	"vodwatch/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckChannels(t *testing.T) {
	empty := testsupport.NewConfig(t)
	if CheckChannels(empty).Passed {
		t.Fatal("expected empty watch list to fail")
	}
	cfg := testsupport.NewConfig(t, testsupport.WithChannels("alice", "bob"))
	result := CheckChannels(cfg)
	if !result.Passed || !strings.Contains(result.Detail, "2") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, nil); results != nil {
		t.Fatalf("expected nil results, got %+v", results)
	}
}

type encoderExecutor struct{ calls int }

func (e *encoderExecutor) Run(context.Context, procrun.Command) (procrun.Result, error) {
	e.calls++
	return procrun.Result{Stdout: " V....D libx265              libx265 H.265 / HEVC\n"}, nil
}

func TestRunAll_StubbedConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithChannels("alice"), testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	exec := &encoderExecutor{}

	results := RunAll(context.Background(), cfg, exec)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, failed: %+v", failed)
	}
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"Watch list", "Recording directory", "Compressed directory", "Log directory", "State directory", "streamlink", "ffmpeg", "ffprobe", "libx265"} {
		if !names[want] {
			t.Fatalf("missing %q in results %+v", want, results)
		}
	}
	if exec.calls != 1 {
		t.Fatalf("expected one encoder probe, got %d", exec.calls)
	}
}

func TestRunAll_MissingBinarySkipsEncoderCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithChannels("alice"))
	cfg.Compression.FFmpegBinary = "clearly-not-present-ffmpeg"
	exec := &encoderExecutor{}

	results := RunAll(context.Background(), cfg, exec)
	if exec.calls != 0 {
		t.Fatal("encoder check should be skipped without ffmpeg")
	}
	found := false
	for _, r := range Failed(results) {
		if r.Name == "ffmpeg" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ffmpeg failure, got %+v", results)
	}
}

func TestMonitorRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	running, err := MonitorRunning(cfg)
	if err != nil || running {
		t.Fatalf("expected no monitor before the lock exists, got %v %v", running, err)
	}

	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	running, err = MonitorRunning(cfg)
	if err != nil || !running {
		t.Fatalf("expected held lock to report running, got %v %v", running, err)
	}

	if err := lock.Unlock(); err != nil {
		t.Fatal(err)
	}
	running, err = MonitorRunning(cfg)
	if err != nil || running {
		t.Fatalf("expected released lock to report idle, got %v %v", running, err)
	}
}
