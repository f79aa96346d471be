package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"vodwatch/internal/config"
)

// ConfigOption adjusts a test config after its directories are laid out.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns the default config rooted in a fresh temp directory:
// recordings/, recordings/compressed/, logs/, and state/.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "recordings")
	cfg.Paths.CompressedDir = filepath.Join(cfg.Paths.OutputDir, "compressed")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// BaseDir is the temp directory NewConfig rooted cfg in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}

// WithChannels replaces the watch list.
func WithChannels(channels ...string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Channels.Watch = append([]string(nil), channels...)
	}
}

// WithMaxConcurrent sets the recording cap.
func WithMaxConcurrent(n int) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Monitor.MaxConcurrent = n
	}
}

// WithStubbedBinaries puts no-op executables named after the capture and
// compression tools first on PATH for the rest of the test. Pass names to
// stub a different set.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, base string, _ *config.Config) {
		t.Helper()
		if len(names) == 0 {
			names = []string{"streamlink", "ffmpeg", "ffprobe"}
		}
		bin := filepath.Join(base, "bin")
		for _, name := range names {
			writeFile(t, filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"))
			if err := os.Chmod(filepath.Join(bin, name), 0o755); err != nil {
				t.Fatalf("chmod stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
