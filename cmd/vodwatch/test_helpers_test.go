package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vodwatch/internal/config"
	"vodwatch/internal/daemon"
	"vodwatch/internal/ipc"
	"vodwatch/internal/logging"
	"vodwatch/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	starter    *testsupport.FakeStarter
	server     *ipc.Server
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries(),
		testsupport.WithChannels("alice", "bob"),
		testsupport.WithMaxConcurrent(2),
	)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	hub := logging.NewStreamHub(128)
	logger, err := logging.New(logging.Options{
		Level:   "debug",
		Format:  "json",
		Outputs: []string{filepath.Join(cfg.Paths.LogDir, "cli-test.log")},
		Hub:     hub,
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	code := 130
	starter := &testsupport.FakeStarter{ExitOnInterrupt: &code}
	d, err := daemon.New(cfg, daemon.Deps{
		Checker: testsupport.NewStaticChecker(),
		Starter: starter,
		Capture: testsupport.CaptureStub{},
		Hub:     hub,
		Logger:  logger,
		After:   func(time.Duration) <-chan time.Time { return nil },
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		cancel()
		d.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI IPC test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.StopRecordings()
		d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		starter:    starter,
		server:     srv,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
