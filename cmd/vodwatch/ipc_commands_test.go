package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSessionsAndStopAgainstMonitor(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"sessions"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	requireContains(t, out, "No active recordings")

	if _, err := env.daemon.Admit(context.Background(), "alice"); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	out, _, err = runCLI(t, []string{"sessions"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	requireContains(t, out, "alice")

	out, _, err = runCLI(t, []string{"stop", "Alice"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Stop requested for alice")
	waitFor(t, 2*time.Second, func() bool { return len(env.daemon.History()) == 1 })

	_, _, err = runCLI(t, []string{"stop", "bob"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not recording") {
		t.Fatalf("expected not recording error, got %v", err)
	}
}

func TestStopRequiresChannelOrAll(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"stop"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected stop without arguments to fail")
	}
	if _, _, err := runCLI(t, []string{"stop", "alice", "--all"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected stop with channel and --all to fail")
	}
	out, _, err := runCLI(t, []string{"stop", "--all"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stop --all: %v", err)
	}
	requireContains(t, out, "Stop requested for 0 recordings")
}

func TestStatusCommandShowsChannels(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Monitor ==")
	requireContains(t, out, "alice")
	requireContains(t, out, "bob")
	requireContains(t, out, "0 of 2")

	out, _, err = runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	requireContains(t, out, `"max_concurrent": 2`)
}

func TestEventsCommandPrintsHubEvents(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := env.daemon.Admit(context.Background(), "alice"); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	out, _, err := runCLI(t, []string{"events", "--channel", "alice"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	requireContains(t, out, "alice:")
	if strings.Contains(out, " bob:") {
		t.Fatalf("expected channel filter to drop bob events, got %q", out)
	}
}

func TestCommandsReportMissingMonitor(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(t.TempDir(), "absent.sock")

	_, _, err := runCLI(t, []string{"sessions"}, missing, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "vodwatch monitor") {
		t.Fatalf("expected hint to start the monitor, got %v", err)
	}
}

func TestLogsCommandReadsCurrentLog(t *testing.T) {
	env := setupCLITestEnv(t)
	runLog := filepath.Join(env.cfg.Paths.LogDir, "vodwatch-run.log")
	if err := os.WriteFile(runLog, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	if err := os.Symlink(runLog, filepath.Join(env.cfg.Paths.LogDir, "vodwatch.log")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "first") {
		t.Fatalf("expected only the last two lines, got %q", out)
	}
	requireContains(t, out, "second\nthird\n")
}
