package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vodwatch/internal/compress"
	"vodwatch/internal/ledger"
	"vodwatch/internal/testsupport"
)

func TestCompressPromptModeNeedsTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg)

	_, _, err := runCLI(t, []string{"compress"}, "", path)
	if err == nil || !strings.Contains(err.Error(), "--yes or --keep") {
		t.Fatalf("expected prompt-mode refusal, got %v", err)
	}
}

func TestCompressRejectsConflictingDeleteFlags(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg)

	_, _, err := runCLI(t, []string{"compress", "--yes", "--keep"}, "", path)
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCompressEmptyDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg)

	out, _, err := runCLI(t, []string{"compress", "--keep", cfg.Paths.OutputDir}, "", path)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	requireContains(t, out, "== Compression ==")
	requireContains(t, out, "Found")
}

func TestFailureErrorCountsAttemptedFiles(t *testing.T) {
	if err := failureError(compress.Summary{Found: 3, Skipped: 1, Succeeded: 2}); err != nil {
		t.Fatalf("expected no error without failures, got %v", err)
	}
	err := failureError(compress.Summary{Found: 3, Skipped: 1, Failed: 2})
	if err == nil || err.Error() != "2 of 2 files failed" {
		t.Fatalf("unexpected failure message: %v", err)
	}
}

func TestCompressRejectsInvalidCRF(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg)

	if _, _, err := runCLI(t, []string{"compress", "--keep", "--crf", "60"}, "", path); err == nil {
		t.Fatal("expected crf 60 to be rejected")
	}
}

func TestHistoryListsCompressions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg)

	out, _, err := runCLI(t, []string{"history"}, "", path)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No compression history")

	store, err := ledger.OpenFromConfig(cfg)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	now := time.Now()
	_, err = store.RecordCompression(context.Background(), ledger.Compression{
		Source:      filepath.Join(cfg.Paths.OutputDir, "alice-20260101.ts"),
		Target:      filepath.Join(cfg.Paths.CompressedDir, "alice-20260101.mp4"),
		Status:      ledger.CompressionSucceeded,
		CRF:         28,
		Preset:      "medium",
		SourceBytes: 4096,
		TargetBytes: 1024,
		StartedAt:   now.Add(-time.Minute),
		FinishedAt:  now,
	})
	store.Close()
	if err != nil {
		t.Fatalf("RecordCompression: %v", err)
	}

	out, _, err = runCLI(t, []string{"history"}, "", path)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "alice-20260101.ts")
	requireContains(t, out, "succeeded")
	requireContains(t, out, "25%")
}

func TestPromptConfirmer(t *testing.T) {
	var out strings.Builder
	c := newPromptConfirmer(strings.NewReader("n\ny\na\n"), &out)
	ctx := context.Background()

	for i, want := range []bool{false, true, true, true} {
		got, err := c.ConfirmDelete(ctx, "file.ts")
		if err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("answer %d: got %v want %v", i, got, want)
		}
	}
	if n := strings.Count(out.String(), "Delete original"); n != 3 {
		t.Fatalf("expected 3 prompts before 'all', got %d", n)
	}
}
