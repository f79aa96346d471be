package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestStatusTextPadsLabel(t *testing.T) {
	got := statusText("Monitor", statusError, "not running")
	if !strings.HasPrefix(got, "  Monitor:") || !strings.HasSuffix(got, " [ERROR] not running") {
		t.Fatalf("unexpected status text %q", got)
	}
	if idx := strings.Index(got, "[ERROR]"); idx != 2+statusLabelWidth+1 {
		t.Fatalf("expected tag at column %d, got %d in %q", 2+statusLabelWidth+1, idx, got)
	}
	if got := statusText("Cycles", statusInfo, ""); !strings.HasSuffix(got, "[INFO]") {
		t.Fatalf("expected bare tag, got %q", got)
	}
}

func TestPrinterColorsOnlyWhenEnabled(t *testing.T) {
	var plain bytes.Buffer
	(&printer{out: &plain}).status("Monitor", statusOK, "running")
	if strings.Contains(plain.String(), "\x1b[") {
		t.Fatalf("expected no escape codes, got %q", plain.String())
	}

	var colored bytes.Buffer
	(&printer{out: &colored, color: true}).status("Monitor", statusOK, "running")
	if !strings.Contains(colored.String(), "\x1b[") || !strings.Contains(colored.String(), "[OK] running") {
		t.Fatalf("expected colored status, got %q", colored.String())
	}
}

func TestPrinterTablePadsShortRows(t *testing.T) {
	var buf bytes.Buffer
	(&printer{out: &buf}).table([]string{"Channel", "State", "File"}, [][]string{{"alice", "recording"}}, 1)
	out := buf.String()
	for _, want := range []string{"CHANNEL", "STATE", "alice", "recording"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table:\n%s", want, out)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := map[time.Duration]string{
		0:                  "0:00:00",
		-time.Second:       "0:00:00",
		59 * time.Second:   "0:00:59",
		3723 * time.Second: "1:02:03",
	}
	for in, want := range tests {
		if got := formatElapsed(in); got != want {
			t.Fatalf("formatElapsed(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		-1:                     "0 B",
		512:                    "512 B",
		1536:                   "1.5 KiB",
		3 * 1024 * 1024 * 1024: "3.0 GiB",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := formatTimestamp(time.Time{}); got != "-" {
		t.Fatalf("zero time rendered as %q", got)
	}
	recent := time.Now().Add(-2 * time.Minute)
	if got := formatTimestamp(recent); !strings.Contains(got, "ago") {
		t.Fatalf("expected relative hint for recent time, got %q", got)
	}
	old := time.Date(2020, 1, 2, 3, 4, 5, 0, time.Local)
	if got := formatTimestamp(old); got != "2020-01-02 03:04:05" {
		t.Fatalf("unexpected old timestamp %q", got)
	}
}
