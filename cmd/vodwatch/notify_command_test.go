package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"vodwatch/internal/testsupport"
)

func TestTestNotifySendsToTopic(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Title") != "vodwatch - Test" {
			t.Errorf("unexpected title %q", r.Header.Get("Title"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg)

	out, _, err := runCLI(t, []string{"test-notify"}, "", path)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if calls.Load() != 1 {
		t.Fatalf("expected one request, got %d", calls.Load())
	}
}

func TestTestNotifyRequiresTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg)

	_, _, err := runCLI(t, []string{"test-notify"}, "", path)
	if err == nil || !strings.Contains(err.Error(), "ntfy_topic") {
		t.Fatalf("expected missing topic error, got %v", err)
	}
}
