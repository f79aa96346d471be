package testsupport

import (
	"context"
	"sync"

	"vodwatch/internal/procrun"
	"vodwatch/internal/status"
)

// StaticChecker reports a fixed live set.
type StaticChecker struct {
	mu   sync.Mutex
	live map[string]bool
}

// NewStaticChecker returns a checker that reports the named channels live.
func NewStaticChecker(live ...string) *StaticChecker {
	c := &StaticChecker{live: map[string]bool{}}
	for _, ch := range live {
		c.live[ch] = true
	}
	return c
}

// SetLive changes channel's reported status.
func (c *StaticChecker) SetLive(channel string, live bool) {
	c.mu.Lock()
	c.live[channel] = live
	c.mu.Unlock()
}

// Check implements the monitor checker.
func (c *StaticChecker) Check(_ context.Context, channel string) status.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return status.Result{Channel: channel, Live: c.live[channel], Attempts: 1}
}

// CaptureStub builds streamlink-shaped commands without a real client.
type CaptureStub struct{}

// CaptureCommand implements recording.CaptureBuilder.
func (CaptureStub) CaptureCommand(channel, outputPath string) procrun.Command {
	return procrun.Command{Binary: "streamlink", Args: []string{channel, "best", "-o", outputPath}}
}
