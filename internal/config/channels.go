package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

var channelFolder = cases.Fold()

// NormalizeChannel case-folds a channel name and rejects names the capture
// URL template cannot carry.
func NormalizeChannel(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	trimmed = strings.TrimPrefix(trimmed, "@")
	if trimmed == "" {
		return "", fmt.Errorf("channel name must not be empty")
	}
	folded := channelFolder.String(trimmed)
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return "", fmt.Errorf("channel %q: invalid character %q", name, r)
		}
	}
	return folded, nil
}

// AddChannel appends name to the watch list. It reports false when the
// channel is already watched.
func (c *Config) AddChannel(name string) (bool, error) {
	normalized, err := NormalizeChannel(name)
	if err != nil {
		return false, err
	}
	if c.Watches(normalized) {
		return false, nil
	}
	c.Channels.Watch = append(c.Channels.Watch, normalized)
	return true, nil
}

// RemoveChannel drops name from the watch list. It reports false when the
// channel was not watched.
func (c *Config) RemoveChannel(name string) (bool, error) {
	normalized, err := NormalizeChannel(name)
	if err != nil {
		return false, err
	}
	out := c.Channels.Watch[:0]
	removed := false
	for _, existing := range c.Channels.Watch {
		if existing == normalized {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	c.Channels.Watch = out
	return removed, nil
}

// Watches reports whether the normalized channel name is on the watch list.
func (c *Config) Watches(channel string) bool {
	for _, existing := range c.Channels.Watch {
		if existing == channel {
			return true
		}
	}
	return false
}

// ChannelURL expands the capture URL template for channel.
func (c *Config) ChannelURL(channel string) string {
	return strings.ReplaceAll(c.Capture.URLTemplate, "{channel}", channel)
}
