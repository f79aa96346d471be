package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeChannels(); err != nil {
		return err
	}
	c.normalizeMonitor()
	c.normalizeCapture()
	c.normalizeCompression()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CompressedDir) == "" {
		c.Paths.CompressedDir = filepath.Join(c.Paths.OutputDir, "compressed")
	}
	if c.Paths.CompressedDir, err = expandPath(c.Paths.CompressedDir); err != nil {
		return fmt.Errorf("paths.compressed_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeChannels() error {
	watch := c.Channels.Watch
	if len(watch) == 0 {
		if value, ok := os.LookupEnv("VODWATCH_CHANNELS"); ok {
			watch = strings.Split(value, ",")
		}
	}
	normalized := make([]string, 0, len(watch))
	seen := make(map[string]struct{}, len(watch))
	for _, raw := range watch {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		name, err := NormalizeChannel(raw)
		if err != nil {
			return fmt.Errorf("channels.watch: %w", err)
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		normalized = append(normalized, name)
	}
	c.Channels.Watch = normalized
	return nil
}

func (c *Config) normalizeMonitor() {
	if c.Monitor.ProbeParallelism <= 0 {
		c.Monitor.ProbeParallelism = defaultProbeParallelism
	}
}

func (c *Config) normalizeCapture() {
	c.Capture.StreamlinkBinary = strings.TrimSpace(c.Capture.StreamlinkBinary)
	if c.Capture.StreamlinkBinary == "" {
		c.Capture.StreamlinkBinary = defaultStreamlinkBinary
	}
	c.Capture.URLTemplate = strings.TrimSpace(c.Capture.URLTemplate)
	if c.Capture.URLTemplate == "" {
		c.Capture.URLTemplate = defaultURLTemplate
	}
	c.Capture.Quality = strings.TrimSpace(c.Capture.Quality)
	if c.Capture.Quality == "" {
		c.Capture.Quality = defaultQuality
	}
	c.Capture.Extension = normalizeExtension(c.Capture.Extension, defaultCaptureExtension)
}

func (c *Config) normalizeCompression() {
	c.Compression.FFmpegBinary = strings.TrimSpace(c.Compression.FFmpegBinary)
	if c.Compression.FFmpegBinary == "" {
		c.Compression.FFmpegBinary = defaultFFmpegBinary
	}
	c.Compression.FFprobeBinary = strings.TrimSpace(c.Compression.FFprobeBinary)
	if c.Compression.FFprobeBinary == "" {
		c.Compression.FFprobeBinary = defaultFFprobeBinary
	}
	c.Compression.DefaultPreset = strings.ToLower(strings.TrimSpace(c.Compression.DefaultPreset))
	if c.Compression.DefaultPreset == "" {
		c.Compression.DefaultPreset = defaultPreset
	}
	c.Compression.SourceExtension = normalizeExtension(c.Compression.SourceExtension, c.Capture.Extension)
	c.Compression.TargetExtension = normalizeExtension(c.Compression.TargetExtension, defaultTargetExtension)
	c.Compression.DeleteMode = strings.ToLower(strings.TrimSpace(c.Compression.DeleteMode))
	if c.Compression.DeleteMode == "" {
		c.Compression.DeleteMode = defaultDeleteMode
	}
	if c.Compression.ProbeTimeout <= 0 {
		c.Compression.ProbeTimeout = defaultProbeTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeExtension(value, fallback string) string {
	value = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "."))
	if value == "" {
		return fallback
	}
	return value
}
