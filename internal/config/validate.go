package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateCompression(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.CompressedDir == "" {
		return errors.New("paths.compressed_dir must be set")
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if err := ensurePositiveMap(map[string]int{
		"monitor.check_interval_minutes": c.Monitor.CheckIntervalMinutes,
		"monitor.max_concurrent":         c.Monitor.MaxConcurrent,
		"monitor.stream_check_timeout":   c.Monitor.StreamCheckTimeout,
		"monitor.backoff_base_seconds":   c.Monitor.BackoffBaseSeconds,
		"monitor.stop_grace_seconds":     c.Monitor.StopGraceSeconds,
	}); err != nil {
		return err
	}
	if c.Monitor.StreamCheckRetries < 0 {
		return errors.New("monitor.stream_check_retries must not be negative")
	}
	if c.Monitor.PostStreamCooldownSeconds < 0 {
		return errors.New("monitor.post_stream_cooldown must not be negative")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if !strings.Contains(c.Capture.URLTemplate, "{channel}") {
		return errors.New("capture.url_template must contain {channel}")
	}
	return nil
}

func (c *Config) validateCompression() error {
	if err := ValidateCRF(c.Compression.DefaultCRF); err != nil {
		return fmt.Errorf("compression.default_crf: %w", err)
	}
	if err := ValidatePreset(c.Compression.DefaultPreset); err != nil {
		return fmt.Errorf("compression.default_preset: %w", err)
	}
	if c.Compression.ToleranceSeconds < 0 {
		return errors.New("compression.tolerance_seconds must not be negative")
	}
	switch c.Compression.DeleteMode {
	case DeleteYes, DeletePrompt, DeleteNo:
	default:
		return fmt.Errorf("compression.delete_mode must be one of %s, %s, %s", DeleteYes, DeletePrompt, DeleteNo)
	}
	if c.Compression.SourceExtension == c.Compression.TargetExtension {
		return errors.New("compression.source_extension and compression.target_extension must differ")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

// ValidateCRF checks that crf is within the libx265 quality range.
func ValidateCRF(crf int) error {
	if crf < 0 || crf > 51 {
		return fmt.Errorf("crf must be between 0 and 51, got %d", crf)
	}
	return nil
}

// ValidatePreset checks that preset is one of the libx265 presets.
func ValidatePreset(preset string) error {
	if !slices.Contains(Presets, preset) {
		return fmt.Errorf("preset %q must be one of %s", preset, strings.Join(Presets, ", "))
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
