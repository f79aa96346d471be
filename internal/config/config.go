package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir     string `toml:"output_dir"`
	CompressedDir string `toml:"compressed_dir"`
	LogDir        string `toml:"log_dir"`
	StateDir      string `toml:"state_dir"`
}

// Channels holds the ordered watch list.
type Channels struct {
	Watch []string `toml:"watch"`
}

// Monitor contains status probing and session admission settings.
type Monitor struct {
	CheckIntervalMinutes      int `toml:"check_interval_minutes"`
	MaxConcurrent             int `toml:"max_concurrent"`
	StreamCheckTimeout        int `toml:"stream_check_timeout"`
	StreamCheckRetries        int `toml:"stream_check_retries"`
	BackoffBaseSeconds        int `toml:"backoff_base_seconds"`
	PostStreamCooldownSeconds int `toml:"post_stream_cooldown"`
	StopGraceSeconds          int `toml:"stop_grace_seconds"`
	ProbeParallelism          int `toml:"probe_parallelism"`
}

// Capture configures the streamlink invocation.
type Capture struct {
	StreamlinkBinary string   `toml:"streamlink_binary"`
	URLTemplate      string   `toml:"url_template"`
	Quality          string   `toml:"quality"`
	Extension        string   `toml:"extension"`
	ExtraArgs        []string `toml:"extra_args"`
}

// Compression configures the re-encode and verification pipeline.
type Compression struct {
	FFmpegBinary     string  `toml:"ffmpeg_binary"`
	FFprobeBinary    string  `toml:"ffprobe_binary"`
	DefaultCRF       int     `toml:"default_crf"`
	DefaultPreset    string  `toml:"default_preset"`
	ToleranceSeconds float64 `toml:"tolerance_seconds"`
	AllowVideoOnly   bool    `toml:"allow_video_only"`
	SourceExtension  string  `toml:"source_extension"`
	TargetExtension  string  `toml:"target_extension"`
	DeleteMode       string  `toml:"delete_mode"`
	ProbeTimeout     int     `toml:"probe_timeout"`
}

// Notifications configures ntfy delivery. An empty topic disables it.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vodwatch.
//
// Configuration sections by subsystem:
//   - Paths: recording, compressed output, log, and state directories
//   - Channels: the watch list
//   - Monitor: probe timeouts, retries, intervals, and the session cap
//   - Capture: streamlink binary, URL template, and quality
//   - Compression: ffmpeg/ffprobe settings, CRF/preset defaults, verification tolerance
//   - Notifications: optional ntfy topic
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Channels      Channels      `toml:"channels"`
	Monitor       Monitor       `toml:"monitor"`
	Capture       Capture       `toml:"capture"`
	Compression   Compression   `toml:"compression"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vodwatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// Save writes the configuration to path as TOML, replacing any existing file.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories the monitor and compressor write into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.CompressedDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CheckInterval returns the delay between monitor cycles.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Monitor.CheckIntervalMinutes) * time.Minute
}

// StreamCheckTimeout returns the per-attempt probe timeout.
func (c *Config) StreamCheckTimeout() time.Duration {
	return time.Duration(c.Monitor.StreamCheckTimeout) * time.Second
}

// BackoffBase returns the delay before the first probe retry.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Monitor.BackoffBaseSeconds) * time.Second
}

// PostStreamCooldown returns how long a channel is left alone after its recording ends.
func (c *Config) PostStreamCooldown() time.Duration {
	return time.Duration(c.Monitor.PostStreamCooldownSeconds) * time.Second
}

// StopGrace returns how long a stopping capture process gets before it is killed.
func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.Monitor.StopGraceSeconds) * time.Second
}

// NotifyTimeout bounds a single ntfy request.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// ProbeTimeout returns the ffprobe timeout used during verification.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Compression.ProbeTimeout) * time.Second
}

// Tolerance returns the accepted duration drift between source and compressed file.
func (c *Config) Tolerance() time.Duration {
	return time.Duration(c.Compression.ToleranceSeconds * float64(time.Second))
}

// SocketPath returns the IPC socket used by a running monitor.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "vodwatch.sock")
}

// LockPath returns the monitor single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "vodwatch.lock")
}

// LedgerPath returns the SQLite database recording compression outcomes.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
