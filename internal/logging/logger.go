package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vodwatch/internal/config"
)

// Options controls how New builds a logger.
type Options struct {
	// Level is debug, info, warn, or error. Empty means info.
	Level string
	// Format is "console" (default) or "json".
	Format string
	// Outputs lists "stdout", "stderr", or file paths. Empty means stderr.
	Outputs []string
	// AddSource forces caller locations. Debug level always includes them.
	AddSource bool
	// Hub, when set, receives a copy of every record.
	Hub *StreamHub
}

// New builds a logger writing to every output in opts.
func New(opts Options) (*slog.Logger, error) {
	var level slog.Level
	if name := strings.TrimSpace(opts.Level); name != "" {
		if err := level.UnmarshalText([]byte(name)); err != nil {
			return nil, fmt.Errorf("log level: unsupported value %q", opts.Level)
		}
	}
	w, err := openOutputs(opts.Outputs)
	if err != nil {
		return nil, err
	}
	addSource := opts.AddSource || level <= slog.LevelDebug

	var handler slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		handler = newConsoleHandler(w, level, addSource)
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			AddSource:   addSource,
			ReplaceAttr: jsonKeys,
		})
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	return slog.New(withHub(handler, opts.Hub)), nil
}

// NewFromConfig builds a logger from the [logging] section. level overrides
// the configured level when non-empty. logFile, when set, is appended to
// inside paths.log_dir in addition to stderr.
func NewFromConfig(cfg *config.Config, level, logFile string, hub *StreamHub) (*slog.Logger, error) {
	opts := Options{Level: level, Outputs: []string{"stderr"}, Hub: hub}
	if cfg == nil {
		return New(opts)
	}
	if opts.Level == "" {
		opts.Level = cfg.Logging.Level
	}
	opts.Format = cfg.Logging.Format
	if logFile != "" && cfg.Paths.LogDir != "" {
		opts.Outputs = append(opts.Outputs, filepath.Join(cfg.Paths.LogDir, logFile))
	}
	return New(opts)
}

func openOutputs(outputs []string) (io.Writer, error) {
	if len(outputs) == 0 {
		return os.Stderr, nil
	}
	seen := make(map[string]bool, len(outputs))
	var writers []io.Writer
	for _, out := range outputs {
		out = strings.TrimSpace(out)
		if out == "" || seen[out] {
			continue
		}
		seen[out] = true
		switch out {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			f, err := openLogFile(out)
			if err != nil {
				return nil, err
			}
			writers = append(writers, f)
		}
	}
	switch len(writers) {
	case 0:
		return nil, errors.New("log outputs: no usable destination")
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

// jsonKeys shortens slog's built-in keys and renders times in UTC.
func jsonKeys(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
		if a.Value.Kind() == slog.KindTime {
			a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
	case slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
			a.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return a
}
