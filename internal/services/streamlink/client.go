package streamlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vodwatch/internal/procrun"
	"vodwatch/internal/services"
)

// FailureKind classifies a probe that produced no usable answer.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureExitCode  FailureKind = "exit_code"
	FailureMalformed FailureKind = "malformed_output"
	FailureSpawn     FailureKind = "spawn"
)

// ProbeError describes a failed probe attempt.
type ProbeError struct {
	Kind     FailureKind
	ExitCode int
	Detail   string
	Err      error
}

func (e *ProbeError) Error() string {
	msg := fmt.Sprintf("streamlink probe %s", e.Kind)
	if e.Kind == FailureExitCode {
		msg = fmt.Sprintf("%s %d", msg, e.ExitCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProbeError) Unwrap() []error {
	marker := services.ErrTransient
	if e.Kind == FailureTimeout {
		marker = services.ErrTimeout
	}
	if e.Err != nil {
		return []error{marker, e.Err}
	}
	return []error{marker}
}

// Prober answers single live-status questions.
type Prober interface {
	Probe(ctx context.Context, channel string) (bool, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec procrun.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithURLTemplate overrides the channel URL template; {channel} is replaced
// by the channel name.
func WithURLTemplate(template string) Option {
	return func(c *Client) {
		if strings.TrimSpace(template) != "" {
			c.urlTemplate = template
		}
	}
}

// WithQuality sets the stream quality requested for captures.
func WithQuality(quality string) Option {
	return func(c *Client) {
		if strings.TrimSpace(quality) != "" {
			c.quality = quality
		}
	}
}

// WithExtraArgs appends arguments to every capture invocation.
func WithExtraArgs(args []string) Option {
	return func(c *Client) {
		c.extraArgs = append([]string(nil), args...)
	}
}

// Client wraps streamlink CLI interactions.
type Client struct {
	binary       string
	urlTemplate  string
	quality      string
	extraArgs    []string
	probeTimeout time.Duration
	exec         procrun.Executor
}

// New constructs a streamlink client.
func New(binary string, probeTimeout time.Duration, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("streamlink binary required")
	}
	client := &Client{
		binary:       binary,
		urlTemplate:  "https://twitch.tv/{channel}",
		quality:      "best",
		probeTimeout: probeTimeout,
		exec:         procrun.New(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// URL expands the URL template for channel.
func (c *Client) URL(channel string) string {
	return strings.ReplaceAll(c.urlTemplate, "{channel}", channel)
}

type probeOutput struct {
	Streams map[string]json.RawMessage `json:"streams"`
	Error   string                     `json:"error"`
}

// Probe asks streamlink whether channel is live. An explicit "no streams"
// answer is reported as offline; anything without a usable answer is
// returned as a *ProbeError.
func (c *Client) Probe(ctx context.Context, channel string) (bool, error) {
	res, err := c.exec.Run(ctx, procrun.Command{
		Binary:  c.binary,
		Args:    []string{"--json", c.URL(channel)},
		Timeout: c.probeTimeout,
	})
	if err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		return false, &ProbeError{Kind: FailureSpawn, Err: err}
	}
	if res.TimedOut {
		return false, &ProbeError{Kind: FailureTimeout, Detail: fmt.Sprintf("no answer within %s", c.probeTimeout)}
	}

	var out probeOutput
	decodeErr := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &out)
	switch {
	case decodeErr == nil && len(out.Streams) > 0:
		return res.ExitCode == 0, exitFailure(res)
	case decodeErr == nil && (out.Error != "" || res.ExitCode == 0):
		return false, nil
	case res.ExitCode != 0:
		return false, exitFailure(res)
	default:
		return false, &ProbeError{Kind: FailureMalformed, Err: decodeErr}
	}
}

func exitFailure(res procrun.Result) error {
	if res.ExitCode == 0 {
		return nil
	}
	return &ProbeError{Kind: FailureExitCode, ExitCode: res.ExitCode, Detail: lastLine(res.Stderr)}
}

// CaptureCommand builds the streamlink invocation that records channel to outputPath.
func (c *Client) CaptureCommand(channel, outputPath string) procrun.Command {
	args := make([]string, 0, len(c.extraArgs)+4)
	args = append(args, c.extraArgs...)
	args = append(args, c.URL(channel), c.quality, "-o", outputPath)
	return procrun.Command{Binary: c.binary, Args: args}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	return strings.TrimSpace(s)
}
