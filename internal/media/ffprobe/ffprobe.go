package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vodwatch/internal/procrun"
	"vodwatch/internal/services"
)

// Kind is a stream's codec_type.
type Kind string

const (
	Video Kind = "video"
	Audio Kind = "audio"
)

// Number is one of ffprobe's string-encoded numeric fields, such as
// "3600.021000" or "N/A".
type Number string

// Float parses n. Absent values ("" or "N/A") yield 0 and true; anything
// else that is not a number yields false.
func (n Number) Float() (float64, bool) {
	s := strings.TrimSpace(string(n))
	if s == "" || s == "N/A" {
		return 0, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Result is the subset of `ffprobe -show_format -show_streams` output
// vodwatch inspects.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType Kind   `json:"codec_type"`
	Duration  Number `json:"duration"`
	Frames    Number `json:"nb_frames"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

type Format struct {
	FormatName string `json:"format_name"`
	Duration   Number `json:"duration"`
	Size       Number `json:"size"`
}

// Count returns how many streams are of kind.
func (r Result) Count(kind Kind) int {
	n := 0
	for _, s := range r.Streams {
		if s.CodecType == kind {
			n++
		}
	}
	return n
}

// First returns the lowest-index stream of kind.
func (r Result) First(kind Kind) (Stream, bool) {
	for _, s := range r.Streams {
		if s.CodecType == kind {
			return s, true
		}
	}
	return Stream{}, false
}

// Duration returns the container duration in seconds, or the longest stream
// duration when the container omits it. ok is false when ffprobe reported a
// value that does not parse.
func (r Result) Duration() (seconds float64, ok bool) {
	if strings.TrimSpace(string(r.Format.Duration)) != "" {
		return r.Format.Duration.Float()
	}
	for _, s := range r.Streams {
		if d, valid := s.Duration.Float(); valid && d > seconds {
			seconds = d
		}
	}
	return seconds, true
}

// Inspector reads container metadata from a media file.
type Inspector interface {
	Inspect(ctx context.Context, path string) (Result, error)
}

// Prober runs the ffprobe binary through a procrun.Executor.
type Prober struct {
	binary  string
	timeout time.Duration
	exec    procrun.Executor
}

// New returns a Prober for binary ("ffprobe" when blank). A zero timeout
// leaves probes unbounded.
func New(binary string, timeout time.Duration, exec procrun.Executor) *Prober {
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	if exec == nil {
		exec = procrun.New()
	}
	return &Prober{binary: binary, timeout: timeout, exec: exec}
}

// Inspect probes path. Spawn failures and non-zero exits wrap
// services.ErrExternalTool, deadlines wrap services.ErrTimeout, and
// undecodable output wraps services.ErrValidation.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	if path = strings.TrimSpace(path); path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	res, err := p.exec.Run(ctx, procrun.Command{
		Binary:  p.binary,
		Args:    []string{"-v", "error", "-hide_banner", "-of", "json", "-show_format", "-show_streams", "--", path},
		Timeout: p.timeout,
	})
	switch {
	case err != nil:
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect", path, err)
	case res.TimedOut:
		return Result{}, services.Wrap(services.ErrTimeout, "ffprobe", "inspect",
			fmt.Sprintf("%s: no answer within %s", path, p.timeout), nil)
	case !res.Success():
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect",
			fmt.Sprintf("%s: exit %d: %s", path, res.ExitCode, strings.TrimSpace(res.Stderr)), nil)
	}
	var out Result
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "ffprobe", "decode", path, err)
	}
	return out, nil
}
