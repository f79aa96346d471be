package deps

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"vodwatch/internal/procrun"
)

// HEVCEncoder is the ffmpeg encoder the compression pipeline uses.
const HEVCEncoder = "libx265"

// CheckEncoder reports whether ffmpeg was built with encoder.
func CheckEncoder(ctx context.Context, exec procrun.Executor, ffmpeg, encoder string) Status {
	status := Status{Name: encoder, Command: ffmpeg, Purpose: "ffmpeg encoder used for compression"}
	res, err := exec.Run(ctx, procrun.Command{Binary: ffmpeg, Args: []string{"-hide_banner", "-encoders"}, Timeout: 10 * time.Second})
	if err != nil {
		status.Detail = fmt.Sprintf("run %s: %v", ffmpeg, err)
		return status
	}
	if !res.Success() {
		status.Detail = fmt.Sprintf("%s -encoders exited with code %d", ffmpeg, res.ExitCode)
		return status
	}
	if hasEncoder(res.Stdout, encoder) {
		status.Available = true
		return status
	}
	status.Detail = fmt.Sprintf("ffmpeg lacks the %s encoder", encoder)
	return status
}

// hasEncoder scans `ffmpeg -encoders` output, whose rows look like
// " V....D libx265              libx265 H.265 / HEVC".
func hasEncoder(output, encoder string) bool {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == encoder {
			return true
		}
	}
	return false
}
