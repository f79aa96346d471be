package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"vodwatch/internal/config"
)

// Tool is an external program vodwatch shells out to.
type Tool struct {
	Name    string
	Command string
	Purpose string
}

// Status is the outcome of resolving a Tool or probing an ffmpeg feature.
type Status struct {
	Name      string
	Command   string // resolved path when available, configured value otherwise
	Purpose   string
	Available bool
	Detail    string
}

// Requirements lists the tools cfg points at, in the order doctor prints them.
func Requirements(cfg *config.Config) []Tool {
	if cfg == nil {
		return nil
	}
	return []Tool{
		{"streamlink", cfg.Capture.StreamlinkBinary, "live status probes and stream capture"},
		{"ffmpeg", cfg.Compression.FFmpegBinary, "HEVC re-encoding of captured files"},
		{"ffprobe", cfg.Compression.FFprobeBinary, "media inspection and verification"},
	}
}

// Resolve looks tool up on PATH. Absolute and relative paths are checked
// as given.
func Resolve(tool Tool) Status {
	st := Status{Name: tool.Name, Command: strings.TrimSpace(tool.Command), Purpose: tool.Purpose}
	if st.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(st.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("binary %q not found", st.Command)
		return st
	}
	st.Command, st.Available = path, true
	return st
}

// CheckBinaries resolves every tool.
func CheckBinaries(tools []Tool) []Status {
	out := make([]Status, len(tools))
	for i, tool := range tools {
		out[i] = Resolve(tool)
	}
	return out
}
