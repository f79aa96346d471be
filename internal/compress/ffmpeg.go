package compress

import (
	"strconv"

	"vodwatch/internal/procrun"
)

// TranscodeCommand builds the ffmpeg invocation for one file. Only the first
// video stream and, when present, the first audio stream are mapped.
func TranscodeCommand(binary, source, target string, crf int, preset string, withAudio bool) procrun.Command {
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", source, "-map", "0:v:0"}
	if withAudio {
		args = append(args, "-map", "0:a:0")
	}
	args = append(args,
		"-c:v", "libx265",
		"-crf", strconv.Itoa(crf),
		"-preset", preset,
		"-c:a", "copy",
		"-movflags", "+faststart",
		"-tag:v", "hvc1",
		target,
	)
	return procrun.Command{Binary: binary, Args: args}
}
