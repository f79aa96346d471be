// Package procrun launches the external tools vodwatch depends on
// (streamlink, ffmpeg, ffprobe).
//
// Run executes a bounded command and captures its output; a non-zero exit
// status is reported in Result, never as an error. Start spawns a long-running
// child in its own process group and returns a Handle that supports the
// two-phase interrupt-then-kill shutdown used by recordings and transcodes.
package procrun
