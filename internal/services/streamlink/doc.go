// Package streamlink mediates access to the streamlink CLI used for live
// status probes and stream capture.
//
// Probe runs a single `streamlink --json` invocation and classifies the
// answer as live, offline, or a transient failure; retry policy belongs to
// the caller. CaptureCommand builds the long-running capture invocation that
// recording sessions start through procrun.
package streamlink
