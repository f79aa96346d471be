// Package compress converts finished recordings to HEVC with ffmpeg, verifies
// each output against its source, and optionally removes the originals.
//
// Files are processed one at a time in discovery order. A source whose
// target already passes verify.QuickCheck is skipped, so interrupted runs can
// be resumed. Cancelling the context stops the in-flight ffmpeg, removes its
// partial output, and returns the summary gathered so far alongside
// context.Canceled.
//
// Deletion of an original only happens after its output passed every
// verification check, and then only when the delete mode allows it.
package compress
