// Package verify checks a compressed output against its source recording.
//
// Verify produces a Report listing every failed check by Reason; a report
// passes only when the target exists with a nonzero size, both containers
// probe cleanly, the expected streams are present with accepted codecs, and
// the durations agree within the tolerance. QuickCheck is the lighter test
// used to decide whether an existing output can be skipped.
package verify
