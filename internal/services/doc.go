// Package services defines shared utilities consumed by the recording and
// compression components and their external tool clients.
//
// Key responsibilities:
//   - Context helpers that stamp channel names, session IDs, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is regardless of how much context was added.
//
// Tool-specific clients live in subpackages (streamlink).
package services
