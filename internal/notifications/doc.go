// Package notifications pushes recording and compression milestones to ntfy.
//
// NewService returns a no-op when no topic is configured, so callers publish
// unconditionally. Only events with a message template are delivered; the
// rest are dropped without error.
package notifications
