// Package recording owns capture sessions and the admission rules around them.
//
// A Session drives one streamlink capture process through
// Starting → Recording → Completed | Failed | Stopped and removes itself from
// the Manager's registry when it reaches a terminal state. The Manager
// enforces the concurrency cap and the one-session-per-channel rule under a
// single mutex. Dispatcher serializes admit/stop/list requests arriving from
// the monitor loop and IPC clients over a command channel.
package recording
