// Package monitor runs the periodic watch cycle: probe every watched channel
// in parallel, start recordings on offline-to-live edges, then sleep until the
// next cycle.
//
// Channels that already own a session are not probed. When a session ends the
// channel becomes eligible again after a short cooldown so a stream that is
// still live (or restarted) is picked up on a later cycle. Cancelling the
// loop's context stops scheduling once outstanding probes return; recordings
// that are already running are left alone.
package monitor
