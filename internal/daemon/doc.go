// Package daemon coordinates the long-running vodwatch monitor.
//
// It wires the status checker, the session manager, and the monitor loop into
// a single lifecycle with flock-based locking so only one monitor watches a
// state directory at a time. Admissions from the loop and from IPC callers go
// through one recording.Dispatcher. Outcomes of sessions finished during the
// run are kept in memory for status reporting.
//
// Stopping the monitor and stopping recordings are separate steps: StopMonitor
// ends probing while captures continue, StopRecordings asks every capture to
// end, and Stop releases the lock.
package daemon
