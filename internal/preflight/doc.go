// Package preflight provides readiness checks for the external binaries and
// filesystem paths vodwatch depends on.
//
// The doctor command renders RunAll as a table, and the monitor logs the
// dependency half at startup. MonitorRunning probes the single-instance lock
// without holding it, so commands can tell whether a monitor is up before
// dialing its socket.
package preflight
