// Package logs reads the monitor's log files for `vodwatch logs`.
//
// The monitor writes one file per run and points vodwatch.log at the newest.
// Last prints the end of that file; Follow keeps reading as lines arrive and
// starts over when the pointer moves to a shorter file from a new run.
package logs
