// Package ipc exposes a running monitor over JSON-RPC on a Unix socket and
// ships the matching client used by the CLI.
//
// The server wraps the daemon; every request gets a correlation ID so its log
// lines can be traced. Admission refusals travel as response codes and the
// client turns them back into the recording package sentinels, so callers can
// use errors.Is on either side of the socket.
package ipc
