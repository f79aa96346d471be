// Package main hosts the vodwatch CLI entrypoint and command graph.
//
// The Cobra command tree covers three kinds of work: the foreground monitor
// (monitor), one-shot capture commands that run in this process (check,
// record, compress), and thin IPC clients that talk to a running monitor
// (status, sessions, stop, events). Configuration resolution, socket
// discovery, and logger setup live in commandContext so subcommands can focus
// on rendering.
package main
