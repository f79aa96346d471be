// Package logging assembles structured slog loggers and formatting helpers used
// across vodwatch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so recording code can tag log
// lines with channel names, session IDs, and correlation IDs. Records carrying
// an event_type field double as the event stream the CLI displays; StreamHub
// buffers them for clients attached to a running monitor.
package logging
