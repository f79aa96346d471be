package ipc

import (
	"time"

	"vodwatch/internal/daemon"
	"vodwatch/internal/logging"
	"vodwatch/internal/monitor"
	"vodwatch/internal/recording"
)

// Session mirrors recording.SessionInfo on the wire.
type Session = recording.SessionInfo

// ChannelState mirrors the monitor's per-channel view.
type ChannelState = monitor.ChannelState

// Outcome is a session finished during the current run.
type Outcome = daemon.OutcomeSummary

// Error codes carried in responses so callers can classify refusals.
const (
	CodeAlreadyActive = "already_active"
	CodeAtCapacity    = "at_capacity"
	CodeNotFound      = "not_found"
	CodeFailed        = "failed"
)

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents the monitor's runtime state.
type StatusResponse struct {
	Running       bool           `json:"running"`
	Monitoring    bool           `json:"monitoring"`
	PID           int            `json:"pid"`
	RunID         string         `json:"run_id"`
	StartedAt     time.Time      `json:"started_at"`
	Cycles        int            `json:"cycles"`
	MaxConcurrent int            `json:"max_concurrent"`
	Channels      []ChannelState `json:"channels"`
	Sessions      []Session      `json:"sessions"`
	Recent        []Outcome      `json:"recent"`
	LockPath      string         `json:"lock_path"`
	LedgerPath    string         `json:"ledger_path"`
}

// SessionsRequest lists active recordings.
type SessionsRequest struct{}

// SessionsResponse contains active recordings ordered by start time.
type SessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

// RecordRequest asks the monitor to start recording a channel now.
type RecordRequest struct {
	Channel string `json:"channel"`
}

// RecordResponse reports the admission result.
type RecordResponse struct {
	Admitted bool    `json:"admitted"`
	Session  Session `json:"session"`
	Code     string  `json:"code,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// StopRecordingRequest stops one channel's recording.
type StopRecordingRequest struct {
	Channel string `json:"channel"`
}

// StopRecordingResponse reports whether a stop was requested.
type StopRecordingResponse struct {
	Stopped bool   `json:"stopped"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// StopAllRequest stops every active recording.
type StopAllRequest struct{}

// StopAllResponse counts the sessions asked to stop.
type StopAllResponse struct {
	Requested int `json:"requested"`
}

// EventsRequest fetches events after a sequence number.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse returns buffered events and the next cursor.
type EventsResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}
