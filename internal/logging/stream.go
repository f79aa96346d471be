package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEvent is a log record as served to `vodwatch events` and `status`.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	Channel       string            `json:"channel,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	EventType     string            `json:"event_type,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// IsEvent reports whether the record was emitted through Event.
func (e LogEvent) IsEvent() bool {
	return e.EventType != ""
}

// StreamHub keeps the most recent log events of a running monitor in a ring
// and lets readers long-poll for newer ones.
type StreamHub struct {
	mu      sync.Mutex
	ring    []LogEvent
	start   int // index of the oldest event
	size    int
	lastSeq uint64
	changed chan struct{} // closed and replaced on every publish
}

// NewStreamHub returns a hub holding at most capacity events.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 512
	}
	return &StreamHub{ring: make([]LogEvent, capacity), changed: make(chan struct{})}
}

// Publish stamps evt with the next sequence number and stores it, evicting
// the oldest event when full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	h.mu.Lock()
	h.lastSeq++
	evt.Sequence = h.lastSeq
	if h.size < len(h.ring) {
		h.ring[(h.start+h.size)%len(h.ring)] = evt
		h.size++
	} else {
		h.ring[h.start] = evt
		h.start = (h.start + 1) % len(h.ring)
	}
	close(h.changed)
	h.changed = make(chan struct{})
	h.mu.Unlock()
}

// Fetch returns up to limit events newer than since together with the latest
// sequence number. With wait set it blocks until something newer arrives or
// ctx ends.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		h.mu.Lock()
		events := h.collectLocked(since, limit, false)
		last, changed := h.lastSeq, h.changed
		h.mu.Unlock()

		if len(events) > 0 || !wait {
			return events, last, ctx.Err()
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, last, ctx.Err()
		}
	}
}

// Tail returns the newest limit events without blocking.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.collectLocked(0, limit, true), h.lastSeq
}

// collectLocked copies retained events newer than since. fromEnd keeps the
// newest limit events instead of the oldest.
func (h *StreamHub) collectLocked(since uint64, limit int, fromEnd bool) []LogEvent {
	if limit <= 0 || limit > len(h.ring) {
		limit = len(h.ring)
	}
	var out []LogEvent
	for i := 0; i < h.size; i++ {
		evt := h.ring[(h.start+i)%len(h.ring)]
		if evt.Sequence > since {
			out = append(out, evt)
		}
	}
	if len(out) > limit {
		if fromEnd {
			out = out[len(out)-limit:]
		} else {
			out = out[:limit]
		}
	}
	return out
}

// hubHandler mirrors every record it handles into a StreamHub before passing
// it on.
type hubHandler struct {
	next   slog.Handler
	hub    *StreamHub
	preset []slog.Attr
	group  string
}

func withHub(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &hubHandler{next: next, hub: hub}
}

func (h *hubHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *hubHandler) Handle(ctx context.Context, r slog.Record) error {
	h.hub.Publish(toLogEvent(r, collectFields(h.preset, r, h.group)))
	return h.next.Handle(ctx, r)
}

func (h *hubHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	preset := make([]slog.Attr, 0, len(h.preset)+len(attrs))
	preset = append(preset, h.preset...)
	for _, a := range attrs {
		preset = append(preset, qualify(h.group, a))
	}
	return &hubHandler{next: h.next.WithAttrs(attrs), hub: h.hub, preset: preset, group: h.group}
}

func (h *hubHandler) WithGroup(name string) slog.Handler {
	return &hubHandler{next: h.next.WithGroup(name), hub: h.hub, preset: h.preset, group: joinKey(h.group, name)}
}

func toLogEvent(r slog.Record, f recordFields) LogEvent {
	evt := LogEvent{
		Timestamp:     r.Time,
		Level:         levelLabel(r.Level),
		Message:       strings.TrimSpace(r.Message),
		Component:     f.component,
		Channel:       f.channel,
		SessionID:     f.session,
		EventType:     f.event,
		CorrelationID: f.correlation,
	}
	if len(f.extra) > 0 {
		evt.Fields = make(map[string]string, len(f.extra))
		for _, x := range f.extra {
			evt.Fields[x.key] = valueText(x.value)
		}
	}
	return evt
}
