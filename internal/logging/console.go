package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const shortIDLen = 8

// consoleHandler writes one human-oriented line per record:
//
//	2026-01-02 15:04:05 INFO  recording alice#3f9c2b1a: capture started [recording_started] pid=12
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	preset    []slog.Attr
	group     string
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	fields := collectFields(h.preset, r, h.group)

	var b strings.Builder
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(ts.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, " %-5s ", levelLabel(r.Level))

	if scope := fields.scope(); scope != "" {
		b.WriteString(scope)
		b.WriteString(": ")
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(msg)
	if fields.event != "" {
		b.WriteString(" [")
		b.WriteString(fields.event)
		b.WriteByte(']')
	}
	if h.addSource && r.PC != 0 {
		if src := r.Source(); src != nil {
			fmt.Fprintf(&b, " (%s:%d)", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range fields.extra {
		b.WriteByte(' ')
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(quoteIfNeeded(valueText(f.value)))
	}
	if h.addSource && fields.correlation != "" {
		b.WriteString(" req=")
		b.WriteString(shortID(fields.correlation))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.preset = make([]slog.Attr, 0, len(h.preset)+len(attrs))
	next.preset = append(next.preset, h.preset...)
	for _, a := range attrs {
		next.preset = append(next.preset, qualify(h.group, a))
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = joinKey(h.group, name)
	return &next
}

// recordFields is a record's attributes with the well-known keys lifted out.
// Later values win, so call-site attributes override logger presets.
type recordFields struct {
	component   string
	channel     string
	session     string
	event       string
	correlation string
	extra       []field
}

type field struct {
	key   string
	value slog.Value
}

func collectFields(preset []slog.Attr, r slog.Record, group string) recordFields {
	var f recordFields
	for _, a := range preset {
		f.add("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		f.add(group, a)
		return true
	})
	return f
}

func (f *recordFields) add(prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return
	}
	key := joinKey(prefix, a.Key)
	if v.Kind() == slog.KindGroup {
		for _, member := range v.Group() {
			f.add(key, member)
		}
		return
	}
	switch key {
	case FieldComponent:
		f.component = valueText(v)
	case FieldChannel:
		f.channel = valueText(v)
	case FieldSessionID:
		f.session = valueText(v)
	case FieldEventType:
		f.event = valueText(v)
	case FieldCorrelationID:
		f.correlation = valueText(v)
	default:
		for i := range f.extra {
			if f.extra[i].key == key {
				f.extra[i].value = v
				return
			}
		}
		f.extra = append(f.extra, field{key: key, value: v})
	}
}

// scope renders "component channel#session" with empty parts dropped.
func (f recordFields) scope() string {
	target := f.channel
	if f.session != "" {
		target += "#" + shortID(f.session)
	}
	switch {
	case f.component == "":
		return target
	case target == "":
		return f.component
	default:
		return f.component + " " + target
	}
}

func qualify(group string, a slog.Attr) slog.Attr {
	if group == "" {
		return a
	}
	return slog.Attr{Key: joinKey(group, a.Key), Value: a.Value}
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// valueText renders v without quoting.
func valueText(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return x.Error()
		case []string:
			return strings.Join(x, ",")
		default:
			return fmt.Sprint(x)
		}
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " =\"\t\n\r") {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
