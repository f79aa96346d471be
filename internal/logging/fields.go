package logging

import (
	"context"
	"log/slog"
	"time"

	"vodwatch/internal/services"
)

// Keys with a fixed meaning across vodwatch. The console handler and the
// stream hub lift them out of the generic attribute list.
const (
	FieldComponent     = "component"
	FieldChannel       = "channel"
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	// FieldEventType marks a record as a domain event rather than diagnostics.
	FieldEventType     = "event_type"
	// FieldErrorHint is the next step an operator should take.
	FieldErrorHint     = "error_hint"
	// FieldImpact describes what the user loses when a warning fires.
	FieldImpact        = "impact"
)

const (
	defaultHint   = "check logs for details"
	defaultImpact = "operation completed with warnings"
)

type Attr = slog.Attr

func Any(key string, value any) Attr                { return slog.Any(key, value) }
func Bool(key string, value bool) Attr              { return slog.Bool(key, value) }
func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }
func Float64(key string, value float64) Attr        { return slog.Float64(key, value) }
func Int(key string, value int) Attr                { return slog.Int(key, value) }
func Int64(key string, value int64) Attr            { return slog.Int64(key, value) }
func String(key string, value string) Attr          { return slog.String(key, value) }
func Time(key string, value time.Time) Attr         { return slog.Time(key, value) }

// Error wraps err under the "error" key. A nil error renders as "<nil>".
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attrs to the variadic form slog's level methods accept.
func Args(attrs ...Attr) []any {
	out := make([]any, len(attrs))
	for i := range attrs {
		out[i] = attrs[i]
	}
	return out
}

// NewNop returns a logger that drops everything.
func NewNop() *slog.Logger {
	return slog.New(discardHandler{})
}

// NewComponentLogger scopes logger to a vodwatch subsystem. A nil logger
// yields a no-op one.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// WithContext attaches the channel, session, and request identifiers carried
// by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	if channel, ok := services.ChannelFromContext(ctx); ok {
		args = append(args, String(FieldChannel, channel))
	}
	if id, ok := services.SessionIDFromContext(ctx); ok {
		args = append(args, String(FieldSessionID, id))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		args = append(args, String(FieldCorrelationID, rid))
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}

// Event records a domain event at info level.
func Event(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	emit(logger, slog.LevelInfo, msg, eventType, attrs)
}

// WarnWithContext records a warning. Missing error_hint and impact fields get
// generic defaults so every warning tells the operator something actionable.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	emit(logger, slog.LevelWarn, msg, eventType, attrs,
		String(FieldErrorHint, defaultHint),
		String(FieldImpact, defaultImpact))
}

// ErrorWithContext records an error with an error_hint default.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	emit(logger, slog.LevelError, msg, eventType, attrs,
		String(FieldErrorHint, defaultHint))
}

func emit(logger *slog.Logger, level slog.Level, msg, eventType string, attrs []Attr, defaults ...Attr) {
	if logger == nil {
		return
	}
	present := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		present[a.Key] = true
	}
	if !present[FieldEventType] {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	for _, d := range defaults {
		if !present[d.Key] {
			attrs = append(attrs, d)
		}
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
