package services

import "context"

type ctxKey int

const (
	channelKey ctxKey = iota
	sessionIDKey
	requestIDKey
)

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func value(ctx context.Context, key ctxKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}

// WithChannel tags ctx with the channel a unit of work belongs to. Empty
// names leave ctx unchanged.
func WithChannel(ctx context.Context, channel string) context.Context {
	return withValue(ctx, channelKey, channel)
}

func ChannelFromContext(ctx context.Context) (string, bool) { return value(ctx, channelKey) }

// WithSessionID tags ctx with a recording session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	return withValue(ctx, sessionIDKey, id)
}

func SessionIDFromContext(ctx context.Context) (string, bool) { return value(ctx, sessionIDKey) }

// WithRequestID tags ctx with the correlation ID of an IPC request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return value(ctx, requestIDKey) }
