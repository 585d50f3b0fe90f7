package internal

import (
	"context"
	"time"
)

type ctxKey string

const (
	ContextAdminKey     ctxKey = "admin"
	ContextRequestIDKey ctxKey = "requestID"
)

// IsAdminContext reports whether the request passed the admin token guard.
func IsAdminContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	ok, _ := ctx.Value(ContextAdminKey).(bool)
	return ok
}

func ContextWithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextAdminKey, true)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(ContextRequestIDKey).(string); ok {
		return id
	}
	return ""
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextRequestIDKey, requestID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
