package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// TraceIDContextKey carries the run id through a walk. Log records and
// websocket messages expose it as trace_id.
const TraceIDContextKey contextKey = "trace_id"

// GenerateRunID returns a new random run id
func GenerateRunID() string {
	return uuid.New().String()
}

// WithTraceID returns ctx carrying traceID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// GetTraceID returns the trace id in ctx, or "" if there is none
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(TraceIDContextKey).(string)
	return id
}

// EnsureTraceID returns ctx unchanged if it has a trace id, otherwise a copy
// carrying a fresh run id
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, GenerateRunID())
}
