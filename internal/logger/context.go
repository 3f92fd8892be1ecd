package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

// The request id travels in the context so service and repository layers can
// tag their lines without threading it through every signature.
const requestIDKey ctxKey = "request_id"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// FromCtx returns a child logger carrying the request id, or the global
// logger when the context has none (startup, background sweeps).
func FromCtx(ctx context.Context) *zap.Logger {
	reqID := RequestIDFrom(ctx)
	if reqID == "" {
		return L()
	}
	return L().With(zap.String("request_id", reqID))
}
