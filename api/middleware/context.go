package middleware

import "context"

type contextKey string

const (
	ctxSessionID contextKey = "session_id"
	ctxToken     contextKey = "auth_token"
	ctxRequestID contextKey = "request_id"
)

func stringFrom(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

// SessionIDFromContext returns the client session resolved by Session.
func SessionIDFromContext(ctx context.Context) string { return stringFrom(ctx, ctxSessionID) }

// TokenFromContext returns the bearer token forwarded by the client, if any.
func TokenFromContext(ctx context.Context) string { return stringFrom(ctx, ctxToken) }

func RequestIDFromContext(ctx context.Context) string { return stringFrom(ctx, ctxRequestID) }

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return withString(ctx, ctxSessionID, sessionID)
}

func WithToken(ctx context.Context, token string) context.Context {
	return withString(ctx, ctxToken, token)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, ctxRequestID, requestID)
}
