package services

import "context"

type contextKey string

const (
	jobFileKey   contextKey = "job_file"
	passIDKey    contextKey = "pass_id"
	requestIDKey contextKey = "request_id"
)

// WithJobFile annotates context with the media filename being processed.
func WithJobFile(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, jobFileKey, name)
}

// JobFileFromContext returns the media filename if present.
func JobFileFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobFileKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPassID annotates context with the identifier of the current cycle pass.
func WithPassID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, passIDKey, id)
}

// PassIDFromContext returns the cycle pass identifier if present.
func PassIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(passIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
