package context

import "context"

type contextKey string

const (
	requestIDKey     contextKey = "observability_request_id"
	triggerSourceKey contextKey = "observability_trigger_source"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithTriggerSource(ctx context.Context, source string) context.Context {
	if ctx == nil || source == "" {
		return ctx
	}
	return context.WithValue(ctx, triggerSourceKey, source)
}

func TriggerSourceFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(triggerSourceKey).(string)
	return value
}
