package context

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorIDKey
	clientIPKey
	userAgentKey
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

func WithActorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, actorIDKey, id)
}

func ActorIDFromContext(ctx context.Context) string {
	return stringValue(ctx, actorIDKey)
}

func WithClient(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, ip)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

// ClientFromContext returns the caller IP address and user agent.
func ClientFromContext(ctx context.Context) (string, string) {
	return stringValue(ctx, clientIPKey), stringValue(ctx, userAgentKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
