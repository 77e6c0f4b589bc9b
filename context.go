package sessionkit

import "context"

type actorContextKey struct{}
type clientIPContextKey struct{}

// WithActor attaches the identity performing an operation to ctx. The Manager
// stamps it onto audit events so removals and resets are attributable.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// WithClientIP attaches the caller's IP address to ctx for audit logging.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func actorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
