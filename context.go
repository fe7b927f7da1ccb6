package twogate

import "context"

type clientIPContextKey struct{}

// WithClientIP attaches the caller's network address to ctx. The Engine uses it
// for per-address rate limiting and audit records; without it, rate limiting
// degrades to a single shared bucket per endpoint.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
