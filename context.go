package authflow

import "context"

// ipKey is the context key for the caller address.
type ipKey struct{}

// WithClientIP attaches the caller's IP address to ctx. StartRegister uses it
// for the per-IP register throttle, and audit events record it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// ClientIPFromContext returns the address stored by [WithClientIP], or "".
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if ip, ok := ctx.Value(ipKey{}).(string); ok {
		return ip
	}
	return ""
}
