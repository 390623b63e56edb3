// internal/tenant/context.go
//
// Request-context plumbing for the resolved Tenant.
package tenant

import "context"

type ctxKey struct{}

// WithTenant returns a child context carrying the resolved Tenant.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the Tenant attached by the resolver middleware, or
// nil when resolution has not run for this request.
func FromContext(ctx context.Context) *Tenant {
	t, _ := ctx.Value(ctxKey{}).(*Tenant)
	return t
}
