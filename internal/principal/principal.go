// Package principal carries the authenticated user through a request's
// context, replacing ambient request-global state with an explicit value.
package principal

import "context"

// Principal is the user resolved for the current request. It lives only
// for the request's lifetime; nothing is cached across requests.
type Principal struct {
	ID          string
	Email       string
	AccessToken string
}

type contextKey struct{}

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext extracts the principal set by the request gate, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}
