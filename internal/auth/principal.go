// Package auth consumes bearer tokens from the identity provider and threads
// the verified principal through the request context. The rest of the system
// trusts the principal's UserID completely once it is in the context.
package auth

import "context"

// Principal is the authenticated identity making a request: the token subject
// plus the raw claims for handlers that need profile hints (email, name).
type Principal struct {
	UserID string
	Claims map[string]any
}

// StringClaim returns a string claim by name, or "" when absent.
func (p Principal) StringClaim(name string) string {
	if v, ok := p.Claims[name].(string); ok {
		return v
	}
	return ""
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
