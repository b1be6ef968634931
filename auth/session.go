package auth

import "context"

var providerCtxKey = &contextKey{"provider"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithProvider sets the Provider in the given context
func WithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerCtxKey, p)
}

// ProviderFromContext finds the provider from the context.
func ProviderFromContext(ctx context.Context) (*Provider, bool) {
	raw, ok := ctx.Value(providerCtxKey).(*Provider)
	return raw, ok && raw != nil
}

// WithSession sets the Session in the given context
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the session from the context.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*Session)
	return raw, ok && raw != nil
}
