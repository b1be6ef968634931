package auth

import "sync"

// UseAuthState returns the provider state as is.
func UseAuthState(p *Provider) State {
	return p.State()
}

// Guard runs the authentication hooks for one page mount. It issues at
// most one redirect over its lifetime.
type Guard struct {
	provider *Provider
	nav      Navigator

	mu         sync.Mutex
	redirected string
}

func NewGuard(p *Provider, nav Navigator) *Guard {
	return &Guard{provider: p, nav: nav}
}

// RequireAuthentication returns the session once loading resolved with a
// user. While loading it returns false and does nothing. Once loading
// resolved without a user it redirects to the sign in route and keeps
// returning false.
func (g *Guard) RequireAuthentication() (*Session, bool) {
	state := g.provider.State()
	if state.IsLoading {
		return nil, false
	}

	if state.Session == nil {
		g.redirect(g.provider.signInRoute)
		return nil, false
	}

	return state.Session, true
}

// RequireRole behaves like RequireAuthentication and also redirects to the
// forbidden route when the session role is below minRole.
func (g *Guard) RequireRole(minRole UserRole) (*Session, bool) {
	session, ok := g.RequireAuthentication()
	if !ok {
		return nil, false
	}

	if !session.HasRole(minRole) {
		g.redirect(g.provider.forbiddenRoute)
		return nil, false
	}

	return session, true
}

// Redirected returns the route the guard redirected to, if any.
func (g *Guard) Redirected() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.redirected
}

func (g *Guard) redirect(to string) {
	g.mu.Lock()
	if g.redirected != "" {
		g.mu.Unlock()
		return
	}
	g.redirected = to
	g.mu.Unlock()

	if g.nav != nil {
		g.nav.Redirect(to)
	}
}

// RequireAuthentication is a one shot Guard.RequireAuthentication.
func RequireAuthentication(p *Provider, nav Navigator) (*Session, bool) {
	return NewGuard(p, nav).RequireAuthentication()
}

// RequireRole is a one shot Guard.RequireRole.
func RequireRole(p *Provider, nav Navigator, minRole UserRole) (*Session, bool) {
	return NewGuard(p, nav).RequireRole(minRole)
}
