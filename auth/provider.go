package auth

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

// Identity is the user part of a session as shown to consumers.
type Identity struct {
	ID       string   `json:"id"`
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Role     UserRole `json:"role"`
}

// State is a snapshot of a provider.
type State struct {
	User      *Identity
	Session   *Session
	IsLoading bool
	LastError error
}

// Authenticated reports whether loading resolved with a user.
func (s State) Authenticated() bool {
	return !s.IsLoading && s.User != nil
}

// ProviderOption configures a Provider
type ProviderOption func(*Provider)

// WithProviderLogger sets the provider logger
func WithProviderLogger(logger Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProviderClock sets the clock used for session expiry checks
func WithProviderClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithRoutes sets where the hooks redirect to.
func WithRoutes(signIn, forbidden string) ProviderOption {
	return func(p *Provider) {
		if signIn != "" {
			p.signInRoute = signIn
		}
		if forbidden != "" {
			p.forbiddenRoute = forbidden
		}
	}
}

// Provider holds the auth state of one browser context, identified by its
// session token, on top of an IdentityBackend. The zero state is loading.
type Provider struct {
	backend        IdentityBackend
	token          string
	logger         Logger
	now            func() time.Time
	signInRoute    string
	forbiddenRoute string

	initOnce    sync.Once
	unsubscribe func()

	mu        sync.RWMutex
	state     State
	resolved  bool
	closed    bool
	nextID    int
	listeners map[int]func(State)
}

// NewProvider returns a provider for token. Call Init before reading state.
func NewProvider(backend IdentityBackend, token string, opts ...ProviderOption) *Provider {
	p := &Provider{
		backend:        backend,
		token:          token,
		logger:         defLogger{},
		now:            time.Now,
		signInRoute:    "/login",
		forbiddenRoute: "/forbidden",
		state:          State{IsLoading: true},
		listeners:      make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns the session token the provider is bound to.
func (p *Provider) Token() string {
	return p.token
}

// Init subscribes to backend session changes, once per provider, and
// resolves the session if it has not been resolved yet.
func (p *Provider) Init(ctx context.Context) State {
	p.initOnce.Do(func() {
		if p.token == "" {
			return
		}
		p.unsubscribe = p.backend.OnSessionChange(p.handleChange)
	})

	p.mu.RLock()
	resolved := p.resolved
	p.mu.RUnlock()

	if !resolved {
		return p.Refresh(ctx)
	}

	p.expireIfNeeded()
	return p.State()
}

// Refresh asks the backend for the session. If the backend fails before
// the first resolution the provider stays loading with LastError set.
func (p *Provider) Refresh(ctx context.Context) State {
	if p.token == "" {
		p.apply(func(s *State) bool {
			s.User, s.Session = nil, nil
			s.IsLoading, s.LastError = false, nil
			return true
		})
		return p.State()
	}

	session, err := p.backend.GetSession(ctx, p.token)
	if err != nil {
		if !IsAuthResolutionError(err) {
			err = resolutionError(err, "unknown")
		}
		p.logger.Warn("session resolution failed", "error", err)
		p.apply(func(s *State) bool {
			s.LastError = err
			return false
		})
		return p.State()
	}

	if session != nil && session.Expired(p.now()) {
		session = nil
	}

	p.apply(func(s *State) bool {
		setSession(s, session)
		s.IsLoading, s.LastError = false, nil
		return true
	})
	return p.State()
}

// State returns a snapshot of the current state.
func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Subscribe registers fn to receive every state change and returns a
// function that removes it.
func (p *Provider) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// SignOut ends the session on the backend and clears local state. It never
// fails: a backend error is kept in LastError.
func (p *Provider) SignOut(ctx context.Context) {
	var err error
	if p.token != "" {
		err = p.backend.SignOut(ctx, p.token)
	}

	if err != nil {
		p.logger.Error("sign out failed", "error", err)
		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			err = resolutionError(err, "unknown")
		}
	}

	p.apply(func(s *State) bool {
		setSession(s, nil)
		s.IsLoading = false
		s.LastError = err
		return true
	})
}

// Close removes the backend subscription and every listener.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.listeners = make(map[int]func(State))
	unsubscribe := p.unsubscribe
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (p *Provider) handleChange(evt SessionEvent) {
	if evt.Token != p.token {
		return
	}

	p.logger.Debug("session change", "type", evt.Type)

	p.apply(func(s *State) bool {
		switch evt.Type {
		case SessionSignedIn, SessionRefreshed:
			setSession(s, evt.Session)
		case SessionSignedOut, SessionExpired:
			setSession(s, nil)
		default:
			return false
		}
		s.IsLoading, s.LastError = false, nil
		return true
	})
}

func (p *Provider) expireIfNeeded() {
	p.apply(func(s *State) bool {
		if s.Session == nil || !s.Session.Expired(p.now()) {
			return false
		}
		setSession(s, nil)
		return true
	})
}

// apply mutates state under lock and notifies listeners outside of it.
// mutate reports whether loading resolved. A closed provider has no
// listeners left but still tracks state.
func (p *Provider) apply(mutate func(*State) bool) {
	p.mu.Lock()
	if mutate(&p.state) {
		p.resolved = true
	}
	snapshot := p.state
	listeners := make([]func(State), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func setSession(s *State, session *Session) {
	if session == nil {
		s.Session, s.User = nil, nil
		return
	}
	cp := *session
	s.Session = &cp
	s.User = &Identity{
		ID:       cp.UserID,
		Username: cp.Username,
		Email:    cp.Email,
		Role:     cp.Role,
	}
}
