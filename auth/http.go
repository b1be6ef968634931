package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-dashboard/middleware/sessionware"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ErrPasswordLoginUnsupported is returned when the backend signs users in
// somewhere else, for example a hosted login UI.
var ErrPasswordLoginUnsupported = errors.New("password sign in is not available", errors.CategoryOperation).
	WithTextCode("PASSWORD_LOGIN_UNSUPPORTED").
	WithCode(errors.CodeBadRequest)

// LoginPayload is what a sign in form provides
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
	GetExtendedSession() bool
}

// RouteAuthenticator binds providers, cookies and redirects to router
// requests.
type RouteAuthenticator struct {
	auth                   Authenticator
	pool                   *ProviderPool
	cfg                    Config
	cookieDuration         time.Duration
	extendedCookieDuration time.Duration
	Logger                 Logger
	AuthErrorHandler       func(c router.Context, err error) error
	ErrorHandler           func(c router.Context, err error) error
}

func NewHTTPAuthenticator(pool *ProviderPool, cfg Config) (*RouteAuthenticator, error) {
	if pool == nil {
		return nil, errors.New("provider pool is required", errors.CategoryInternal)
	}

	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	extendedCookieDuration := cookieDuration
	if cfg.GetExtendedTokenDuration() > 0 {
		extendedCookieDuration = time.Duration(cfg.GetExtendedTokenDuration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:                    cfg,
		pool:                   pool,
		Logger:                 defLogger{},
		cookieDuration:         cookieDuration,
		extendedCookieDuration: extendedCookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

// WithAuthenticator enables password sign in.
func (a *RouteAuthenticator) WithAuthenticator(auther Authenticator) *RouteAuthenticator {
	a.auth = auther
	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

func (a *RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a *RouteAuthenticator) GetExtendedCookieDuration() time.Duration {
	return a.extendedCookieDuration
}

// CanLogin reports whether password sign in is available.
func (a *RouteAuthenticator) CanLogin() bool {
	return a.auth != nil
}

// Provider returns the initialized provider for the request session cookie.
func (a *RouteAuthenticator) Provider(ctx router.Context) *Provider {
	if p, ok := ProviderFromContext(ctx.Context()); ok {
		return p
	}
	p := a.pool.Get(ctx.Cookies(a.cfg.GetContextKey()))
	p.Init(ctx.Context())
	return p
}

// Navigator returns a navigator over the request.
func (a *RouteAuthenticator) Navigator(ctx router.Context) *RouteNavigator {
	return &RouteNavigator{ctx: ctx, auth: a}
}

// WithProvider is a middleware that initializes the request provider and
// stores it in the request context. It never rejects a request.
func (a *RouteAuthenticator) WithProvider() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			p := a.Provider(ctx)
			ctx.SetContext(WithProvider(ctx.Context(), p))
			return hf(ctx)
		}
	}
}

// ProtectedRoute rejects requests without a live session using errorHandler,
// which defaults to the sign in redirect.
func (a *RouteAuthenticator) ProtectedRoute(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = a.MakeClientRouteAuthErrorHandler(false)
	}
	return sessionware.New(sessionware.Config{
		ErrorHandler: errorHandler,
		ContextKey:   "session",
		TokenLookup:  "cookie:" + a.cfg.GetContextKey() + ",header:Authorization",
		Resolve: func(ctx context.Context, token string) (any, error) {
			state := a.pool.Get(token).Init(ctx)
			if state.IsLoading {
				return nil, state.LastError
			}
			if state.Session == nil {
				return nil, nil
			}
			return state.Session, nil
		},
		ContextEnricher: func(ctx context.Context, session any) context.Context {
			if s, ok := session.(*Session); ok {
				return WithSession(ctx, s)
			}
			return ctx
		},
	})
}

// Login signs the payload in, replacing any session the request already
// carries so a browser holds at most one.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) error {
	if a.auth == nil {
		return ErrPasswordLoginUnsupported
	}

	if previous := ctx.Cookies(a.cfg.GetContextKey()); previous != "" {
		a.pool.Get(previous).SignOut(ctx.Context())
		a.pool.Remove(previous)
	}

	token, _, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword(), payload.GetExtendedSession())
	if err != nil {
		a.Logger.Error("login error", "error", err)
		return err
	}

	duration := a.cookieDuration
	if payload.GetExtendedSession() {
		duration = a.extendedCookieDuration
	}

	a.setCookieToken(ctx, token, duration)
	return nil
}

// Logout signs the request session out and clears the cookie.
func (a *RouteAuthenticator) Logout(ctx router.Context) {
	if token := ctx.Cookies(a.cfg.GetContextKey()); token != "" {
		p := a.pool.Get(token)
		p.SignOut(ctx.Context())
		if err := p.State().LastError; err != nil {
			a.Logger.Warn("sign out left backend session behind", "error", err)
		}
		a.pool.Remove(token)
	}
	a.cookieDel(ctx, a.cfg.GetContextKey())
}

func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		switch {
		case IsAuthResolutionError(err):
			errors.As(err, &richErr)
		case IsTokenExpiredError(err):
			richErr = ErrTokenExpired
		case IsMalformedError(err):
			richErr = ErrTokenMalformed
		default:
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid session").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

// GetRedirect returns the route stored by SetRedirect, or def.
func (a *RouteAuthenticator) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return a.cfg.GetRejectedRouteDefault()
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

// SetRedirect remembers the current URL so sign in can return to it.
func (a *RouteAuthenticator) SetRedirect(ctx router.Context) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Debug("setting redirect cookie", "key", rejectedRoute, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func redirectStatus(c router.Context) int {
	if c.Method() == string(router.GET) {
		return http.StatusFound
	}
	return http.StatusSeeOther
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"authentication error, redirecting to sign in",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	if richErr.Category == errors.CategoryAuthz {
		return c.Redirect(a.cfg.GetForbiddenRoute(), redirectStatus(c))
	}

	a.SetRedirect(c)
	return c.Redirect(a.cfg.GetSignInRoute(), redirectStatus(c))
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}

// RouteNavigator is a Navigator over one request. Redirect only records the
// target and may be called from any goroutine; Flush stores the return-to
// cookie for sign in redirects and writes the response.
type RouteNavigator struct {
	ctx  router.Context
	auth *RouteAuthenticator

	mu     sync.Mutex
	target string
}

var _ Navigator = (*RouteNavigator)(nil)

func (n *RouteNavigator) Param(key string) string {
	return n.ctx.Query(key, "")
}

func (n *RouteNavigator) Redirect(to string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.target == "" {
		n.target = to
	}
}

// Target returns the recorded redirect, if any.
func (n *RouteNavigator) Target() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target
}

// Flush sends the recorded redirect.
func (n *RouteNavigator) Flush() error {
	target := n.Target()
	if target == "" {
		return nil
	}
	if target == n.auth.cfg.GetSignInRoute() {
		n.auth.SetRedirect(n.ctx)
	}
	return n.ctx.Redirect(target, redirectStatus(n.ctx))
}
