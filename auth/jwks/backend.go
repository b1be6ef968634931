// Package jwks resolves sessions from bearer JWTs issued by an external
// identity provider and verified against its JSON Web Key Set.
package jwks

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-dashboard/auth"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Config holds the identity provider settings
type Config struct {
	// URL of the JSON Web Key Set, e.g. https://tenant.auth0.com/.well-known/jwks.json
	URL      string
	Issuer   string
	Audience string
	// RoleClaim is the claim holding the dashboard role, often namespaced
	// ("https://acme.test/role").
	RoleClaim string
	// RefreshInterval for the key set. Default: one hour.
	RefreshInterval time.Duration
}

// Backend is an auth.IdentityBackend over externally issued JWTs. Signing
// out cannot revoke the token upstream, so the token id is denied locally
// until it expires.
type Backend struct {
	auth.ChangeHub

	keys    *keyfunc.JWKS
	keyFunc jwt.Keyfunc
	cfg     Config
	denied  *expirable.LRU[string, struct{}]
	now     func() time.Time
	logger  auth.Logger
}

var _ auth.IdentityBackend = (*Backend)(nil)

// New fetches the key set and keeps it refreshed in the background.
func New(cfg Config) (*Backend, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("jwks: key set URL is required")
	}

	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = time.Hour
	}

	b := newBackend(cfg)

	keys, err := keyfunc.Get(cfg.URL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			b.logger.Error("failed to refresh JWKS", "url", cfg.URL, "error", err)
		},
		RefreshInterval:   interval,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("jwks: failed to get key set: %w", err)
	}

	b.keys = keys
	b.keyFunc = keys.Keyfunc
	return b, nil
}

// NewWithKeySet builds a backend from a static key set document.
func NewWithKeySet(cfg Config, keySet []byte) (*Backend, error) {
	keys, err := keyfunc.NewJSON(keySet)
	if err != nil {
		return nil, fmt.Errorf("jwks: invalid key set: %w", err)
	}

	b := newBackend(cfg)
	b.keys = keys
	b.keyFunc = keys.Keyfunc
	return b, nil
}

func newBackend(cfg Config) *Backend {
	return &Backend{
		cfg:    cfg,
		denied: expirable.NewLRU[string, struct{}](4096, nil, 24*time.Hour),
		now:    time.Now,
		logger: nopLogger{},
	}
}

func (b *Backend) WithLogger(logger auth.Logger) *Backend {
	if logger != nil {
		b.logger = logger
	}
	return b
}

func (b *Backend) WithClock(now func() time.Time) *Backend {
	if now != nil {
		b.now = now
	}
	return b
}

// Close stops the background key refresh.
func (b *Backend) Close() {
	if b.keys != nil {
		b.keys.EndBackground()
	}
}

// GetSession validates token. Invalid, expired and signed out tokens
// resolve to nil.
func (b *Backend) GetSession(_ context.Context, token string) (*auth.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	parsed, err := b.parse(token)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			b.Emit(auth.SessionEvent{Type: auth.SessionExpired, Token: token})
		}
		b.logger.Debug("jwks token rejected", "error", err)
		return nil, nil
	}

	if _, denied := b.denied.Get(sessionKey(parsed, token)); denied {
		return nil, nil
	}

	return b.toSession(parsed, token), nil
}

// SignOut denies the token for the rest of its lifetime.
func (b *Backend) SignOut(_ context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	if parsed, err := b.parse(token); err == nil {
		b.denied.Add(sessionKey(parsed, token), struct{}{})
	}

	b.Emit(auth.SessionEvent{Type: auth.SessionSignedOut, Token: token})
	return nil
}

func (b *Backend) parse(token string) (*jwt.Token, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(b.now),
		jwt.WithExpirationRequired(),
	}
	if b.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(b.cfg.Issuer))
	}
	if b.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(b.cfg.Audience))
	}

	return jwt.Parse(token, b.keyFunc, opts...)
}

func (b *Backend) toSession(token *jwt.Token, raw string) *auth.Session {
	mc, _ := token.Claims.(jwt.MapClaims)

	s := &auth.Session{
		ID:    sessionKey(token, raw),
		Token: raw,
		Role:  auth.RoleMember,
	}

	if sub, err := mc.GetSubject(); err == nil {
		s.UserID = sub
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}

	s.Email = claimString(mc, "email")
	s.Username = claimString(mc, "nickname")
	if s.Username == "" && s.Email != "" {
		s.Username = strings.Split(s.Email, "@")[0]
	}

	if b.cfg.RoleClaim != "" {
		if role, ok := auth.ParseRole(claimString(mc, b.cfg.RoleClaim)); ok {
			s.Role = role
		}
	}

	return s
}

func sessionKey(token *jwt.Token, raw string) string {
	if mc, ok := token.Claims.(jwt.MapClaims); ok {
		if jti := claimString(mc, "jti"); jti != "" {
			return jti
		}
	}
	return raw
}

func claimString(mc jwt.MapClaims, key string) string {
	if v, ok := mc[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
