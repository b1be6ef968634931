// Package kratos resolves dashboard sessions against Ory Kratos.
package kratos

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-errors"
	kratos "github.com/ory/kratos-client-go"
)

// Config holds the Kratos endpoints
type Config interface {
	GetKratosPublicURL() string
	GetKratosAdminURL() string
	// GetKratosCookieName is the browser session cookie. Empty means tokens
	// are Kratos session tokens sent as X-Session-Token.
	GetKratosCookieName() string
	GetKratosTimeout() time.Duration
}

// Backend is an auth.IdentityBackend over the Kratos frontend API. Sign out
// disables the session through the admin API.
type Backend struct {
	auth.ChangeHub

	public     *kratos.APIClient
	admin      *kratos.APIClient
	cookieName string
	timeout    time.Duration
	logger     auth.Logger
}

var _ auth.IdentityBackend = (*Backend)(nil)

func New(cfg Config) *Backend {
	timeout := cfg.GetKratosTimeout()
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	b := &Backend{
		public:     newClient(cfg.GetKratosPublicURL(), httpClient),
		cookieName: cfg.GetKratosCookieName(),
		timeout:    timeout,
		logger:     nopLogger{},
	}

	if adminURL := cfg.GetKratosAdminURL(); adminURL != "" {
		b.admin = newClient(adminURL, httpClient)
	}

	return b
}

func newClient(baseURL string, httpClient *http.Client) *kratos.APIClient {
	configuration := kratos.NewConfiguration()
	configuration.Servers = []kratos.ServerConfiguration{
		{URL: strings.TrimRight(baseURL, "/")},
	}
	configuration.HTTPClient = httpClient
	configuration.DefaultHeader["Accept"] = "application/json"
	return kratos.NewAPIClient(configuration)
}

func (b *Backend) WithLogger(logger auth.Logger) *Backend {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// GetSession resolves token with ToSession. Unauthorized and inactive
// sessions resolve to nil.
func (b *Backend) GetSession(ctx context.Context, token string) (*auth.Session, error) {
	session, err := b.whoami(ctx, token)
	if err != nil || session == nil {
		return nil, err
	}
	return toSession(session, token), nil
}

func (b *Backend) whoami(ctx context.Context, token string) (*kratos.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req := b.public.FrontendAPI.ToSession(ctx)
	if b.cookieName != "" {
		req = req.Cookie(fmt.Sprintf("%s=%s", b.cookieName, token))
	} else {
		req = req.XSessionToken(token)
	}

	session, resp, err := req.Execute()
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, nil
		}
		return nil, unavailable(err, resp)
	}

	if session.Active != nil && !*session.Active {
		return nil, nil
	}

	if session.Identity == nil {
		b.logger.Warn("kratos session without identity", "session", session.Id)
		return nil, nil
	}

	return session, nil
}

// SignOut disables the session behind token. Without an admin endpoint the
// session is only forgotten locally.
func (b *Backend) SignOut(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	if b.admin != nil {
		session, err := b.whoami(ctx, token)
		if err != nil {
			return err
		}

		if session != nil {
			ctx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			resp, err := b.admin.IdentityAPI.DisableSession(ctx, session.Id).Execute()
			if err != nil && (resp == nil || resp.StatusCode != http.StatusNotFound) {
				return unavailable(err, resp)
			}
		}
	} else {
		b.logger.Warn("kratos admin url not configured, session stays active upstream")
	}

	b.Emit(auth.SessionEvent{Type: auth.SessionSignedOut, Token: token})
	return nil
}

func unavailable(err error, resp *http.Response) error {
	metadata := map[string]any{"backend": "kratos"}
	if resp != nil {
		metadata["status"] = resp.StatusCode
	}
	return errors.Wrap(err, auth.ErrAuthResolution.Category, auth.ErrAuthResolution.Message).
		WithTextCode(auth.ErrAuthResolution.TextCode).
		WithCode(auth.ErrAuthResolution.Code).
		WithMetadata(metadata)
}

func toSession(s *kratos.Session, token string) *auth.Session {
	out := &auth.Session{
		ID:     s.Id,
		Token:  token,
		UserID: s.Identity.Id,
		Role:   auth.RoleMember,
	}

	if s.ExpiresAt != nil {
		out.ExpiresAt = *s.ExpiresAt
	}

	if traits, ok := s.Identity.Traits.(map[string]any); ok {
		out.Email = traitString(traits, "email")
		out.Username = traitString(traits, "username")
	}

	// traits are user editable through the settings flow, the role is only
	// read from admin managed public metadata
	if meta, ok := s.Identity.MetadataPublic.(map[string]any); ok {
		if role, ok := auth.ParseRole(traitString(meta, "role")); ok {
			out.Role = role
		}
	}

	if out.Username == "" && out.Email != "" {
		out.Username = strings.Split(out.Email, "@")[0]
	}

	return out
}

func traitString(traits map[string]any, key string) string {
	if v, ok := traits[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
