package auth_test

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-dashboard/auth"
	"github.com/stretchr/testify/mock"
)

// fakeBackend is an in-memory IdentityBackend.
type fakeBackend struct {
	auth.ChangeHub

	mu         sync.Mutex
	sessions   map[string]*auth.Session
	err        error
	signOutErr error
	gets       int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{sessions: map[string]*auth.Session{}}
}

func (b *fakeBackend) add(token string, role auth.UserRole) *auth.Session {
	s := &auth.Session{
		ID:        "sess-" + token,
		Token:     token,
		UserID:    "user-" + token,
		Username:  "user-" + token,
		Role:      role,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	b.mu.Lock()
	b.sessions[token] = s
	b.mu.Unlock()
	return s
}

func (b *fakeBackend) GetSession(_ context.Context, token string) (*auth.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	if b.err != nil {
		return nil, b.err
	}
	return b.sessions[token], nil
}

func (b *fakeBackend) SignOut(_ context.Context, token string) error {
	b.mu.Lock()
	err := b.signOutErr
	if err == nil {
		delete(b.sessions, token)
	}
	b.mu.Unlock()

	if err != nil {
		return err
	}
	b.Emit(auth.SessionEvent{Type: auth.SessionSignedOut, Token: token})
	return nil
}

func (b *fakeBackend) getCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets
}

// recordingNavigator records redirects.
type recordingNavigator struct {
	params    map[string]string
	redirects []string
}

func (n *recordingNavigator) Param(key string) string {
	return n.params[key]
}

func (n *recordingNavigator) Redirect(to string) {
	n.redirects = append(n.redirects, to)
}

type staticConfig struct{}

func (staticConfig) GetSigningKey() string { return "test-signing-key-with-enough-bytes" }
func (staticConfig) GetTokenExpiration() int { return 24 }
func (staticConfig) GetExtendedTokenDuration() int { return 48 }
func (staticConfig) GetContextKey() string { return "session" }
func (staticConfig) GetIssuer() string { return "dashboard" }
func (staticConfig) GetAudience() []string { return []string{"dashboard:web"} }
func (staticConfig) GetRejectedRouteKey() string { return "rejected_route" }
func (staticConfig) GetRejectedRouteDefault() string { return "/dashboard" }
func (staticConfig) GetSignInRoute() string { return "/login" }
func (staticConfig) GetForbiddenRoute() string { return "/forbidden" }

// MockAuthenticator implements auth.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, identifier, password string, extended bool) (string, *auth.Session, error) {
	args := m.Called(ctx, identifier, password, extended)
	session, _ := args.Get(1).(*auth.Session)
	return args.String(0), session, args.Error(2)
}

// MockLoginPayload implements auth.LoginPayload
type MockLoginPayload struct {
	Identifier      string
	Password        string
	ExtendedSession bool
}

func (m MockLoginPayload) GetIdentifier() string {
	return m.Identifier
}

func (m MockLoginPayload) GetPassword() string {
	return m.Password
}

func (m MockLoginPayload) GetExtendedSession() bool {
	return m.ExtendedSession
}
