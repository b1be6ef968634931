package auth_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/internal/routertest"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRouteAuthenticator(t *testing.T, backend *fakeBackend) (*auth.RouteAuthenticator, *auth.ProviderPool) {
	t.Helper()
	pool := auth.NewProviderPool(backend, 10, time.Minute)
	t.Cleanup(pool.Close)

	httpAuth, err := auth.NewHTTPAuthenticator(pool, staticConfig{})
	require.NoError(t, err)
	return httpAuth, pool
}

func cookieNamed(name, value string) any {
	return mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == name && c.Value == value && c.HTTPOnly
	})
}

func TestNewHTTPAuthenticator(t *testing.T) {
	httpAuth, _ := newRouteAuthenticator(t, newFakeBackend())

	assert.Equal(t, 24*time.Hour, httpAuth.GetCookieDuration())
	assert.Equal(t, 48*time.Hour, httpAuth.GetExtendedCookieDuration())
	assert.False(t, httpAuth.CanLogin())

	_, err := auth.NewHTTPAuthenticator(nil, staticConfig{})
	assert.Error(t, err)
}

func TestRouteAuthenticator_LoginReplacesPreviousSession(t *testing.T) {
	backend := newFakeBackend()
	backend.add("old-token", auth.RoleMember)

	httpAuth, _ := newRouteAuthenticator(t, backend)
	mockAuth := new(MockAuthenticator)
	httpAuth.WithAuthenticator(mockAuth)

	mockAuth.On("Login", mock.Anything, "user@example.com", "password123", true).
		Return("new-token", &auth.Session{ID: "s"}, nil)

	ctx := routertest.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookies", "session").Return("old-token")
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == "session" && c.Value == "new-token" &&
			c.Expires.After(time.Now().Add(47*time.Hour))
	})).Return()

	err := httpAuth.Login(ctx, MockLoginPayload{
		Identifier:      "user@example.com",
		Password:        "password123",
		ExtendedSession: true,
	})
	require.NoError(t, err)

	s, _ := backend.GetSession(context.Background(), "old-token")
	assert.Nil(t, s, "previous session is signed out")

	mockAuth.AssertExpectations(t)
	ctx.AssertExpectations(t)
}

func TestRouteAuthenticator_LoginError(t *testing.T) {
	httpAuth, _ := newRouteAuthenticator(t, newFakeBackend())
	mockAuth := new(MockAuthenticator)
	httpAuth.WithAuthenticator(mockAuth)

	mockAuth.On("Login", mock.Anything, "user@example.com", "wrong", false).
		Return("", nil, auth.ErrInvalidCredentials)

	ctx := routertest.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookies", "session").Return("")

	err := httpAuth.Login(ctx, MockLoginPayload{Identifier: "user@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	ctx.AssertNotCalled(t, "Cookie", mock.Anything)
}

func TestRouteAuthenticator_LoginUnsupported(t *testing.T) {
	httpAuth, _ := newRouteAuthenticator(t, newFakeBackend())
	ctx := routertest.NewMockContext()

	err := httpAuth.Login(ctx, MockLoginPayload{})
	assert.ErrorIs(t, err, auth.ErrPasswordLoginUnsupported)
}

func TestRouteAuthenticator_Logout(t *testing.T) {
	backend := newFakeBackend()
	backend.add("tok", auth.RoleMember)
	httpAuth, pool := newRouteAuthenticator(t, backend)
	pool.Get("tok").Init(context.Background())

	ctx := routertest.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookies", "session").Return("tok")
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == "session" && c.Value == "" && c.Expires.Before(time.Now())
	})).Return()

	httpAuth.Logout(ctx)

	assert.Equal(t, 0, pool.Len())
	s, _ := backend.GetSession(context.Background(), "tok")
	assert.Nil(t, s)
	ctx.AssertExpectations(t)
}

func TestRouteNavigator_SignInRedirectStoresReturnTo(t *testing.T) {
	httpAuth, _ := newRouteAuthenticator(t, newFakeBackend())

	ctx := routertest.NewMockContext()
	ctx.On("Query", "widget", "").Return("personas")
	ctx.On("OriginalURL").Return("/dashboard?widget=personas")
	ctx.On("Cookie", cookieNamed("rejected_route", "/dashboard?widget=personas")).Return()
	ctx.On("Method").Return("GET")
	ctx.On("Redirect", "/login", []int{http.StatusFound}).Return(nil)

	nav := httpAuth.Navigator(ctx)
	assert.Equal(t, "personas", nav.Param("widget"))

	nav.Redirect("/login")
	nav.Redirect("/elsewhere")
	assert.Equal(t, "/login", nav.Target())

	require.NoError(t, nav.Flush())
	ctx.AssertExpectations(t)
}

func TestRouteNavigator_FlushWithoutRedirect(t *testing.T) {
	httpAuth, _ := newRouteAuthenticator(t, newFakeBackend())
	ctx := routertest.NewMockContext()

	nav := httpAuth.Navigator(ctx)
	assert.NoError(t, nav.Flush())
	ctx.AssertNotCalled(t, "Redirect", mock.Anything, mock.Anything)
}

func TestRouteAuthenticator_GetRedirect(t *testing.T) {
	httpAuth, _ := newRouteAuthenticator(t, newFakeBackend())

	ctx := routertest.NewMockContext()
	ctx.On("Cookies", "rejected_route").Return("/dashboard?widget=personas")
	ctx.On("Cookie", cookieNamed("rejected_route", "")).Return()
	assert.Equal(t, "/dashboard?widget=personas", httpAuth.GetRedirect(ctx))

	empty := routertest.NewMockContext()
	empty.On("Cookies", "rejected_route").Return("")
	assert.Equal(t, "/dashboard", httpAuth.GetRedirect(empty))
	assert.Equal(t, "/home", httpAuth.GetRedirect(empty, "/home"))
}

func TestRouteAuthenticator_AuthErrorRedirectsToSignIn(t *testing.T) {
	httpAuth, _ := newRouteAuthenticator(t, newFakeBackend())

	ctx := routertest.NewMockContext()
	ctx.On("OriginalURL").Return("/dashboard")
	ctx.On("Cookie", cookieNamed("rejected_route", "/dashboard")).Return()
	ctx.On("Method").Return("POST")
	ctx.On("Redirect", "/login", []int{http.StatusSeeOther}).Return(nil)

	handler := httpAuth.MakeClientRouteAuthErrorHandler(false)
	require.NoError(t, handler(ctx, errors.New("missing or invalid session")))
	ctx.AssertExpectations(t)
}

func TestRouteAuthenticator_OptionalAuthProceeds(t *testing.T) {
	httpAuth, _ := newRouteAuthenticator(t, newFakeBackend())
	ctx := routertest.NewMockContext()

	handler := httpAuth.MakeClientRouteAuthErrorHandler(true)
	require.NoError(t, handler(ctx, auth.ErrTokenExpired))
	assert.True(t, ctx.NextCalled)
}

func TestRouteAuthenticator_ProtectedRoute(t *testing.T) {
	backend := newFakeBackend()
	backend.add("tok", auth.RoleMember)
	httpAuth, _ := newRouteAuthenticator(t, backend)

	ctx := routertest.NewMockContext()
	ctx.On("Cookies", "session").Return("tok")
	ctx.On("Context").Return(context.Background())
	ctx.On("Locals", "session", mock.AnythingOfType("*auth.Session")).Return()
	ctx.On("SetContext", mock.MatchedBy(func(c context.Context) bool {
		s, ok := auth.SessionFromContext(c)
		return ok && s.UserID == "user-tok"
	})).Return()

	mw := httpAuth.ProtectedRoute(nil)
	require.NoError(t, mw(func(c router.Context) error { return c.Next() })(ctx))
	assert.True(t, ctx.NextCalled)
	ctx.AssertExpectations(t)
}
