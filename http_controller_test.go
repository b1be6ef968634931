package dashboard_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-dashboard"
	"github.com/goliatone/go-dashboard/analytics"
	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/internal/routertest"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newController(t *testing.T, backend *memBackend, data *dataService, opts ...dashboard.ControllerOption) *dashboard.Controller {
	t.Helper()
	pool := auth.NewProviderPool(backend, 10, time.Minute)
	t.Cleanup(pool.Close)

	httpAuth, err := auth.NewHTTPAuthenticator(pool, authConfig{})
	require.NoError(t, err)

	base := []dashboard.ControllerOption{
		dashboard.WithRouteAuthenticator(httpAuth),
		dashboard.WithWidgetRegistry(dashboard.MustRegistry(testDescriptors())),
		dashboard.WithDataService(data),
		dashboard.WithRenderTimeout(2 * time.Second),
	}
	return dashboard.NewController(append(base, opts...)...)
}

func requestContext(token, widget string) *routertest.MockContext {
	ctx := routertest.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookies", "session").Return(token)
	ctx.On("Query", "widget", "").Return(widget)
	return ctx
}

func regionIDs(view router.ViewContext) []string {
	regions, _ := view["regions"].([]map[string]any)
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		out = append(out, r["id"].(string))
	}
	return out
}

func TestNewController_RequiresDependencies(t *testing.T) {
	assert.Panics(t, func() { dashboard.NewController() })

	pool := auth.NewProviderPool(newMemBackend(), 10, time.Minute)
	defer pool.Close()
	httpAuth, err := auth.NewHTTPAuthenticator(pool, authConfig{})
	require.NoError(t, err)

	assert.Panics(t, func() {
		dashboard.NewController(dashboard.WithRouteAuthenticator(httpAuth))
	})
}

func TestNewController_Config(t *testing.T) {
	c := newController(t, newMemBackend(), newDataService(),
		dashboard.WithControllerConfig(dashboardConfig{route: "/app/"}),
	)

	assert.Equal(t, "/app", c.Routes.Dashboard)
	assert.Equal(t, "/app/export", c.Routes.Export)
	assert.Equal(t, "/app/registry", c.Routes.Registry)
	assert.Equal(t, "widget", c.WidgetParam)
}

func TestController_ShowRendersSelectedWidget(t *testing.T) {
	backend := newMemBackend()
	session := backend.add("tok", auth.RoleMember)
	data := newDataService()
	data.profiles[session.UserID] = sampleProfile(session.UserID)

	c := newController(t, backend, data)

	ctx := requestContext("tok", "personas")
	ctx.On("Status", http.StatusOK).Return()
	ctx.On("Render", "dashboard", mock.MatchedBy(func(view router.ViewContext) bool {
		return view["ready"] == true &&
			view["active_widget"] == "personas" &&
			assert.ObjectsAreEqual([]string{"personas"}, regionIDs(view)) &&
			view["export_route"] == "/dashboard/export?widget=personas"
	})).Return(nil)

	require.NoError(t, c.Show(ctx))
	ctx.AssertExpectations(t)
}

func TestController_ShowUsesConfiguredRegistryRoute(t *testing.T) {
	backend := newMemBackend()
	session := backend.add("tok", auth.RoleAdmin)
	data := newDataService()
	data.profiles[session.UserID] = sampleProfile(session.UserID)

	c := newController(t, backend, data,
		dashboard.WithControllerConfig(dashboardConfig{route: "/app/"}),
	)

	ctx := requestContext("tok", "")
	ctx.On("Status", http.StatusOK).Return()
	ctx.On("Render", "dashboard", mock.MatchedBy(func(view router.ViewContext) bool {
		return view["registry_route"] == "/app/registry"
	})).Return(nil)

	require.NoError(t, c.Show(ctx))
	ctx.AssertExpectations(t)
}

func TestController_ShowRedirectsWithoutSession(t *testing.T) {
	data := newDataService()
	c := newController(t, newMemBackend(), data)

	ctx := requestContext("", "")
	ctx.On("Method").Return("GET")
	ctx.On("OriginalURL").Return("/dashboard")
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == "rejected_route" && c.Value == "/dashboard"
	})).Return()
	ctx.On("Redirect", "/login", []int{http.StatusFound}).Return(nil)

	require.NoError(t, c.Show(ctx))
	ctx.AssertExpectations(t)
	ctx.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
	assert.Zero(t, data.callCount())
}

func TestController_ShowBackendUnavailable(t *testing.T) {
	backend := newMemBackend()
	backend.fail(errors.New("connection refused", errors.CategoryOperation))

	c := newController(t, backend, newDataService())

	ctx := requestContext("tok", "")
	ctx.On("Status", http.StatusOK).Return()
	ctx.On("Render", "dashboard", mock.MatchedBy(func(view router.ViewContext) bool {
		_, hasBanner := view["banner"]
		return view["loading"] == true && hasBanner && len(regionIDs(view)) == 0
	})).Return(nil)

	require.NoError(t, c.Show(ctx))
	ctx.AssertExpectations(t)
}

func exportContext(token, widget, format string) *routertest.MockContext {
	ctx := requestContext(token, widget)
	ctx.On("Bind", mock.AnythingOfType("*dashboard.ExportRequest")).
		Run(func(args mock.Arguments) {
			args.Get(0).(*dashboard.ExportRequest).Format = format
		}).
		Return(nil)
	return ctx
}

func TestController_ExportSendsArtifact(t *testing.T) {
	backend := newMemBackend()
	session := backend.add("tok", auth.RoleMember)
	data := newDataService()
	data.profiles[session.UserID] = sampleProfile(session.UserID)
	sink := &memorySink{}

	c := newController(t, backend, data, dashboard.WithControllerAnalytics(sink))

	ctx := exportContext("tok", "overview", "csv")
	ctx.On("SetHeader", "Content-Type", mock.MatchedBy(func(v string) bool {
		return v != ""
	})).Return()
	ctx.On("SetHeader", "Content-Disposition", mock.MatchedBy(func(v string) bool {
		return len(v) > len("attachment; filename=")
	})).Return()
	ctx.On("Status", http.StatusOK).Return()
	ctx.On("Send", mock.MatchedBy(func(b []byte) bool { return len(b) > 0 })).Return(nil)

	require.NoError(t, c.Export(ctx))
	ctx.AssertExpectations(t)
	assert.Equal(t, 1, sink.count(analytics.EventExportRequested))
	assert.Zero(t, sink.count(analytics.EventPageView), "export mounts are not page views")
}

func TestController_ExportUnsupportedFormat(t *testing.T) {
	backend := newMemBackend()
	session := backend.add("tok", auth.RoleMember)
	data := newDataService()
	data.profiles[session.UserID] = sampleProfile(session.UserID)

	c := newController(t, backend, data)

	ctx := exportContext("tok", "", "xlsx")
	ctx.On("Status", http.StatusUnprocessableEntity).Return()
	ctx.On("Render", "dashboard", mock.MatchedBy(func(view router.ViewContext) bool {
		return view["export_error"] == "export format is not supported" && view["ready"] == true
	})).Return(nil)

	require.NoError(t, c.Export(ctx))
	ctx.AssertExpectations(t)
	ctx.AssertNotCalled(t, "Send", mock.Anything)
}

func TestController_ExportRequiresMember(t *testing.T) {
	backend := newMemBackend()
	session := backend.add("guest", auth.RoleGuest)
	data := newDataService()
	data.profiles[session.UserID] = sampleProfile(session.UserID)

	c := newController(t, backend, data)

	ctx := requestContext("guest", "")
	ctx.On("Method").Return("POST")
	ctx.On("Redirect", "/forbidden", []int{http.StatusSeeOther}).Return(nil)

	require.NoError(t, c.Export(ctx))
	ctx.AssertExpectations(t)
	ctx.AssertNotCalled(t, "Bind", mock.Anything)
}

func TestController_ExportRateLimited(t *testing.T) {
	backend := newMemBackend()
	session := backend.add("tok", auth.RoleMember)
	data := newDataService()
	data.profiles[session.UserID] = sampleProfile(session.UserID)

	c := newController(t, backend, data,
		dashboard.WithControllerConfig(dashboardConfig{limit: 0.001, burst: 1}),
	)

	first := exportContext("tok", "", "md")
	first.On("SetHeader", mock.Anything, mock.Anything).Return()
	first.On("Status", http.StatusOK).Return()
	first.On("Send", mock.Anything).Return(nil)
	require.NoError(t, c.Export(first))

	second := exportContext("tok", "", "md")
	second.On("Status", http.StatusTooManyRequests).Return()
	second.On("Render", "dashboard", mock.MatchedBy(func(view router.ViewContext) bool {
		return view["export_error"] == dashboard.ErrExportRateLimited.Message
	})).Return(nil)
	require.NoError(t, c.Export(second))

	second.AssertExpectations(t)
	second.AssertNotCalled(t, "Send", mock.Anything)
}

func TestController_RegistryShowAdminOnly(t *testing.T) {
	backend := newMemBackend()
	backend.add("admin", auth.RoleAdmin)
	backend.add("member", auth.RoleMember)

	c := newController(t, backend, newDataService())

	ctx := routertest.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookies", "session").Return("admin")
	ctx.On("Render", "registry", mock.MatchedBy(func(view router.ViewContext) bool {
		rows, ok := view["widgets"].([]map[string]any)
		if !ok || len(rows) != 5 {
			return false
		}
		return rows[4]["id"] == "translator" && rows[4]["visible"] == false &&
			rows[3]["id"] == "admin-notes" && rows[3]["visible"] == true
	})).Return(nil)

	require.NoError(t, c.RegistryShow(ctx))
	ctx.AssertExpectations(t)

	member := routertest.NewMockContext()
	member.On("Context").Return(context.Background())
	member.On("Cookies", "session").Return("member")
	member.On("Method").Return("GET")
	member.On("Redirect", "/forbidden", []int{http.StatusFound}).Return(nil)

	require.NoError(t, c.RegistryShow(member))
	member.AssertExpectations(t)
	member.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
}
