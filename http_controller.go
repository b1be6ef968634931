package dashboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-dashboard/analytics"
	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/export"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

func RegisterDashboardRoutes[T any](app router.Router[T], opts ...ControllerOption) *Controller {
	controller := NewController(opts...)

	app.Get(controller.Routes.Dashboard, controller.Show).
		SetName("dashboard.get")

	app.Post(controller.Routes.Export, controller.Export).
		SetName("dashboard.export.post")

	app.Get(controller.Routes.Registry, controller.RegistryShow).
		SetName("dashboard.registry.get")

	return controller
}

type ControllerRoutes struct {
	Dashboard string
	Export    string
	Registry  string
}

type ControllerViews struct {
	Dashboard string
	Registry  string
	Error     string
}

// Controller serves the widget host page, exports and the registry view.
type Controller struct {
	Logger      Logger
	Routes      *ControllerRoutes
	Views       *ControllerViews
	Auther      *auth.RouteAuthenticator
	Registry    *Registry
	Exporter    Exporter
	Sink        analytics.Sink
	WidgetParam string
	// RenderTimeout bounds how long a request waits for the page to settle.
	// A page still loading after it renders its loading state.
	RenderTimeout time.Duration

	loader   *Loader
	limit    rate.Limit
	burst    int
	limiters *expirable.LRU[string, *rate.Limiter]
}

type ControllerOption func(*Controller) *Controller

func WithRouteAuthenticator(auther *auth.RouteAuthenticator) ControllerOption {
	return func(c *Controller) *Controller {
		c.Auther = auther
		return c
	}
}

func WithWidgetRegistry(registry *Registry) ControllerOption {
	return func(c *Controller) *Controller {
		c.Registry = registry
		return c
	}
}

// WithDataService sets where page data comes from. Concurrent requests for
// the same user share one fetch.
func WithDataService(svc DataService) ControllerOption {
	return func(c *Controller) *Controller {
		if svc != nil {
			c.loader = NewLoader(svc)
		}
		return c
	}
}

func WithExportService(exporter Exporter) ControllerOption {
	return func(c *Controller) *Controller {
		if exporter != nil {
			c.Exporter = exporter
		}
		return c
	}
}

func WithControllerAnalytics(sink analytics.Sink) ControllerOption {
	return func(c *Controller) *Controller {
		c.Sink = analytics.Normalize(sink)
		return c
	}
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerConfig applies routes and export limits from cfg.
func WithControllerConfig(cfg Config) ControllerOption {
	return func(c *Controller) *Controller {
		if route := strings.TrimRight(cfg.GetDashboardRoute(), "/"); route != "" {
			c.Routes.Dashboard = route
			c.Routes.Export = route + "/export"
			c.Routes.Registry = route + "/registry"
		}
		if param := cfg.GetWidgetParam(); param != "" {
			c.WidgetParam = param
		}
		if limit := cfg.GetExportRateLimit(); limit > 0 {
			c.limit = rate.Limit(limit)
		}
		if burst := cfg.GetExportBurst(); burst > 0 {
			c.burst = burst
		}
		return c
	}
}

func WithRenderTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) *Controller {
		if d > 0 {
			c.RenderTimeout = d
		}
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: defLogger{},
		Routes: &ControllerRoutes{
			Dashboard: "/dashboard",
			Export:    "/dashboard/export",
			Registry:  "/dashboard/registry",
		},
		Views: &ControllerViews{
			Dashboard: "dashboard",
			Registry:  "registry",
			Error:     "errors/500",
		},
		Exporter:      export.NewService(),
		Sink:          analytics.Noop(),
		WidgetParam:   "widget",
		RenderTimeout: 5 * time.Second,
		limit:         rate.Every(10 * time.Second),
		burst:         3,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in dashboard controller...")
	}

	if c.Registry == nil {
		panic("Missing widget Registry in dashboard controller...")
	}

	if c.loader == nil {
		panic("Missing DataService in dashboard controller...")
	}

	c.limiters = expirable.NewLRU[string, *rate.Limiter](4096, nil, time.Hour)

	return c
}

// Show renders the widget host page for the request.
func (c *Controller) Show(ctx router.Context) error {
	page, _, nav := c.newPage(ctx)
	defer page.Unmount()

	frame, err := c.mount(ctx, page)
	if err != nil {
		return c.renderError(ctx, err)
	}

	if nav.Target() != "" {
		return nav.Flush()
	}

	return c.render(ctx, http.StatusOK, frame, nil)
}

// ExportRequest is the export form.
type ExportRequest struct {
	Format string `form:"format" json:"format"`
}

// Validate will run validation rules
func (r ExportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Format, validation.Required, validation.Length(1, 20)),
	)
}

// Export sends the current page data in the requested format. Members and
// above may export.
func (c *Controller) Export(ctx router.Context) error {
	page, provider, nav := c.newPage(ctx, WithoutPageView())
	defer page.Unmount()

	frame, err := c.mount(ctx, page)
	if err != nil {
		return c.renderError(ctx, err)
	}

	session, ok := auth.RequireRole(provider, nav, auth.RoleMember)
	if !ok {
		if nav.Target() != "" {
			return nav.Flush()
		}
		return c.render(ctx, http.StatusServiceUnavailable, frame, nil)
	}

	payload := new(ExportRequest)
	if err := ctx.Bind(payload); err != nil {
		c.Logger.Error("export parse payload", "error", err)
		return c.render(ctx, http.StatusBadRequest, frame, router.ViewContext{
			"export_error": "Failed to parse form",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.render(ctx, http.StatusBadRequest, frame, router.ViewContext{
			"export_error": "Choose an export format",
			"validation":   auth.FormatValidationErrorToMap(err),
		})
	}

	if !c.allow(session.UserID) {
		return c.render(ctx, ErrExportRateLimited.Code, frame, router.ViewContext{
			"export_error": ErrExportRateLimited.Message,
		})
	}

	artifact, err := page.RequestExport(ctx.Context(), payload.Format)
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) && richErr.Category != errors.CategoryInternal {
			c.Logger.Info("export rejected", "format", payload.Format, "error", richErr.Message)
			return c.render(ctx, richErr.Code, frame, router.ViewContext{
				"export_error": richErr.Message,
			})
		}
		return c.renderError(ctx, err)
	}

	ctx.SetHeader("Content-Type", artifact.ContentType)
	ctx.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	return ctx.Status(http.StatusOK).Send(artifact.Body)
}

// RegistryShow lists every widget descriptor, visible or not. Admins only.
func (c *Controller) RegistryShow(ctx router.Context) error {
	provider := c.Auther.Provider(ctx)
	nav := c.Auther.Navigator(ctx)

	session, ok := auth.RequireRole(provider, nav, auth.RoleAdmin)
	if !ok {
		if nav.Target() != "" {
			return nav.Flush()
		}
		return c.renderError(ctx, provider.State().LastError)
	}

	rows := make([]map[string]any, 0, c.Registry.Len())
	for _, d := range c.Registry.All() {
		rows = append(rows, map[string]any{
			"id":        d.ID,
			"title":     d.Title,
			"category":  string(d.Category),
			"slot":      string(SlotFor(d)),
			"available": d.Available,
			"visible":   c.Registry.IsVisible(ctx.Context(), d, session.Role),
			"min_role":  string(d.MinRole),
			"template":  d.Template,
			"inputs":    strings.Join(d.Inputs, ", "),
		})
	}

	return ctx.Render(c.Views.Registry, router.ViewContext{
		"widgets":       rows,
		TemplateUserKey: provider.State().User,
	})
}

func (c *Controller) newPage(ctx router.Context, opts ...PageOption) (*Page, *auth.Provider, *auth.RouteNavigator) {
	provider := c.Auther.Provider(ctx)
	nav := c.Auther.Navigator(ctx)
	page := NewPage(provider, nav, c.Registry, c.loader, append([]PageOption{
		WithAnalytics(c.Sink),
		WithExporter(c.Exporter),
		WithPageLogger(c.Logger),
		WithWidgetParam(c.WidgetParam),
	}, opts...)...)
	return page, provider, nav
}

// mount starts the page and waits for it to settle. When the wait times out
// the loading frame is returned.
func (c *Controller) mount(ctx router.Context, page *Page) (Frame, error) {
	if err := page.Mount(ctx.Context()); err != nil {
		return Frame{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx.Context(), c.RenderTimeout)
	defer cancel()

	frame, err := page.Wait(waitCtx)
	if stderrors.Is(err, context.DeadlineExceeded) {
		c.Logger.Warn("dashboard still loading at render time", "timeout", c.RenderTimeout)
		return frame, nil
	}
	return frame, err
}

func (c *Controller) render(ctx router.Context, status int, frame Frame, extra router.ViewContext) error {
	view := FrameViewContext(frame, c.Routes.Dashboard, c.WidgetParam)
	view["export_route"] = c.Routes.Export
	view["registry_route"] = c.Routes.Registry
	if active := frame.ActiveWidget(); active != "" {
		view["export_route"] = c.Routes.Export + "?" + c.WidgetParam + "=" + active
	}
	for k, v := range extra {
		view[k] = v
	}
	return ctx.Status(status).Render(c.Views.Dashboard, view)
}

func (c *Controller) renderError(ctx router.Context, err error) error {
	if err == nil {
		err = auth.ErrAuthResolution
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	c.Logger.Error(
		"dashboard error",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return ctx.Status(status).Render(c.Views.Error, router.ViewContext{
		"error": richErr,
	})
}

func (c *Controller) allow(userID string) bool {
	limiter, ok := c.limiters.Get(userID)
	if !ok {
		limiter = rate.NewLimiter(c.limit, c.burst)
		c.limiters.Add(userID, limiter)
	}
	return limiter.Allow()
}
