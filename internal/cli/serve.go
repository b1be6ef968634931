package cli

import (
	"context"
	"crypto/sha256"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-dashboard"
	"github.com/goliatone/go-dashboard/analytics"
	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/auth/jwks"
	"github.com/goliatone/go-dashboard/auth/kratos"
	"github.com/goliatone/go-dashboard/config"
	"github.com/goliatone/go-dashboard/export"
	"github.com/goliatone/go-dashboard/middleware/csrf"
	"github.com/goliatone/go-dashboard/profile"
	"github.com/goliatone/go-dashboard/widgets"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

func newServeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.serve(cmd.Context())
		},
	}
}

func (a *App) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := a.Logger("serve")

	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sink := analytics.Multi(
		analytics.NewPrometheusSink(metrics),
		analytics.NewLogSink(a.Logger("activity")),
	)

	authCfg := a.cfg.Auth
	if a.cfg.App.Backend == config.BackendKratos {
		authCfg.ContextKey = a.cfg.Kratos.GetKratosCookieName()
	}

	backend, closeBackend, err := a.identityBackend(ctx, db, authCfg, sink)
	if err != nil {
		return err
	}
	defer closeBackend()

	pool := auth.NewProviderPool(backend, authCfg.ProviderPoolSize, authCfg.ProviderTTL,
		auth.WithProviderLogger(a.Logger("provider")),
		auth.WithRoutes(authCfg.GetSignInRoute(), authCfg.GetForbiddenRoute()),
	)
	defer pool.Close()

	httpAuth, err := auth.NewHTTPAuthenticator(pool, authCfg)
	if err != nil {
		return err
	}
	httpAuth.WithLogger(a.Logger("auth"))
	if local, ok := backend.(*auth.LocalBackend); ok {
		httpAuth.WithAuthenticator(local)
	}

	registry, err := widgets.NewRegistry(dashboard.WithFeatureGate(a.cfg.Features.Gate()))
	if err != nil {
		return err
	}

	profiles := profile.NewService(profile.NewRepository(db)).
		WithLogger(a.Logger("profile"))

	exporter := export.NewService().
		WithLogger(a.Logger("export"))

	engine, err := a.viewEngine()
	if err != nil {
		return err
	}

	var fiberApp *fiber.App
	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		fiberApp = router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
		if a.cfg.Metrics.Enabled {
			fiberApp.Get(a.cfg.Metrics.Path, adaptor.HTTPHandler(
				promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}),
			))
		}
		return fiberApp
	})

	r := srv.Router()
	r.WithLogger(a.Logger("router"))

	r.Use(csrf.New(csrf.Config{
		SecureKey: csrfKey(authCfg),
		SessionKey: func(ctx router.Context) string {
			return ctx.Cookies(authCfg.GetContextKey())
		},
	}))
	r.Use(httpAuth.WithProvider())

	authOpts := []auth.AuthControllerOption{
		auth.WithAuthenticatorController(httpAuth),
		auth.WithControllerLogger(a.Logger("auth")),
	}
	if a.cfg.App.Backend == config.BackendKratos {
		authOpts = append(authOpts, auth.WithExternalLogin(
			strings.TrimRight(a.cfg.Kratos.GetKratosPublicURL(), "/")+"/self-service/login/browser",
		))
	}
	auth.RegisterAuthRoutes(r, authOpts...)

	dashboard.RegisterDashboardRoutes(r,
		dashboard.WithRouteAuthenticator(httpAuth),
		dashboard.WithWidgetRegistry(registry),
		dashboard.WithDataService(profiles),
		dashboard.WithExportService(exporter),
		dashboard.WithControllerAnalytics(sink),
		dashboard.WithControllerLogger(a.Logger("dashboard")),
		dashboard.WithControllerConfig(a.cfg.Dashboard),
		dashboard.WithRenderTimeout(a.cfg.Dashboard.RenderTimeout),
	)

	r.Get("/", func(ctx router.Context) error {
		return ctx.Redirect(a.cfg.Dashboard.GetDashboardRoute(), http.StatusFound)
	})

	logger.Info("dashboard listening",
		"addr", a.cfg.App.Addr,
		"backend", a.cfg.App.Backend,
		"widgets", registry.Len(),
		"version", a.version,
	)

	go srv.Serve(a.cfg.App.Addr)

	<-ctx.Done()
	logger.Info("shutting down", "timeout", a.cfg.App.ShutdownTimeout)

	if fiberApp == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
	defer cancel()
	return fiberApp.ShutdownWithContext(shutdownCtx)
}

// identityBackend builds the configured backend. The returned func releases
// whatever the backend holds open.
func (a *App) identityBackend(ctx context.Context, db *bun.DB, authCfg config.Auth, sink analytics.Sink) (auth.IdentityBackend, func(), error) {
	switch a.cfg.App.Backend {
	case config.BackendKratos:
		backend := kratos.New(a.cfg.Kratos).WithLogger(a.Logger("kratos"))
		return backend, func() {}, nil
	case config.BackendJWKS:
		backend, err := jwks.New(a.cfg.JWKS.BackendConfig())
		if err != nil {
			return nil, nil, err
		}
		backend.WithLogger(a.Logger("jwks"))
		return backend, backend.Close, nil
	case config.BackendLocal:
		repo := auth.NewRepositoryManager(db)
		purged, err := repo.Sessions().PurgeExpired(ctx, time.Now())
		if err != nil {
			a.Logger("local").Warn("purge expired sessions", "error", err)
		} else if purged > 0 {
			a.Logger("local").Info("purged expired sessions", "count", purged)
		}
		backend := auth.NewLocalBackend(repo, authCfg).
			WithLogger(a.Logger("local")).
			WithLockout(authCfg.MaxLoginAttempts, authCfg.LockoutPeriod).
			WithActivitySink(sink)
		return backend, func() {}, nil
	default:
		return nil, nil, errors.New("unknown identity backend "+a.cfg.App.Backend, errors.CategoryBadInput).
			WithTextCode("UNKNOWN_BACKEND")
	}
}

// viewEngine loads templates from ViewsDir with reload when set, otherwise
// from the embedded views.
func (a *App) viewEngine() (*django.Engine, error) {
	var engine *django.Engine
	if dir := strings.TrimSpace(a.cfg.App.ViewsDir); dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "views directory is not readable").
				WithMetadata(map[string]any{"views_dir": dir})
		}
		engine = django.New(dir, ".html")
		engine.Reload(true)
	} else {
		engine = django.NewFileSystem(http.FS(dashboard.GetViewsFS()), ".html")
	}

	for name, helper := range dashboard.TemplateHelpers() {
		engine.AddFunc(name, helper)
	}
	return engine, nil
}

// csrfKey derives the 32 byte CSRF key. An empty configured key yields nil
// and the middleware generates a random one.
func csrfKey(cfg config.Auth) []byte {
	secret := cfg.CSRFKey
	if secret == "" {
		secret = cfg.SigningKey
	}
	if secret == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}
