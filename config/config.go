// Package config loads dashboard settings from a YAML file, .env files and
// DASHBOARD_* environment variables.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-dashboard/auth/jwks"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. DASHBOARD_APP_ADDR.
const EnvPrefix = "DASHBOARD"

// Identity backends.
const (
	BackendLocal  = "local"
	BackendKratos = "kratos"
	BackendJWKS   = "jwks"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	App         App         `mapstructure:"app"`
	Auth        Auth        `mapstructure:"auth"`
	Kratos      Kratos      `mapstructure:"kratos"`
	JWKS        JWKS        `mapstructure:"jwks"`
	Dashboard   Dashboard   `mapstructure:"dashboard"`
	Persistence Persistence `mapstructure:"persistence"`
	Logging     Logging     `mapstructure:"logging"`
	Metrics     Metrics     `mapstructure:"metrics"`
	Features    Features    `mapstructure:"features"`
}

type App struct {
	Name            string        `mapstructure:"name"`
	Addr            string        `mapstructure:"addr"`
	Backend         string        `mapstructure:"backend"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ViewsDir        string        `mapstructure:"views_dir"`
}

// Auth implements auth.Config.
type Auth struct {
	SigningKey            string        `mapstructure:"signing_key"`
	TokenExpiration       int           `mapstructure:"token_expiration"`
	ExtendedTokenDuration int           `mapstructure:"extended_token_duration"`
	ContextKey            string        `mapstructure:"context_key"`
	Issuer                string        `mapstructure:"issuer"`
	Audience              []string      `mapstructure:"audience"`
	RejectedRouteKey      string        `mapstructure:"rejected_route_key"`
	RejectedRouteDefault  string        `mapstructure:"rejected_route_default"`
	SignInRoute           string        `mapstructure:"sign_in_route"`
	ForbiddenRoute        string        `mapstructure:"forbidden_route"`
	CSRFKey               string        `mapstructure:"csrf_key"`
	MaxLoginAttempts      int           `mapstructure:"max_login_attempts"`
	LockoutPeriod         string        `mapstructure:"lockout_period"`
	ProviderPoolSize      int           `mapstructure:"provider_pool_size"`
	ProviderTTL           time.Duration `mapstructure:"provider_ttl"`
}

func (a Auth) GetSigningKey() string {
	return a.SigningKey
}

func (a Auth) GetTokenExpiration() int {
	return a.TokenExpiration
}

func (a Auth) GetExtendedTokenDuration() int {
	return a.ExtendedTokenDuration
}

func (a Auth) GetContextKey() string {
	return a.ContextKey
}

func (a Auth) GetIssuer() string {
	return a.Issuer
}

func (a Auth) GetAudience() []string {
	return a.Audience
}

func (a Auth) GetRejectedRouteKey() string {
	return a.RejectedRouteKey
}

func (a Auth) GetRejectedRouteDefault() string {
	return a.RejectedRouteDefault
}

func (a Auth) GetSignInRoute() string {
	return a.SignInRoute
}

func (a Auth) GetForbiddenRoute() string {
	return a.ForbiddenRoute
}

// Kratos implements kratos.Config.
type Kratos struct {
	PublicURL  string        `mapstructure:"public_url"`
	AdminURL   string        `mapstructure:"admin_url"`
	CookieName string        `mapstructure:"cookie_name"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (k Kratos) GetKratosPublicURL() string {
	return k.PublicURL
}

func (k Kratos) GetKratosAdminURL() string {
	return k.AdminURL
}

func (k Kratos) GetKratosCookieName() string {
	return k.CookieName
}

func (k Kratos) GetKratosTimeout() time.Duration {
	return k.Timeout
}

type JWKS struct {
	URL             string        `mapstructure:"url"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
	RoleClaim       string        `mapstructure:"role_claim"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// BackendConfig returns the settings for jwks.New.
func (j JWKS) BackendConfig() jwks.Config {
	return jwks.Config{
		URL:             j.URL,
		Issuer:          j.Issuer,
		Audience:        j.Audience,
		RoleClaim:       j.RoleClaim,
		RefreshInterval: j.RefreshInterval,
	}
}

// Dashboard implements dashboard.Config.
type Dashboard struct {
	Route           string        `mapstructure:"route"`
	WidgetParam     string        `mapstructure:"widget_param"`
	ExportRateLimit float64       `mapstructure:"export_rate_limit"`
	ExportBurst     int           `mapstructure:"export_burst"`
	RenderTimeout   time.Duration `mapstructure:"render_timeout"`
}

func (d Dashboard) GetDashboardRoute() string {
	return d.Route
}

func (d Dashboard) GetWidgetParam() string {
	return d.WidgetParam
}

func (d Dashboard) GetExportRateLimit() float64 {
	return d.ExportRateLimit
}

func (d Dashboard) GetExportBurst() int {
	return d.ExportBurst
}

// Persistence implements the persistence client configuration.
type Persistence struct {
	Driver      string        `mapstructure:"driver"`
	DSN         string        `mapstructure:"dsn"`
	Debug       bool          `mapstructure:"debug"`
	Seed        bool          `mapstructure:"seed"`
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
}

func (p Persistence) GetDriver() string {
	return p.Driver
}

func (p Persistence) GetServer() string {
	return p.DSN
}

func (p Persistence) GetPingTimeout() time.Duration {
	if p.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return p.PingTimeout
}

func (p Persistence) GetOtelIdentifier() string {
	return "dashboard"
}

func (p Persistence) GetDebug() bool {
	return p.Debug
}

type Logging struct {
	// Level is "trace" or "debug" for verbose output, anything else logs at
	// the default level.
	Level string `mapstructure:"level"`
}

type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Features lists feature keys that are switched off, e.g. "widgets.personas".
type Features struct {
	Disabled []string `mapstructure:"disabled"`
}

// Gate returns the features as a feature gate.
func (f Features) Gate() FeatureFlags {
	flags := make(FeatureFlags, len(f.Disabled))
	for _, key := range f.Disabled {
		if key = strings.TrimSpace(key); key != "" {
			flags[strings.ToLower(key)] = false
		}
	}
	return flags
}

// FeatureFlags is a static feature gate. Keys that are not listed are
// enabled.
type FeatureFlags map[string]bool

var _ gate.FeatureGate = FeatureFlags(nil)

func (f FeatureFlags) Enabled(_ context.Context, key string, _ ...gate.ResolveOption) (bool, error) {
	enabled, ok := f[strings.ToLower(key)]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

// Load reads cfgFile, or dashboard.yaml from the working directory and
// ./config when cfgFile is empty. Missing files are fine; defaults apply.
// Values from .env files are visible as environment variables.
func Load(cfgFile string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("dashboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dashboard")
	v.SetDefault("app.addr", ":8080")
	v.SetDefault("app.backend", BackendLocal)
	v.SetDefault("app.shutdown_timeout", 10*time.Second)

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.csrf_key", "")
	v.SetDefault("auth.token_expiration", 24)
	v.SetDefault("auth.extended_token_duration", 24*14)
	v.SetDefault("auth.context_key", "session")
	v.SetDefault("auth.issuer", "dashboard")
	v.SetDefault("auth.audience", []string{"dashboard:web"})
	v.SetDefault("auth.rejected_route_key", "rejected_route")
	v.SetDefault("auth.rejected_route_default", "/dashboard")
	v.SetDefault("auth.sign_in_route", "/login")
	v.SetDefault("auth.forbidden_route", "/forbidden")
	v.SetDefault("auth.max_login_attempts", 5)
	v.SetDefault("auth.lockout_period", "15m")
	v.SetDefault("auth.provider_pool_size", 1024)
	v.SetDefault("auth.provider_ttl", 5*time.Minute)

	v.SetDefault("kratos.public_url", "http://127.0.0.1:4433")
	v.SetDefault("kratos.admin_url", "http://127.0.0.1:4434")
	v.SetDefault("kratos.cookie_name", "ory_kratos_session")
	v.SetDefault("kratos.timeout", 5*time.Second)

	v.SetDefault("jwks.url", "")
	v.SetDefault("jwks.issuer", "")
	v.SetDefault("jwks.audience", "")
	v.SetDefault("jwks.role_claim", "role")
	v.SetDefault("jwks.refresh_interval", time.Hour)

	v.SetDefault("dashboard.route", "/dashboard")
	v.SetDefault("dashboard.widget_param", "widget")
	v.SetDefault("dashboard.export_rate_limit", 0.1)
	v.SetDefault("dashboard.export_burst", 3)
	v.SetDefault("dashboard.render_timeout", 5*time.Second)

	v.SetDefault("persistence.driver", DriverSQLite)
	v.SetDefault("persistence.dsn", "file:dashboard.db?cache=shared")
	v.SetDefault("persistence.ping_timeout", 5*time.Second)

	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("features.disabled", []string{})
}

// Validate will run validation rules
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c.App,
		validation.Field(&c.App.Addr, validation.Required),
		validation.Field(&c.App.Backend, validation.Required, validation.In(BackendLocal, BackendKratos, BackendJWKS)),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	if err := validation.ValidateStruct(&c.Persistence,
		validation.Field(&c.Persistence.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.Persistence.DSN, validation.Required),
	); err != nil {
		return fmt.Errorf("persistence: %w", err)
	}

	switch c.App.Backend {
	case BackendLocal:
		if err := validation.ValidateStruct(&c.Auth,
			validation.Field(&c.Auth.SigningKey, validation.Required, validation.Length(32, 0)),
		); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	case BackendKratos:
		if err := validation.ValidateStruct(&c.Kratos,
			validation.Field(&c.Kratos.PublicURL, validation.Required),
			validation.Field(&c.Kratos.AdminURL, validation.Required),
		); err != nil {
			return fmt.Errorf("kratos: %w", err)
		}
	case BackendJWKS:
		if err := validation.ValidateStruct(&c.JWKS,
			validation.Field(&c.JWKS.URL, validation.Required),
		); err != nil {
			return fmt.Errorf("jwks: %w", err)
		}
	}

	return nil
}
