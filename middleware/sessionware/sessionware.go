package sessionware

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup = "cookie:session,header:Authorization"

	// ErrSessionMissing is passed to the error handler when no token was
	// found or the token resolved to no session.
	ErrSessionMissing = errors.New("missing or invalid session")
)

// ResolveFunc turns a raw token into a session value. A nil session with a
// nil error means the token does not belong to a live session.
type ResolveFunc func(ctx context.Context, token string) (any, error)

// ValidationListener is invoked after a session has been resolved but
// before the request proceeds.
type ValidationListener func(ctx router.Context, session any) error

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   func(router.Context, error) error
	// Resolve is required
	Resolve ResolveFunc
	// ContextKey is the locals key the session is stored under
	ContextKey  string
	TokenLookup string
	AuthScheme  string
	// Optional lets anonymous requests through without a session
	Optional bool

	// ContextEnricher propagates the session to the standard context
	ContextEnricher func(c context.Context, session any) context.Context

	ValidationListeners []ValidationListener
}

func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			token := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
			if token == "" {
				if cfg.Optional {
					return cfg.SuccessHandler(ctx)
				}
				return cfg.ErrorHandler(ctx, ErrSessionMissing)
			}

			session, err := cfg.Resolve(ctx.Context(), token)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if session == nil {
				if cfg.Optional {
					return cfg.SuccessHandler(ctx)
				}
				return cfg.ErrorHandler(ctx, ErrSessionMissing)
			}

			for _, listener := range cfg.ValidationListeners {
				if listener == nil {
					continue
				}
				if err := listener(ctx, session); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
			}

			ctx.Locals(cfg.ContextKey, session)

			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), session))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func ExtractRawTokenFromContext(ctx router.Context, extractors []TokenExtractor) string {
	for _, extractor := range extractors {
		if raw := extractor(ctx); raw != "" {
			return raw
		}
	}
	return ""
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Resolve == nil {
		panic("DASHBOARD: session middleware configuration: Resolve is required.")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			return c.Status(401).SendString("Invalid or expired session")
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "session"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []TokenExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

type TokenExtractor func(c router.Context) string

// GetExtractors parses a lookup such as
// "cookie:session,header:Authorization,query:token".
func GetExtractors(tokenLookup string, authScheme string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, tokenFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(name))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(name))
		}
	}

	return extractors
}

func tokenFromHeader(header string, authScheme string) TokenExtractor {
	return func(c router.Context) string {
		a := c.Header(header)
		l := len(authScheme)
		if l == 0 {
			return strings.TrimSpace(a)
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:])
		}
		return ""
	}
}

func tokenFromQuery(param string) TokenExtractor {
	return func(c router.Context) string {
		return c.Query(param, "")
	}
}

func tokenFromCookie(name string) TokenExtractor {
	return func(c router.Context) string {
		return c.Cookies(name)
	}
}
