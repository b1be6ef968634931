package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

var (
	ErrTokenMismatch = errors.New("CSRF token mismatch")
	ErrTokenMissing  = errors.New("CSRF token missing")
	ErrTokenExpired  = errors.New("CSRF token expired")
)

// DefaultContextKey is the default key for storing CSRF tokens in context
const DefaultContextKey = "csrf_token"

// DefaultFormFieldName is the default name for the CSRF token form field
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the default header name for CSRF tokens
const DefaultHeaderName = "X-CSRF-Token"

// Config defines the configuration for CSRF middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// SecureKey signs tokens, at least 32 bytes. A random key is generated
	// when empty, which invalidates tokens on restart.
	SecureKey []byte

	// SessionKey binds a token to the caller, usually the session cookie.
	SessionKey func(router.Context) string

	ContextKey    string
	FormFieldName string
	HeaderName    string
	SafeMethods   []string
	Expiration    time.Duration

	ErrorHandler   func(router.Context, error) error
	SuccessHandler router.HandlerFunc

	now func() time.Time
}

// New creates a stateless CSRF middleware. Tokens are
// base64(timestamp:nonce:hmac(timestamp:nonce:session)).
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			token, err := cfg.Generate(cfg.SessionKey(ctx))
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)

			if slices.Contains(cfg.SafeMethods, strings.ToUpper(ctx.Method())) {
				return cfg.SuccessHandler(ctx)
			}

			received := extractToken(ctx, cfg)
			if received == "" {
				return cfg.ErrorHandler(ctx, ErrTokenMissing)
			}

			if err := cfg.Validate(received, cfg.SessionKey(ctx)); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// Generate returns a token bound to sessionKey.
func (cfg Config) Generate(sessionKey string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%d:%s", cfg.clock().UTC().Unix(), hex.EncodeToString(nonce))
	token := payload + ":" + cfg.sign(payload, sessionKey)
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

// Validate checks token against sessionKey and the configured expiration.
func (cfg Config) Validate(token, sessionKey string) error {
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 3 {
		return ErrTokenMismatch
	}

	timestamp, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	expected := cfg.sign(parts[0]+":"+parts[1], sessionKey)
	if !hmac.Equal([]byte(parts[2]), []byte(expected)) {
		return ErrTokenMismatch
	}

	if cfg.Expiration > 0 && cfg.clock().UTC().After(time.Unix(timestamp, 0).Add(cfg.Expiration)) {
		return ErrTokenExpired
	}

	return nil
}

func (cfg Config) clock() time.Time {
	if cfg.now == nil {
		return time.Now()
	}
	return cfg.now()
}

func (cfg Config) sign(payload, sessionKey string) string {
	mac := hmac.New(sha256.New, cfg.SecureKey)
	mac.Write([]byte(payload + ":" + sessionKey))
	return hex.EncodeToString(mac.Sum(nil))
}

func extractToken(ctx router.Context, cfg Config) string {
	if token := ctx.Header(cfg.HeaderName); token != "" {
		return token
	}

	form, err := url.ParseQuery(string(ctx.Body()))
	if err != nil {
		return ""
	}
	return form.Get(cfg.FormFieldName)
}

func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}

	if cfg.Expiration == 0 {
		cfg.Expiration = 12 * time.Hour
	}

	if cfg.SessionKey == nil {
		cfg.SessionKey = func(router.Context) string { return "" }
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	cfg.SecureKey = initializeSecureKey(cfg.SecureKey)

	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	switch err {
	case ErrTokenMissing:
		return ctx.Status(400).SendString("CSRF token missing")
	case ErrTokenMismatch, ErrTokenExpired:
		return ctx.Status(403).SendString(err.Error())
	default:
		return ctx.Status(500).SendString("CSRF validation error")
	}
}

func initializeSecureKey(current []byte) []byte {
	if len(current) > 0 {
		if len(current) < 32 {
			panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(current)))
		}
		return current
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}
