package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// ErrAuthResolution is reported when the identity backend cannot be reached
// or returns an unusable answer. The page stays in its loading state.
var ErrAuthResolution = errors.New("unable to resolve your session right now", errors.CategoryOperation).
	WithTextCode("AUTH_RESOLUTION").
	WithCode(errors.CodeInternal)

// ErrInvalidCredentials is returned on a failed sign in
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(errors.CodeUnauthorized)

// ErrTooManyAttempts is returned when a user is locked out of sign in
var ErrTooManyAttempts = errors.New("too many sign in attempts, try again later", errors.CategoryRateLimit).
	WithTextCode("TOO_MANY_ATTEMPTS").
	WithCode(429)

// ErrTokenExpired is returned for expired session tokens
var ErrTokenExpired = errors.New("session token expired", errors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that cannot be parsed
var ErrTokenMalformed = errors.New("session token malformed", errors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode("SESSION_DECODE").
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned when the session role is too low
var ErrForbidden = errors.New("you do not have access to this page", errors.CategoryAuthz).
	WithTextCode("FORBIDDEN").
	WithCode(errors.CodeForbidden)

// ErrNoEmptyString password must not be empty
var ErrNoEmptyString = errors.New("password can not be empty", errors.CategoryValidation).
	WithTextCode("EMPTY_PASSWORD").
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword password does not match hash
var ErrMismatchedHashAndPassword = errors.New("password mismatch", errors.CategoryAuth).
	WithTextCode("PASSWORD_MISMATCH").
	WithCode(errors.CodeUnauthorized)

// resolutionError wraps a backend failure as an ErrAuthResolution.
func resolutionError(err error, backend string) *errors.Error {
	return errors.Wrap(err, ErrAuthResolution.Category, ErrAuthResolution.Message).
		WithTextCode(ErrAuthResolution.TextCode).
		WithCode(ErrAuthResolution.Code).
		WithMetadata(map[string]any{"backend": backend})
}

// IsAuthResolutionError reports whether err is an identity backend failure.
func IsAuthResolutionError(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == ErrAuthResolution.TextCode
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
