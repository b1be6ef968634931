package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Session is an authenticated identity and its validity window for one
// browser context.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      UserRole  `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiration at t.
func (s *Session) Expired(t time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !t.Before(s.ExpiresAt)
}

// HasRole reports whether the session role is at least minRole.
func (s *Session) HasRole(minRole UserRole) bool {
	if s == nil {
		return false
	}
	return s.Role.IsAtLeast(minRole)
}

// DisplayName returns the best available label for the session user.
func (s *Session) DisplayName() string {
	if s == nil {
		return ""
	}
	if s.Username != "" {
		return s.Username
	}
	if s.Email != "" {
		return s.Email
	}
	return s.UserID
}

// SessionEventType enumerates backend session changes.
type SessionEventType string

const (
	SessionSignedIn  SessionEventType = "signed_in"
	SessionSignedOut SessionEventType = "signed_out"
	SessionExpired   SessionEventType = "expired"
	SessionRefreshed SessionEventType = "refreshed"
)

// SessionEvent is emitted by an IdentityBackend when a session changes.
// Token identifies the browser context the change belongs to.
type SessionEvent struct {
	Type    SessionEventType
	Token   string
	Session *Session
}

// IdentityBackend issues and validates sessions.
type IdentityBackend interface {
	// GetSession resolves the session for token. A missing, invalid or
	// expired session returns (nil, nil). Errors mean the backend could not
	// answer.
	GetSession(ctx context.Context, token string) (*Session, error)
	// OnSessionChange registers fn and returns a function that removes it.
	OnSessionChange(fn func(SessionEvent)) (unsubscribe func())
	SignOut(ctx context.Context, token string) error
}

// Navigator reads the current URL and performs redirects.
type Navigator interface {
	Param(key string) string
	Redirect(to string)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetExtendedTokenDuration() int
	GetContextKey() string
	GetIssuer() string
	GetAudience() []string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
	GetSignInRoute() string
	GetForbiddenRoute() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
