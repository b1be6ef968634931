package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-dashboard/analytics"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Authenticator signs users in with a password and returns a session token.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string, extended bool) (string, *Session, error)
}

// LocalBackend is an IdentityBackend over the users and sessions tables.
// Tokens are HS256 JWTs whose id claim points at a session record, so
// signing out revokes the token server side.
type LocalBackend struct {
	ChangeHub

	repo         RepositoryManager
	tokens       *TokenService
	ttl          time.Duration
	extendedTTL  time.Duration
	maxAttempts  int
	lockoutFor   string
	now          func() time.Time
	logger       Logger
	activitySink analytics.Sink
}

var (
	_ IdentityBackend = (*LocalBackend)(nil)
	_ Authenticator   = (*LocalBackend)(nil)
)

// NewLocalBackend returns a backend using cfg for token settings.
func NewLocalBackend(repo RepositoryManager, cfg Config) *LocalBackend {
	ttl := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		ttl = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	extendedTTL := ttl
	if cfg.GetExtendedTokenDuration() > 0 {
		extendedTTL = time.Duration(cfg.GetExtendedTokenDuration()) * time.Hour
	}

	return &LocalBackend{
		repo:         repo,
		tokens:       NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetIssuer(), cfg.GetAudience(), nil),
		ttl:          ttl,
		extendedTTL:  extendedTTL,
		maxAttempts:  5,
		lockoutFor:   "15m",
		now:          time.Now,
		logger:       defLogger{},
		activitySink: analytics.Noop(),
	}
}

func (b *LocalBackend) WithLogger(logger Logger) *LocalBackend {
	if logger != nil {
		b.logger = logger
		b.tokens.logger = logger
	}
	return b
}

func (b *LocalBackend) WithClock(now func() time.Time) *LocalBackend {
	if now != nil {
		b.now = now
	}
	return b
}

// WithLockout sets how many failed attempts lock a user out and for how
// long, as a duration expression ("15m").
func (b *LocalBackend) WithLockout(maxAttempts int, period string) *LocalBackend {
	b.maxAttempts = maxAttempts
	if period != "" {
		b.lockoutFor = period
	}
	return b
}

func (b *LocalBackend) WithActivitySink(sink analytics.Sink) *LocalBackend {
	b.activitySink = analytics.Normalize(sink)
	return b
}

func (b *LocalBackend) Login(ctx context.Context, identifier, password string, extended bool) (string, *Session, error) {
	user, err := b.repo.Users().FindByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			b.record(ctx, analytics.EventLoginFailure, "", map[string]any{"identifier": identifier})
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, resolutionError(err, "local")
	}

	if b.lockedOut(user) {
		b.logger.Warn("login locked out", "user", user.ID, "attempts", user.LoginAttempts)
		return "", nil, ErrTooManyAttempts
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if trackErr := b.repo.Users().TrackAttemptedLogin(ctx, user); trackErr != nil {
			b.logger.Error("failed to track login attempt", "error", trackErr)
		}
		b.record(ctx, analytics.EventLoginFailure, user.ID.String(), nil)
		return "", nil, ErrInvalidCredentials
	}

	if err := b.repo.Users().TrackSuccessfulLogin(ctx, user); err != nil {
		b.logger.Error("failed to track login", "error", err)
	}

	ttl := b.ttl
	if extended {
		ttl = b.extendedTTL
	}

	now := b.now()
	record, err := b.repo.Sessions().Open(ctx, user.ID, now.Add(ttl))
	if err != nil {
		return "", nil, errors.Wrap(err, errors.CategoryInternal, "unable to open session")
	}

	token, err := b.tokens.Generate(user, record.ID.String(), now, record.ExpiresAt)
	if err != nil {
		return "", nil, err
	}

	session := sessionFromRecord(record, user, token)
	b.record(ctx, analytics.EventLoginSuccess, user.ID.String(), nil)
	b.Emit(SessionEvent{Type: SessionSignedIn, Token: token, Session: session})

	return token, session, nil
}

func (b *LocalBackend) lockedOut(user *User) bool {
	if b.maxAttempts <= 0 || user.LoginAttempts < b.maxAttempts || user.LoginAttemptAt == nil {
		return false
	}
	within, err := IsWithinThresholdPeriod(*user.LoginAttemptAt, b.now(), b.lockoutFor)
	if err != nil {
		b.logger.Error("invalid lockout period", "period", b.lockoutFor, "error", err)
		return false
	}
	return within
}

// GetSession resolves token. Unknown, expired, revoked and malformed tokens
// resolve to no session.
func (b *LocalBackend) GetSession(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	claims, err := b.tokens.Validate(token)
	if err != nil {
		if IsTokenExpiredError(err) {
			b.Emit(SessionEvent{Type: SessionExpired, Token: token})
		}
		b.logger.Debug("session token rejected", "error", err)
		return nil, nil
	}

	id, err := uuid.Parse(claims.SessionID())
	if err != nil {
		return nil, nil
	}

	record, err := b.repo.Sessions().FindActive(ctx, id, b.now())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, resolutionError(err, "local")
	}

	return sessionFromRecord(record, record.User, token), nil
}

// SignOut revokes the session behind token and notifies subscribers.
func (b *LocalBackend) SignOut(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	claims, err := b.tokens.Validate(token)
	if err == nil {
		if id, parseErr := uuid.Parse(claims.SessionID()); parseErr == nil {
			if err := b.repo.Sessions().Revoke(ctx, id, b.now()); err != nil {
				return resolutionError(err, "local")
			}
		}
		b.record(ctx, analytics.EventSignOut, claims.UserID(), nil)
	}

	b.Emit(SessionEvent{Type: SessionSignedOut, Token: token})
	return nil
}

func (b *LocalBackend) record(ctx context.Context, eventType analytics.EventType, userID string, metadata map[string]any) {
	evt := analytics.Event{
		Type:       eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: b.now(),
	}
	if err := b.activitySink.Record(ctx, evt); err != nil {
		b.logger.Error("failed to record activity", "event", eventType, "error", err)
	}
}
